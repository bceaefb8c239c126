package quality_test

import (
	"testing"

	"lingotool/internal/quality"
)

func TestPlaceholderValidator(t *testing.T) {
	validator := quality.PlaceholderValidator{}
	cases := []struct {
		name   string
		source string
		target string
		passed bool
	}{
		{"matching printf", "Hello %s!", "Bonjour %s!", true},
		{"dropped printf", "Hello %s!", "Bonjour!", false},
		{"matching positional", "%1$s gave %2$d coins", "%2$d Münzen von %1$s", true},
		{"brace names", "Welcome {player}", "Willkommen {player}", true},
		{"renamed brace", "Hello {name}!", "Bonjour {nom}!", true},
		{"dropped brace", "Welcome {player}", "Willkommen", false},
		{"brace kind change", "Slot {0}", "Slot {name}", false},
		{"indexed brace", "Slot {0} of {1}", "Slot {0} von {1}", true},
		{"shell variable", "Set ${var} first", "Zuerst ${var} setzen", true},
		{"renamed shell variable", "Set ${var} first", "Zuerst ${wert} setzen", true},
		{"no placeholders", "Stone", "Stein", true},
		{"extra in target", "Stone", "Stein %d", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := validator.Validate("key", tc.source, tc.target)
			if result.Passed != tc.passed {
				t.Fatalf("Validate(%q, %q) passed=%v, want %v: %s",
					tc.source, tc.target, result.Passed, tc.passed, result.Message)
			}
			if !result.Passed && result.Level != quality.LevelError {
				t.Fatalf("placeholder failures must be errors, got %s", result.Level)
			}
		})
	}
}

func TestColorCodeValidator(t *testing.T) {
	validator := quality.ColorCodeValidator{}

	result := validator.Validate("key", "§aGreen§r text", "§aGrüner§r Text")
	if !result.Passed {
		t.Fatalf("matched codes must pass: %s", result.Message)
	}

	result = validator.Validate("key", "§aGreen text", "Grüner Text")
	if result.Passed || result.Level != quality.LevelWarning {
		t.Fatalf("count mismatch must warn, got %#v", result)
	}

	result = validator.Validate("key", "Green text", "§zText")
	if result.Passed || result.Level != quality.LevelError {
		t.Fatalf("invalid code must error, got %#v", result)
	}

	result = validator.Validate("key", "text", "trailing §")
	if result.Passed || result.Level != quality.LevelError {
		t.Fatalf("dangling section sign must error, got %#v", result)
	}
}

func TestLengthRatioValidator(t *testing.T) {
	validator := quality.LengthRatioValidator{Min: 0.5, Max: 2.0}

	if result := validator.Validate("key", "A short name", "Ein kurzer Name"); !result.Passed {
		t.Fatalf("reasonable ratio must pass: %s", result.Message)
	}
	result := validator.Validate("key", "Word", "An extremely long translation of a single word")
	if result.Passed || result.Level != quality.LevelWarning {
		t.Fatalf("oversized translation must warn, got %#v", result)
	}
	if result := validator.Validate("key", "", "anything"); !result.Passed {
		t.Fatal("empty source must not divide by zero")
	}
}

func TestEmptyValueValidator(t *testing.T) {
	validator := quality.EmptyValueValidator{}

	result := validator.Validate("key", "Stone", "   ")
	if result.Passed || result.Level != quality.LevelError {
		t.Fatalf("blank translation must error, got %#v", result)
	}
	if result := validator.Validate("key", "", ""); !result.Passed {
		t.Fatal("empty source with empty target is fine")
	}
}

func TestFormatValidator(t *testing.T) {
	validator := quality.FormatValidator{}

	if result := validator.Validate("key", "Multi\nline", "Mehr\nzeilig\tmit Tab"); !result.Passed {
		t.Fatalf("tab and newline are allowed: %s", result.Message)
	}
	result := validator.Validate("key", "Stone", "Ste\x01in")
	if result.Passed || result.Level != quality.LevelError {
		t.Fatalf("control character must error, got %#v", result)
	}
	result = validator.Validate("key", "source", `He said "hi"`)
	if result.Passed || result.Level != quality.LevelError {
		t.Fatalf("unescaped quotes must error, got %#v", result)
	}
	if result := validator.Validate("key", "source", `He said \"hi\"`); !result.Passed {
		t.Fatalf("escaped quotes must pass: %s", result.Message)
	}
}

func TestLineBreakValidator(t *testing.T) {
	validator := quality.LineBreakValidator{}

	if result := validator.Validate("key", "a\nb\nc", "x\ny"); !result.Passed {
		t.Fatalf("small drift must pass: %s", result.Message)
	}
	result := validator.Validate("key", "one line", "a\nb\nc\nd")
	if result.Passed || result.Level != quality.LevelWarning {
		t.Fatalf("large drift must warn, got %#v", result)
	}
	result = validator.Validate("key", "a\nb", "a\r\nb")
	if result.Passed || result.Level != quality.LevelWarning {
		t.Fatalf("introduced CRLF must warn, got %#v", result)
	}
}
