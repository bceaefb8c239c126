package quality

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Level grades a validator finding.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Result is one validator's verdict for one entry.
type Result struct {
	Validator string
	Passed    bool
	Level     Level
	Message   string
	Details   map[string]string
}

// Validator inspects one translated entry against its source string.
type Validator interface {
	Name() string
	Validate(key, source, target string) Result
}

func pass(name string) Result {
	return Result{Validator: name, Passed: true}
}

func fail(name string, level Level, message string, details map[string]string) Result {
	return Result{Validator: name, Passed: false, Level: level, Message: message, Details: details}
}

// placeholderClasses are the placeholder dialects that appear in game
// strings: printf verbs with optional positional index, brace substitutions,
// and shell-style variables. Consistency is judged per class, not per
// literal, so a translator may rename {player} to {spieler} as long as the
// class counts line up.
var placeholderClasses = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"printf_string", regexp.MustCompile(`%s`)},
	{"printf_decimal", regexp.MustCompile(`%d`)},
	{"indexed_string", regexp.MustCompile(`%\d+\$s`)},
	{"indexed_decimal", regexp.MustCompile(`%\d+\$d`)},
	{"named_placeholder", regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)},
	{"indexed_placeholder", regexp.MustCompile(`\{\d+\}`)},
	{"shell_variable", regexp.MustCompile(`\$\{[A-Za-z0-9_]+\}`)},
}

func countPlaceholders(value string) map[string]int {
	counts := make(map[string]int)
	for _, class := range placeholderClasses {
		if n := len(class.pattern.FindAllString(value, -1)); n > 0 {
			counts[class.name] = n
		}
	}
	return counts
}

// PlaceholderValidator requires the target to carry the source's placeholder
// classes in equal numbers. A count mismatch corrupts runtime formatting, so
// it is an error.
type PlaceholderValidator struct{}

func (PlaceholderValidator) Name() string { return "placeholder_consistency" }

func (v PlaceholderValidator) Validate(key, source, target string) Result {
	sourceCounts := countPlaceholders(source)
	targetCounts := countPlaceholders(target)

	var missing, extra []string
	for _, class := range placeholderClasses {
		sourceN := sourceCounts[class.name]
		targetN := targetCounts[class.name]
		switch {
		case targetN < sourceN:
			missing = append(missing, fmt.Sprintf("%s(%d)", class.name, sourceN-targetN))
		case targetN > sourceN:
			extra = append(extra, fmt.Sprintf("%s(%d)", class.name, targetN-sourceN))
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return pass(v.Name())
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "extra "+strings.Join(extra, ", "))
	}
	return fail(v.Name(), LevelError,
		"placeholder mismatch: "+strings.Join(parts, "; "),
		map[string]string{
			"missing": strings.Join(missing, " "),
			"extra":   strings.Join(extra, " "),
		})
}

const colorCodeAlphabet = "0123456789abcdefklmnor"

func countColorCodes(value string) (valid int, invalid []string) {
	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '§' {
			continue
		}
		if i+1 >= len(runes) {
			invalid = append(invalid, "§")
			continue
		}
		code := runes[i+1]
		if strings.ContainsRune(colorCodeAlphabet, code) {
			valid++
		} else {
			invalid = append(invalid, "§"+string(code))
		}
		i++
	}
	return valid, invalid
}

// ColorCodeValidator checks section-sign formatting codes. An invalid code
// renders as garbage in game, so it is an error; a differing count is only a
// warning because translators legitimately restyle text.
type ColorCodeValidator struct{}

func (ColorCodeValidator) Name() string { return "color_code" }

func (v ColorCodeValidator) Validate(key, source, target string) Result {
	sourceCount, _ := countColorCodes(source)
	targetCount, invalid := countColorCodes(target)
	if len(invalid) > 0 {
		return fail(v.Name(), LevelError,
			fmt.Sprintf("invalid formatting codes: %s", strings.Join(invalid, ", ")),
			map[string]string{"invalid_codes": strings.Join(invalid, " ")})
	}
	if sourceCount != targetCount {
		return fail(v.Name(), LevelWarning,
			fmt.Sprintf("formatting code count differs: source %d, translation %d", sourceCount, targetCount),
			map[string]string{
				"source_count": fmt.Sprintf("%d", sourceCount),
				"target_count": fmt.Sprintf("%d", targetCount),
			})
	}
	return pass(v.Name())
}

// LengthRatioValidator flags translations whose length diverges far from
// the source. UI layouts tolerate some growth, so this is a warning only.
type LengthRatioValidator struct {
	Min float64
	Max float64
}

func (LengthRatioValidator) Name() string { return "length_ratio" }

func (v LengthRatioValidator) Validate(key, source, target string) Result {
	if len([]rune(source)) == 0 {
		return pass(v.Name())
	}
	ratio := float64(len([]rune(target))) / float64(len([]rune(source)))
	if ratio < v.Min || ratio > v.Max {
		return fail(v.Name(), LevelWarning,
			fmt.Sprintf("length ratio %.2f outside [%.2f, %.2f]", ratio, v.Min, v.Max),
			map[string]string{"ratio": fmt.Sprintf("%.2f", ratio)})
	}
	return pass(v.Name())
}

// EmptyValueValidator rejects empty translations of non-empty sources.
type EmptyValueValidator struct{}

func (EmptyValueValidator) Name() string { return "empty_value" }

func (v EmptyValueValidator) Validate(key, source, target string) Result {
	if strings.TrimSpace(target) == "" && strings.TrimSpace(source) != "" {
		return fail(v.Name(), LevelError, "translation is empty for a non-empty source", nil)
	}
	return pass(v.Name())
}

// FormatValidator rejects content that breaks JSON-embedded strings at load
// time: unescaped quote characters and raw control characters other than
// tab, newline, and carriage return.
type FormatValidator struct{}

func (FormatValidator) Name() string { return "format" }

func (v FormatValidator) Validate(key, source, target string) Result {
	if strings.Contains(target, `"`) {
		// Embed the value verbatim in a JSON document; escaped quotes
		// survive the round trip, unescaped ones break the parse.
		wrapped := `{"value":"` + target + `"}`
		var decoded map[string]string
		if err := json.Unmarshal([]byte(wrapped), &decoded); err != nil {
			return fail(v.Name(), LevelError, "translation contains unescaped quotes", nil)
		}
	}
	for _, r := range target {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return fail(v.Name(), LevelError,
				fmt.Sprintf("translation contains control character U+%04X", r),
				map[string]string{"codepoint": fmt.Sprintf("U+%04X", r)})
		}
	}
	return pass(v.Name())
}

// LineBreakValidator warns when the translation reshapes multi-line text:
// a newline count drift beyond two, or carriage returns introduced where the
// source has none.
type LineBreakValidator struct{}

func (LineBreakValidator) Name() string { return "line_break" }

func (v LineBreakValidator) Validate(key, source, target string) Result {
	sourceBreaks := strings.Count(source, "\n")
	targetBreaks := strings.Count(target, "\n")
	diff := targetBreaks - sourceBreaks
	if diff < 0 {
		diff = -diff
	}
	if diff > 2 {
		return fail(v.Name(), LevelWarning,
			fmt.Sprintf("line break count drifts by %d (source %d, translation %d)", diff, sourceBreaks, targetBreaks),
			map[string]string{
				"source_breaks": fmt.Sprintf("%d", sourceBreaks),
				"target_breaks": fmt.Sprintf("%d", targetBreaks),
			})
	}
	if strings.Contains(target, "\r\n") && !strings.Contains(source, "\r\n") {
		return fail(v.Name(), LevelWarning, "translation introduces Windows line endings", nil)
	}
	return pass(v.Name())
}
