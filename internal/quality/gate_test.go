package quality_test

import (
	"strings"
	"testing"

	"lingotool/internal/lang"
	"lingotool/internal/quality"
	"lingotool/internal/testsupport"
)

func TestGateFailsOnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gate := quality.NewGate(cfg)

	sources := lang.Entries{"greeting": "Hello %s!"}
	targets := lang.Entries{"greeting": "Bonjour!"}

	report := gate.ValidateBatch(sources, targets)
	if report.Passed {
		t.Fatal("expected gate failure on placeholder error")
	}
	if report.ErrorCount != 1 {
		t.Fatalf("expected 1 error, got %d", report.ErrorCount)
	}
	failures := report.Failures["greeting"]
	if len(failures) != 1 || failures[0].Validator != "placeholder_consistency" {
		t.Fatalf("unexpected failures: %#v", failures)
	}
}

func TestGateToleratesWarningsByDefault(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gate := quality.NewGate(cfg)

	sources := lang.Entries{"desc": "Word"}
	targets := lang.Entries{"desc": "An extremely long translation of a single word"}

	report := gate.ValidateBatch(sources, targets)
	if !report.Passed {
		t.Fatalf("warnings alone must not fail the default gate: %s", report.Summary())
	}
	if report.WarningCount != 1 {
		t.Fatalf("expected 1 warning, got %d", report.WarningCount)
	}
}

func TestGateFailOnWarningOptIn(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Quality.FailOnWarning = true
	gate := quality.NewGate(cfg)

	report := gate.ValidateBatch(
		lang.Entries{"desc": "Word"},
		lang.Entries{"desc": "An extremely long translation of a single word"},
	)
	if report.Passed {
		t.Fatal("expected failure with fail_on_warning enabled")
	}
}

func TestGateMaxWarningsCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Quality.MaxWarnings = 2
	gate := quality.NewGate(cfg)

	sources := lang.Entries{}
	targets := lang.Entries{}
	for _, key := range []string{"a", "b", "c"} {
		sources[key] = "Word"
		targets[key] = strings.Repeat("long translation ", 4)
	}

	report := gate.ValidateBatch(sources, targets)
	if report.Passed {
		t.Fatalf("expected failure above warning cap: %s", report.Summary())
	}
	if report.WarningCount != 3 {
		t.Fatalf("expected 3 warnings, got %d", report.WarningCount)
	}
}

type bannedWordValidator struct{ word string }

func (bannedWordValidator) Name() string { return "banned_word" }

func (v bannedWordValidator) Validate(key, source, target string) quality.Result {
	if strings.Contains(target, v.word) {
		return quality.Result{
			Validator: "banned_word",
			Level:     quality.LevelError,
			Message:   "translation contains a banned word",
		}
	}
	return quality.Result{Validator: "banned_word", Passed: true}
}

func TestGateRegisterAndUnregister(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gate := quality.NewGate(cfg)

	sources := lang.Entries{"greeting": "Hello %s!"}
	targets := lang.Entries{"greeting": "Bonjour!"}

	if !gate.Unregister("placeholder_consistency") {
		t.Fatal("expected the default placeholder validator to be registered")
	}
	if report := gate.ValidateBatch(sources, targets); !report.Passed {
		t.Fatalf("unregistered validator must not run: %s", report.Summary())
	}
	if gate.Unregister("placeholder_consistency") {
		t.Fatal("second unregister must report absence")
	}

	gate.Register(bannedWordValidator{word: "Bonjour"})
	report := gate.ValidateBatch(sources, targets)
	if report.Passed || report.ErrorCount != 1 {
		t.Fatalf("registered validator must run: %s", report.Summary())
	}
	if failures := report.Failures["greeting"]; len(failures) != 1 || failures[0].Validator != "banned_word" {
		t.Fatalf("unexpected failures: %#v", failures)
	}

	// Re-registering under the same name replaces in place.
	gate.Register(bannedWordValidator{word: "zzz"})
	if report := gate.ValidateBatch(sources, targets); !report.Passed {
		t.Fatalf("replacement validator must supersede the old one: %s", report.Summary())
	}
}

func TestGateCleanBatchPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gate := quality.NewGate(cfg)

	sources := lang.Entries{
		"item.sword":  "Sword",
		"item.shield": "Shield",
		"greeting":    "Hello %s!",
	}
	targets := lang.Entries{
		"item.sword":  "Schwert",
		"item.shield": "Schild",
		"greeting":    "Hallo %s!",
	}

	report := gate.ValidateBatch(sources, targets)
	if !report.Passed || len(report.Failures) != 0 {
		t.Fatalf("expected clean pass, got %s", report.Summary())
	}
	if len(report.FailureKeys()) != 0 {
		t.Fatalf("expected no failure keys, got %v", report.FailureKeys())
	}
}
