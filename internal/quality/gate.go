package quality

import (
	"fmt"
	"sort"

	"lingotool/internal/config"
	"lingotool/internal/lang"
)

// GateConfig controls how validator results roll up into a verdict.
type GateConfig struct {
	FailOnError   bool
	FailOnWarning bool
	MaxWarnings   int
}

// Gate runs a registry of validators over translated entries and decides
// whether the batch may proceed. The default set can be extended or pruned
// with Register and Unregister.
type Gate struct {
	cfg        GateConfig
	validators []Validator
}

// NewGate builds a gate from application configuration.
func NewGate(cfg *config.Config) *Gate {
	return &Gate{
		cfg: GateConfig{
			FailOnError:   cfg.Quality.FailOnError,
			FailOnWarning: cfg.Quality.FailOnWarning,
			MaxWarnings:   cfg.Quality.MaxWarnings,
		},
		validators: []Validator{
			PlaceholderValidator{},
			ColorCodeValidator{},
			LengthRatioValidator{Min: cfg.Quality.MinLengthRatio, Max: cfg.Quality.MaxLengthRatio},
			EmptyValueValidator{},
			FormatValidator{},
			LineBreakValidator{},
		},
	}
}

// Register adds a validator to the gate. A validator with the same name
// replaces the existing one in place; new names append in run order.
func (g *Gate) Register(validator Validator) {
	for i, existing := range g.validators {
		if existing.Name() == validator.Name() {
			g.validators[i] = validator
			return
		}
	}
	g.validators = append(g.validators, validator)
}

// Unregister removes the validator with the given name and reports whether
// one was registered.
func (g *Gate) Unregister(name string) bool {
	for i, existing := range g.validators {
		if existing.Name() == name {
			g.validators = append(g.validators[:i], g.validators[i+1:]...)
			return true
		}
	}
	return false
}

// ValidateEntry runs every validator against one entry and returns the
// failing results. A panicking validator becomes a failed error-level
// result instead of crashing the batch.
func (g *Gate) ValidateEntry(key, source, target string) []Result {
	var failures []Result
	for _, validator := range g.validators {
		result := runValidator(validator, key, source, target)
		if !result.Passed {
			failures = append(failures, result)
		}
	}
	return failures
}

func runValidator(validator Validator, key, source, target string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Validator: validator.Name(),
				Passed:    false,
				Level:     LevelError,
				Message:   fmt.Sprintf("validator panicked: %v", r),
			}
		}
	}()
	return validator.Validate(key, source, target)
}

// Report summarizes a batch validation.
type Report struct {
	Passed       bool
	EntryCount   int
	ErrorCount   int
	WarningCount int
	// Failures maps entry keys to their failing validator results.
	Failures map[string][]Result
}

// FailureKeys returns the failing entry keys in sorted order.
func (r *Report) FailureKeys() []string {
	keys := make([]string, 0, len(r.Failures))
	for key := range r.Failures {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Summary renders a one-line human description of the verdict.
func (r *Report) Summary() string {
	verdict := "passed"
	if !r.Passed {
		verdict = "failed"
	}
	return fmt.Sprintf("quality gate %s: %d entries, %d errors, %d warnings",
		verdict, r.EntryCount, r.ErrorCount, r.WarningCount)
}

// ValidateBatch validates translated entries against their sources. Keys
// missing from sources validate against an empty source string, which
// leaves source-dependent validators inert.
func (g *Gate) ValidateBatch(sources, targets lang.Entries) *Report {
	report := &Report{
		EntryCount: len(targets),
		Failures:   make(map[string][]Result),
	}
	for _, key := range lang.SortedKeys(targets) {
		failures := g.ValidateEntry(key, sources[key], targets[key])
		if len(failures) == 0 {
			continue
		}
		report.Failures[key] = failures
		for _, failure := range failures {
			switch failure.Level {
			case LevelError:
				report.ErrorCount++
			case LevelWarning:
				report.WarningCount++
			}
		}
	}

	report.Passed = true
	if g.cfg.FailOnError && report.ErrorCount > 0 {
		report.Passed = false
	}
	if g.cfg.FailOnWarning && report.WarningCount > 0 {
		report.Passed = false
	}
	if g.cfg.MaxWarnings > 0 && report.WarningCount > g.cfg.MaxWarnings {
		report.Passed = false
	}
	return report
}
