package lang

import (
	"fmt"
	"sort"
)

// Change records one key's value on each side of a diff. A nil pointer means
// the key is absent on that side.
type Change struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// Diff computes the symmetric difference between two mappings over the union
// of their keys. Keys with identical values on both sides are omitted.
func Diff(a, b Entries) map[string]Change {
	changes := make(map[string]Change)
	for key, oldValue := range a {
		newValue, ok := b[key]
		switch {
		case !ok:
			old := oldValue
			changes[key] = Change{Old: &old}
		case newValue != oldValue:
			old, next := oldValue, newValue
			changes[key] = Change{Old: &old, New: &next}
		}
	}
	for key, newValue := range b {
		if _, ok := a[key]; !ok {
			next := newValue
			changes[key] = Change{New: &next}
		}
	}
	return changes
}

// MergeStrategy selects how Merge resolves keys across inputs.
type MergeStrategy string

const (
	// MergeUnion keeps every key; later mappings overwrite earlier ones.
	MergeUnion MergeStrategy = "union"
	// MergeIntersection keeps only keys present in every input, using the
	// first input's value.
	MergeIntersection MergeStrategy = "intersection"
	// MergeFirstWin keeps every key; the earliest mapping's value wins.
	MergeFirstWin MergeStrategy = "first_win"
)

// ParseMergeStrategy converts a string into a known MergeStrategy.
func ParseMergeStrategy(value string) (MergeStrategy, bool) {
	switch MergeStrategy(value) {
	case MergeUnion, MergeIntersection, MergeFirstWin:
		return MergeStrategy(value), true
	}
	return "", false
}

// Merge combines mappings according to strategy and returns a new mapping.
func Merge(strategy MergeStrategy, inputs ...Entries) (Entries, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("merge: no inputs")
	}

	switch strategy {
	case MergeUnion:
		merged := make(Entries)
		for _, input := range inputs {
			for key, value := range input {
				merged[key] = value
			}
		}
		return merged, nil
	case MergeFirstWin:
		merged := make(Entries)
		for i := len(inputs) - 1; i >= 0; i-- {
			for key, value := range inputs[i] {
				merged[key] = value
			}
		}
		return merged, nil
	case MergeIntersection:
		merged := make(Entries)
		for key, value := range inputs[0] {
			common := true
			for _, other := range inputs[1:] {
				if _, ok := other[key]; !ok {
					common = false
					break
				}
			}
			if common {
				merged[key] = value
			}
		}
		return merged, nil
	default:
		return nil, fmt.Errorf("merge: unknown strategy %q", strategy)
	}
}

// Jaccard computes |A∩B| / |A∪B| over two key sets. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	intersection := 0
	for key := range a {
		if _, ok := b[key]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// SortedKeys returns the mapping's keys in ascending order.
func SortedKeys(entries Entries) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
