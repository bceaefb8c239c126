package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"lingotool/internal/lang"
)

// Policy selects how a patch item lands on its target.
type Policy string

const (
	// PolicyOverlay writes a standalone overlay package, never touching
	// the original artifact.
	PolicyOverlay Policy = "overlay"
	// PolicyReplace swaps the target's full content with the item's.
	PolicyReplace Policy = "replace"
	// PolicyMerge unions the item's entries over the target's existing
	// content; the item wins on conflicting keys.
	PolicyMerge Policy = "merge"
	// PolicyCreateIfMissing writes only when the target has no language
	// file yet.
	PolicyCreateIfMissing Policy = "create_if_missing"
)

// ParsePolicy converts a string into a known Policy.
func ParsePolicy(value string) (Policy, error) {
	normalized := Policy(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case PolicyOverlay, PolicyReplace, PolicyMerge, PolicyCreateIfMissing:
		return normalized, nil
	}
	return "", fmt.Errorf("%w: unknown policy %q", ErrValidation, value)
}

// Item is a proposed mutation of one (container, namespace, locale) target.
type Item struct {
	ID                string
	TargetContainerID string
	Namespace         string
	Locale            string
	Policy            Policy
	Content           lang.Entries
	// ExpectedBlobHash is the content hash of this item's entries, set
	// when the content is stored as a blob. After a successful apply the
	// physical target must resolve to this hash.
	ExpectedBlobHash string
	// UpstreamAnchorBlob is the target's content hash at item creation
	// time. At apply time a live hash that differs marks the item as a
	// conflict.
	UpstreamAnchorBlob string
}

// Validate checks the item's structural invariants.
func (i *Item) Validate() error {
	if i.TargetContainerID == "" {
		return fmt.Errorf("%w: patch item has no target container", ErrValidation)
	}
	if err := lang.ValidateNamespace(i.Namespace); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := lang.ValidateLocale(i.Locale); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if _, err := ParsePolicy(string(i.Policy)); err != nil {
		return err
	}
	if len(i.Content) == 0 {
		return fmt.Errorf("%w: patch item content is empty", ErrValidation)
	}
	return nil
}

// MemberPath returns the archive member path this item targets.
func (i *Item) MemberPath() string {
	return lang.MemberPath(i.Namespace, i.Locale)
}

// PreconditionOK decides whether the item may apply against a target whose
// live content hash is currentHash (empty when the target does not exist).
// It returns a human-readable reason when the precondition fails.
func (i *Item) PreconditionOK(currentHash string) (bool, string) {
	if i.Policy == PolicyCreateIfMissing {
		if currentHash != "" {
			return false, "target already exists"
		}
		return true, ""
	}
	if i.UpstreamAnchorBlob != "" && currentHash != i.UpstreamAnchorBlob {
		return false, fmt.Sprintf("target content %s drifted from anchor %s", currentHash, i.UpstreamAnchorBlob)
	}
	return true, ""
}

// Signature derives the manifest signature for a set of items: the SHA-256
// of the item content hashes joined by "|" in item-ID order. Reordering
// items does not change the signature; changing any content does.
func Signature(items []*Item) string {
	sorted := make([]*Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].ID < sorted[b].ID })

	hashes := make([]string, 0, len(sorted))
	for _, item := range sorted {
		hashes = append(hashes, item.ExpectedBlobHash)
	}
	sum := sha256.Sum256([]byte(strings.Join(hashes, "|")))
	return hex.EncodeToString(sum[:])
}
