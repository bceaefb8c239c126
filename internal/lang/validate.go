package lang

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

var namespacePattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// ValidateNamespace checks a resource namespace (e.g. "examplemod").
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace is empty")
	}
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("namespace %q contains characters outside [a-z0-9_.-]", namespace)
	}
	return nil
}

// NormalizeLocale lowercases a locale code and uses underscore separators,
// the on-disk convention for language files (e.g. "en_us").
func NormalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "-", "_"))
}

// ValidateLocale checks that a locale code parses as a language tag once
// normalized to BCP-47 form.
func ValidateLocale(locale string) error {
	normalized := NormalizeLocale(locale)
	if normalized == "" {
		return fmt.Errorf("locale is empty")
	}
	tag := strings.ReplaceAll(normalized, "_", "-")
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("locale %q: %w", locale, err)
	}
	return nil
}

// MemberPath returns the standard in-pack path for a language file.
func MemberPath(namespace, locale string) string {
	return fmt.Sprintf("assets/%s/lang/%s.json", namespace, NormalizeLocale(locale))
}
