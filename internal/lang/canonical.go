package lang

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Entries is one language file's key to translated-text mapping.
type Entries map[string]string

// utf8BOM is tolerated on parse and never emitted.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Canonical serializes entries as the canonical UTF-8 JSON object: keys
// sorted ascending by byte order, compact separators, no HTML escaping and
// no trailing newline. This exact byte sequence is what gets hashed.
func Canonical(entries Entries) []byte {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		appendJSONString(&buf, key)
		buf.WriteByte(':')
		appendJSONString(&buf, entries[key])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// HashEntries returns the hex SHA-256 of the canonical serialization.
func HashEntries(entries Entries) string {
	sum := sha256.Sum256(Canonical(entries))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the hex SHA-256 of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseEntries decodes a JSON object into Entries. Values must be strings;
// anything else is rejected rather than coerced. A leading UTF-8 BOM is
// stripped before decoding.
func ParseEntries(data []byte) (Entries, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse entries: %w", err)
	}

	entries := make(Entries, len(raw))
	for key, value := range raw {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return nil, fmt.Errorf("parse entries: value for key %q is not a string", key)
		}
		entries[key] = text
	}
	return entries, nil
}

// Keys returns the entry keys as a set.
func (e Entries) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(e))
	for key := range e {
		keys[key] = struct{}{}
	}
	return keys
}

// Clone returns a shallow copy of the mapping.
func (e Entries) Clone() Entries {
	cp := make(Entries, len(e))
	for key, value := range e {
		cp[key] = value
	}
	return cp
}

func appendJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode cannot fail for a plain string; it appends a newline we trim.
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1)
}
