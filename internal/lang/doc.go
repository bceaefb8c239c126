// Package lang defines the canonical representation of translation content.
//
// An Entries value is one language file's key to text mapping. The canonical
// serialization (sorted keys, compact UTF-8 JSON, no HTML escaping) is the
// byte sequence that gets content-hashed, so it must stay byte-stable across
// releases; stored blob hashes are only comparable against bytes produced
// here. The package also carries the pure diff, merge, and similarity
// operations over mappings plus the namespace and locale rules patch items
// are validated against.
package lang
