// Package quality scores translated entries against their source strings.
// Individual validators emit leveled results; the gate aggregates them into
// a single pass or fail verdict under configurable strictness.
package quality
