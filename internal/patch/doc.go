// Package patch assembles translation changes into patch sets, gates their
// publication on structural and quality validation, and round-trips them
// through portable JSON manifests.
package patch
