// Package writeback lands published patch sets on physical targets. Three
// strategies cover the target shapes: standalone overlay packages, in-place
// archive mutation, and direct directory writes. Every mutation is backed
// up first and auditable through apply runs, and writes to a single target
// path are serialized.
package writeback
