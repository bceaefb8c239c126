// Package catalog persists the content-addressed blob store and the
// surrounding metadata: artifacts, containers, language files, patch sets,
// writeback plans, apply runs, and quality check audit rows. Storage is a
// single SQLite database with embedded schema migrations.
package catalog
