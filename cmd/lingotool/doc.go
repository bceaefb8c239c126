// Command lingotool manages translation content blobs, patch sets, and
// writeback runs from the terminal. Business logic lives in the internal
// packages; the commands here only parse flags and render output.
package main
