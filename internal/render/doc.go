// Package render maps loaded poll state to display text and inline keyboard
// layouts. Rendering is deterministic: no randomness and no time reads, so
// the same state always produces byte-identical output and re-edits with
// unchanged content stay no-ops.
package render
