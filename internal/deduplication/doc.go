// Package deduplication collapses duplicate tasks produced by the different
// generator passes.
//
// # Overview
//
// The same problem is often reported more than once in a run: a static
// finding and a TODO on the same line, or an LLM suggestion that restates a
// tag. Two tasks are duplicates when they share a key of
//
//	(file, line, normalized message)
//
// where normalization lower-cases the message, collapses runs of whitespace
// and strips trailing punctuation.
//
// # Merge rules
//
// Within a duplicate group:
//   - the task with the highest priority survives
//   - labels from every member are unioned into the survivor
//   - equal priorities break on the lexicographically smaller ID
//
// The output is sorted by (priority, file, line, ID), so the result does not
// depend on input order and running the deduplicator on its own output is a
// no-op.
//
// # Configuration
//
//   - IgnoreLine: key on (file, message) only, for findings whose line
//     numbers drift between passes
//   - MinMessageLength: messages shorter than this are never merged
package deduplication
