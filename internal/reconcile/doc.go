// Package reconcile decides, per item, which pipeline stage runs next.
//
// The Engine compares recorded state against artifacts that actually exist,
// honours forced reprocessing and non-resume runs, and remembers what already
// ran in the current run so every stage executes at most once per item.
package reconcile
