// Package workflow runs the pipeline over every discovered item.
//
// The Manager sweeps the intake sources, drops recorded completions whose
// artifacts disappeared, then asks the reconciliation engine which stage each
// item needs next. Items are processed in stage groups: every item waiting on
// the earliest pending stage runs that stage (sequentially, or with bounded
// parallelism when workflow.max_parallel_items > 1) before the next group is
// planned. A failed stage records an error and blocks that item for the rest
// of the run without stopping the others.
//
// Cancellation is checked between stage executions only. A running stage is
// allowed to finish within workflow.stage_timeout so its artifact and state
// record stay consistent.
package workflow
