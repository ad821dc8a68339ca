// Package logging assembles structured slog loggers and formatting helpers used
// across scribe.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code automatically tags log lines
// with run ids, item identities, stages and correlation ids. WARN and ERROR
// lines carry event_type and error_hint (and impact for warnings) so an
// operator can tell what happened and what to check.
package logging
