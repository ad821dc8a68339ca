// Package preflight provides readiness checks for the binaries, directories,
// credentials and remote services a scribe run depends on.
//
// These checks run in two contexts:
//   - "scribe run" and "scribe watch" call RunAll before sweeping intake.
//     A failed check aborts the run so no item records a doomed stage error.
//   - "scribe check" prints every result, including per-stage health
//     reported by the registered executors.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
