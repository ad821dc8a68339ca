// Package notifications delivers run events to operators.
//
// Push notifications go to ntfy using the topic configured in config.toml and
// degrade to a no-op when no topic is set. Per-event switches let operators
// keep error alerts while muting run summaries. The end-of-run email report is
// sent over SMTP by Mailer.
//
// Workflow code depends only on the Service interface and Mailer.
package notifications
