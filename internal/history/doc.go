// Package history keeps a SQLite ledger of pipeline runs and the stage
// executions inside them.
//
// The ledger is an audit trail only: resume decisions always come from the
// state document, never from here. Schema changes bump schemaVersion in
// schema.go; users delete history.db to adopt the new schema.
package history
