// Package history records transcode batches and their jobs in SQLite so
// past runs can be listed with "oats history".
//
// The database is a convenience log, not a source of truth for the output
// tree. Schema changes bump schemaVersion; users delete the database to
// adopt a new schema.
package history
