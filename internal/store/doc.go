// Package store persists jobs, review plans, and scanned file snapshots
// in a single SQLite database.
//
// All access flows through a Pool that serializes reads, writes, and
// transactions over one embedded handle; batch workers share the pool
// instead of opening private connections. Job and plan rows move through
// small state machines enforced with conditional transitions, so stale
// callers get a conflict error instead of silently clobbering newer
// state.
//
// Snapshots are the stored view of scanned media files. The policy
// engine reads them through the Scanner adapter; a separate import path
// ingests probe reports produced by external scanners. Schema changes
// bump the version in schema.go; operators migrate or recreate the
// database to adopt the new schema.
package store
