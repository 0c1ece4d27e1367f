// Package store provides the SQLite-backed migration journal.
//
// The journal records what each run did so a re-run can be explained and
// unchanged instances skipped:
//   - Runs: one row per command invocation, with its final status
//   - Definition states: every PENDING/CREATED/FIELDS_RECONCILED/FAILED/
//     SKIPPED transition
//   - Deferred fields: fields held back from a create, with their payload
//   - Failures: per-record failures with kind, subject and operation
//   - Instance upserts: the last successful payload hash per (type, handle)
//
// # Ordering
//
// Rows are ordered by a logical seq from the store's clock, never by
// timestamps. The clock resumes from the highest seq on Open.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
