// Package store provides durable SQLite storage for the maintenance engine:
// templates, rules and conditions, scope records (homes, rooms, trackables),
// and task occurrences.
//
// INVARIANT BACKSTOP:
// The partial UNIQUE index on task_occurrences.dedupe_key (live rows only) is
// the storage-level guarantee behind the engine's dedup invariant. Occurrence
// creation uses INSERT OR IGNORE so that two concurrent reconciliations racing
// on the same dedupe key resolve to a single row, never a duplicate and never
// an error surfaced to the caller.
//
// All list queries carry a stable ORDER BY so repeated reads return rows in
// the same order.
package store
