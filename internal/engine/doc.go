// Package engine implements the task generation and recurrence scheduling
// engine: rule matching, dedup-safe instantiation, reconciliation after
// attribute changes, and the task/trackable lifecycle state machines.
//
// ARCHITECTURE:
//
// Request-Scoped Operations:
// Every public method is one logical operation triggered by an API handler,
// CLI command, or seeding pass. There is no background scheduler thread.
//
// Operation Flow:
//  1. Attribute change -> GenerateForScope (reconciliation)
//  2. GenerateForScope loads the scope snapshot and enabled rules
//  3. MatchRules evaluates every rule's conditions (pure, in memory)
//  4. Instantiate creates occurrences keyed by dedupe identity
//  5. Task/trackable transitions flow through the lifecycle methods, which
//     use the recurrence package to advance due dates
//
// CRITICAL PATTERNS:
//
// Dedup identity:
// Every logical obligation has exactly one live occurrence, keyed by
// model.DedupeKey. The store's partial unique index is the backstop; the
// engine treats a key collision as "already exists", never as an error.
//
// Additive-only reconciliation:
// Re-evaluation only ever adds occurrences. It never deletes, resurrects, or
// resets occurrences a user has completed, skipped, paused, or archived -
// rules whose conditions stop matching leave their occurrences untouched.
//
// Degrade, don't abort:
// Per-item failures during generation (missing scope, unparseable recurrence,
// missing template) are logged and skipped; the batch continues.
package engine
