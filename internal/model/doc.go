// Package model defines the domain types shared by the maintenance engine:
// templates, rules and their conditions, task occurrences, and trackables.
//
// Types here are plain data. Behavior lives in the engine package; persistence
// lives in the store package. The one piece of logic that belongs to the types
// themselves is identity: DedupeKey derivation is defined here because every
// other package depends on it being deterministic and stable.
package model
