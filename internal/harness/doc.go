// Package harness provides a scenario testing framework for the task engine.
//
// Scenarios are YAML files that seed a fresh in-memory database, drive a
// sequence of engine operations against a deterministic clock, and assert
// on the resulting trace and final state. Because the clock and the ID
// generator are fixed, a scenario always produces the same trace, which
// makes the traces suitable for golden-file comparison.
//
// A scenario file looks like:
//
//	name: hvac-filter-cycle
//	description: Completing a generated task spawns the next occurrence.
//	start_time: 2024-01-15T09:00:00Z
//	catalog: ../catalog
//	setup:
//	  homes:
//	    - id: home-1
//	      name: Main House
//	  trackables:
//	    - id: tr-1
//	      home_id: home-1
//	      name: HVAC Unit
//	      attributes:
//	        type: hvac
//	flow:
//	  - op: generate
//	    scope_type: trackable
//	    scope_id: tr-1
//	    expect:
//	      created: 1
//	  - op: advance
//	    days: 92
//	  - op: complete
//	    task: task-000001
//	    expect:
//	      applied: true
//	assertions:
//	  - type: task_state
//	    task: task-000001
//	    expect:
//	      status: COMPLETED
//
// Setup entities are written directly to the store; the catalog directory
// is compiled and applied the same way the seed command does it. Flow
// steps call the real engine operations, so scenarios exercise the same
// code paths as the HTTP API and the CLI.
//
// Supported flow ops: generate, complete, skip, snooze, pause, resume,
// archive, unarchive, sync, trackable_pause, trackable_resume,
// trackable_retire, trackable_revive, and advance (moves the clock).
//
// Supported assertion types: trace_contains, trace_count, task_state,
// trackable_state.
package harness
