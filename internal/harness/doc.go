// Package harness runs scripted notification scenarios against a fully wired
// plugin and checks what it did.
//
// The plugin runs over a synthetic host image with a manual clock, a
// recording native invoker and an in-memory SQLite journal, so every run of a
// scenario produces the same trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: property_burst
//	description: "Three property changes within the window reset once"
//	token: run-1
//	frame_ms: 16
//	until_ms: 400
//	default_device: "{0.0.0.00000000}.{speakers}"
//	config:
//	  coalesce_ms: 100
//	  suppress: ["{9855c4cd-df8c-449c-a181-8191b68bd06c:0}"]
//	steps:
//	  - at_ms: 0
//	    notify: property_value_changed
//	    device: "{0.0.0.00000000}.{speakers}"
//	    key: "{1da5d803-d492-4edd-8c23-e0c0ffee7f0e:2}"
//	  - at_ms: 200
//	    command: harder
//	assertions:
//	  - type: trace_count
//	    event: reset
//	    count: 1
//	  - type: final_state
//	    expect: { reset_flag: 1, reset_pending: false }
//
// Steps run in at_ms order. Between steps the clock advances in frame_ms
// increments and the plugin is ticked after each one, as a host frame loop
// would. A frame_ms of zero never ticks.
//
// # Assertion Types
//
//   - trace_contains: an event with the given label (and detail subset) occurred
//   - trace_order: events occurred in the given order, not necessarily adjacent
//   - trace_count: an event occurred exactly count times
//   - final_state: observable plugin state after the run
//
// Event labels are "type", "type:name" or, for journal entries, "kind" and
// "kind:name" (for example "reset:UserRequest" or "call:Cleanup").
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/property_burst.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
