// Package harness runs recs pipelines as scenario tests.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: errors_by_host
//	description: "Count error lines per host"
//	run_id: run-errors
//	chain: [grep, -e, "r.level == 'error'", "|", collate, -k, host, -a, count]
//	inputs:
//	  - name: app.log
//	    lines:
//	      - '{"host":"a","level":"error"}'
//	      - '{"host":"b","level":"info"}'
//	assertions:
//	  - type: output_contains
//	    record: {host: a, count: 1}
//
// A scenario names its pipeline either inline with chain, in the syntax
// of "recs chain", or with pipeline, a .cue or .yaml definition file
// resolved relative to the scenario. Inputs are written to a fresh
// directory before the run; an input without a name is standard input.
// The token $INPUTS in a stage argument is replaced by that directory, so
// stages such as join can refer to an input file.
//
// # Assertion Types
//
//   - output_contains: some output record matches record
//   - output_order: output records matching records appear in that order
//   - output_count: exactly count output records match where
//   - stored: exactly count rows stored by todb in table match where
//
// Matching is by subset: every field named in the expected record must be
// present and equal (numbers compare by value), other fields are ignored.
//
// A scenario that expects the run to fail sets expect_error with the
// failure code (BUILD_FAILED, INPUT_FAILED, STAGE_FAILED or CONFIG_INVALID)
// and optionally a message fragment.
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run id (run_id, or "test-run-default")
// and its own store, so the trace of a run is byte-identical across runs
// and can be compared with a golden file by RunWithGolden.
package harness
