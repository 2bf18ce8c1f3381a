// Package compiler loads pipeline definitions and compiles them into
// validated operator stages.
//
// A definition names a pipeline and lists its stages, each an operator name
// and its command-line arguments. Definitions are written in CUE, where
// they are checked against the #Pipeline schema, or in YAML:
//
//	pipeline: {
//		name: "errors-by-host"
//		stages: [
//			{op: "grep", args: ["-e", "r.level == 'error'"]},
//			{op: "collate", args: ["-k", "host", "-a", "count"]},
//		]
//	}
//
// Every stage is parsed by the operator registry at compile time, so a bad
// option is reported with the stage index and source position before any
// input is read. Compile reports every failing stage, not just the first.
package compiler
