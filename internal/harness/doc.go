// Package harness runs publish-flow scenarios described in YAML against an
// in-memory scripted ledger.
//
// A scenario names a draft, the profile's pre-existing list contents, and a
// set of scripted ledger faults. Running it drives a real publish workflow
// (the same Engine, Coordinator, and safe-operation wrapper production code
// uses) with auto-progress on, deterministic topic ids, and no real delays,
// then captures every step status transition plus the final durable state.
//
// The captured trace is compared against golden files with goldie; regenerate
// them with:
//
//	go test ./internal/harness -update
package harness
