// Package sim provides the event and entity model of the state-exploration
// simulator together with a small cooperative event loop.
//
// # Reading Guide
//
// Start with these files:
//   - event.go: the closed set of event variants and their timing
//   - entity.go: users, requests, behaviour contexts and jobs referenced by events
//   - model.go: externally resolved model objects (elements, policies, target groups)
//   - adjustor.go: value-type scaling-policy adjustor state
//   - snapshot.go: the immutable Snapshot produced at the end of a run
//   - loop.go: pre-interception, subscription and post-interception of events
//
// # Architecture
//
// The sim package only defines data and the dispatch loop. Behaviour lives in
// sub-packages:
//   - sim/snapshot/: run recorder, snapshot assembler (camera), recording behaviour
//   - sim/behavior/: snapshot triggers and abortions
//   - sim/state/: run state builder and persisted run documents
//   - sim/codec/: cycle-safe JSON codec for snapshots
//   - sim/bootstrap/: loading the next run's initializer
//   - sim/trace/: decision trace recording
//   - sim/metrics/: Prometheus collectors
//
// Execution is single-threaded: events scheduled for the same instant are
// delivered in insertion order, but no caller may rely on that order.
package sim
