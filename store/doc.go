// Package store defines the per-superstep execution history: a Snapshot
// of the merged state after each superstep and the SnapshotStore
// interface that holds them, keyed by run ID. The memory subpackage
// provides the in-process implementation.
package store
