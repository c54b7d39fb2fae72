package raft

import "errors"

// ErrCompacted is returned when a requested index is behind the snapshot.
var ErrCompacted = errors.New("raft: requested index is compacted")

// ErrUnavailable is returned when a requested index is ahead of the log.
var ErrUnavailable = errors.New("raft: requested entry is unavailable")

// ErrSnapshotTemporarilyUnavailable is returned when a snapshot was
// requested but is not ready yet (e.g. still being produced).
var ErrSnapshotTemporarilyUnavailable = errors.New("raft: snapshot temporarily unavailable")

// Storage is the read-only contract the core consumes for log reads,
// term lookups, and snapshot metadata. The core never calls a write
// path directly; durability of appended entries and hard state is the
// driver's responsibility, sequenced before outgoing messages are sent.
type Storage interface {
	// InitialState returns the persisted HardState and ConfState.
	InitialState() (HardState, ConfState, error)

	// Entries returns log entries in [lo, hi), bounded by maxBytes (0 means unbounded).
	Entries(lo, hi, maxBytes uint64) ([]LogEntry, error)

	// Term returns the term for index i. i must be in [FirstIndex()-1, LastIndex()];
	// the boundary case FirstIndex()-1 returns the snapshot term.
	Term(i uint64) (uint64, error)

	// FirstIndex returns the index after the last compacted (snapshotted) entry.
	FirstIndex() (uint64, error)

	// LastIndex returns the index of the last stable entry.
	LastIndex() (uint64, error)

	// Snapshot returns the most recent snapshot, if any.
	Snapshot() (Snapshot, error)
}
