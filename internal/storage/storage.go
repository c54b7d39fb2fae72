package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/qkvraft/raftcore/internal/raft"
)

// DiskStorage is the durable Storage Adapter: a msgpack-encoded WAL of
// hard-state updates and appended entries, a separate snapshot file,
// and an in-memory mirror the raft core reads from directly. Every
// mutating method durably persists before returning, matching the
// core's requirement that HardState/entries be fsynced before any
// message justified by them leaves the process.
type DiskStorage struct {
	mu sync.Mutex

	dir string
	wal *wal

	hardState raft.HardState
	confState raft.ConfState

	// ents[0] is a sentinel: Index/Term of the last compacted entry.
	// ents[1:] are the real, contiguous, durable entries.
	ents []raft.LogEntry

	snapshot raft.Snapshot
}

// Open loads dir's snapshot file, if there is one, replays its WAL
// (creating the WAL if absent) and returns a ready DiskStorage.
func Open(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	w, err := openWAL(filepath.Join(dir, "wal.log"))
	if err != nil {
		return nil, err
	}

	s := &DiskStorage{
		dir:  dir,
		wal:  w,
		ents: []raft.LogEntry{{Index: 0, Term: 0}},
	}

	if err := s.loadSnapshot(); err != nil {
		return nil, err
	}

	if err := w.replay(s.applyRecord); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *DiskStorage) applyRecord(rec walRecord) error {
	switch rec.Kind {
	case recordHardState:
		s.hardState = raft.HardState{Term: rec.Hard.Term, Vote: rec.Hard.Vote, Commit: rec.Hard.Commit}
	case recordEntries:
		for _, e := range rec.Entries {
			s.appendLocked(raft.LogEntry{Index: e.Index, Term: e.Term, Kind: raft.EntryType(e.Kind), Data: e.Data})
		}
	default:
		return fmt.Errorf("storage: unknown WAL record kind %d", rec.Kind)
	}
	return nil
}

func (s *DiskStorage) snapshotPath() string {
	return filepath.Join(s.dir, "snapshot.bin")
}

func (s *DiskStorage) loadSnapshot() error {
	buf, err := os.ReadFile(s.snapshotPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var on struct {
		Metadata struct {
			Index uint64
			Term  uint64
			Peers []uint64
		}
		Data []byte
	}
	if err := msgpack.Unmarshal(buf, &on); err != nil {
		return err
	}

	s.snapshot = raft.Snapshot{
		Metadata: raft.SnapshotMetadata{
			Index:     on.Metadata.Index,
			Term:      on.Metadata.Term,
			ConfState: raft.ConfState{Peers: on.Metadata.Peers},
		},
		Data: on.Data,
	}
	s.confState = s.snapshot.Metadata.ConfState
	s.ents = []raft.LogEntry{{Index: on.Metadata.Index, Term: on.Metadata.Term}}
	return nil
}

// --- raft.Storage (read path) -------------------------------------

func (s *DiskStorage) InitialState() (raft.HardState, raft.ConfState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardState, s.confState, nil
}

func (s *DiskStorage) firstIndexLocked() uint64 { return s.ents[0].Index + 1 }
func (s *DiskStorage) lastIndexLocked() uint64  { return s.ents[0].Index + uint64(len(s.ents)) - 1 }

func (s *DiskStorage) FirstIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstIndexLocked(), nil
}

func (s *DiskStorage) LastIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIndexLocked(), nil
}

func (s *DiskStorage) Term(i uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < s.ents[0].Index {
		return 0, raft.ErrCompacted
	}
	off := i - s.ents[0].Index
	if int(off) >= len(s.ents) {
		return 0, raft.ErrUnavailable
	}
	return s.ents[off].Term, nil
}

func (s *DiskStorage) Entries(lo, hi, maxBytes uint64) ([]raft.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lo <= s.ents[0].Index {
		return nil, raft.ErrCompacted
	}
	if hi > s.lastIndexLocked()+1 {
		return nil, raft.ErrUnavailable
	}

	off := s.ents[0].Index
	out := append([]raft.LogEntry{}, s.ents[lo-off:hi-off]...)
	if maxBytes == 0 || len(out) <= 1 {
		return out, nil
	}
	var size uint64
	for i, e := range out {
		size += uint64(len(e.Data))
		if size > maxBytes {
			return out[:i], nil
		}
	}
	return out, nil
}

func (s *DiskStorage) Snapshot() (raft.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Metadata.Index == 0 {
		return raft.Snapshot{}, raft.ErrSnapshotTemporarilyUnavailable
	}
	return s.snapshot, nil
}

// --- write path (driver-only; never called from the core) ---------

// SetHardState durably persists Term/Vote/Commit before the caller is
// allowed to act on them.
func (s *DiskStorage) SetHardState(hs raft.HardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.append(walRecord{
		Kind: recordHardState,
		Hard: hardStateRecord{Term: hs.Term, Vote: hs.Vote, Commit: hs.Commit},
	}); err != nil {
		return err
	}
	s.hardState = hs
	return nil
}

// Append durably persists entries and merges them into the in-memory
// mirror, truncating any conflicting suffix first (mirrors
// logView.append's truncate-or-grow contract on the durable side).
func (s *DiskStorage) Append(entries ...raft.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]entryRecord, len(entries))
	for i, e := range entries {
		recs[i] = entryRecord{Index: e.Index, Term: e.Term, Kind: uint8(e.Kind), Data: e.Data}
	}
	if err := s.wal.append(walRecord{Kind: recordEntries, Entries: recs}); err != nil {
		return err
	}

	for _, e := range entries {
		s.appendLocked(e)
	}
	return nil
}

func (s *DiskStorage) appendLocked(e raft.LogEntry) {
	first := s.ents[0].Index
	switch {
	case e.Index == s.lastIndexLocked()+1:
		s.ents = append(s.ents, e)
	case e.Index <= first:
		s.ents = []raft.LogEntry{e}
	default:
		s.ents = append(s.ents[:e.Index-first], e)
	}
}

// ApplySnapshot durably replaces the log prefix and conf state with
// the supplied snapshot and discards the WAL, since every entry it
// held is now subsumed by the snapshot.
func (s *DiskStorage) ApplySnapshot(ss raft.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := msgpack.Marshal(&struct {
		Metadata struct {
			Index uint64
			Term  uint64
			Peers []uint64
		}
		Data []byte
	}{
		Metadata: struct {
			Index uint64
			Term  uint64
			Peers []uint64
		}{ss.Metadata.Index, ss.Metadata.Term, ss.Metadata.ConfState.Peers},
		Data: ss.Data,
	})
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.snapshotPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.snapshot = ss
	s.confState = ss.Metadata.ConfState
	s.ents = []raft.LogEntry{{Index: ss.Metadata.Index, Term: ss.Metadata.Term}}

	if err := s.wal.close(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, "wal.log")); err != nil && !os.IsNotExist(err) {
		return err
	}
	w, err := openWAL(filepath.Join(s.dir, "wal.log"))
	if err != nil {
		return err
	}
	s.wal = w
	return s.wal.append(walRecord{Kind: recordHardState, Hard: hardStateRecord{Term: s.hardState.Term, Vote: s.hardState.Vote, Commit: s.hardState.Commit}})
}

// Close flushes and closes the underlying WAL file.
func (s *DiskStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.close()
}

var _ raft.Storage = (*DiskStorage)(nil)
