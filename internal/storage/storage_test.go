package storage

import (
	"testing"

	"github.com/qkvraft/raftcore/internal/raft"
)

func TestAppendAndReadBack(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Append(raft.LogEntry{Index: 1, Term: 1, Data: []byte("a")}, raft.LogEntry{Index: 2, Term: 1, Data: []byte("b")}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	last, err := s.LastIndex()
	if err != nil || last != 2 {
		t.Fatalf("LastIndex = (%d, %v), want (2, nil)", last, err)
	}

	entries, err := s.Entries(1, 3, 0)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 || string(entries[0].Data) != "a" || string(entries[1].Data) != "b" {
		t.Errorf("Entries returned wrong data: %+v", entries)
	}
}

func TestSetHardStatePersists(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.SetHardState(raft.HardState{Term: 3, Vote: 2, Commit: 1}); err != nil {
		t.Fatalf("SetHardState failed: %v", err)
	}

	hs, _, err := s.InitialState()
	if err != nil {
		t.Fatalf("InitialState failed: %v", err)
	}
	if hs.Term != 3 || hs.Vote != 2 || hs.Commit != 1 {
		t.Errorf("InitialState = %+v, want {3 2 1}", hs)
	}
}

func TestWALReplayOnReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SetHardState(raft.HardState{Term: 2, Vote: 1, Commit: 0}); err != nil {
		t.Fatalf("SetHardState failed: %v", err)
	}
	if err := s.Append(raft.LogEntry{Index: 1, Term: 2, Data: []byte("x")}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	hs, _, _ := reopened.InitialState()
	if hs.Term != 2 || hs.Vote != 1 {
		t.Errorf("InitialState after reopen = %+v, want term=2 vote=1", hs)
	}
	last, _ := reopened.LastIndex()
	if last != 1 {
		t.Errorf("LastIndex after reopen = %d, want 1", last)
	}
}

func TestApplySnapshotTruncatesLog(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Append(raft.LogEntry{Index: 1, Term: 1}, raft.LogEntry{Index: 2, Term: 1}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	ss := raft.Snapshot{Metadata: raft.SnapshotMetadata{Index: 2, Term: 1, ConfState: raft.ConfState{Peers: []uint64{1, 2, 3}}}}
	if err := s.ApplySnapshot(ss); err != nil {
		t.Fatalf("ApplySnapshot failed: %v", err)
	}

	first, _ := s.FirstIndex()
	if first != 3 {
		t.Errorf("FirstIndex after snapshot = %d, want 3", first)
	}

	got, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got.Metadata.Index != 2 || len(got.Metadata.ConfState.Peers) != 3 {
		t.Errorf("Snapshot = %+v, want Index=2 with 3 peers", got.Metadata)
	}
}
