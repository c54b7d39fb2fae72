package raft

import "testing"

func TestLogViewAppendAndSlice(t *testing.T) {
	storage := newMemoryStorage()
	lv := newLogView(storage)

	lv.append(LogEntry{Index: 1, Term: 1}, LogEntry{Index: 2, Term: 1})

	if lv.lastIndex() != 2 {
		t.Errorf("lastIndex = %d, want 2", lv.lastIndex())
	}
	if lv.lastTerm() != 1 {
		t.Errorf("lastTerm = %d, want 1", lv.lastTerm())
	}

	entries, err := lv.slice(1, 3, 0)
	if err != nil {
		t.Fatalf("slice returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].Index != 1 || entries[1].Index != 2 {
		t.Errorf("slice returned wrong entries: %+v", entries)
	}
}

func TestLogViewMaybeAppendConflict(t *testing.T) {
	storage := newMemoryStorage()
	lv := newLogView(storage)
	lv.append(LogEntry{Index: 1, Term: 1}, LogEntry{Index: 2, Term: 1}, LogEntry{Index: 3, Term: 1})

	// conflicting entry at index 2 with a higher term should truncate and replace.
	last, ok := lv.maybeAppend(1, 1, 2, LogEntry{Index: 2, Term: 2})
	if !ok {
		t.Fatal("maybeAppend should succeed when prevIndex/prevTerm match")
	}
	if last != 2 {
		t.Errorf("lastNewIndex = %d, want 2", last)
	}
	if lv.lastIndex() != 2 {
		t.Errorf("lastIndex after conflict truncation = %d, want 2", lv.lastIndex())
	}
	if got, _ := lv.termOf(2); got != 2 {
		t.Errorf("termOf(2) = %d, want 2 after conflict replace", got)
	}
}

func TestLogViewMaybeAppendRejectsMismatch(t *testing.T) {
	storage := newMemoryStorage()
	lv := newLogView(storage)
	lv.append(LogEntry{Index: 1, Term: 1})

	if _, ok := lv.maybeAppend(1, 2, 1, LogEntry{Index: 2, Term: 2}); ok {
		t.Error("maybeAppend should reject when prevTerm does not match")
	}
}

func TestLogViewMaybeCommitTermGuard(t *testing.T) {
	storage := newMemoryStorage()
	lv := newLogView(storage)
	lv.append(LogEntry{Index: 1, Term: 1}, LogEntry{Index: 2, Term: 2})

	// Cannot commit index 1 (term 1) while claiming to act at term 2.
	if lv.maybeCommit(1, 2) {
		t.Error("maybeCommit should refuse to commit an entry from a different term")
	}
	if !lv.maybeCommit(2, 2) {
		t.Error("maybeCommit should succeed when the index's term matches")
	}
	if lv.commit != 2 {
		t.Errorf("commit = %d, want 2", lv.commit)
	}
}

func TestLogViewIsUpToDate(t *testing.T) {
	storage := newMemoryStorage()
	lv := newLogView(storage)
	lv.append(LogEntry{Index: 1, Term: 1}, LogEntry{Index: 2, Term: 2})

	if !lv.isUpToDate(2, 2) {
		t.Error("equal term and index should be up to date")
	}
	if !lv.isUpToDate(5, 3) {
		t.Error("higher term should be up to date regardless of index")
	}
	if lv.isUpToDate(1, 2) {
		t.Error("lower index at the same term should not be up to date")
	}
	if lv.isUpToDate(99, 1) {
		t.Error("lower term should never be up to date")
	}
}

func TestLogViewRestoreFromSnapshot(t *testing.T) {
	storage := newMemoryStorage()
	lv := newLogView(storage)
	lv.append(LogEntry{Index: 1, Term: 1})

	ss := Snapshot{Metadata: SnapshotMetadata{Index: 5, Term: 3, ConfState: ConfState{Peers: []uint64{1, 2, 3}}}}
	lv.restore(ss)

	if lv.commit != 5 || lv.applied != 5 {
		t.Errorf("restore should fast-forward commit/applied to 5, got commit=%d applied=%d", lv.commit, lv.applied)
	}
	if lv.lastIndex() != 5 {
		t.Errorf("lastIndex after restore = %d, want 5", lv.lastIndex())
	}
	if got, err := lv.termOf(5); err != nil || got != 3 {
		t.Errorf("termOf(5) after restore = (%d, %v), want (3, nil)", got, err)
	}
}

func TestUnstableStableTo(t *testing.T) {
	storage := newMemoryStorage()
	lv := newLogView(storage)
	lv.append(LogEntry{Index: 1, Term: 1}, LogEntry{Index: 2, Term: 1})

	storage.append(lv.unstable.entries...)
	lv.stableTo(2, 1)

	if len(lv.unstable.entries) != 0 {
		t.Errorf("stableTo should drain the unstable suffix once storage catches up, got %d entries left", len(lv.unstable.entries))
	}
	if lv.lastIndex() != 2 {
		t.Errorf("lastIndex should still read 2 from storage, got %d", lv.lastIndex())
	}
}
