package raft

import "github.com/qkvraft/raftcore/internal/logutil"

// unstable holds the suffix of the log the host has not yet persisted:
// either a pending snapshot waiting to be applied to storage, or a run
// of log entries appended by a leader (or accepted by a follower) but
// not yet fsynced. At most one of the two is meaningful at a time in
// the sense that a pending snapshot always precedes any entries.
type unstable struct {
	snapshot *Snapshot
	entries  []LogEntry
	offset   uint64 // index of entries[0]; meaningless if entries is empty
}

func (u *unstable) maybeFirstIndex() (uint64, bool) {
	if u.snapshot != nil {
		return u.snapshot.Metadata.Index + 1, true
	}
	return 0, false
}

func (u *unstable) maybeLastIndex() (uint64, bool) {
	if n := len(u.entries); n > 0 {
		return u.offset + uint64(n) - 1, true
	}
	if u.snapshot != nil {
		return u.snapshot.Metadata.Index, true
	}
	return 0, false
}

func (u *unstable) maybeTerm(i uint64) (uint64, bool) {
	if n := len(u.entries); n > 0 {
		last, _ := u.maybeLastIndex()
		if i < u.offset || i > last {
			return 0, false
		}
		return u.entries[i-u.offset].Term, true
	}
	if u.snapshot != nil && i == u.snapshot.Metadata.Index {
		return u.snapshot.Metadata.Term, true
	}
	return 0, false
}

// truncateAndAppend applies the follower-conflict rule to the unstable suffix.
func (u *unstable) truncateAndAppend(entries []LogEntry) {
	first := entries[0].Index
	switch {
	case len(u.entries) == 0:
		// offset is meaningless on an empty suffix; adopt the caller's.
		u.offset = first
		u.entries = entries
	case first == u.offset+uint64(len(u.entries)):
		u.entries = append(u.entries, entries...)
	case first <= u.offset:
		u.offset = first
		u.entries = entries
	default:
		u.entries = append([]LogEntry{}, u.entries[:first-u.offset]...)
		u.entries = append(u.entries, entries...)
	}
}

func (u *unstable) restore(ss Snapshot) {
	u.offset = ss.Metadata.Index + 1
	u.entries = nil
	u.snapshot = &ss
}

func (u *unstable) stableTo(i uint64) {
	last, ok := u.maybeLastIndex()
	if !ok || i < u.offset || i > last {
		return
	}
	u.entries = u.entries[i-u.offset+1:]
	u.offset = i + 1
}

func (u *unstable) stableSnapTo(i uint64) {
	if u.snapshot != nil && u.snapshot.Metadata.Index == i {
		u.snapshot = nil
	}
}

// logView is the in-memory mirror of the persisted log: the storage
// adapter serves the stable prefix, unstable carries the pending
// snapshot or appended-not-yet-durable suffix, and commit/applied are
// the two monotonic cursors.
type logView struct {
	storage  Storage
	unstable unstable

	commit  uint64
	applied uint64
}

func newLogView(storage Storage) *logView {
	hs, _, err := storage.InitialState()
	if err != nil {
		logutil.Panicf("raft: storage.InitialState failed: %v", err)
	}

	return &logView{
		storage: storage,
		commit:  hs.Commit,
		applied: hs.Commit,
	}
}

// firstIndex returns the index right after the last compacted entry.
func (l *logView) firstIndex() uint64 {
	if i, ok := l.unstable.maybeFirstIndex(); ok {
		return i
	}
	fi, err := l.storage.FirstIndex()
	if err != nil {
		logutil.Panicf("raft: storage.FirstIndex failed: %v", err)
	}
	return fi
}

// lastIndex returns the index of the last entry, stable or not.
func (l *logView) lastIndex() uint64 {
	if i, ok := l.unstable.maybeLastIndex(); ok {
		return i
	}
	li, err := l.storage.LastIndex()
	if err != nil {
		logutil.Panicf("raft: storage.LastIndex failed: %v", err)
	}
	return li
}

// lastTerm returns the term of the last entry.
func (l *logView) lastTerm() uint64 {
	t, err := l.termOf(l.lastIndex())
	if err != nil {
		logutil.Panicf("raft: lastTerm failed: %v", err)
	}
	return t
}

// termOf returns the term of entry i. Returns ErrCompacted if i is
// behind what either the unstable snapshot or storage can serve.
func (l *logView) termOf(i uint64) (uint64, error) {
	if i == 0 {
		return 0, nil
	}
	if t, ok := l.unstable.maybeTerm(i); ok {
		return t, nil
	}
	return l.storage.Term(i)
}

// termOfOrZero maps ErrCompacted to term 0, the convention used for
// isUpToDate and commit-eligibility comparisons (no matching entry,
// cannot compare/commit at that index).
func (l *logView) termOfOrZero(i uint64) uint64 {
	t, err := l.termOf(i)
	if err == ErrCompacted {
		return 0
	}
	if err != nil {
		logutil.Panicf("raft: termOf(%d) failed: %v", i, err)
	}
	return t
}

// matchTerm reports whether entry i exists and has term t.
func (l *logView) matchTerm(i, t uint64) bool {
	got, err := l.termOf(i)
	return err == nil && got == t
}

// slice returns entries in [lo, hi), bounded by maxBytes (0 = unbounded).
func (l *logView) slice(lo, hi, maxBytes uint64) ([]LogEntry, error) {
	if lo > hi {
		logutil.Panicf("raft: invalid slice range [%d,%d)", lo, hi)
	}
	if lo == hi {
		return nil, nil
	}
	if lo < l.firstIndex() {
		return nil, ErrCompacted
	}
	if hi > l.lastIndex()+1 {
		return nil, ErrUnavailable
	}

	var entries []LogEntry

	unstableFirst := l.unstable.offset
	if len(l.unstable.entries) > 0 && lo < unstableFirst {
		stable, err := l.storage.Entries(lo, logutil.Min(hi, unstableFirst), maxBytes)
		if err != nil {
			return nil, err
		}
		entries = append(entries, stable...)
	} else if len(l.unstable.entries) == 0 {
		stable, err := l.storage.Entries(lo, hi, maxBytes)
		if err != nil {
			return nil, err
		}
		entries = append(entries, stable...)
	}

	if len(l.unstable.entries) > 0 && hi > unstableFirst {
		ulo := logutil.Max(lo, unstableFirst)
		entries = append(entries, l.unstable.entries[ulo-unstableFirst:hi-unstableFirst]...)
	}

	return limitByBytes(entries, maxBytes), nil
}

func limitByBytes(entries []LogEntry, maxBytes uint64) []LogEntry {
	if maxBytes == 0 || len(entries) <= 1 {
		return entries
	}
	var size uint64
	for i, e := range entries {
		size += uint64(len(e.Data))
		if size > maxBytes {
			return entries[:i]
		}
	}
	return entries
}

// append appends entries to the unstable suffix, either growing the
// log or truncating and replacing a conflicting suffix. The only
// invalid case is a gap between the existing log and the new entries.
func (l *logView) append(entries ...LogEntry) uint64 {
	if len(entries) == 0 {
		return l.lastIndex()
	}
	if first := entries[0].Index; first > l.lastIndex()+1 {
		logutil.Panicf("raft: append with a gap at index %d, expected at most %d", first, l.lastIndex()+1)
	}
	l.unstable.truncateAndAppend(entries)
	return l.lastIndex()
}

// maybeAppend implements the follower log-matching rule. On success it
// returns the new last index and true, having advanced commit to
// min(commit, lastNewIndex); on conflict (no match at prevIndex with
// prevTerm) it returns false and leaves state untouched.
func (l *logView) maybeAppend(prevIndex, prevTerm, commit uint64, entries ...LogEntry) (lastNewIndex uint64, ok bool) {
	if !l.matchTerm(prevIndex, prevTerm) {
		return 0, false
	}

	lastNewIndex = prevIndex + uint64(len(entries))

	if ci := l.findConflict(entries); ci != 0 {
		switch {
		case ci <= l.commit:
			logutil.Panicf("raft: entry %d conflicts with committed entries", ci)
		default:
			off := prevIndex + 1
			l.append(entries[ci-off:]...)
		}
	}

	l.commitTo(logutil.Min(commit, lastNewIndex))
	return lastNewIndex, true
}

// findConflict returns the index of the first entry whose term
// disagrees with what is already in the log, or 0 if entries are a
// subset of (or append cleanly onto) the existing log.
func (l *logView) findConflict(entries []LogEntry) uint64 {
	for _, e := range entries {
		if !l.matchTerm(e.Index, e.Term) {
			if e.Index <= l.lastIndex() {
				logutil.Trace("raft: log conflict at index %d, existing term %d, incoming term %d", e.Index, l.termOfOrZero(e.Index), e.Term)
			}
			return e.Index
		}
	}
	return 0
}

// commitTo raises commit to max(commit, min(c, lastIndex)); it never lowers commit.
func (l *logView) commitTo(c uint64) {
	c = logutil.Min(c, l.lastIndex())
	if c > l.commit {
		l.commit = c
	}
}

// maybeCommit advances commit to n if n > commit and termOf(n) == term.
// The term guard prevents a new leader from committing a prior-term
// entry solely by counting replicas (Raft §5.4.2).
func (l *logView) maybeCommit(n, term uint64) bool {
	if n > l.commit && l.termOfOrZero(n) == term {
		l.commit = n
		return true
	}
	return false
}

// appliedTo advances the applied cursor. i must be in (applied, commit].
func (l *logView) appliedTo(i uint64) {
	if i == 0 {
		return
	}
	if i > l.commit || i < l.applied {
		logutil.Panicf("raft: appliedTo(%d) out of range (applied=%d, commit=%d)", i, l.applied, l.commit)
	}
	l.applied = i
}

// isUpToDate implements the voter safety check: a candidate's last log
// (term, index) must be at least as up to date as the voter's.
func (l *logView) isUpToDate(index, term uint64) bool {
	lastTerm := l.lastTerm()
	return term > lastTerm || (term == lastTerm && index >= l.lastIndex())
}

// stableTo is called by the driver once it has durably persisted
// unstable entries up to and including index i at term t.
func (l *logView) stableTo(i, t uint64) {
	if gt, ok := l.unstable.maybeTerm(i); !ok || gt != t {
		return
	}
	l.unstable.stableTo(i)
}

// stableSnapTo is called once the driver has durably applied a
// snapshot install to storage.
func (l *logView) stableSnapTo(i uint64) {
	l.unstable.stableSnapTo(i)
}

// restore replaces log metadata following a snapshot install. The
// host is expected to apply the same snapshot to storage and later
// call stableSnapTo once that is durable.
func (l *logView) restore(ss Snapshot) {
	l.commit = ss.Metadata.Index
	l.applied = ss.Metadata.Index
	l.unstable.restore(ss)
}
