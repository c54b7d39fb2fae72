package raft

// memoryStorage is a hand-rolled Storage test double: just enough
// behavior to drive the scenarios under test, no persistence.
type memoryStorage struct {
	hs HardState
	cs ConfState

	// ents[0] is a sentinel holding the term of the last compacted entry
	// at index ents[0].Index; ents[1:] are the real, contiguous entries.
	ents []LogEntry
	snap Snapshot
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{ents: []LogEntry{{Index: 0, Term: 0}}}
}

func (m *memoryStorage) InitialState() (HardState, ConfState, error) {
	return m.hs, m.cs, nil
}

func (m *memoryStorage) firstIndex() uint64 { return m.ents[0].Index + 1 }
func (m *memoryStorage) lastIndex() uint64  { return m.ents[0].Index + uint64(len(m.ents)) - 1 }

func (m *memoryStorage) FirstIndex() (uint64, error) { return m.firstIndex(), nil }
func (m *memoryStorage) LastIndex() (uint64, error)  { return m.lastIndex(), nil }

func (m *memoryStorage) Term(i uint64) (uint64, error) {
	if i < m.ents[0].Index {
		return 0, ErrCompacted
	}
	off := i - m.ents[0].Index
	if int(off) >= len(m.ents) {
		return 0, ErrUnavailable
	}
	return m.ents[off].Term, nil
}

func (m *memoryStorage) Entries(lo, hi, maxBytes uint64) ([]LogEntry, error) {
	if lo <= m.ents[0].Index {
		return nil, ErrCompacted
	}
	if hi > m.lastIndex()+1 {
		return nil, ErrUnavailable
	}
	off := m.ents[0].Index
	return append([]LogEntry{}, m.ents[lo-off:hi-off]...), nil
}

func (m *memoryStorage) Snapshot() (Snapshot, error) {
	return m.snap, nil
}

// append is a test helper mirroring what a real driver would do after
// a Step call: durably persist newly produced entries.
func (m *memoryStorage) append(entries ...LogEntry) {
	if len(entries) == 0 {
		return
	}
	first := entries[0].Index
	switch {
	case first == m.lastIndex()+1:
		m.ents = append(m.ents, entries...)
	case first <= m.ents[0].Index:
		m.ents = entries
	default:
		off := first - m.ents[0].Index
		m.ents = append(append([]LogEntry{}, m.ents[:off]...), entries...)
	}
}

func (m *memoryStorage) setHardState(hs HardState) { m.hs = hs }

func (m *memoryStorage) applySnapshot(ss Snapshot) {
	m.snap = ss
	m.ents = []LogEntry{{Index: ss.Metadata.Index, Term: ss.Metadata.Term}}
	m.cs = ss.Metadata.ConfState
}
