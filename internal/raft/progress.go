package raft

import "github.com/qkvraft/raftcore/internal/logutil"

// ProgressState is the replication mode a leader uses for one peer.
type ProgressState int

const (
	// ProgressProbe: next is a guess; at most one AppendEntries in flight.
	ProgressProbe ProgressState = iota
	// ProgressReplicate: next is known-good; pipelining is allowed.
	ProgressReplicate
	// ProgressSnapshot: a snapshot transfer is in flight; Appends are suppressed.
	ProgressSnapshot
)

func (s ProgressState) String() string {
	switch s {
	case ProgressProbe:
		return "probe"
	case ProgressReplicate:
		return "replicate"
	case ProgressSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// inflights is a bounded FIFO of the highest index sent in each
// optimistically pipelined append, used to cap how far a replicate-mode
// peer can run ahead of its acks.
type inflights struct {
	start int
	count int
	size  int
	buf   []uint64
}

func newInflights(size int) *inflights {
	return &inflights{size: size, buf: make([]uint64, size)}
}

func (in *inflights) isFull() bool {
	return in.count == in.size
}

func (in *inflights) add(index uint64) {
	if in.isFull() {
		logutil.Panicf("raft: cannot add to a full inflights window")
	}
	next := in.start + in.count
	if next >= in.size {
		next -= in.size
	}
	in.buf[next] = index
	in.count++
}

// freeTo drops the prefix of inflight indices <= to.
func (in *inflights) freeTo(to uint64) {
	if in.count == 0 || to < in.buf[in.start] {
		return
	}
	i, freed := in.start, 0
	for ; freed < in.count; freed++ {
		if to < in.buf[i] {
			break
		}
		i++
		if i >= in.size {
			i = 0
		}
	}
	in.count -= freed
	in.start = i
}

func (in *inflights) freeFirstOne() {
	if in.count > 0 {
		in.freeTo(in.buf[in.start])
	}
}

func (in *inflights) reset() {
	in.start = 0
	in.count = 0
}

// progress is one leader's bookkeeping for a single peer's replication
// state: next/match indices, the current flow-control mode, whether
// sends are paused, the inflight window, and whether the peer has been
// heard from recently.
type progress struct {
	id uint64

	match, next uint64
	state       ProgressState
	paused      bool
	inflights   *inflights

	active bool // set on any message from the peer; cleared by CheckQuorum each window
}

func newProgress(id, next uint64, maxInflight int) *progress {
	return &progress{
		id:        id,
		next:      next,
		state:     ProgressProbe,
		inflights: newInflights(maxInflight),
	}
}

func (p *progress) resetTo(state ProgressState) {
	p.paused = false
	p.state = state
	p.inflights.reset()
}

func (p *progress) becomeProbe() {
	// When falling back from Snapshot we resume probing right after the
	// point we know the peer matched, if any.
	if p.state == ProgressSnapshot {
		p.resetTo(ProgressProbe)
		p.next = logutil.Max(p.match+1, 1)
		return
	}
	p.resetTo(ProgressProbe)
}

func (p *progress) becomeReplicate() {
	p.resetTo(ProgressReplicate)
	p.next = p.match + 1
}

func (p *progress) becomeSnapshot() {
	p.resetTo(ProgressSnapshot)
}

// maybeUpdate records that the peer has replicated through i. Returns
// true if this advanced match.
func (p *progress) maybeUpdate(i uint64) bool {
	if i <= p.match {
		return false
	}
	p.match = i
	p.next = logutil.Max(p.next, i+1)
	p.paused = false
	return true
}

// optimisticUpdate advances next without touching match; used when
// pipelining a send whose outcome is not yet known.
func (p *progress) optimisticUpdate(i uint64) {
	p.next = i + 1
}

// maybeDecrTo handles an AppendEntries rejection. rejected is the
// index the follower rejected at; hint is the follower's
// LastMatchIndex. Returns whether next changed.
func (p *progress) maybeDecrTo(rejected, hint uint64) bool {
	if p.state == ProgressReplicate {
		if rejected <= p.match {
			// stale reject, nothing to do
			return false
		}
		p.next = logutil.Max(p.match+1, 1)
		return true
	}

	// Probe mode: trust the hint, clamp to the rejected index.
	next := logutil.Min(rejected, hint+1)
	if next < 1 {
		next = 1
	}
	if p.next == next {
		return false
	}
	p.next = next
	return true
}

func (p *progress) pause()  { p.paused = true }
func (p *progress) resume() { p.paused = false }

// isPaused reports whether sends to this peer are currently suppressed.
func (p *progress) isPaused() bool {
	switch p.state {
	case ProgressProbe:
		return p.paused
	case ProgressSnapshot:
		return true
	default: // ProgressReplicate
		return p.inflights.isFull()
	}
}
