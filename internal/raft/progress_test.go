package raft

import "testing"

func TestProgressMaybeUpdate(t *testing.T) {
	p := newProgress(2, 1, 4)

	if !p.maybeUpdate(3) {
		t.Error("maybeUpdate should advance match on a higher index")
	}
	if p.match != 3 || p.next != 4 {
		t.Errorf("match=%d next=%d, want match=3 next=4", p.match, p.next)
	}
	if p.maybeUpdate(2) {
		t.Error("maybeUpdate should not move match backwards")
	}
}

func TestProgressBecomeReplicate(t *testing.T) {
	p := newProgress(2, 1, 4)
	p.maybeUpdate(5)
	p.becomeReplicate()

	if p.state != ProgressReplicate {
		t.Errorf("state = %v, want ProgressReplicate", p.state)
	}
	if p.next != 6 {
		t.Errorf("next = %d, want 6", p.next)
	}
}

func TestProgressBecomeProbeFromSnapshot(t *testing.T) {
	p := newProgress(2, 1, 4)
	p.match = 10
	p.becomeSnapshot()
	p.becomeProbe()

	if p.state != ProgressProbe {
		t.Errorf("state = %v, want ProgressProbe", p.state)
	}
	if p.next != 11 {
		t.Errorf("next = %d, want 11 (match+1)", p.next)
	}
}

func TestProgressMaybeDecrToProbe(t *testing.T) {
	p := newProgress(2, 1, 4)
	p.next = 10

	if !p.maybeDecrTo(8, 4) {
		t.Error("maybeDecrTo should report a change in probe mode")
	}
	if p.next != 5 {
		t.Errorf("next = %d, want 5 (hint+1)", p.next)
	}
}

func TestProgressMaybeDecrToReplicateIgnoresStaleReject(t *testing.T) {
	p := newProgress(2, 1, 4)
	p.match = 10
	p.becomeReplicate()

	if p.maybeDecrTo(5, 3) {
		t.Error("a rejection at or below match should be ignored in replicate mode")
	}
}

func TestInflightsFullAndFree(t *testing.T) {
	in := newInflights(2)
	in.add(1)
	in.add(2)
	if !in.isFull() {
		t.Error("inflights should report full at capacity")
	}

	in.freeTo(1)
	if in.isFull() {
		t.Error("inflights should have room after freeTo drops the first entry")
	}
	in.add(3)
	if !in.isFull() {
		t.Error("inflights should be full again after refilling the freed slot")
	}
}

func TestProgressIsPaused(t *testing.T) {
	p := newProgress(2, 1, 1)
	if p.isPaused() {
		t.Error("a fresh probe-mode peer should not start paused")
	}

	p.pause()
	if !p.isPaused() {
		t.Error("isPaused should report true once paused in probe mode")
	}

	p.becomeSnapshot()
	if !p.isPaused() {
		t.Error("a peer in snapshot mode is always paused")
	}

	p.becomeReplicate()
	in := p.inflights
	in.add(1)
	if !p.isPaused() {
		t.Error("a replicate-mode peer should be paused once its inflight window is full")
	}
}
