// Package raft implements the I/O-free core of a Raft consensus node:
// given persisted state and a stream of incoming messages and clock
// ticks, it produces role transitions, outgoing messages, log
// mutations, and linearizable read-index tokens. It never performs
// I/O; callers drain the outbox and readStates between calls to Step
// and Tick, which must run on a single logical thread, never
// reentrantly.
package raft

import (
	"math/rand"

	"github.com/qkvraft/raftcore/internal/logutil"
)

// Role is the node's current position in the Raft state machine.
type Role int

const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Config carries everything required to construct a Node.
type Config struct {
	ID              uint64
	Peers           []uint64 // initial peer ids, may be empty if ConfState already has one
	ElectionTick    int
	HeartbeatTick   int
	MaxSizePerMsg   uint64
	MaxInflightMsgs int
	CheckQuorum     bool
	Storage         Storage
}

// Node is the outer aggregate: the Step/Tick entry points, term-bump
// policy, outgoing-message queue, read-state queue, commit
// advancement, and membership transitions. It owns the logView and
// the peer map exclusively; nothing outside a Step/Tick call may
// observe or mutate them.
type Node struct {
	id uint64

	role   Role
	term   uint64
	vote   uint64
	leader uint64

	log *logView

	peers map[uint64]*progress
	votes map[uint64]bool

	electionTick    int
	heartbeatTick   int
	maxSizePerMsg   uint64
	maxInflightMsgs int
	checkQuorum     bool

	electionElapsed  int
	heartbeatElapsed int
	randomizedElectionTimeout int

	pendingConf bool

	msgs       []Message
	readStates []ReadState

	// pendingReads holds local read-index requests whose safety depends
	// on a subsequent heartbeat-round quorum confirmation (multi-node
	// leader path; a single-node leader serves reads at once, see
	// SPEC_FULL.md §9).
	pendingReads []pendingRead

	rand *rand.Rand
}

type pendingRead struct {
	ctx         []byte
	index       uint64
	acked       map[uint64]bool
}

// NewNode constructs a Node from persisted storage and configuration.
// It always starts as a Follower; the driver is expected to call Tick
// until an election fires, or to feed it MsgHup directly in tests.
func NewNode(cfg Config) *Node {
	if cfg.ID == 0 {
		logutil.Panicf("raft: node id must be nonzero")
	}

	lv := newLogView(cfg.Storage)
	_, cs, err := cfg.Storage.InitialState()
	if err != nil {
		logutil.Panicf("raft: storage.InitialState failed: %v", err)
	}

	peerIDs := cfg.Peers
	if len(cs.Peers) > 0 {
		peerIDs = cs.Peers
	}

	n := &Node{
		id:              cfg.ID,
		role:            RoleFollower,
		log:             lv,
		peers:           make(map[uint64]*progress, len(peerIDs)),
		votes:           make(map[uint64]bool, len(peerIDs)),
		electionTick:    cfg.ElectionTick,
		heartbeatTick:   cfg.HeartbeatTick,
		maxSizePerMsg:   cfg.MaxSizePerMsg,
		maxInflightMsgs: cfg.MaxInflightMsgs,
		checkQuorum:     cfg.CheckQuorum,
		rand:            rand.New(rand.NewSource(int64(cfg.ID))),
	}

	n.rebuildPeers(peerIDs)

	hs, _, _ := cfg.Storage.InitialState()
	n.term = hs.Term
	n.vote = hs.Vote

	n.resetRandomizedElectionTimeout()

	return n
}

// rebuildPeers replaces the peer map, seeding next = lastIndex+1 for everyone.
func (n *Node) rebuildPeers(ids []uint64) {
	n.peers = make(map[uint64]*progress, len(ids))
	last := n.log.lastIndex()
	for _, id := range ids {
		n.peers[id] = newProgress(id, last+1, n.maxInflightMsgs)
	}
}

func (n *Node) quorum() int {
	return len(n.peers)/2 + 1
}

func (n *Node) resetRandomizedElectionTimeout() {
	n.randomizedElectionTimeout = n.electionTick + n.rand.Intn(n.electionTick)
}

func (n *Node) send(m Message) {
	m.From = n.id
	if m.Type == MsgVote || m.Type == MsgVoteResp {
		if m.Term == 0 {
			logutil.Panicf("raft: term-bearing message %s sent with term 0", m.Type)
		}
	} else {
		if m.Term != 0 {
			logutil.Panicf("raft: message %s must not set term explicitly", m.Type)
		}
		if m.Type != MsgProp && m.Type != MsgReadIndex {
			m.Term = n.term
		}
	}
	n.msgs = append(n.msgs, m)
}

// Outbox drains and returns the messages produced since the last call.
func (n *Node) Outbox() []Message {
	msgs := n.msgs
	n.msgs = nil
	return msgs
}

// ReadStates drains and returns the read states produced since the last call.
func (n *Node) ReadStates() []ReadState {
	rs := n.readStates
	n.readStates = nil
	return rs
}

// Term, RoleKind, Leader, Commit, Applied expose read-only node status; used
// by driver-side status polling and metrics (SPEC_FULL.md §10.7).
func (n *Node) Term() uint64   { return n.term }
func (n *Node) RoleKind() Role { return n.role }
func (n *Node) Leader() uint64 { return n.leader }
func (n *Node) Commit() uint64 { return n.log.commit }
func (n *Node) Applied() uint64 { return n.log.applied }

// Status is a read-only snapshot of node state for metrics and tests.
type Status struct {
	ID      uint64
	Role    Role
	Term    uint64
	Leader  uint64
	Commit  uint64
	Applied uint64
}

// Status returns a point-in-time snapshot. Never mutated by the core.
func (n *Node) Status() Status {
	return Status{
		ID:      n.id,
		Role:    n.role,
		Term:    n.term,
		Leader:  n.leader,
		Commit:  n.log.commit,
		Applied: n.log.applied,
	}
}

// promotable reports whether this node is itself part of the configuration.
func (n *Node) promotable() bool {
	_, ok := n.peers[n.id]
	return ok
}

// --- role transitions -------------------------------------------------
//
// Dispatch is a tagged role variant (the role field) matched in Step
// and Tick below, not a stored function handle: the compiler checks
// exhaustiveness of the per-message-type switch in each role's step
// function.

func (n *Node) becomeFollower(term, leader uint64) {
	n.reset(term)
	n.role = RoleFollower
	n.leader = leader
	logutil.Info("T%d: node%d becomes follower (leader=%d)", n.term, n.id, leader)
}

func (n *Node) becomeCandidate() {
	if n.role == RoleLeader {
		logutil.Panicf("raft: invalid transition [leader -> candidate]")
	}
	n.reset(n.term + 1)
	n.vote = n.id
	n.votes[n.id] = true
	n.role = RoleCandidate
	logutil.Info("T%d: node%d becomes candidate", n.term, n.id)
}

func (n *Node) becomeLeader() {
	if n.role == RoleFollower {
		logutil.Panicf("raft: invalid transition [follower -> leader]")
	}
	n.reset(n.term)
	n.leader = n.id
	n.role = RoleLeader

	// reset() already rebuilt peer progress with next=lastIndex+1 and
	// self.match=lastIndex; appendEntry below advances self by one.
	n.appendEntry(LogEntry{Kind: EntryNormal, Data: nil})
	logutil.Info("T%d: node%d becomes leader", n.term, n.id)
}

// reset clears per-term bookkeeping shared by every becomeX call.
func (n *Node) reset(term uint64) {
	if n.term != term {
		n.term = term
		n.vote = 0
	}
	n.leader = 0
	n.electionElapsed = 0
	n.heartbeatElapsed = 0
	n.resetRandomizedElectionTimeout()
	n.votes = make(map[uint64]bool, len(n.peers))
	n.pendingConf = false
	n.pendingReads = nil

	last := n.log.lastIndex()
	for id, p := range n.peers {
		match := uint64(0)
		if id == n.id {
			match = last
		}
		*p = *newProgress(id, last+1, n.maxInflightMsgs)
		p.match = match
	}
}

func (n *Node) appendEntry(entries ...LogEntry) {
	last := n.log.lastIndex()
	for i := range entries {
		entries[i].Term = n.term
		entries[i].Index = last + uint64(i) + 1
	}
	n.log.append(entries...)
	if self, ok := n.peers[n.id]; ok {
		self.maybeUpdate(n.log.lastIndex())
	}
	n.maybeCommitRaft()
}

// maybeCommitRaft recomputes the commit index as the largest index
// replicated on a majority of peers (including self), subject to the
// term guard in logView.maybeCommit.
func (n *Node) maybeCommitRaft() bool {
	matches := make([]uint64, 0, len(n.peers))
	for _, p := range n.peers {
		matches = append(matches, p.match)
	}
	sortDesc(matches)
	q := n.quorum()
	if q > len(matches) {
		return false
	}
	return n.log.maybeCommit(matches[q-1], n.term)
}

func sortDesc(s []uint64) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] < v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

// --- entry points -------------------------------------------------

// Tick drives one logical clock tick. It must be called from the same
// single logical thread as Step, never reentrantly.
func (n *Node) Tick() {
	if n.role == RoleLeader {
		n.tickHeartbeat()
	} else {
		n.tickElection()
	}
}

// tickElection is shared by Follower and Candidate.
func (n *Node) tickElection() {
	n.electionElapsed++
	if n.promotable() && n.electionElapsed >= n.randomizedElectionTimeout {
		n.electionElapsed = 0
		n.Step(Message{Type: MsgHup, To: n.id})
	}
}

// tickHeartbeat is the Leader's tick.
func (n *Node) tickHeartbeat() {
	n.heartbeatElapsed++
	n.electionElapsed++

	if n.electionElapsed >= n.electionTick {
		n.electionElapsed = 0
		if n.checkQuorum {
			n.Step(Message{Type: MsgCheckQuorum, From: n.id})
		}
	}

	if n.heartbeatElapsed >= n.heartbeatTick {
		n.heartbeatElapsed = 0
		n.Step(Message{Type: MsgBeat, From: n.id})
	}
}

// Step is the single synchronous entry point for all incoming messages,
// local and remote. It runs the term-normalization prologue from
// SPEC_FULL.md §4.5, then dispatches MsgHup/MsgVote at top level and
// everything else to the current role's step function.
func (n *Node) Step(msg Message) {
	switch {
	case msg.Term == 0:
		// local/synthetic message, no term handling
	case msg.Term > n.term:
		if msg.Type == MsgVote && n.checkQuorum && n.leader != 0 && n.electionElapsed < n.electionTick {
			// Lease: a partitioned peer campaigning with a higher term is
			// not allowed to disrupt a leader still in quorum contact.
			logutil.Info("T%d: node%d ignoring MsgVote from node%d within election lease", n.term, n.id, msg.From)
			return
		}
		switch msg.Type {
		case MsgApp, MsgHeartbeat, MsgSnap:
			n.becomeFollower(msg.Term, msg.From)
		default:
			n.becomeFollower(msg.Term, 0)
		}
	case msg.Term < n.term:
		switch msg.Type {
		case MsgApp, MsgHeartbeat, MsgSnap:
			n.send(Message{Type: MsgAppResp, To: msg.From})
		}
		return
	}

	switch msg.Type {
	case MsgHup:
		n.campaignIfNoPendingConf()
	case MsgVote:
		n.handleVote(msg)
	default:
		switch n.role {
		case RoleFollower:
			stepFollower(n, msg)
		case RoleCandidate:
			stepCandidate(n, msg)
		case RoleLeader:
			stepLeader(n, msg)
		}
	}
}

// campaignIfNoPendingConf guards MsgHup: a node must not start an
// election while a configuration change it has not yet applied is
// still sitting in the log.
func (n *Node) campaignIfNoPendingConf() {
	if n.role == RoleLeader {
		logutil.Trace("node%d ignoring MsgHup, already leader", n.id)
		return
	}

	entries, err := n.log.slice(n.log.applied+1, n.log.commit+1, 0)
	if err != nil {
		logutil.Panicf("raft: unexpected error reading unapplied entries: %v", err)
	}
	for _, e := range entries {
		if e.Kind == EntryConfChange {
			logutil.Warning("node%d cannot campaign at term %d: pending configuration change", n.id, n.term)
			return
		}
	}

	n.campaign()
}

// campaign starts an election: becomeCandidate, self-vote, and either
// an immediate win (single-node cluster) or a MsgVote broadcast.
func (n *Node) campaign() {
	n.becomeCandidate()
	if n.quorum() == 1 {
		n.becomeLeader()
		n.broadcastAppend()
		return
	}

	for id := range n.peers {
		if id == n.id {
			continue
		}
		n.send(Message{
			Type:    MsgVote,
			To:      id,
			Term:    n.term,
			Index:   n.log.lastIndex(),
			LogTerm: n.log.lastTerm(),
		})
	}
}

// handleVote implements the RequestVote contract shared by every role.
func (n *Node) handleVote(msg Message) {
	grant := (n.vote == 0 || n.vote == msg.From) && n.log.isUpToDate(msg.Index, msg.LogTerm)
	if grant {
		n.electionElapsed = 0
		n.vote = msg.From
		logutil.Info("T%d: node%d grants vote to node%d", n.term, n.id, msg.From)
	} else {
		logutil.Trace("T%d: node%d rejects vote for node%d", n.term, n.id, msg.From)
	}
	n.send(Message{Type: MsgVoteResp, To: msg.From, Term: n.term, Reject: !grant})
}

// broadcastAppend sends an AppendEntries (or snapshot, or an empty
// MsgApp when there is nothing new) to every peer whose progress is
// not paused.
func (n *Node) broadcastAppend() {
	for id := range n.peers {
		if id == n.id {
			continue
		}
		n.sendAppend(id)
	}
}

// broadcastHeartbeat sends a heartbeat to every peer.
func (n *Node) broadcastHeartbeat() {
	for id, p := range n.peers {
		if id == n.id {
			continue
		}
		commit := logutil.Min(p.match, n.log.commit)
		n.send(Message{Type: MsgHeartbeat, To: id, Commit: commit})
	}
}

// sendAppend sends the next batch of work to one peer: a snapshot if
// the peer has fallen behind the stable prefix, otherwise an append
// (pipelined in Replicate mode, single-shot in Probe mode).
func (n *Node) sendAppend(to uint64) {
	p := n.peers[to]
	if p.isPaused() {
		return
	}

	prevIndex := p.next - 1
	prevTerm, err := n.log.termOf(prevIndex)
	if err != nil {
		n.sendSnapshot(to, p)
		return
	}

	entries, err := n.log.slice(p.next, n.log.lastIndex()+1, n.maxSizePerMsg)
	if err != nil {
		n.sendSnapshot(to, p)
		return
	}

	n.send(Message{
		Type:    MsgApp,
		To:      to,
		Index:   prevIndex,
		LogTerm: prevTerm,
		Entries: entries,
		Commit:  n.log.commit,
	})

	if len(entries) > 0 {
		last := entries[len(entries)-1].Index
		switch p.state {
		case ProgressReplicate:
			p.optimisticUpdate(last)
			p.inflights.add(last)
		case ProgressProbe:
			p.paused = true
		}
	}
}

func (n *Node) sendSnapshot(to uint64, p *progress) {
	ss, err := n.log.storage.Snapshot()
	if err != nil {
		logutil.Trace("node%d snapshot not ready for node%d: %v", n.id, to, err)
		return
	}
	p.becomeSnapshot()
	n.send(Message{Type: MsgSnap, To: to, Snapshot: &ss})
	logutil.Info("T%d: node%d sending snapshot (index=%d term=%d) to node%d", n.term, n.id, ss.Metadata.Index, ss.Metadata.Term, to)
}

// restoreSnapshot accepts an incoming snapshot iff it is strictly ahead
// of commit and the log does not already match it. On acceptance the
// log metadata is replaced and the peer set is rebuilt from the
// snapshot's ConfState.
func (n *Node) restoreSnapshot(ss Snapshot) bool {
	if ss.Metadata.Index <= n.log.commit {
		return false
	}
	if n.log.matchTerm(ss.Metadata.Index, ss.Metadata.Term) {
		n.log.commitTo(ss.Metadata.Index)
		return false
	}

	n.log.restore(ss)
	n.rebuildPeers(ss.Metadata.ConfState.Peers)
	if self, ok := n.peers[n.id]; ok {
		self.match = n.log.lastIndex()
	}
	return true
}
