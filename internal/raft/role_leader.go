package raft

import "github.com/qkvraft/raftcore/internal/logutil"

// stepLeader handles every message type a Leader can receive.
func stepLeader(n *Node, msg Message) {
	switch msg.Type {
	case MsgBeat:
		n.broadcastHeartbeat()

	case MsgCheckQuorum:
		if !n.quorumActive() {
			logutil.Warning("T%d: node%d lost quorum contact, stepping down", n.term, n.id)
			n.becomeFollower(n.term, 0)
			return
		}
		resetPeerActive(n)

	case MsgProp:
		if n.pendingConf && confChangeIn(msg.Entries) {
			logutil.Warning("node%d dropping conf-change proposal, one already pending", n.id)
			return
		}
		for _, e := range msg.Entries {
			if e.Kind == EntryConfChange {
				n.pendingConf = true
			}
		}
		n.appendEntry(msg.Entries...)
		n.broadcastAppend()

	case MsgAppResp:
		handleAppendResp(n, msg)

	case MsgHeartbeatResp:
		p := n.peers[msg.From]
		if p == nil {
			return
		}
		p.active = true
		ackPendingReads(n, msg.From)
		if p.match < n.log.lastIndex() {
			n.sendAppend(msg.From)
		}

	case MsgSnapStatus:
		if p := n.peers[msg.From]; p != nil && p.state == ProgressSnapshot {
			p.becomeProbe()
		}

	case MsgUnreachable:
		if p := n.peers[msg.From]; p != nil && p.state == ProgressReplicate {
			p.becomeProbe()
		}

	case MsgReadIndex:
		handleReadIndex(n, msg)
	}
}

// ackPendingReads records a heartbeat ack from "from" against every
// parked read-index request and promotes the ones that now have
// quorum confirmation to readStates, oldest first.
func ackPendingReads(n *Node, from uint64) {
	if len(n.pendingReads) == 0 {
		return
	}
	for i := range n.pendingReads {
		n.pendingReads[i].acked[from] = true
	}

	q := n.quorum()
	settled := 0
	for settled < len(n.pendingReads) && len(n.pendingReads[settled].acked) >= q {
		settled++
	}
	if settled == 0 {
		return
	}
	for _, r := range n.pendingReads[:settled] {
		n.readStates = append(n.readStates, ReadState{Index: r.index, Ctx: r.ctx})
	}
	n.pendingReads = n.pendingReads[settled:]
}

func handleAppendResp(n *Node, msg Message) {
	p := n.peers[msg.From]
	if p == nil {
		return
	}
	p.active = true

	if msg.Reject {
		if p.maybeDecrTo(msg.Index, msg.LastMatchIndex) {
			if p.state == ProgressReplicate {
				p.becomeProbe()
			}
			n.sendAppend(msg.From)
		}
		return
	}

	if !p.maybeUpdate(msg.Index) {
		return
	}

	switch p.state {
	case ProgressProbe:
		p.becomeReplicate()
	case ProgressSnapshot:
		if p.match >= msg.Index {
			p.becomeProbe()
		}
	case ProgressReplicate:
		p.inflights.freeTo(msg.Index)
	}

	if n.maybeCommitRaft() {
		n.broadcastAppend()
	} else if p.isPaused() == false {
		n.sendAppend(msg.From)
	}
}

// handleReadIndex implements the leader side of linearizable reads: in
// a single-node cluster the current commit index is already safe; in a
// multi-node cluster the request is parked until a heartbeat round
// confirms this node still holds quorum (see SPEC_FULL.md §9). Either
// way, the leader may only vouch for commit as a read point once it has
// committed at least one entry of its own term — otherwise commit can
// still point at a prior leader's entry and the read would not reflect
// every write that leader considered committed.
func handleReadIndex(n *Node, msg Message) {
	if n.log.termOfOrZero(n.log.commit) != n.term {
		logutil.Trace("node%d dropping read-index request, no entry committed this term yet", n.id)
		return
	}

	if n.quorum() == 1 {
		n.readStates = append(n.readStates, ReadState{Index: n.log.commit, Ctx: msg.Context})
		return
	}

	n.pendingReads = append(n.pendingReads, pendingRead{
		ctx:   msg.Context,
		index: n.log.commit,
		acked: map[uint64]bool{n.id: true},
	})
	n.broadcastHeartbeat()
}

// quorumActive reports whether a majority of peers (including self)
// have been heard from since the last CheckQuorum window.
func (n *Node) quorumActive() bool {
	active := 0
	for id, p := range n.peers {
		if id == n.id || p.active {
			active++
		}
	}
	return active >= n.quorum()
}

func resetPeerActive(n *Node) {
	for id, p := range n.peers {
		if id != n.id {
			p.active = false
		}
	}
}

func confChangeIn(entries []LogEntry) bool {
	for _, e := range entries {
		if e.Kind == EntryConfChange {
			return true
		}
	}
	return false
}
