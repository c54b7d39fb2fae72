package raft

import "github.com/qkvraft/raftcore/internal/logutil"

// stepFollower handles every message type a Follower can receive once
// Step's term prologue and the MsgHup/MsgVote top-level cases have
// already run.
func stepFollower(n *Node, msg Message) {
	switch msg.Type {
	case MsgApp:
		n.electionElapsed = 0
		n.leader = msg.From
		handleAppendEntries(n, msg)

	case MsgHeartbeat:
		n.electionElapsed = 0
		n.leader = msg.From
		n.log.commitTo(msg.Commit)
		n.send(Message{Type: MsgHeartbeatResp, To: msg.From})

	case MsgSnap:
		n.electionElapsed = 0
		n.leader = msg.From
		ok := false
		if msg.Snapshot != nil {
			ok = n.restoreSnapshot(*msg.Snapshot)
		}
		idx := n.log.lastIndex()
		if msg.Snapshot != nil {
			idx = msg.Snapshot.Metadata.Index
		}
		n.send(Message{Type: MsgAppResp, To: msg.From, Index: idx, Reject: !ok})

	case MsgProp:
		if n.leader == 0 {
			logutil.Trace("node%d dropping proposal, no known leader", n.id)
			return
		}
		msg.To = n.leader
		n.send(msg)

	case MsgReadIndex:
		if n.leader == 0 {
			logutil.Trace("node%d dropping read-index request, no known leader", n.id)
			return
		}
		msg.To = n.leader
		n.send(msg)

	case MsgReadIndexResp:
		if len(msg.Entries) == 0 {
			return
		}
		n.readStates = append(n.readStates, ReadState{Index: msg.Index, Ctx: msg.Context})
	}
}

// handleAppendEntries implements the log-matching RPC contract; shared
// shape with the leader's own construction of the request in sendAppend.
func handleAppendEntries(n *Node, msg Message) {
	if msg.Index < n.log.commit {
		n.send(Message{Type: MsgAppResp, To: msg.From, Index: n.log.commit})
		return
	}

	lastNew, ok := n.log.maybeAppend(msg.Index, msg.LogTerm, msg.Commit, msg.Entries...)
	if !ok {
		// msg.Index may be past our last entry entirely (a freshly
		// elected leader always probes at its own lastIndex first);
		// termOf only has an answer for indices we actually hold.
		hint := n.log.lastIndex()
		if msg.Index <= hint {
			hint = findHintIndex(n, msg.Index)
		}
		logutil.Trace("T%d: node%d rejecting MsgApp from node%d at index %d", n.term, n.id, msg.From, msg.Index)
		n.send(Message{Type: MsgAppResp, To: msg.From, Index: msg.Index, Reject: true, LastMatchIndex: hint})
		return
	}

	n.send(Message{Type: MsgAppResp, To: msg.From, Index: lastNew})
}

// findHintIndex walks back from the conflicting index to the first
// entry of the conflicting term, so the leader can skip a whole term
// in one round trip instead of decrementing by one index at a time.
func findHintIndex(n *Node, conflict uint64) uint64 {
	term := n.log.termOfOrZero(conflict)
	i := conflict
	for i > n.log.firstIndex() && n.log.termOfOrZero(i-1) == term {
		i--
	}
	return i
}
