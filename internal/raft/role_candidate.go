package raft

import "github.com/qkvraft/raftcore/internal/logutil"

// stepCandidate handles every message type a Candidate can receive.
func stepCandidate(n *Node, msg Message) {
	switch msg.Type {
	case MsgApp:
		// A same-or-higher-term leader exists; step down and re-handle.
		n.becomeFollower(n.term, msg.From)
		stepFollower(n, msg)

	case MsgHeartbeat:
		n.becomeFollower(n.term, msg.From)
		stepFollower(n, msg)

	case MsgSnap:
		n.becomeFollower(n.term, msg.From)
		stepFollower(n, msg)

	case MsgVoteResp:
		n.votes[msg.From] = !msg.Reject
		granted := 0
		for _, g := range n.votes {
			if g {
				granted++
			}
		}
		if granted >= n.quorum() {
			n.becomeLeader()
			n.broadcastAppend()
			return
		}
		rejected := len(n.votes) - granted
		if rejected >= n.quorum() {
			logutil.Info("T%d: node%d lost election", n.term, n.id)
			n.becomeFollower(n.term, 0)
		}

	case MsgProp:
		logutil.Trace("node%d dropping proposal, election in progress", n.id)
	}
}
