// Package transport carries raft.Message traffic between nodes over
// gRPC. Because no protoc toolchain produced generated stubs for this
// module, the wire types here are plain msgpack-encoded structs
// registered with gRPC through a custom codec (see codec.go) and
// dispatched through a hand-written grpc.ServiceDesc (see service.go),
// rather than protobuf-generated message types.
package transport

import "github.com/qkvraft/raftcore/internal/raft"

// WireEntry mirrors raft.LogEntry for the wire.
type WireEntry struct {
	Index uint64
	Term  uint64
	Kind  uint8
	Data  []byte
}

func toWireEntries(entries []raft.LogEntry) []WireEntry {
	out := make([]WireEntry, len(entries))
	for i, e := range entries {
		out[i] = WireEntry{Index: e.Index, Term: e.Term, Kind: uint8(e.Kind), Data: e.Data}
	}
	return out
}

func fromWireEntries(entries []WireEntry) []raft.LogEntry {
	out := make([]raft.LogEntry, len(entries))
	for i, e := range entries {
		out[i] = raft.LogEntry{Index: e.Index, Term: e.Term, Kind: raft.EntryType(e.Kind), Data: e.Data}
	}
	return out
}

// AppendRequest carries both real AppendEntries and heartbeat traffic
// (Entries empty for the latter), mirroring raft.Message's MsgApp/MsgHeartbeat shape.
type AppendRequest struct {
	From, To    uint64
	Term        uint64
	PrevIndex   uint64
	PrevLogTerm uint64
	Entries     []WireEntry
	Commit      uint64
	IsHeartbeat bool
}

// AppendReply mirrors raft.Message's MsgAppResp/MsgHeartbeatResp shape.
type AppendReply struct {
	From, To       uint64
	Term           uint64
	Index          uint64
	Reject         bool
	LastMatchIndex uint64
}

// VoteRequest mirrors raft.Message's MsgVote shape.
type VoteRequest struct {
	From, To uint64
	Term     uint64
	Index    uint64
	LogTerm  uint64
}

// VoteReply mirrors raft.Message's MsgVoteResp shape.
type VoteReply struct {
	From, To uint64
	Term     uint64
	Reject   bool
}

// SnapshotChunk is one frame of a streamed InstallSnapshot call. The
// first chunk on a stream carries Metadata; Data is appended across
// every chunk received before the stream closes.
type SnapshotChunk struct {
	From, To   uint64
	Term       uint64
	Index      uint64
	SnapTerm   uint64
	ConfPeers  []uint64
	Data       []byte
}

// toAppendRequest builds an AppendRequest from a raft.Message of type MsgApp or MsgHeartbeat.
func toAppendRequest(m raft.Message) AppendRequest {
	return AppendRequest{
		From:        m.From,
		To:          m.To,
		Term:        m.Term,
		PrevIndex:   m.Index,
		PrevLogTerm: m.LogTerm,
		Entries:     toWireEntries(m.Entries),
		Commit:      m.Commit,
		IsHeartbeat: m.Type == raft.MsgHeartbeat,
	}
}

func (r AppendRequest) toMessage() raft.Message {
	typ := raft.MsgApp
	if r.IsHeartbeat {
		typ = raft.MsgHeartbeat
	}
	return raft.Message{
		Type:    typ,
		From:    r.From,
		To:      r.To,
		Term:    r.Term,
		Index:   r.PrevIndex,
		LogTerm: r.PrevLogTerm,
		Entries: fromWireEntries(r.Entries),
		Commit:  r.Commit,
	}
}

func toAppendReply(m raft.Message) AppendReply {
	return AppendReply{From: m.From, To: m.To, Term: m.Term, Index: m.Index, Reject: m.Reject, LastMatchIndex: m.LastMatchIndex}
}

func (r AppendReply) toMessage() raft.Message {
	typ := raft.MsgAppResp
	return raft.Message{Type: typ, From: r.From, To: r.To, Term: r.Term, Index: r.Index, Reject: r.Reject, LastMatchIndex: r.LastMatchIndex}
}

func toVoteRequest(m raft.Message) VoteRequest {
	return VoteRequest{From: m.From, To: m.To, Term: m.Term, Index: m.Index, LogTerm: m.LogTerm}
}

func (r VoteRequest) toMessage() raft.Message {
	return raft.Message{Type: raft.MsgVote, From: r.From, To: r.To, Term: r.Term, Index: r.Index, LogTerm: r.LogTerm}
}

func toVoteReply(m raft.Message) VoteReply {
	return VoteReply{From: m.From, To: m.To, Term: m.Term, Reject: m.Reject}
}

func (r VoteReply) toMessage() raft.Message {
	return raft.Message{Type: raft.MsgVoteResp, From: r.From, To: r.To, Term: r.Term, Reject: r.Reject}
}
