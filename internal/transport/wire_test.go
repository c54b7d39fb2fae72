package transport

import (
	"reflect"
	"testing"

	"github.com/qkvraft/raftcore/internal/raft"
)

func TestAppendRequestRoundTrip(t *testing.T) {
	msg := raft.Message{
		Type:    raft.MsgApp,
		From:    1,
		To:      2,
		Term:    5,
		Index:   10,
		LogTerm: 4,
		Entries: []raft.LogEntry{{Index: 11, Term: 5, Data: []byte("x")}},
		Commit:  9,
	}

	req := toAppendRequest(msg)
	got := req.toMessage()

	if got.Type != raft.MsgApp || got.From != 1 || got.To != 2 || got.Term != 5 || got.Index != 10 || got.LogTerm != 4 || got.Commit != 9 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Entries) != 1 || got.Entries[0].Index != 11 || string(got.Entries[0].Data) != "x" {
		t.Errorf("entries round trip mismatch: %+v", got.Entries)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	msg := raft.Message{Type: raft.MsgHeartbeat, From: 1, To: 2, Term: 3, Commit: 7}
	got := toAppendRequest(msg).toMessage()
	if got.Type != raft.MsgHeartbeat {
		t.Errorf("Type = %v, want MsgHeartbeat", got.Type)
	}
	if got.Commit != 7 {
		t.Errorf("Commit = %d, want 7", got.Commit)
	}
}

func TestVoteRoundTrip(t *testing.T) {
	msg := raft.Message{Type: raft.MsgVote, From: 1, To: 2, Term: 5, Index: 10, LogTerm: 4}
	got := toVoteRequest(msg).toMessage()
	if !reflect.DeepEqual(got, msg) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestAppendReplyRoundTrip(t *testing.T) {
	msg := raft.Message{Type: raft.MsgAppResp, From: 2, To: 1, Term: 5, Index: 11, Reject: true, LastMatchIndex: 3}
	got := toAppendReply(msg).toMessage()
	if !reflect.DeepEqual(got, msg) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}
