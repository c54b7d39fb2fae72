package transport

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/qkvraft/raftcore/internal/raft"
)

// chunkSize bounds each InstallSnapshot stream frame so a large
// snapshot never forces one oversized gRPC message.
const chunkSize = 256 * 1024

// PeerClient is the outbound half of the transport: one gRPC
// connection per peer, used to carry whatever the driver pulls out of
// a node's Outbox. Each RPC gets its own context.WithTimeout, and the
// per-kv-call dispatch is generalized to a single Send entry point
// keyed on the message type.
type PeerClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Dial opens a connection to a peer's transport address.
func Dial(addr string, timeout time.Duration) (*PeerClient, error) {
	conn, err := grpc.Dial(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, err
	}
	return &PeerClient{conn: conn, timeout: timeout}, nil
}

// Send transmits one outbound raft.Message to this peer.
func (c *PeerClient) Send(ctx context.Context, msg raft.Message) error {
	switch msg.Type {
	case raft.MsgApp, raft.MsgHeartbeat:
		return c.sendAppend(ctx, msg)
	case raft.MsgVote:
		return c.sendVote(ctx, msg)
	case raft.MsgSnap:
		return c.sendSnapshot(ctx, msg)
	default:
		return fmt.Errorf("transport: message type %s is local-only, cannot be sent", msg.Type)
	}
}

func (c *PeerClient) sendAppend(ctx context.Context, msg raft.Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := toAppendRequest(msg)
	reply := new(AppendReply)
	return c.conn.Invoke(ctx, "/"+serviceName+"/AppendEntries", &req, reply)
}

func (c *PeerClient) sendVote(ctx context.Context, msg raft.Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := toVoteRequest(msg)
	reply := new(VoteReply)
	return c.conn.Invoke(ctx, "/"+serviceName+"/RequestVote", &req, reply)
}

func (c *PeerClient) sendSnapshot(ctx context.Context, msg raft.Message) error {
	if msg.Snapshot == nil {
		return fmt.Errorf("transport: MsgSnap with no snapshot payload")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], "/"+serviceName+"/InstallSnapshot")
	if err != nil {
		return err
	}

	data := msg.Snapshot.Data
	for offset := 0; offset == 0 || offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := &SnapshotChunk{
			From:      msg.From,
			To:        msg.To,
			Term:      msg.Term,
			Index:     msg.Snapshot.Metadata.Index,
			SnapTerm:  msg.Snapshot.Metadata.Term,
			ConfPeers: msg.Snapshot.Metadata.ConfState.Peers,
			Data:      data[offset:end],
		}
		if err := stream.SendMsg(chunk); err != nil {
			return err
		}
		if len(data) == 0 {
			break
		}
	}

	if err := stream.CloseSend(); err != nil {
		return err
	}
	return stream.RecvMsg(new(AppendReply))
}

// Close releases the underlying connection.
func (c *PeerClient) Close() error {
	return c.conn.Close()
}
