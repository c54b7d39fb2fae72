package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"google.golang.org/grpc"

	"github.com/qkvraft/raftcore/internal/logutil"
	"github.com/qkvraft/raftcore/internal/raft"
)

// Deliver is how the transport hands an inbound raft.Message to the
// node's single logical thread. The driver is expected to call
// node.Step(msg) from inside this callback (or enqueue it for the
// same goroutine that owns Step/Tick); it must not call Step
// concurrently with anything else.
type Deliver func(raft.Message)

// Server is the gRPC listener side of the transport: it decodes wire
// requests, hands the resulting raft.Message to Deliver, and answers
// the RPC with an empty acknowledgement.
//
// Because Step is asynchronous (the reply is queued in the node's
// outbox, not returned directly), Server answers each RPC immediately
// with an empty acknowledgement; the actual AppendEntries/RequestVote
// reply travels back to the peer as an ordinary outbound message
// dispatched through a PeerClient, the same way any other message
// does. This mirrors the core's I/O-free contract: RPC completion and
// raft-level message delivery are deliberately decoupled.
type Server struct {
	wg      sync.WaitGroup
	grpc    *grpc.Server
	deliver Deliver
}

// NewServer creates a Server that forwards every decoded message to deliver.
func NewServer(deliver Deliver) *Server {
	return &Server{deliver: deliver}
}

func (s *Server) handleAppendEntries(ctx context.Context, req *AppendRequest) (*AppendReply, error) {
	s.deliver(req.toMessage())
	return &AppendReply{}, nil
}

func (s *Server) handleRequestVote(ctx context.Context, req *VoteRequest) (*VoteReply, error) {
	s.deliver(req.toMessage())
	return &VoteReply{}, nil
}

func (s *Server) handleInstallSnapshot(stream grpc.ServerStream) error {
	var meta *SnapshotChunk
	var data []byte

	for {
		chunk := new(SnapshotChunk)
		if err := stream.RecvMsg(chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if meta == nil {
			meta = chunk
		}
		data = append(data, chunk.Data...)
	}

	if meta == nil {
		return fmt.Errorf("transport: empty InstallSnapshot stream")
	}

	ss := raft.Snapshot{
		Metadata: raft.SnapshotMetadata{
			Index:     meta.Index,
			Term:      meta.SnapTerm,
			ConfState: raft.ConfState{Peers: meta.ConfPeers},
		},
		Data: data,
	}
	s.deliver(raft.Message{Type: raft.MsgSnap, From: meta.From, To: meta.To, Term: meta.Term, Snapshot: &ss})

	return stream.SendMsg(&AppendReply{})
}

// Start begins serving on addr in a background goroutine and returns
// once the listener is up.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.grpc = grpc.NewServer()
	s.grpc.RegisterService(&serviceDesc, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpc.Serve(lis); err != nil {
			logutil.Warning("transport: server stopped serving: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down and waits for Start's goroutine to return.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	s.wg.Wait()
}
