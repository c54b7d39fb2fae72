package transport

import (
	"context"

	"google.golang.org/grpc"
)

// rpcHandler is implemented by Server and invoked by the hand-written
// ServiceDesc below in place of protoc-generated dispatch code.
type rpcHandler interface {
	handleAppendEntries(ctx context.Context, req *AppendRequest) (*AppendReply, error)
	handleRequestVote(ctx context.Context, req *VoteRequest) (*VoteReply, error)
	handleInstallSnapshot(stream grpc.ServerStream) error
}

func appendEntriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(AppendRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rpcHandler).handleAppendEntries(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/AppendEntries"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rpcHandler).handleAppendEntries(ctx, req.(*AppendRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func requestVoteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(VoteRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rpcHandler).handleRequestVote(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RequestVote"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rpcHandler).handleRequestVote(ctx, req.(*VoteRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func installSnapshotHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(rpcHandler).handleInstallSnapshot(stream)
}

const serviceName = "raftcore.Transport"

// serviceDesc is the service description a protoc-gen-go-grpc plugin
// would normally emit; it is written by hand here because the module
// does not carry a .proto/protoc build step.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*rpcHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AppendEntries", Handler: appendEntriesHandler},
		{MethodName: "RequestVote", Handler: requestVoteHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "InstallSnapshot", Handler: installSnapshotHandler, ClientStreams: true},
	},
	Metadata: "raftcore/transport.proto",
}
