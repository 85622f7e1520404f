// ABOUTME: gRPC transport carrying the request/response envelope as google.protobuf.Struct.
// ABOUTME: Incoming metadata (x-api-key, authorization) becomes request headers.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// GRPCServiceName is the fully-qualified gRPC service name.
const GRPCServiceName = "dbp.mcp.v1.MCP"

const grpcHandleMethod = "/" + GRPCServiceName + "/Handle"

// MCPServiceServer is the server API for the MCP gRPC service.
type MCPServiceServer interface {
	Handle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var mcpServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*MCPServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Handle", Handler: grpcHandleHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dbp/mcp/v1/mcp.proto",
}

func grpcHandleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MCPServiceServer).Handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: grpcHandleMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MCPServiceServer).Handle(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RecoverUnaryInterceptor converts a panic in any unary handler into a
// codes.Internal status. grpc-go does not recover handler panics itself.
func RecoverUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panicked",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// RegisterGRPC registers the MCP service on gs.
func (s *Server) RegisterGRPC(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&mcpServiceDesc, &grpcService{server: s})
}

type grpcService struct {
	server *Server
}

// Handle decodes the envelope, runs it through the router, and encodes the
// response. Like the HTTP transport, only undecodable input is a transport
// error; every routed outcome is an envelope.
func (g *grpcService) Handle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req Request
	data, err := json.Marshal(in.AsMap())
	if err == nil {
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		wireErr := g.server.errors.Handle(&mcperr.MalformedRequestError{Reason: "invalid envelope"}, nil)
		return nil, status.Error(codes.InvalidArgument, wireErr.Message)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Headers = mergeMetadata(ctx, req.Headers)

	resp := g.server.HandleRequest(ctx, req)

	out, err := envelopeToStruct(resp)
	if err != nil {
		g.server.logger.Error("failed to encode grpc response", "request_id", req.ID, "error", err)
		return nil, status.Error(codes.Internal, "encoding response")
	}
	return out, nil
}

// mergeMetadata overlays incoming gRPC metadata on body headers. Pseudo and
// grpc- reserved keys are skipped.
func mergeMetadata(ctx context.Context, headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	md, ok := metadata.FromIncomingContext(ctx)
	for k, v := range headers {
		if ok && len(md.Get(k)) > 0 {
			continue
		}
		out[k] = v
	}
	if !ok {
		return out
	}
	for k, vs := range md {
		if len(vs) == 0 || strings.HasPrefix(k, ":") || strings.HasPrefix(k, "grpc-") {
			continue
		}
		out[k] = vs[0]
	}
	return out
}

func envelopeToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return structpb.NewStruct(m)
}

// GRPCClient calls the MCP gRPC service.
type GRPCClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient wraps a client connection.
func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Handle sends req and decodes the response envelope. Credentials travel as
// outgoing metadata; attach them with metadata.AppendToOutgoingContext.
func (c *GRPCClient) Handle(ctx context.Context, req Request, opts ...grpc.CallOption) (Response, error) {
	in, err := envelopeToStruct(req)
	if err != nil {
		return Response{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, grpcHandleMethod, in, out, opts...); err != nil {
		return Response{}, err
	}
	data, err := json.Marshal(out.AsMap())
	if err != nil {
		return Response{}, fmt.Errorf("encoding response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}
