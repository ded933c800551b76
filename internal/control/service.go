// Package control exposes the receptionist over gRPC for back-office tools.
// Messages are protobuf well-known types, so no generated code is needed.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"dealer/kiosk/internal/auth"
	"dealer/kiosk/internal/chat"
	"dealer/kiosk/internal/interaction"
)

const (
	ServiceName = "kiosk.v1.Receptionist"

	// SessionHeader selects the chat session; DefaultSession is used when
	// it is absent.
	SessionHeader  = "x-session-id"
	DefaultSession = "kiosk"

	// AuthHeader carries "Bearer <admin secret>" for Interactions.
	AuthHeader = "authorization"
)

type ReceptionistServer interface {
	Chat(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Interactions(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type ChatService interface {
	Reply(ctx context.Context, sessionID, text string) (chat.Result, error)
	Reset(ctx context.Context, sessionID string) error
}

type InteractionLister interface {
	List(ctx context.Context, limit int) ([]interaction.Record, error)
}

// Server implements ReceptionistServer on top of the chat and interaction
// services.
type Server struct {
	chat         ChatService
	interactions InteractionLister
	adminSecret  string
	logger       *logrus.Logger
}

// NewServer builds the service. Interactions is refused unless callers
// present adminSecret; an empty secret refuses every caller.
func NewServer(c ChatService, il InteractionLister, adminSecret string, logger *logrus.Logger) *Server {
	return &Server{chat: c, interactions: il, adminSecret: adminSecret, logger: logger}
}

func sessionFrom(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(SessionHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return DefaultSession
}

func (s *Server) Chat(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	res, err := s.chat.Reply(ctx, sessionFrom(ctx), in.GetValue())
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return nil, status.Error(codes.InvalidArgument, "message is required")
		}
		return nil, status.Errorf(codes.Internal, "chat: %v", err)
	}
	return wrapperspb.String(res.Reply), nil
}

func (s *Server) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.chat.Reset(ctx, sessionFrom(ctx)); err != nil {
		return nil, status.Errorf(codes.Internal, "reset: %v", err)
	}
	return &emptypb.Empty{}, nil
}

func isAdmin(ctx context.Context, secret string) bool {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}
	for _, v := range md.Get(AuthHeader) {
		if auth.AdminAuthorized(secret, v) {
			return true
		}
	}
	return false
}

func (s *Server) Interactions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if !isAdmin(ctx, s.adminSecret) {
		return nil, status.Error(codes.Unauthenticated, "admin credentials required")
	}
	recs, err := s.interactions.List(ctx, 0)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "list interactions: %v", err)
	}
	items := make([]any, 0, len(recs))
	for _, r := range recs {
		items = append(items, map[string]any{
			"id":         r.ID,
			"session_id": r.SessionID,
			"name":       r.Name,
			"product":    r.Product,
			"timestamp":  r.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	out, err := structpb.NewStruct(map[string]any{"interactions": items, "count": len(items)})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode interactions: %v", err)
	}
	return out, nil
}

// Register adds srv to a grpc server.
func Register(s grpc.ServiceRegistrar, srv ReceptionistServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReceptionistServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Chat", Handler: chatHandler},
		{MethodName: "Reset", Handler: resetHandler},
		{MethodName: "Interactions", Handler: interactionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kiosk/v1/receptionist.proto",
}

func chatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceptionistServer).Chat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Chat"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceptionistServer).Chat(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func resetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceptionistServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Reset"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceptionistServer).Reset(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func interactionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceptionistServer).Interactions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Interactions"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceptionistServer).Interactions(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// LoggingInterceptor logs every unary call with its status code.
func LoggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		grpcRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		entry := logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Warn("grpc call failed")
		} else {
			entry.Debug("grpc call")
		}
		return resp, err
	}
}
