package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the Receptionist service.
type Client struct {
	cc         grpc.ClientConnInterface
	sessionID  string
	adminToken string
}

func NewClient(cc grpc.ClientConnInterface, sessionID string) *Client {
	return &Client{cc: cc, sessionID: sessionID}
}

// WithAdminToken returns a copy of c that authenticates admin calls.
func (c *Client) WithAdminToken(tok string) *Client {
	cp := *c
	cp.adminToken = tok
	return &cp
}

func (c *Client) ctx(ctx context.Context) context.Context {
	if c.sessionID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, SessionHeader, c.sessionID)
}

func (c *Client) Chat(ctx context.Context, text string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(c.ctx(ctx), "/"+ServiceName+"/Chat", wrapperspb.String(text), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) Reset(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(c.ctx(ctx), "/"+ServiceName+"/Reset", &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *Client) Interactions(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	ctx = c.ctx(ctx)
	if c.adminToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, AuthHeader, "Bearer "+c.adminToken)
	}
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Interactions", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
