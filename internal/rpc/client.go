package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn  *grpc.ClientConn
	Chat  *ChatClient
	Pins  *PinClient
	Media *MediaClient
}

// Dial connects to the daemon's Unix domain socket and returns typed service clients.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient builds service clients over an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{
		conn:  conn,
		Chat:  &ChatClient{conn},
		Pins:  &PinClient{conn},
		Media: &MediaClient{conn},
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req any) (*Resp, error) {
	in, err := Encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, in, out); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := Decode(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Stream receives the messages of a server-streaming call.
type Stream[T any] struct {
	cs grpc.ClientStream
}

// Recv blocks for the next message. It returns io.EOF when the server ends
// the stream.
func (s *Stream[T]) Recv() (*T, error) {
	in := new(structpb.Struct)
	if err := s.cs.RecvMsg(in); err != nil {
		return nil, err
	}
	v := new(T)
	if err := Decode(in, v); err != nil {
		return nil, err
	}
	return v, nil
}

func watch[T any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req any) (*Stream[T], error) {
	in, err := Encode(req)
	if err != nil {
		return nil, err
	}
	desc := &grpc.StreamDesc{StreamName: method, ServerStreams: true}
	cs, err := cc.NewStream(ctx, desc, "/"+service+"/"+method)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(in); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &Stream[T]{cs: cs}, nil
}

type ChatClient struct {
	cc grpc.ClientConnInterface
}

func (c *ChatClient) EnsureChat(ctx context.Context, req *EnsureChatRequest) (*EnsureChatResponse, error) {
	return invoke[EnsureChatResponse](ctx, c.cc, ChatServiceName, "EnsureChat", req)
}

func (c *ChatClient) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, ChatServiceName, "SendMessage", req)
}

func (c *ChatClient) ListMessages(ctx context.Context, req *SessionRequest) (*MessageList, error) {
	return invoke[MessageList](ctx, c.cc, ChatServiceName, "ListMessages", req)
}

func (c *ChatClient) ListUserSessions(ctx context.Context, req *ViewerRequest) (*SessionList, error) {
	return invoke[SessionList](ctx, c.cc, ChatServiceName, "ListUserSessions", req)
}

func (c *ChatClient) WatchMessages(ctx context.Context, req *SessionRequest) (*Stream[MessageList], error) {
	return watch[MessageList](ctx, c.cc, ChatServiceName, "WatchMessages", req)
}

func (c *ChatClient) WatchUserSessions(ctx context.Context, req *ViewerRequest) (*Stream[SessionList], error) {
	return watch[SessionList](ctx, c.cc, ChatServiceName, "WatchUserSessions", req)
}

type PinClient struct {
	cc grpc.ClientConnInterface
}

func (c *PinClient) CreatePin(ctx context.Context, req *CreatePinRequest) (*CreatePinResponse, error) {
	return invoke[CreatePinResponse](ctx, c.cc, PinServiceName, "CreatePin", req)
}

func (c *PinClient) DeletePin(ctx context.Context, req *DeletePinRequest) error {
	_, err := invoke[Empty](ctx, c.cc, PinServiceName, "DeletePin", req)
	return err
}

func (c *PinClient) ListPinsByOwner(ctx context.Context, req *OwnerRequest) (*PinList, error) {
	return invoke[PinList](ctx, c.cc, PinServiceName, "ListPinsByOwner", req)
}

func (c *PinClient) WatchAllPins(ctx context.Context) (*Stream[PinList], error) {
	return watch[PinList](ctx, c.cc, PinServiceName, "WatchAllPins", &Empty{})
}

func (c *PinClient) AddFavorite(ctx context.Context, req *FavoriteRequest) error {
	_, err := invoke[Empty](ctx, c.cc, PinServiceName, "AddFavorite", req)
	return err
}

func (c *PinClient) RemoveFavorite(ctx context.Context, req *FavoriteRequest) error {
	_, err := invoke[Empty](ctx, c.cc, PinServiceName, "RemoveFavorite", req)
	return err
}

func (c *PinClient) ListFavorites(ctx context.Context, req *ViewerRequest) (*FavoriteList, error) {
	return invoke[FavoriteList](ctx, c.cc, PinServiceName, "ListFavorites", req)
}

type MediaClient struct {
	cc grpc.ClientConnInterface
}

func (c *MediaClient) UploadAsset(ctx context.Context, req *UploadAssetRequest) (*UploadAssetResponse, error) {
	return invoke[UploadAssetResponse](ctx, c.cc, MediaServiceName, "UploadAsset", req)
}

func (c *MediaClient) SaveProfile(ctx context.Context, req *SaveProfileRequest) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, MediaServiceName, "SaveProfile", req)
}

func (c *MediaClient) GetProfile(ctx context.Context, req *UserRequest) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, MediaServiceName, "GetProfile", req)
}

func (c *MediaClient) ProfileCard(ctx context.Context, req *ProfileCardRequest) (*ProfileCardResponse, error) {
	return invoke[ProfileCardResponse](ctx, c.cc, MediaServiceName, "ProfileCard", req)
}
