// Package rpc describes the daemon's gRPC services. Payloads are plain Go
// structs carried as google.protobuf.Struct messages, so the services need
// no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ChatServiceName  = "hanger.v1.ChatService"
	PinServiceName   = "hanger.v1.PinService"
	MediaServiceName = "hanger.v1.MediaService"
)

// MaxMessageSize bounds a single message. Profile saves carry several images.
const MaxMessageSize = 64 << 20

// Sender is the server side of a server-streaming call.
type Sender[T any] interface {
	Send(*T) error
	Context() context.Context
}

type ChatServer interface {
	EnsureChat(context.Context, *EnsureChatRequest) (*EnsureChatResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	ListMessages(context.Context, *SessionRequest) (*MessageList, error)
	ListUserSessions(context.Context, *ViewerRequest) (*SessionList, error)
	WatchMessages(*SessionRequest, Sender[MessageList]) error
	WatchUserSessions(*ViewerRequest, Sender[SessionList]) error
}

type PinServer interface {
	CreatePin(context.Context, *CreatePinRequest) (*CreatePinResponse, error)
	DeletePin(context.Context, *DeletePinRequest) (*Empty, error)
	ListPinsByOwner(context.Context, *OwnerRequest) (*PinList, error)
	WatchAllPins(*Empty, Sender[PinList]) error
	AddFavorite(context.Context, *FavoriteRequest) (*Empty, error)
	RemoveFavorite(context.Context, *FavoriteRequest) (*Empty, error)
	ListFavorites(context.Context, *ViewerRequest) (*FavoriteList, error)
}

type MediaServer interface {
	UploadAsset(context.Context, *UploadAssetRequest) (*UploadAssetResponse, error)
	SaveProfile(context.Context, *SaveProfileRequest) (*ProfileResponse, error)
	GetProfile(context.Context, *UserRequest) (*ProfileResponse, error)
	ProfileCard(context.Context, *ProfileCardRequest) (*ProfileCardResponse, error)
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChatServiceName, "EnsureChat", func(s any) func(context.Context, *EnsureChatRequest) (*EnsureChatResponse, error) {
			return s.(ChatServer).EnsureChat
		}),
		unary(ChatServiceName, "SendMessage", func(s any) func(context.Context, *SendMessageRequest) (*SendMessageResponse, error) {
			return s.(ChatServer).SendMessage
		}),
		unary(ChatServiceName, "ListMessages", func(s any) func(context.Context, *SessionRequest) (*MessageList, error) {
			return s.(ChatServer).ListMessages
		}),
		unary(ChatServiceName, "ListUserSessions", func(s any) func(context.Context, *ViewerRequest) (*SessionList, error) {
			return s.(ChatServer).ListUserSessions
		}),
	},
	Streams: []grpc.StreamDesc{
		serverStream("WatchMessages", func(s any) func(*SessionRequest, Sender[MessageList]) error {
			return s.(ChatServer).WatchMessages
		}),
		serverStream("WatchUserSessions", func(s any) func(*ViewerRequest, Sender[SessionList]) error {
			return s.(ChatServer).WatchUserSessions
		}),
	},
	Metadata: "hanger/v1/chat.proto",
}

var PinServiceDesc = grpc.ServiceDesc{
	ServiceName: PinServiceName,
	HandlerType: (*PinServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(PinServiceName, "CreatePin", func(s any) func(context.Context, *CreatePinRequest) (*CreatePinResponse, error) {
			return s.(PinServer).CreatePin
		}),
		unary(PinServiceName, "DeletePin", func(s any) func(context.Context, *DeletePinRequest) (*Empty, error) {
			return s.(PinServer).DeletePin
		}),
		unary(PinServiceName, "ListPinsByOwner", func(s any) func(context.Context, *OwnerRequest) (*PinList, error) {
			return s.(PinServer).ListPinsByOwner
		}),
		unary(PinServiceName, "AddFavorite", func(s any) func(context.Context, *FavoriteRequest) (*Empty, error) {
			return s.(PinServer).AddFavorite
		}),
		unary(PinServiceName, "RemoveFavorite", func(s any) func(context.Context, *FavoriteRequest) (*Empty, error) {
			return s.(PinServer).RemoveFavorite
		}),
		unary(PinServiceName, "ListFavorites", func(s any) func(context.Context, *ViewerRequest) (*FavoriteList, error) {
			return s.(PinServer).ListFavorites
		}),
	},
	Streams: []grpc.StreamDesc{
		serverStream("WatchAllPins", func(s any) func(*Empty, Sender[PinList]) error {
			return s.(PinServer).WatchAllPins
		}),
	},
	Metadata: "hanger/v1/pins.proto",
}

var MediaServiceDesc = grpc.ServiceDesc{
	ServiceName: MediaServiceName,
	HandlerType: (*MediaServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MediaServiceName, "UploadAsset", func(s any) func(context.Context, *UploadAssetRequest) (*UploadAssetResponse, error) {
			return s.(MediaServer).UploadAsset
		}),
		unary(MediaServiceName, "SaveProfile", func(s any) func(context.Context, *SaveProfileRequest) (*ProfileResponse, error) {
			return s.(MediaServer).SaveProfile
		}),
		unary(MediaServiceName, "GetProfile", func(s any) func(context.Context, *UserRequest) (*ProfileResponse, error) {
			return s.(MediaServer).GetProfile
		}),
		unary(MediaServiceName, "ProfileCard", func(s any) func(context.Context, *ProfileCardRequest) (*ProfileCardResponse, error) {
			return s.(MediaServer).ProfileCard
		}),
	},
	Metadata: "hanger/v1/media.proto",
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

func RegisterPinServiceServer(s grpc.ServiceRegistrar, srv PinServer) {
	s.RegisterService(&PinServiceDesc, srv)
}

func RegisterMediaServiceServer(s grpc.ServiceRegistrar, srv MediaServer) {
	s.RegisterService(&MediaServiceDesc, srv)
}

func unary[Req, Resp any](service, method string, pick func(srv any) func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, raw any) (any, error) {
				req := new(Req)
				if err := Decode(raw.(*structpb.Struct), req); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}
				resp, err := pick(srv)(ctx, req)
				if err != nil {
					return nil, err
				}
				out, err := Encode(resp)
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return out, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + method}
			return interceptor(ctx, in, info, call)
		},
	}
}

func serverStream[Req, Resp any](method string, pick func(srv any) func(*Req, Sender[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(structpb.Struct)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			req := new(Req)
			if err := Decode(in, req); err != nil {
				return status.Error(codes.InvalidArgument, err.Error())
			}
			return pick(srv)(req, &sender[Resp]{stream})
		},
	}
}

type sender[T any] struct {
	grpc.ServerStream
}

func (s *sender[T]) Send(v *T) error {
	out, err := Encode(v)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return s.SendMsg(out)
}
