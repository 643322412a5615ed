package api

import (
	"context"

	"github.com/matheus3301/hanger/internal/chat"
	"github.com/matheus3301/hanger/internal/rpc"
	"go.uber.org/zap"
)

// ChatService implements the ChatService gRPC service.
type ChatService struct {
	sync   *chat.Synchronizer
	logger *zap.Logger
}

// NewChatService creates a new chat service backed by the synchronizer.
func NewChatService(s *chat.Synchronizer, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{sync: s, logger: logger}
}

func (s *ChatService) EnsureChat(ctx context.Context, req *rpc.EnsureChatRequest) (*rpc.EnsureChatResponse, error) {
	id, err := s.sync.Ensure(ctx, req.SelfID, req.OtherID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.EnsureChatResponse{SessionID: id}, nil
}

func (s *ChatService) SendMessage(ctx context.Context, req *rpc.SendMessageRequest) (*rpc.SendMessageResponse, error) {
	msg, err := s.sync.Append(ctx, req.SessionID, req.FromID, req.ToID, req.Text)
	if err != nil {
		if msg != nil {
			// The message is durable; only its summaries lag behind.
			s.logger.Warn("message stored without summary update",
				zap.String("session_id", req.SessionID), zap.String("msg_id", msg.ID), zap.Error(err))
		}
		return nil, toStatus(err)
	}
	return &rpc.SendMessageResponse{Message: messageToRPC(*msg)}, nil
}

func (s *ChatService) ListMessages(ctx context.Context, req *rpc.SessionRequest) (*rpc.MessageList, error) {
	msgs, err := s.sync.Messages(ctx, req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return messagesToRPC(req.SessionID, msgs), nil
}

func (s *ChatService) ListUserSessions(ctx context.Context, req *rpc.ViewerRequest) (*rpc.SessionList, error) {
	sums, err := s.sync.UserSessions(ctx, req.ViewerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return summariesToRPC(req.ViewerID, sums), nil
}

func (s *ChatService) WatchMessages(req *rpc.SessionRequest, out rpc.Sender[rpc.MessageList]) error {
	ch, stop := s.sync.StreamMessages(req.SessionID)
	return forward(out, ch, stop, func(msgs []chat.Message) *rpc.MessageList {
		return messagesToRPC(req.SessionID, msgs)
	})
}

func (s *ChatService) WatchUserSessions(req *rpc.ViewerRequest, out rpc.Sender[rpc.SessionList]) error {
	ch, stop := s.sync.StreamUserSessions(req.ViewerID)
	return forward(out, ch, stop, func(sums []chat.Summary) *rpc.SessionList {
		return summariesToRPC(req.ViewerID, sums)
	})
}

func messageToRPC(m chat.Message) rpc.Message {
	return rpc.Message{
		ID:            m.ID,
		SessionID:     m.SessionID,
		From:          m.From,
		To:            m.To,
		Text:          m.Text,
		CreatedAtUnix: m.CreatedAt,
	}
}

func messagesToRPC(sessionID string, msgs []chat.Message) *rpc.MessageList {
	out := &rpc.MessageList{SessionID: sessionID, Messages: make([]rpc.Message, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, messageToRPC(m))
	}
	return out
}

func summariesToRPC(viewerID string, sums []chat.Summary) *rpc.SessionList {
	out := &rpc.SessionList{ViewerID: viewerID, Sessions: make([]rpc.SessionSummary, 0, len(sums))}
	for _, s := range sums {
		out.Sessions = append(out.Sessions, rpc.SessionSummary(s))
	}
	return out
}
