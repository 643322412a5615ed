// Package chat implements two-party chat sessions on top of the shared store:
// deterministic session ids, message append, and the per-user summary index.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/metrics"
	"github.com/matheus3301/hanger/internal/store"
	"go.uber.org/zap"
)

// Synchronizer creates chat sessions, appends messages and keeps each
// participant's summary index in step with the messages.
type Synchronizer struct {
	db      *store.DB
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSynchronizer creates a new chat synchronizer.
func NewSynchronizer(db *store.DB, m *metrics.Metrics, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		db:      db,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Ensure returns the session id shared by selfID and otherID, creating the
// session record on first contact, and refreshes both participants' summaries.
//
// Creation is read-then-write. Two concurrent first contacts for the same pair
// may both write the session record; the id is deterministic, so the only
// effect is that the later write wins on the metadata.
func (s *Synchronizer) Ensure(ctx context.Context, selfID, otherID string) (string, error) {
	if selfID == "" {
		return "", apperr.Invalid("self_id", "must not be empty")
	}
	if otherID == "" {
		return "", apperr.Invalid("other_id", "must not be empty")
	}

	id := SessionID(selfID, otherID)
	found, err := s.db.Get(ctx, sessionPath(id), nil)
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	if !found {
		sess := Session{
			CreatedAt:    s.now().UnixMilli(),
			Participants: map[string]bool{selfID: true, otherID: true},
		}
		if err := s.db.Set(ctx, sessionPath(id), sess); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		s.logger.Info("chat session created", zap.String("session_id", id))
	}

	// Merge rather than replace, so an existing last message preview survives.
	now := s.now().UnixMilli()
	if err := s.db.MultiUpdate(ctx, map[string]store.Patch{
		summaryPath(selfID, id):  {"session_id": id, "other_user_id": otherID, "updated_at": now},
		summaryPath(otherID, id): {"session_id": id, "other_user_id": selfID, "updated_at": now},
	}); err != nil {
		return "", fmt.Errorf("index session: %w", err)
	}
	return id, nil
}

// Append stores a message and then propagates it to both participants'
// summaries. The two writes are independent: if the summary update fails the
// message is still durable, and Append returns it together with the error.
func (s *Synchronizer) Append(ctx context.Context, sessionID, fromID, toID, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid("text", "must not be empty")
	}
	if fromID == "" || toID == "" || SessionID(fromID, toID) != sessionID {
		return nil, apperr.Invalid("session_id", fmt.Sprintf("%q is not the session of %q and %q", sessionID, fromID, toID))
	}

	msg := &Message{
		SessionID: sessionID,
		From:      fromID,
		To:        toID,
		Text:      text,
		CreatedAt: s.now().UnixMilli(),
	}
	id, err := s.db.Add(ctx, messagesPath(sessionID), msg)
	if err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}
	msg.ID = id
	s.metrics.MessageSent()

	ts := msg.CreatedAt
	if err := s.db.MultiUpdate(ctx, map[string]store.Patch{
		summaryPath(fromID, sessionID): {"last_text": text, "last_ts": ts, "updated_at": ts},
		summaryPath(toID, sessionID):   {"last_text": text, "last_ts": ts, "updated_at": ts},
	}); err != nil {
		s.logger.Error("summary update failed", zap.Error(err), zap.String("session_id", sessionID), zap.String("msg_id", id))
		return msg, fmt.Errorf("update summaries: %w", err)
	}
	return msg, nil
}

// Messages returns the current messages of a session, oldest first.
// Messages with the same timestamp keep insertion order.
func (s *Synchronizer) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	docs, err := s.db.Query(ctx, store.Query{Collection: messagesPath(sessionID)})
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(docs))
	for _, d := range docs {
		var m Message
		if err := d.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", d.ID, err)
		}
		m.ID = d.ID
		m.SessionID = sessionID
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt != msgs[j].CreatedAt {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

// UserSessions returns a viewer's session summaries, most recently touched first.
func (s *Synchronizer) UserSessions(ctx context.Context, viewerID string) ([]Summary, error) {
	docs, err := s.db.Query(ctx, store.Query{Collection: summariesPath(viewerID)})
	if err != nil {
		return nil, err
	}
	sums := make([]Summary, 0, len(docs))
	for _, d := range docs {
		var sum Summary
		if err := d.Decode(&sum); err != nil {
			return nil, fmt.Errorf("decode summary %s: %w", d.ID, err)
		}
		if sum.SessionID == "" {
			sum.SessionID = d.ID
		}
		sums = append(sums, sum)
	}
	sort.SliceStable(sums, func(i, j int) bool {
		ti, tj := sums[i].touched(), sums[j].touched()
		if ti != tj {
			return ti > tj
		}
		return sums[i].SessionID < sums[j].SessionID
	})
	return sums, nil
}

// StreamMessages delivers the full, ordered message list of a session now and
// after every change. Call the returned function to stop.
func (s *Synchronizer) StreamMessages(sessionID string) (<-chan []Message, func()) {
	return store.Watch(s.db, messagesPath(sessionID), func(ctx context.Context) ([]Message, error) {
		return s.Messages(ctx, sessionID)
	})
}

// StreamUserSessions delivers a viewer's ordered summaries now and after every
// change. Call the returned function to stop.
func (s *Synchronizer) StreamUserSessions(viewerID string) (<-chan []Summary, func()) {
	return store.Watch(s.db, summariesPath(viewerID), func(ctx context.Context) ([]Summary, error) {
		return s.UserSessions(ctx, viewerID)
	})
}
