package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"
	"direct-chat/internal/observability"
	"direct-chat/internal/repositories"
)

// ListMessages returns up to limit messages visible to userID, newest first,
// strictly older than cursor when one is given. As a side effect every unread
// message from the peer inside the user's visibility window is marked read.
// The returned page reflects read state as it was before marking.
func (s *ChatService) ListMessages(ctx context.Context, chatID, userID string, cursor *time.Time, limit int) (msgs []models.Message, err error) {
	const op = "messages.list"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("chat.id", chatID))

	membership, err := s.membership(ctx, op, chatID, userID)
	if err != nil {
		return nil, err
	}

	msgs, err = s.messages.ListMessages(ctx, repositories.MessageWindow{
		ChatID: chatID,
		After:  membership.HorizonAt,
		Before: cursor,
		Limit:  s.clampLimit(limit),
	})
	if err != nil {
		return nil, apperr.UpstreamData(op, chatID, err)
	}

	if _, err := s.markRead(ctx, op, membership); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("messages.count", len(msgs)))
	return msgs, nil
}

// MarkAsRead marks every unread message the user received in the chat, inside
// their visibility window, as read. It returns how many messages changed state.
func (s *ChatService) MarkAsRead(ctx context.Context, chatID, userID string) (n int, err error) {
	const op = "messages.mark_read"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("chat.id", chatID))

	membership, err := s.membership(ctx, op, chatID, userID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, op, membership)
}

// markRead runs the idempotent batch update, retrying once on failure.
func (s *ChatService) markRead(ctx context.Context, op string, m models.Membership) (int, error) {
	var (
		n   int
		err error
	)
	for attempt := 0; attempt < markReadAttempts; attempt++ {
		n, err = s.messages.MarkRead(ctx, m.ChatID, m.UserID, m.HorizonAt)
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return 0, apperr.UpstreamData(op, m.ChatID, err)
	}
	if n > 0 {
		observability.AddMessagesMarkedRead(n)
		if s.broadcaster != nil {
			s.broadcaster.BroadcastRead(m.ChatID, m.UserID, n)
		}
		s.publish(ctx, "chat.read", map[string]any{
			"chat_id":   m.ChatID,
			"reader_id": m.UserID,
			"count":     n,
		})
	}
	return n, nil
}

// SendMessage appends a TEXT message. Sends are not idempotent and are never retried here.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID, content string) (msg models.Message, err error) {
	const op = "messages.send"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("chat.id", chatID))

	if strings.TrimSpace(chatID) == "" || strings.TrimSpace(senderID) == "" {
		return models.Message{}, apperr.Validation(op, "chat id and sender id are required")
	}
	if strings.TrimSpace(content) == "" {
		return models.Message{}, apperr.Validation(op, "content is required")
	}

	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return models.Message{}, apperr.NotFound(op, chatID, err)
		}
		return models.Message{}, apperr.UpstreamData(op, chatID, err)
	}
	if _, err := s.membership(ctx, op, chatID, senderID); err != nil {
		return models.Message{}, err
	}

	return s.appendMessage(ctx, op, models.Message{
		ID:       s.newID(),
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
		Kind:     models.KindText,
	})
}

func (s *ChatService) appendMessage(ctx context.Context, op string, msg models.Message) (models.Message, error) {
	stored, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return models.Message{}, apperr.NotFound(op, msg.ChatID, err)
		}
		return models.Message{}, apperr.UpstreamData(op, msg.ChatID, err)
	}

	observability.IncMessagesSent(string(stored.Kind))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastChatMessage(stored.ChatID, stored)
	}
	s.publish(ctx, "message.created", map[string]any{
		"chat_id":    stored.ChatID,
		"message_id": stored.ID,
		"sender_id":  stored.SenderID,
		"kind":       stored.Kind,
		"created_at": stored.CreatedAt,
	})
	return stored, nil
}

// membership loads the caller's membership, mapping absence to NotFound.
func (s *ChatService) membership(ctx context.Context, op, chatID, userID string) (models.Membership, error) {
	m, err := s.chats.GetMembership(ctx, chatID, userID)
	if err != nil {
		if isNotFound(err) {
			return models.Membership{}, apperr.NotFound(op, chatID, err)
		}
		return models.Membership{}, apperr.UpstreamData(op, chatID, err)
	}
	return m, nil
}
