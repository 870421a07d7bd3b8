package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"
	"direct-chat/internal/observability"
	"direct-chat/internal/repositories"
)

// ResolveChat returns the chat between userA and userB, creating it on first use.
// Creation relies on the pair-key uniqueness constraint: the loser of a concurrent
// create re-reads the winner's chat instead of failing.
func (s *ChatService) ResolveChat(ctx context.Context, userA, userB string) (chat models.Chat, err error) {
	const op = "chats.resolve"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return models.Chat{}, apperr.Validation(op, "both user ids are required")
	}
	if userA == userB {
		return models.Chat{}, apperr.Validation(op, "cannot start a chat with yourself")
	}

	key := models.PairKey(userA, userB)
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		chat, err = s.chats.FindChatByPair(ctx, key)
		if err == nil {
			span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.Bool("chat.created", false))
			return chat, nil
		}
		if !errors.Is(err, repositories.ErrChatNotFound) {
			return models.Chat{}, apperr.UpstreamData(op, "", err)
		}

		chat, err = s.chats.CreateChat(ctx, models.Chat{ID: s.newID(), PairKey: key}, userA, userB)
		if err == nil {
			observability.IncChatsCreated()
			span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.Bool("chat.created", true))
			s.publish(ctx, "chat.created", map[string]any{
				"chat_id": chat.ID,
				"members": []string{userA, userB},
			})
			return chat, nil
		}
		if !errors.Is(err, repositories.ErrPairConflict) {
			return models.Chat{}, apperr.UpstreamData(op, "", err)
		}
		observability.IncChatCreateConflict()
	}

	return models.Chat{}, &apperr.Error{Op: op, Kind: apperr.ErrConflict, Err: errors.New("chat pair kept conflicting")}
}
