package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"
)

// ListChats builds the chat list of userID, newest chat first.
//
// A chat the user deleted is listed again only once a message arrives after
// the horizon. Chats whose peer membership or peer profile is missing are
// skipped. Every fan-out step is one batched query regardless of chat count.
func (s *ChatService) ListChats(ctx context.Context, userID string) (summaries []models.ChatSummary, err error) {
	const op = "chats.list"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, apperr.Validation(op, "user id is required")
	}

	userChats, err := s.chats.ListUserChats(ctx, userID)
	if err != nil {
		return nil, apperr.UpstreamData(op, "", err)
	}
	summaries = []models.ChatSummary{}
	if len(userChats) == 0 {
		return summaries, nil
	}

	chatIDs := make([]string, 0, len(userChats))
	for _, uc := range userChats {
		chatIDs = append(chatIDs, uc.ChatID)
	}

	peers, err := s.chats.ListPeerMemberships(ctx, chatIDs, userID)
	if err != nil {
		return nil, apperr.UpstreamData(op, "", err)
	}
	peerByChat := make(map[string]string, len(peers))
	peerIDs := make([]string, 0, len(peers))
	seen := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		peerByChat[p.ChatID] = p.UserID
		if _, ok := seen[p.UserID]; !ok {
			seen[p.UserID] = struct{}{}
			peerIDs = append(peerIDs, p.UserID)
		}
	}

	lastByChat, err := s.messages.LastMessages(ctx, userID, chatIDs)
	if err != nil {
		return nil, apperr.UpstreamData(op, "", err)
	}
	unread, err := s.messages.UnreadCounts(ctx, userID, chatIDs)
	if err != nil {
		return nil, apperr.UpstreamData(op, "", err)
	}
	profiles, err := s.profiles.BulkProfiles(ctx, peerIDs)
	if err != nil {
		return nil, apperr.UpstreamData(op, "", err)
	}

	for _, uc := range userChats {
		last, hasLast := lastByChat[uc.ChatID]
		if uc.HorizonAt != nil && !hasLast {
			continue
		}
		peerID, ok := peerByChat[uc.ChatID]
		if !ok {
			continue
		}
		profile, ok := profiles[peerID]
		if !ok {
			continue
		}

		summary := models.ChatSummary{
			ChatID:        uc.ChatID,
			PeerID:        peerID,
			PeerUsername:  profile.Username,
			PeerAvatarURL: s.avatarURL(profile),
			UnreadCount:   unread[uc.ChatID],
			CreatedAt:     uc.ChatCreatedAt,
		}
		if hasLast {
			kind, sender, at := last.Kind, last.SenderID, last.CreatedAt
			content := last.Content
			summary.LastMessageContent = &content
			summary.LastMessageKind = &kind
			summary.LastSenderID = &sender
			summary.LastMessageAt = &at
		}
		summaries = append(summaries, summary)
	}

	span.SetAttributes(attribute.Int("chats.count", len(summaries)))
	return summaries, nil
}

// GetPeer returns the other participant of the chat with their display info.
func (s *ChatService) GetPeer(ctx context.Context, chatID, userID string) (peer models.Peer, err error) {
	const op = "chats.peer"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("chat.id", chatID))

	if _, err := s.membership(ctx, op, chatID, userID); err != nil {
		return models.Peer{}, err
	}
	pm, err := s.chats.GetPeerMembership(ctx, chatID, userID)
	if err != nil {
		if isNotFound(err) {
			return models.Peer{}, apperr.NotFound(op, chatID, err)
		}
		return models.Peer{}, apperr.UpstreamData(op, chatID, err)
	}
	profile, err := s.profiles.GetProfile(ctx, pm.UserID)
	if err != nil {
		if isNotFound(err) {
			return models.Peer{}, apperr.NotFound(op, chatID, err)
		}
		return models.Peer{}, apperr.UpstreamData(op, chatID, err)
	}
	return models.Peer{PeerID: pm.UserID, Username: profile.Username, AvatarURL: s.avatarURL(profile)}, nil
}

// DeleteChatForUser hides every message up to now from userID. The peer's view
// is unaffected and no rows are removed. Deleting again moves the horizon forward.
func (s *ChatService) DeleteChatForUser(ctx context.Context, userID, chatID string) (horizon time.Time, err error) {
	const op = "chats.delete_for_user"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("chat.id", chatID))

	horizon, err = s.chats.SetHorizon(ctx, chatID, userID)
	if err != nil {
		if isNotFound(err) {
			return time.Time{}, apperr.NotFound(op, chatID, err)
		}
		return time.Time{}, apperr.UpstreamData(op, chatID, err)
	}
	s.publish(ctx, "chat.deleted", map[string]any{
		"chat_id":    chatID,
		"user_id":    userID,
		"horizon_at": horizon,
	})
	return horizon, nil
}

func (s *ChatService) avatarURL(p models.Profile) string {
	if p.Avatar == nil || *p.Avatar == "" {
		return ""
	}
	return s.blobs.PublicURL(s.buckets.Avatars, *p.Avatar)
}
