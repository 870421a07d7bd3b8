package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"direct-chat/internal/models"
)

// MemoryStore is a dev fallback used when no database is configured.
// It implements ChatRepository, MessageRepository and ProfileDirectory with the
// same uniqueness and visibility rules as the Postgres schema.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	last     time.Time
	chats    map[string]models.Chat
	pairs    map[string]string // pair_key -> chat id
	members  map[string][]models.Membership
	messages map[string][]models.Message // chat id -> ordered by created_at
	profiles map[string]models.Profile
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used to stamp rows.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:      func() time.Time { return time.Now().UTC() },
		chats:    make(map[string]models.Chat),
		pairs:    make(map[string]string),
		members:  make(map[string][]models.Membership),
		messages: make(map[string][]models.Message),
		profiles: make(map[string]models.Profile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp returns a strictly increasing microsecond timestamp. Callers hold mu.
func (s *MemoryStore) stamp() time.Time {
	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}

// PutProfile registers a profile for the directory.
func (s *MemoryStore) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *MemoryStore) FindChatByPair(ctx context.Context, pairKey string) (models.Chat, error) {
	if err := ctx.Err(); err != nil {
		return models.Chat{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairs[pairKey]
	if !ok {
		return models.Chat{}, ErrChatNotFound
	}
	return s.chats[id], nil
}

func (s *MemoryStore) CreateChat(ctx context.Context, chat models.Chat, userA, userB string) (models.Chat, error) {
	if err := ctx.Err(); err != nil {
		return models.Chat{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pairs[chat.PairKey]; exists {
		return models.Chat{}, ErrPairConflict
	}
	chat.CreatedAt = s.stamp()
	s.chats[chat.ID] = chat
	s.pairs[chat.PairKey] = chat.ID
	s.members[chat.ID] = []models.Membership{
		{ChatID: chat.ID, UserID: userA, CreatedAt: chat.CreatedAt},
		{ChatID: chat.ID, UserID: userB, CreatedAt: chat.CreatedAt},
	}
	return chat, nil
}

func (s *MemoryStore) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	if err := ctx.Err(); err != nil {
		return models.Chat{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, nil
}

func (s *MemoryStore) GetMembership(ctx context.Context, chatID, userID string) (models.Membership, error) {
	if err := ctx.Err(); err != nil {
		return models.Membership{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members[chatID] {
		if m.UserID == userID {
			return m, nil
		}
	}
	return models.Membership{}, ErrMembershipNotFound
}

func (s *MemoryStore) GetPeerMembership(ctx context.Context, chatID, userID string) (models.Membership, error) {
	if err := ctx.Err(); err != nil {
		return models.Membership{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members[chatID] {
		if m.UserID != userID {
			return m, nil
		}
	}
	return models.Membership{}, ErrMembershipNotFound
}

func (s *MemoryStore) ListUserChats(ctx context.Context, userID string) ([]models.UserChat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UserChat
	for chatID, members := range s.members {
		for _, m := range members {
			if m.UserID == userID {
				out = append(out, models.UserChat{
					ChatID:        chatID,
					UserID:        userID,
					HorizonAt:     m.HorizonAt,
					ChatCreatedAt: s.chats[chatID].CreatedAt,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChatCreatedAt.Equal(out[j].ChatCreatedAt) {
			return out[i].ChatID > out[j].ChatID
		}
		return out[i].ChatCreatedAt.After(out[j].ChatCreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListPeerMemberships(ctx context.Context, chatIDs []string, userID string) ([]models.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Membership
	for _, chatID := range chatIDs {
		for _, m := range s.members[chatID] {
			if m.UserID != userID {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) SetHorizon(ctx context.Context, chatID, userID string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members[chatID]
	for i := range members {
		if members[i].UserID == userID {
			horizon := s.stamp()
			members[i].HorizonAt = &horizon
			return horizon, nil
		}
	}
	return time.Time{}, ErrMembershipNotFound
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[msg.ChatID]; !ok {
		return models.Message{}, ErrChatNotFound
	}
	msg.IsRead = false
	msg.CreatedAt = s.stamp()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	return msg, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, w MessageWindow) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[w.ChatID]
	out := []models.Message{}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if w.After != nil && !m.CreatedAt.After(*w.After) {
			break
		}
		if w.Before != nil && !m.CreatedAt.Before(*w.Before) {
			continue
		}
		out = append(out, m)
		if w.Limit > 0 && len(out) == w.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, chatID, readerID string, after *time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	n := 0
	for i := range msgs {
		if msgs[i].SenderID == readerID || msgs[i].IsRead {
			continue
		}
		if after != nil && !msgs[i].CreatedAt.After(*after) {
			continue
		}
		msgs[i].IsRead = true
		n++
	}
	return n, nil
}

func (s *MemoryStore) LastMessages(ctx context.Context, userID string, chatIDs []string) (map[string]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]models.Message, len(chatIDs))
	for _, chatID := range chatIDs {
		m, ok := s.membershipLocked(chatID, userID)
		if !ok {
			continue
		}
		msgs := s.messages[chatID]
		if len(msgs) == 0 {
			continue
		}
		if last := msgs[len(msgs)-1]; m.Visible(last.CreatedAt) {
			result[chatID] = last
		}
	}
	return result, nil
}

func (s *MemoryStore) UnreadCounts(ctx context.Context, userID string, chatIDs []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]int, len(chatIDs))
	for _, chatID := range chatIDs {
		m, ok := s.membershipLocked(chatID, userID)
		if !ok {
			continue
		}
		for _, msg := range s.messages[chatID] {
			if msg.SenderID != userID && !msg.IsRead && m.Visible(msg.CreatedAt) {
				result[chatID]++
			}
		}
	}
	return result, nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return models.Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (s *MemoryStore) BulkProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *MemoryStore) membershipLocked(chatID, userID string) (models.Membership, bool) {
	for _, m := range s.members[chatID] {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.Membership{}, false
}

var (
	_ ChatRepository    = (*MemoryStore)(nil)
	_ MessageRepository = (*MemoryStore)(nil)
	_ ProfileDirectory  = (*MemoryStore)(nil)
	_ ChatRepository    = (*ChatRepo)(nil)
	_ MessageRepository = (*MessageRepo)(nil)
	_ ProfileDirectory  = (*ProfileRepo)(nil)
)
