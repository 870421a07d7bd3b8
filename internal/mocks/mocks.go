package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"direct-chat/internal/models"
	"direct-chat/internal/repositories"
	"direct-chat/internal/storage"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) FindChatByPair(ctx context.Context, pairKey string) (models.Chat, error) {
	args := m.Called(ctx, pairKey)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, chat models.Chat, userA, userB string) (models.Chat, error) {
	args := m.Called(ctx, chat, userA, userB)
	var created models.Chat
	if val := args.Get(0); val != nil {
		created = val.(models.Chat)
	}
	return created, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetMembership(ctx context.Context, chatID, userID string) (models.Membership, error) {
	args := m.Called(ctx, chatID, userID)
	var membership models.Membership
	if val := args.Get(0); val != nil {
		membership = val.(models.Membership)
	}
	return membership, args.Error(1)
}

func (m *ChatRepositoryMock) GetPeerMembership(ctx context.Context, chatID, userID string) (models.Membership, error) {
	args := m.Called(ctx, chatID, userID)
	var membership models.Membership
	if val := args.Get(0); val != nil {
		membership = val.(models.Membership)
	}
	return membership, args.Error(1)
}

func (m *ChatRepositoryMock) ListUserChats(ctx context.Context, userID string) ([]models.UserChat, error) {
	args := m.Called(ctx, userID)
	var list []models.UserChat
	if val := args.Get(0); val != nil {
		list = val.([]models.UserChat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) ListPeerMemberships(ctx context.Context, chatIDs []string, userID string) ([]models.Membership, error) {
	args := m.Called(ctx, chatIDs, userID)
	var list []models.Membership
	if val := args.Get(0); val != nil {
		list = val.([]models.Membership)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) SetHorizon(ctx context.Context, chatID, userID string) (time.Time, error) {
	args := m.Called(ctx, chatID, userID)
	var horizon time.Time
	if val := args.Get(0); val != nil {
		horizon = val.(time.Time)
	}
	return horizon, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, w repositories.MessageWindow) ([]models.Message, error) {
	args := m.Called(ctx, w)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID, readerID string, after *time.Time) (int, error) {
	args := m.Called(ctx, chatID, readerID, after)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) LastMessages(ctx context.Context, userID string, chatIDs []string) (map[string]models.Message, error) {
	args := m.Called(ctx, userID, chatIDs)
	var result map[string]models.Message
	if val := args.Get(0); val != nil {
		result = val.(map[string]models.Message)
	}
	return result, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCounts(ctx context.Context, userID string, chatIDs []string) (map[string]int, error) {
	args := m.Called(ctx, userID, chatIDs)
	var result map[string]int
	if val := args.Get(0); val != nil {
		result = val.(map[string]int)
	}
	return result, args.Error(1)
}

type ProfileDirectoryMock struct {
	mock.Mock
}

func (m *ProfileDirectoryMock) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	args := m.Called(ctx, userID)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

func (m *ProfileDirectoryMock) BulkProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	args := m.Called(ctx, ids)
	var result map[string]models.Profile
	if val := args.Get(0); val != nil {
		result = val.(map[string]models.Profile)
	}
	return result, args.Error(1)
}

type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, bucket, key, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *BlobStoreMock) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *BlobStoreMock) PublicURL(bucket, key string) string {
	args := m.Called(bucket, key)
	return args.String(0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastChatMessage(chatID string, msg models.Message) {
	m.Called(chatID, msg)
}

func (m *BroadcasterMock) BroadcastRead(chatID, readerID string, count int) {
	m.Called(chatID, readerID, count)
}

var (
	_ repositories.ChatRepository    = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.ProfileDirectory  = (*ProfileDirectoryMock)(nil)
	_ storage.BlobStore              = (*BlobStoreMock)(nil)
)
