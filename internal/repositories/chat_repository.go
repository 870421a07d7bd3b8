package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"direct-chat/internal/models"
)

var (
	ErrChatNotFound       = errors.New("chat not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrPairConflict       = errors.New("chat already exists for user pair")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
	chatsPairKeyIndex     = "chats_pair_key_key"
)

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	FindChatByPair(ctx context.Context, pairKey string) (models.Chat, error)
	// CreateChat inserts the chat and both memberships atomically.
	// It returns ErrPairConflict when another chat already owns the pair key.
	CreateChat(ctx context.Context, chat models.Chat, userA, userB string) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	GetMembership(ctx context.Context, chatID, userID string) (models.Membership, error)
	GetPeerMembership(ctx context.Context, chatID, userID string) (models.Membership, error)
	ListUserChats(ctx context.Context, userID string) ([]models.UserChat, error)
	ListPeerMemberships(ctx context.Context, chatIDs []string, userID string) ([]models.Membership, error)
	// SetHorizon moves the user's horizon to the current time and returns it.
	SetHorizon(ctx context.Context, chatID, userID string) (time.Time, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// FindChatByPair returns the chat owning the normalized pair key.
func (r *ChatRepo) FindChatByPair(ctx context.Context, pairKey string) (models.Chat, error) {
	var chat models.Chat
	query, args := From("chats").Eq("pair_key", pairKey).Select("id", "pair_key", "created_at")
	err := r.db.GetContext(ctx, &chat, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// CreateChat inserts a chat row and its two memberships in one transaction.
func (r *ChatRepo) CreateChat(ctx context.Context, chat models.Chat, userA, userB string) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowxContext(ctx, `INSERT INTO chats (id, pair_key) VALUES ($1, $2) RETURNING id, pair_key, created_at`, chat.ID, chat.PairKey).
		StructScan(&chat)
	if err != nil {
		if isUniqueViolation(err, chatsPairKeyIndex) {
			return models.Chat{}, ErrPairConflict
		}
		return models.Chat{}, err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id, created_at) VALUES ($1, $2, $4), ($1, $3, $4)`,
		chat.ID, userA, userB, chat.CreatedAt); err != nil {
		return models.Chat{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	query, args := From("chats").Eq("id", chatID).Select("id", "pair_key", "created_at")
	err := r.db.GetContext(ctx, &chat, query, args...)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetMembership fetches the caller's membership row.
func (r *ChatRepo) GetMembership(ctx context.Context, chatID, userID string) (models.Membership, error) {
	var m models.Membership
	query, args := From("chat_members").Eq("chat_id", chatID).Eq("user_id", userID).
		Select("chat_id", "user_id", "horizon_at", "created_at")
	err := r.db.GetContext(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return models.Membership{}, ErrMembershipNotFound
	}
	return m, err
}

// GetPeerMembership fetches the membership of the other participant.
func (r *ChatRepo) GetPeerMembership(ctx context.Context, chatID, userID string) (models.Membership, error) {
	var m models.Membership
	query, args := From("chat_members").Eq("chat_id", chatID).Neq("user_id", userID).Limit(1).
		Select("chat_id", "user_id", "horizon_at", "created_at")
	err := r.db.GetContext(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return models.Membership{}, ErrMembershipNotFound
	}
	return m, err
}

// ListUserChats returns every membership of the user, newest chat first.
func (r *ChatRepo) ListUserChats(ctx context.Context, userID string) ([]models.UserChat, error) {
	query := `SELECT cm.chat_id, cm.user_id, cm.horizon_at, c.created_at AS chat_created_at
        FROM chat_members cm
        JOIN chats c ON c.id = cm.chat_id
        WHERE cm.user_id = $1
        ORDER BY c.created_at DESC, c.id DESC`
	var rows []models.UserChat
	err := r.db.SelectContext(ctx, &rows, query, userID)
	return rows, err
}

// ListPeerMemberships returns the other participant's membership for each chat in one query.
func (r *ChatRepo) ListPeerMemberships(ctx context.Context, chatIDs []string, userID string) ([]models.Membership, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}
	query, args := From("chat_members").In("chat_id", chatIDs).Neq("user_id", userID).
		Select("chat_id", "user_id", "horizon_at", "created_at")
	var rows []models.Membership
	err := r.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

// SetHorizon stamps the user's horizon with the database clock, never moving it backwards.
func (r *ChatRepo) SetHorizon(ctx context.Context, chatID, userID string) (time.Time, error) {
	var horizon time.Time
	err := r.db.GetContext(ctx, &horizon, `UPDATE chat_members
        SET horizon_at = GREATEST(COALESCE(horizon_at, clock_timestamp()), clock_timestamp())
        WHERE chat_id = $1 AND user_id = $2
        RETURNING horizon_at`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return time.Time{}, ErrMembershipNotFound
	}
	return horizon, err
}

// isUniqueViolation reports whether err is a unique violation, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// isInvalidID reports a malformed uuid literal; such an id cannot name any row.
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgInvalidText
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation
}
