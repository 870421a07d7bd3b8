package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"direct-chat/internal/models"
)

var messageColumns = []string{"id", "chat_id", "sender_id", "content", "kind", "is_attachment", "is_read", "created_at"}

// MessageWindow bounds a message listing. Nil bounds are open.
type MessageWindow struct {
	ChatID string
	After  *time.Time // exclusive, the reader's horizon
	Before *time.Time // exclusive, the pagination cursor
	Limit  int
}

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	// ListMessages returns messages inside the window, newest first.
	ListMessages(ctx context.Context, w MessageWindow) ([]models.Message, error)
	// MarkRead flips unread messages not sent by readerID and created after the horizon.
	MarkRead(ctx context.Context, chatID, readerID string, after *time.Time) (int, error)
	// LastMessages returns the newest message of each chat visible to userID.
	LastMessages(ctx context.Context, userID string, chatIDs []string) (map[string]models.Message, error)
	// UnreadCounts returns visible unread messages received by userID per chat.
	UnreadCounts(ctx context.Context, userID string, chatIDs []string) (map[string]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message. The database assigns created_at.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var stored models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, chat_id, sender_id, content, kind, is_attachment)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, chat_id, sender_id, content, kind, is_attachment, is_read, created_at`,
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.Kind, msg.IsAttachment).
		StructScan(&stored)
	if isForeignKeyViolation(err) || isInvalidID(err) {
		return models.Message{}, ErrChatNotFound
	}
	return stored, err
}

// ListMessages returns a newest-first page inside the window. Rows sharing a
// created_at are ordered by id so a page is stable across repeated reads.
func (r *MessageRepo) ListMessages(ctx context.Context, w MessageWindow) ([]models.Message, error) {
	q := From("messages").Eq("chat_id", w.ChatID)
	if w.After != nil {
		q.Gt("created_at", *w.After)
	}
	if w.Before != nil {
		q.Lt("created_at", *w.Before)
	}
	query, args := q.Order("created_at", true).Order("id", true).Limit(w.Limit).Select(messageColumns...)

	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// MarkRead performs the conditional batch update and reports how many rows changed.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID, readerID string, after *time.Time) (int, error) {
	q := From("messages").Eq("chat_id", chatID).Neq("sender_id", readerID).NotTrue("is_read")
	if after != nil {
		q.Gt("created_at", *after)
	}
	query, args := q.Update("is_read", true)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// LastMessages resolves the last visible message for all chats in a single query.
func (r *MessageRepo) LastMessages(ctx context.Context, userID string, chatIDs []string) (map[string]models.Message, error) {
	result := make(map[string]models.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return result, nil
	}
	query := `SELECT DISTINCT ON (m.chat_id) m.id, m.chat_id, m.sender_id, m.content, m.kind, m.is_attachment, m.is_read, m.created_at
        FROM messages m
        JOIN chat_members cm ON cm.chat_id = m.chat_id AND cm.user_id = $1
        WHERE m.chat_id = ANY($2)
        AND (cm.horizon_at IS NULL OR m.created_at > cm.horizon_at)
        ORDER BY m.chat_id, m.created_at DESC, m.id DESC`
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, userID, pq.Array(chatIDs)); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		result[m.ChatID] = m
	}
	return result, nil
}

// UnreadCounts counts visible unread received messages grouped by chat.
func (r *MessageRepo) UnreadCounts(ctx context.Context, userID string, chatIDs []string) (map[string]int, error) {
	result := make(map[string]int, len(chatIDs))
	if len(chatIDs) == 0 {
		return result, nil
	}
	query := `SELECT m.chat_id, COUNT(*) AS unread
        FROM messages m
        JOIN chat_members cm ON cm.chat_id = m.chat_id AND cm.user_id = $1
        WHERE m.chat_id = ANY($2)
        AND m.sender_id <> $1
        AND m.is_read IS NOT TRUE
        AND (cm.horizon_at IS NULL OR m.created_at > cm.horizon_at)
        GROUP BY m.chat_id`
	rows, err := r.db.QueryxContext(ctx, query, userID, pq.Array(chatIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chatID string
			count  int
		)
		if err := rows.Scan(&chatID, &count); err != nil {
			return nil, err
		}
		result[chatID] = count
	}
	return result, rows.Err()
}
