package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"
	"direct-chat/internal/services"
	"direct-chat/internal/telemetry"
)

// ChatEngine is the chat behaviour the HTTP surface adapts.
type ChatEngine interface {
	ResolveChat(ctx context.Context, userA, userB string) (models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	ListMessages(ctx context.Context, chatID, userID string, cursor *time.Time, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, chatID, senderID, content string) (models.Message, error)
	SendAttachment(ctx context.Context, in services.Attachment) (models.Message, error)
	MarkAsRead(ctx context.Context, chatID, userID string) (int, error)
	GetPeer(ctx context.Context, chatID, userID string) (models.Peer, error)
	DeleteChatForUser(ctx context.Context, userID, chatID string) (time.Time, error)
}

// ChatHandler manages private chat endpoints.
type ChatHandler struct {
	engine         ChatEngine
	audit          *telemetry.AuditEmitter
	maxUploadBytes int64
}

// NewChatHandler builds a ChatHandler. audit may be nil.
func NewChatHandler(engine ChatEngine, audit *telemetry.AuditEmitter, maxUploadBytes int64) *ChatHandler {
	return &ChatHandler{engine: engine, audit: audit, maxUploadBytes: maxUploadBytes}
}

// Register mounts the chat routes on group.
func (h *ChatHandler) Register(group gin.IRoutes) {
	group.GET("/chats", h.ListChats)
	group.POST("/chats", h.StartChat)
	group.GET("/chats/:chat_id/messages", h.GetChatMessages)
	group.POST("/chats/:chat_id/messages", h.PostChatMessage)
	group.POST("/chats/:chat_id/attachments", h.PostAttachment)
	group.POST("/chats/:chat_id/read", h.MarkAsRead)
	group.GET("/chats/:chat_id/peer", h.GetPeer)
	group.DELETE("/chats/:chat_id/me", h.DeleteChatForMe)
}

// ListChats returns the chats visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.engine.ListChats(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat returns the chat with the peer, creating it on first contact.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		PeerID string `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.engine.ResolveChat(c.Request.Context(), c.GetString("userID"), req.PeerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "created_at": chat.CreatedAt})
}

// GetChatMessages returns one page of messages, newest first, and marks the
// caller's unread messages as read.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var cursor *time.Time
	if raw := c.Query("cursor"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		cursor = &ts
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	msgs, err := h.engine.ListMessages(c.Request.Context(), chatID, c.GetString("userID"), cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"messages": msgs}
	if len(msgs) > 0 {
		resp["next_cursor"] = msgs[len(msgs)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, resp)
}

// PostChatMessage stores a text message.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.engine.SendMessage(c.Request.Context(), chatID, c.GetString("userID"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// PostAttachment accepts a multipart "file" field and sends it as an IMAGE or FILE message.
func (h *ChatHandler) PostAttachment(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	var reader io.Reader = f
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(f, h.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.engine.SendAttachment(c.Request.Context(), services.Attachment{
		ChatID:       chatID,
		SenderID:     userID,
		Data:         data,
		ContentType:  header.Header.Get("Content-Type"),
		OriginalName: header.Filename,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit.EmitForChat(c.Request.Context(), "INFO", "attachment uploaded: "+string(msg.Kind), requestIDFromContext(c), userIDFromContext(c), chatID)
	c.JSON(http.StatusCreated, msg)
}

// MarkAsRead marks every unread message the caller received in the chat.
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	n, err := h.engine.MarkAsRead(c.Request.Context(), chatID, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

// GetPeer returns the other participant.
func (h *ChatHandler) GetPeer(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	peer, err := h.engine.GetPeer(c.Request.Context(), chatID, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, peer)
}

// DeleteChatForMe hides the chat history for the requester only.
func (h *ChatHandler) DeleteChatForMe(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	horizon, err := h.engine.DeleteChatForUser(c.Request.Context(), c.GetString("userID"), chatID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit.EmitForChat(c.Request.Context(), "INFO", "chat deleted for user", requestIDFromContext(c), userIDFromContext(c), chatID)
	c.JSON(http.StatusOK, gin.H{"horizon_set_at": horizon})
}

// chatIDParam reads the chat_id path parameter. Chat ids are uuids, so any
// other value names no chat and is answered with 404 here.
func chatIDParam(c *gin.Context) (string, bool) {
	chatID := c.Param("chat_id")
	if _, err := uuid.Parse(chatID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return "", false
	}
	return chatID, true
}

// writeError maps engine error kinds to HTTP statuses. Upstream failures are
// attached to the gin context for logging and never echoed to the client.
func writeError(c *gin.Context, err error) {
	var appErr *apperr.Error
	switch {
	case apperr.IsValidation(err):
		msg := "invalid request"
		if errors.As(err, &appErr) && appErr.Err != nil {
			msg = appErr.Err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
	case apperr.IsUpstreamStorage(err):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage unavailable"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
