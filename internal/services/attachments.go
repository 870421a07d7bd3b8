package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"
	"direct-chat/internal/observability"
	"direct-chat/internal/storage"
)

const (
	cleanupTimeout     = 10 * time.Second
	uploadAttempts     = 2
	maxExtensionLength = 16
	defaultContentType = "application/octet-stream"
)

// Attachment is an uploaded file to be sent as a message.
type Attachment struct {
	ChatID       string
	SenderID     string
	Data         []byte
	ContentType  string
	OriginalName string
}

// SendAttachment stores the bytes in the blob store and appends an IMAGE or FILE
// message pointing at the public URL. No message is written when the upload
// fails. When the message cannot be written after a successful upload the
// object is deleted on a best-effort basis and the persistence error is returned.
func (s *ChatService) SendAttachment(ctx context.Context, in Attachment) (msg models.Message, err error) {
	const op = "messages.send_attachment"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("chat.id", in.ChatID), attribute.Int("attachment.size", len(in.Data)))

	if len(in.Data) == 0 {
		return models.Message{}, apperr.Validation(op, "file is empty")
	}
	if s.maxUploadBytes > 0 && int64(len(in.Data)) > s.maxUploadBytes {
		return models.Message{}, apperr.Validation(op, fmt.Sprintf("file exceeds %d bytes", s.maxUploadBytes))
	}
	if _, err := s.membership(ctx, op, in.ChatID, in.SenderID); err != nil {
		return models.Message{}, err
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	kind := models.KindForContentType(contentType)
	bucket := s.buckets.Files
	if kind == models.KindImage {
		bucket = s.buckets.Images
	}
	var key, url string
	for attempt := 0; attempt < uploadAttempts; attempt++ {
		key = attachmentKey(in.ChatID, s.newKeyID(), in.OriginalName)
		url, err = s.blobs.Put(ctx, bucket, key, in.Data, contentType)
		if !errors.Is(err, storage.ErrObjectExists) {
			break
		}
	}
	span.SetAttributes(attribute.String("attachment.kind", string(kind)), attribute.String("attachment.key", key))
	if err != nil {
		observability.IncAttachmentUpload("upload_error")
		return models.Message{}, apperr.UpstreamStorage(op, in.ChatID, err)
	}

	msg, err = s.appendMessage(ctx, op, models.Message{
		ID:           s.newID(),
		ChatID:       in.ChatID,
		SenderID:     in.SenderID,
		Content:      url,
		Kind:         kind,
		IsAttachment: true,
	})
	if err != nil {
		observability.IncAttachmentUpload("persist_error")
		s.discardObject(ctx, bucket, key)
		return models.Message{}, err
	}

	observability.IncAttachmentUpload("ok")
	observability.ObserveAttachmentSize(string(kind), len(in.Data))
	return msg, nil
}

// discardObject deletes an orphaned upload. Failures are logged only.
func (s *ChatService) discardObject(ctx context.Context, bucket, key string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(cctx, bucket, key); err != nil {
		observability.IncAttachmentCleanup("failed")
		log.Printf("attachment cleanup failed bucket=%s key=%s err=%v", bucket, key, err)
		return
	}
	observability.IncAttachmentCleanup("deleted")
}

// attachmentKey builds chats/<chat>/chat_<chat>_<id>.<ext>, keeping the original
// extension when it is short and alphanumeric.
func attachmentKey(chatID, id, originalName string) string {
	name := fmt.Sprintf("chat_%s_%s", chatID, id)
	if ext := extension(originalName); ext != "" {
		name += "." + ext
	}
	return "chats/" + chatID + "/" + name
}

func extension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(name)), "."))
	if ext == "" || len(ext) > maxExtensionLength {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
