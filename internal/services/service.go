// Package services implements the chat engine: chat resolution, message
// pagination with read-marking, chat list aggregation and attachment ingestion.
package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"direct-chat/internal/models"
	"direct-chat/internal/observability"
	"direct-chat/internal/repositories"
	"direct-chat/internal/storage"
)

const (
	DefaultPageLimit = 20
	defaultMaxLimit  = 100
	resolveAttempts  = 3
	markReadAttempts = 2
)

var tracer = otel.Tracer("direct-chat/services")

// Publisher emits domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Broadcaster pushes live updates to connected clients of a chat.
type Broadcaster interface {
	BroadcastChatMessage(chatID string, msg models.Message)
	BroadcastRead(chatID, readerID string, count int)
}

// Buckets names the object storage buckets per attachment class.
type Buckets struct {
	Images  string
	Files   string
	Avatars string
}

// ChatService is the chat engine. It holds no per-call state; the repositories
// are the only source of truth.
type ChatService struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	profiles repositories.ProfileDirectory
	blobs    storage.BlobStore

	publisher   Publisher
	broadcaster Broadcaster
	buckets     Buckets

	maxPageLimit   int
	maxUploadBytes int64

	newID    func() string
	newKeyID func() string
}

// Option configures a ChatService.
type Option func(*ChatService)

func WithPublisher(p Publisher) Option { return func(s *ChatService) { s.publisher = p } }

func WithBroadcaster(b Broadcaster) Option { return func(s *ChatService) { s.broadcaster = b } }

func WithBuckets(b Buckets) Option { return func(s *ChatService) { s.buckets = b } }

func WithMaxPageLimit(n int) Option {
	return func(s *ChatService) {
		if n > 0 {
			s.maxPageLimit = n
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *ChatService) { s.maxUploadBytes = n }
}

// WithIDGenerators overrides id generation for chats/messages and storage keys.
func WithIDGenerators(newID, newKeyID func() string) Option {
	return func(s *ChatService) {
		if newID != nil {
			s.newID = newID
		}
		if newKeyID != nil {
			s.newKeyID = newKeyID
		}
	}
}

// NewChatService wires the engine over its collaborators.
func NewChatService(chats repositories.ChatRepository, messages repositories.MessageRepository, profiles repositories.ProfileDirectory, blobs storage.BlobStore, opts ...Option) *ChatService {
	s := &ChatService{
		chats:        chats,
		messages:     messages,
		profiles:     profiles,
		blobs:        blobs,
		buckets:      Buckets{Images: "chat-images", Files: "chat-files", Avatars: "avatars"},
		maxPageLimit: defaultMaxLimit,
		newID:        uuid.NewString,
		newKeyID:     func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatService) publish(ctx context.Context, name string, payload any) {
	if s.publisher == nil {
		return
	}
	envelope := observability.EventEnvelope{
		EventType: "chat_events",
		EventName: name,
		Payload:   payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}
	err := s.publisher.Publish(ctx, name, envelope)
	if err != nil {
		observability.IncAMQPPublishError()
		log.Printf("event publish failed event=%s err=%v", name, err)
	}
}

func (s *ChatService) clampLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > s.maxPageLimit {
		return s.maxPageLimit
	}
	return limit
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrChatNotFound) ||
		errors.Is(err, repositories.ErrMembershipNotFound) ||
		errors.Is(err, repositories.ErrProfileNotFound)
}
