package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-chat/internal/observability"
	"direct-chat/internal/telemetry"
)

func TestNewPublisherFallsBackToNoop(t *testing.T) {
	p := NewPublisher("", "chat.events")

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Close())
}

func TestNoopPublisherAcceptsEnvelopes(t *testing.T) {
	p := NewPublisher("", "chat.events")
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "message.created", observability.EventEnvelope{EventType: "chat_events", EventName: "message.created"}))
	require.NoError(t, p.Publish(ctx, "audit.chat", telemetry.AuditEnvelope{EventType: "audit_log"}))
	require.NoError(t, p.Publish(ctx, "other", map[string]string{"k": "v"}))
}

func TestPublisherModeUnknown(t *testing.T) {
	assert.Equal(t, "unknown", PublisherMode(nil))
	assert.Equal(t, "", PublisherNoopReason(nil))
}
