package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	routingKey string
	events     []any
	err        error
}

func (p *capturePublisher) Publish(ctx context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func TestAuditEmitterEmitForChat(t *testing.T) {
	pub := &capturePublisher{}
	emitter := NewAuditEmitter(pub, "audit.chat", "direct-chat", "test")
	user := "u1"

	emitter.EmitForChat(context.Background(), "INFO", "chat deleted for user", "req-1", &user, "c1")

	require.Len(t, pub.events, 1)
	assert.Equal(t, "audit.chat", pub.routingKey)
	envelope, ok := pub.events[0].(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, envelope.SchemaVersion)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "direct-chat", envelope.Service)
	assert.Equal(t, "req-1", envelope.RequestID)
	assert.Equal(t, "c1", envelope.ChatID)
	assert.Equal(t, &user, envelope.UserID)
	assert.Equal(t, AuditPayload{Level: "INFO", Text: "chat deleted for user"}, envelope.Payload)
}

func TestAuditEmitterNilAndFailingPublisher(t *testing.T) {
	var nilEmitter *AuditEmitter
	assert.NotPanics(t, func() { nilEmitter.Emit(context.Background(), "INFO", "x", "r", nil) })

	pub := &capturePublisher{err: errors.New("broker down")}
	emitter := NewAuditEmitter(pub, "audit.chat", "direct-chat", "test")
	assert.NotPanics(t, func() { emitter.Emit(context.Background(), "WARN", "x", "r", nil) })
	assert.Len(t, pub.events, 1)
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "", "direct-chat", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
