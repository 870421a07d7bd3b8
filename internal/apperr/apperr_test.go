package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := UpstreamData("messages.list", "c1", cause)

	assert.True(t, IsUpstreamData(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "messages.list: upstream data failure (chat_id=c1): connection reset", err.Error())
}

func TestValidationMessage(t *testing.T) {
	err := Validation("chats.resolve", "cannot start a chat with yourself")

	assert.True(t, IsValidation(err))
	assert.Equal(t, "chats.resolve: validation failed: cannot start a chat with yourself", err.Error())
}

func TestWrappedErrorStillClassified(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("chats.peer", "c9", nil))

	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "chats.peer: not found (chat_id=c9)")
}
