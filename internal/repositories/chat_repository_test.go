package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPostgresErrorClassification(t *testing.T) {
	invalid := &pq.Error{Code: pgInvalidText, Message: `invalid input syntax for type uuid: "nope"`}
	assert.True(t, isInvalidID(invalid))
	assert.True(t, isInvalidID(fmt.Errorf("get membership: %w", invalid)))
	assert.False(t, isInvalidID(&pq.Error{Code: pgUniqueViolation}))
	assert.False(t, isInvalidID(errors.New("22P02")))

	dup := &pq.Error{Code: pgUniqueViolation, Constraint: chatsPairKeyIndex}
	assert.True(t, isUniqueViolation(dup, chatsPairKeyIndex))
	assert.True(t, isUniqueViolation(dup, ""))
	assert.False(t, isUniqueViolation(dup, "messages_pkey"))

	assert.True(t, isForeignKeyViolation(&pq.Error{Code: pgForeignKeyViolation}))
	assert.False(t, isForeignKeyViolation(invalid))
}
