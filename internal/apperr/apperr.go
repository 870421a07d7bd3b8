// Package apperr defines the error kinds surfaced by the chat engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstreamStorage = errors.New("upstream storage failure")
	ErrUpstreamData    = errors.New("upstream data failure")
)

// Error carries the failing operation and chat alongside one of the kinds above.
// errors.Is matches both the kind and the wrapped cause.
type Error struct {
	Op     string
	Kind   error
	ChatID string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.ChatID != "" {
		msg += fmt.Sprintf(" (chat_id=%s)", e.ChatID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(op, msg string) error {
	return &Error{Op: op, Kind: ErrValidation, Err: errors.New(msg)}
}

func NotFound(op, chatID string, err error) error {
	return &Error{Op: op, Kind: ErrNotFound, ChatID: chatID, Err: err}
}

func UpstreamData(op, chatID string, err error) error {
	return &Error{Op: op, Kind: ErrUpstreamData, ChatID: chatID, Err: err}
}

func UpstreamStorage(op, chatID string, err error) error {
	return &Error{Op: op, Kind: ErrUpstreamStorage, ChatID: chatID, Err: err}
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsUpstreamStorage(err error) bool { return errors.Is(err, ErrUpstreamStorage) }

func IsUpstreamData(err error) bool { return errors.Is(err, ErrUpstreamData) }
