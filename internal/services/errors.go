// Package services defines the business logic for rooms and messages.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import (
	"errors"

	"github.com/averche/go-chat-admin/internal/domain"
)

var (
	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrDuplicateRoomName indicates a room name collision; surfaced to the
	// caller as a conflict.
	ErrDuplicateRoomName = errors.New("room name already exists")

	// ErrRoomMissing indicates a message referencing a nonexistent room.
	// Unlike ErrRoomNotFound it concerns referential integrity of a write,
	// not a direct lookup.
	ErrRoomMissing = errors.New("message references a nonexistent room")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// IsValidation reports whether err represents a bad-input/business-rule
// violation that should not be retried by the caller.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrEmptyRoomName) ||
		errors.Is(err, domain.ErrInvalidRoomType) ||
		errors.Is(err, domain.ErrPasswordRequired) ||
		errors.Is(err, domain.ErrPasswordForbidden) ||
		errors.Is(err, domain.ErrEmptyMessageID) ||
		errors.Is(err, domain.ErrEmptyContent)
}
