// Message HTTP handlers.
//
// This file exposes REST endpoints for chat messages:
//   - POST /messages                (submit a message directly, bypassing the broker)
//   - GET  /messages/{id}           (fetch one)
//   - GET  /rooms/{id}/messages     (list paginated messages for a room)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (MessageService)
//   - implement conditional responses (ETag) for the room history listing
//
// The POST endpoint shares validation and persistence with the broker
// ingestion path, so a message is held to the same rules regardless of how it
// arrives.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/averche/go-chat-admin/internal/domain"
	"github.com/averche/go-chat-admin/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for submitting a message.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. The service also enforces
// a maximum rune count, configurable on MessageService.
type PostMessageRequest struct {
	// ID optionally fixes the message id; one is generated when empty.
	ID string `json:"id"`
	// Content is the message body. It must be non-empty.
	Content string `json:"content" binding:"required,min=1"`
	// RoomID optionally files the message under an existing room.
	RoomID *string `json:"room_id,omitempty"`
	// SenderID optionally attributes the message to a user.
	SenderID *int64 `json:"sender_id,omitempty"`
}

// ListMessagesResponse contains a page of room messages and pagination
// metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostMessage handles POST /messages. It validates, normalizes, and persists
// a single message.
//
// Responses:
//   - 201 with the persisted message
//   - 400 on malformed JSON, empty content, or content over the rune limit
//   - 404 when the referenced room does not exist
//   - 500 on storage failure
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	m := &domain.Message{
		ID:       id,
		Content:  sanitizeContent(req.Content),
		RoomID:   req.RoomID,
		SenderID: req.SenderID,
	}

	saved, err := h.msgSvc.Submit(c.Request.Context(), m)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, saved)
	case errors.Is(err, services.ErrRoomMissing):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
	case errors.Is(err, services.ErrContentTooLong), services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
	}
}

// GetMessage handles GET /messages/{id}.
func (h *Handlers) GetMessage(c *gin.Context) {
	msgID := c.Param("id")
	if strings.TrimSpace(msgID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id required")
		return
	}

	m, err := h.msgSvc.Get(c.Request.Context(), msgID)
	switch {
	case err == nil:
		ok(c, http.StatusOK, m)
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ListRoomMessages handles GET /rooms/{id}/messages. It returns a page of
// the room's history in stable submission order, with a weak ETag derived
// from the room's message count and latest timestamp so unchanged histories
// can be answered with 304.
func (h *Handlers) ListRoomMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.msgSvc.Stats(ctx, roomID); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, roomID, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.msgSvc.ListPage(ctx, roomID, page, pageSize)
	switch {
	case err == nil:
		// fallthrough below
	case errors.Is(err, services.ErrRoomNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
