// Room HTTP handlers.
//
// This file exposes REST endpoints for room resources:
//   - POST   /rooms               (create, with per-room setting)
//   - GET    /rooms               (list)
//   - GET    /rooms/{id}          (fetch one)
//   - PUT    /rooms/{id}/name     (rename)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/averche/go-chat-admin/internal/domain"
	"github.com/averche/go-chat-admin/internal/services"
	"github.com/averche/go-chat-admin/internal/utils"
)

//
// Service contracts (context-aware)
//

// RoomService defines room lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RoomService interface {
	// Create persists a new room together with its setting.
	Create(ctx context.Context, cmd services.CreateRoomCommand) (*domain.Room, error)
	// Rename changes a room's name and returns the updated room.
	Rename(ctx context.Context, id, newName string) (*domain.Room, error)
	// Get returns a room by id.
	Get(ctx context.Context, id string) (*domain.Room, error)
	// List returns all rooms.
	List(ctx context.Context) ([]domain.Room, error)
}

// MessageService defines message submission and retrieval operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Submit validates and persists a single message.
	Submit(ctx context.Context, m *domain.Message) (*domain.Message, error)
	// ListPage returns a page of a room's messages and the total count.
	ListPage(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error)
	// Get returns a message by id.
	Get(ctx context.Context, id string) (*domain.Message, error)
	// Stats returns a room's message count and latest message timestamp.
	Stats(ctx context.Context, roomID string) (int64, *time.Time, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for rooms and messages. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	roomSvc RoomService
	msgSvc  MessageService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(roomSvc RoomService, msgSvc MessageService) *Handlers {
	return &Handlers{roomSvc: roomSvc, msgSvc: msgSvc}
}

//
// DTOs
//

// CreateRoomRequest is the JSON payload for creating a room.
type CreateRoomRequest struct {
	// Name is the unique room name (1–255 chars).
	Name string `json:"name" binding:"required,min=1,max=255"`
	// RoomType is "private" or "public". Defaults to "public" when empty.
	RoomType string `json:"room_type"`
	// AssistantRule configures the room's assistant behavior.
	AssistantRule string `json:"assistant_rule"`
	// Password is required for private rooms and forbidden for public ones.
	Password *string `json:"password,omitempty"`
	// OwnerID optionally attributes the room to a user.
	OwnerID *int64 `json:"owner_id,omitempty"`
}

// RenameRoomRequest is the JSON payload for renaming a room.
type RenameRoomRequest struct {
	// Name is the new room name (1–255 chars).
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRoomsResponse wraps the room collection.
type ListRoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateRoom handles POST /rooms. It creates a room with its setting and
// returns the room resource.
//
// Responses:
//   - 201 with the created room
//   - 400 on malformed JSON or a business-rule violation (bad room type,
//     missing/forbidden password)
//   - 409 when the room name is already taken
//   - 500 on storage failure
func (h *Handlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	roomType := domain.RoomType(strings.TrimSpace(req.RoomType))
	if roomType == "" {
		roomType = domain.RoomPublic
	}
	cmd := services.CreateRoomCommand{
		ID:            uuid.NewString(),
		Name:          req.Name,
		OwnerID:       req.OwnerID,
		RoomType:      roomType,
		AssistantRule: req.AssistantRule,
		Password:      req.Password,
	}

	room, err := h.roomSvc.Create(c.Request.Context(), cmd)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, room)
	case errors.Is(err, services.ErrDuplicateRoomName):
		fail(c, http.StatusConflict, ErrCodeConflict, "room name already exists")
	case services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

// ListRooms handles GET /rooms and returns every room.
func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, err := h.roomSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListRoomsResponse{Rooms: rooms})
}

// GetRoom handles GET /rooms/{id}.
func (h *Handlers) GetRoom(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}

	room, err := h.roomSvc.Get(c.Request.Context(), roomID)
	switch {
	case err == nil:
		ok(c, http.StatusOK, room)
	case errors.Is(err, services.ErrRoomNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// RenameRoom handles PUT /rooms/{id}/name. On success the updated room is
// returned so callers see the normalized name.
//
// Responses:
//   - 200 with the updated room
//   - 400 on a malformed id or body
//   - 404 when the room does not exist
//   - 409 when the new name is already taken
func (h *Handlers) RenameRoom(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}

	var req RenameRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1–255 chars)")
		return
	}

	room, err := h.roomSvc.Rename(c.Request.Context(), roomID, req.Name)
	switch {
	case err == nil:
		ok(c, http.StatusOK, room)
	case errors.Is(err, services.ErrRoomNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
	case errors.Is(err, services.ErrDuplicateRoomName):
		fail(c, http.StatusConflict, ErrCodeConflict, "room name already exists")
	case services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
