// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Room and
// RoomSetting models.
//
// All functions accept a *gorm.DB handle, making them safe for use within
// transactions or connection-scoped operations. They follow the "thin
// repository" approach: no business logic beyond the write-time invariants
// the store owns (name uniqueness, setting/type consistency), only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a room is not found, functions return ErrNotFound.
//   - When a room name collides, functions return ErrDuplicateName.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/averche/go-chat-admin/internal/domain"
)

// CreateRoom inserts a Room and its RoomSetting in one transaction.
// The setting's back-reference is pointed at the new room before the write.
// Name uniqueness is enforced by the unique index and surfaced as
// ErrDuplicateName; an existing room is never altered by a failed create.
func CreateRoom(ctx context.Context, db *gorm.DB, room *domain.Room, setting *domain.RoomSetting) (*domain.Room, error) {
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateName
			}
			return err
		}
		setting.RoomID = &room.ID
		setting.RoomType = room.RoomType
		return tx.Create(setting).Error
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// RenameRoom updates a room's name. It returns ErrNotFound if the room does
// not exist and ErrDuplicateName if the new name belongs to another room.
// The update runs as a single statement so a concurrent message insert
// referencing the same room cannot observe a partially renamed row.
func RenameRoom(ctx context.Context, db *gorm.DB, id, newName string) (*domain.Room, error) {
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": newName, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicateName
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetRoom(ctx, db, id)
}

// GetRoom fetches a room by ID, or ErrNotFound if missing.
func GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error) {
	var r domain.Room
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// FindRoomByName fetches a room by its unique name, or ErrNotFound.
func FindRoomByName(ctx context.Context, db *gorm.DB, name string) (*domain.Room, error) {
	var r domain.Room
	if err := db.WithContext(ctx).Where("name = ?", name).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// RoomExists reports whether a room row with the given ID is present.
func RoomExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// ListRooms returns all rooms ordered by creation time ascending.
func ListRooms(ctx context.Context, db *gorm.DB) ([]domain.Room, error) {
	var out []domain.Room
	err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// CountRooms returns the total number of rooms.
func CountRooms(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Room{}).Count(&total).Error
	return total, err
}

// GetRoomSetting fetches the setting row associated with a room, or
// ErrNotFound when the room has no setting.
func GetRoomSetting(ctx context.Context, db *gorm.DB, roomID string) (*domain.RoomSetting, error) {
	var s domain.RoomSetting
	err := db.WithContext(ctx).Where("room_id = ?", roomID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
