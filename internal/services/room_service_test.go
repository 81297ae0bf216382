package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/averche/go-chat-admin/internal/domain"
	"github.com/averche/go-chat-admin/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	// OpenSQLite applies the busy_timeout PRAGMA, which the concurrency
	// tests below rely on.
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := repo.EnsureIndexes(db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return db
}

func strp(s string) *string { return &s }

func TestRoomServiceCreate_ThenGet(t *testing.T) {
	svc := NewRoomService(newServiceDB(t))
	ctx := context.Background()

	owner := int64(1)
	created, err := svc.Create(ctx, CreateRoomCommand{
		ID: "r1", Name: "  General   Chat ", OwnerID: &owner,
		RoomType: domain.RoomPublic, AssistantRule: "be nice",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "General Chat" {
		t.Fatalf("name not normalized: %q", created.Name)
	}

	got, err := svc.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != created.Name || got.OwnerID == nil || *got.OwnerID != owner {
		t.Fatalf("mismatch after round-trip: %+v", got)
	}
}

func TestRoomServiceCreate_DuplicateName(t *testing.T) {
	svc := NewRoomService(newServiceDB(t))
	ctx := context.Background()

	cmd := CreateRoomCommand{ID: "r1", Name: "General", RoomType: domain.RoomPublic}
	if _, err := svc.Create(ctx, cmd); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	cmd.ID = "r2"
	if _, err := svc.Create(ctx, cmd); !errors.Is(err, ErrDuplicateRoomName) {
		t.Fatalf("expected ErrDuplicateRoomName, got %v", err)
	}

	// The winner must be unchanged.
	got, err := svc.Get(ctx, "r1")
	if err != nil || got.Name != "General" {
		t.Fatalf("existing room altered: %+v err=%v", got, err)
	}
}

func TestRoomServiceCreate_PrivatePasswordRules(t *testing.T) {
	svc := NewRoomService(newServiceDB(t))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRoomCommand{
		ID: "r1", Name: "Secret", RoomType: domain.RoomPrivate,
	})
	if !errors.Is(err, domain.ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if !IsValidation(err) {
		t.Fatalf("password rule should classify as validation error")
	}

	_, err = svc.Create(ctx, CreateRoomCommand{
		ID: "r1", Name: "Lounge", RoomType: domain.RoomPublic, Password: strp("nope"),
	})
	if !errors.Is(err, domain.ErrPasswordForbidden) {
		t.Fatalf("expected ErrPasswordForbidden, got %v", err)
	}

	if _, err := svc.Create(ctx, CreateRoomCommand{
		ID: "r1", Name: "Secret", RoomType: domain.RoomPrivate, Password: strp("hunter2"),
	}); err != nil {
		t.Fatalf("private room with password rejected: %v", err)
	}
}

func TestRoomServiceRename(t *testing.T) {
	svc := NewRoomService(newServiceDB(t))
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateRoomCommand{ID: "r1", Name: "General", RoomType: domain.RoomPublic}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Rename(ctx, "r1", "General2")
	if err != nil || got.Name != "General2" {
		t.Fatalf("Rename: got=%+v err=%v", got, err)
	}

	if _, err := svc.Rename(ctx, "ghost", "x"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.Rename(ctx, "r1", "  "); !errors.Is(err, domain.ErrEmptyRoomName) {
		t.Fatalf("expected ErrEmptyRoomName, got %v", err)
	}
}

func TestRoomServiceList(t *testing.T) {
	svc := NewRoomService(newServiceDB(t))
	ctx := context.Background()

	for i, name := range []string{"alpha", "beta"} {
		if _, err := svc.Create(ctx, CreateRoomCommand{
			ID: fmt.Sprintf("r%d", i), Name: name, RoomType: domain.RoomPublic,
		}); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}

	rooms, err := svc.List(ctx)
	if err != nil || len(rooms) != 2 {
		t.Fatalf("List: len=%d err=%v", len(rooms), err)
	}
}
