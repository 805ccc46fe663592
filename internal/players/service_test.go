package players

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/grudge-angeler/backend/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate identity schema: %v", err)
	}
	clockNow := time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			clockNow = clockNow.Add(time.Minute)
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestUpsertDiscordUserKeepsPlayerID(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	globalName := "Nelly"

	first, err := service.UpsertDiscordUser(ctx, auth.DiscordUser{ID: "8035", Username: "nelly"})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if first.PlayerID == "" || first.DisplayName != "nelly" {
		t.Fatalf("unexpected identity %#v", first)
	}

	second, err := service.UpsertDiscordUser(ctx, auth.DiscordUser{ID: "8035", Username: "nelly2", GlobalName: &globalName})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.PlayerID != first.PlayerID {
		t.Fatalf("expected player id %s to be kept, got %s", first.PlayerID, second.PlayerID)
	}
	if second.Username != "nelly2" || second.DisplayName != "Nelly" {
		t.Fatalf("expected profile to follow latest login, got %#v", second)
	}
	if !second.LastSeenAt.After(first.LastSeenAt) {
		t.Fatalf("expected last seen to advance")
	}

	var count int64
	if err := db.Model(&Identity{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single identity row, got %d", count)
	}
}

func TestLookupReturnsStoredIdentity(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.UpsertDiscordUser(ctx, auth.DiscordUser{ID: "42", Username: "captain"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	service.cache.Delete(created.PlayerID)

	found, err := service.Lookup(ctx, created.PlayerID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found.Username != "captain" {
		t.Fatalf("unexpected identity %#v", found)
	}

	if _, err := service.Lookup(ctx, "missing"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	claims := SessionClaims(found)
	if claims.PlayerID != created.PlayerID || claims.Username != "captain" {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestUpsertDiscordUserRejectsIncompleteProfile(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.UpsertDiscordUser(context.Background(), auth.DiscordUser{Username: "ghost"}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %v", err)
	}
}
