package players

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grudge-angeler/backend/internal/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidIdentity indicates the provider profile did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("players: invalid identity")
	// ErrPlayerNotFound indicates no identity exists for the requested player id.
	ErrPlayerNotFound = errors.New("players: player not found")
)

// ServiceConfig describes the dependencies required for identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	NewID    func() (uuid.UUID, error)
}

// Service persists Discord logins and hands out stable player ids.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() (uuid.UUID, error)
	cache sync.Map
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("players: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewV7
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		newID: newID,
	}, nil
}

// UpsertDiscordUser records a Discord login. The player id assigned on first
// login is kept; profile fields follow the latest login.
func (s *Service) UpsertDiscordUser(ctx context.Context, user auth.DiscordUser) (Identity, error) {
	subject := normalize(user.ID)
	username := normalize(user.Username)
	if subject == "" || username == "" {
		return Identity{}, ErrInvalidIdentity
	}
	id, err := s.newID()
	if err != nil {
		return Identity{}, fmt.Errorf("players: generate id: %w", err)
	}
	now := s.now().UTC()
	candidate := Identity{
		Provider:    ProviderDiscord,
		Subject:     subject,
		PlayerID:    id.String(),
		Username:    username,
		DisplayName: normalize(user.DisplayName()),
		AvatarURL:   user.AvatarURL(),
		LastSeenAt:  now,
	}

	var stored Identity
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "avatar_url", "last_seen_at", "updated_at"}),
		}).Create(&candidate)
		if upsert.Error != nil {
			return upsert.Error
		}
		return tx.Where("provider = ? AND subject = ?", ProviderDiscord, subject).First(&stored).Error
	})
	if err != nil {
		return Identity{}, err
	}
	s.cache.Store(stored.PlayerID, stored)
	return stored, nil
}

// Lookup returns the identity for a player id.
func (s *Service) Lookup(ctx context.Context, playerID string) (Identity, error) {
	key := normalize(playerID)
	if key == "" {
		return Identity{}, ErrPlayerNotFound
	}
	if cached, ok := s.cache.Load(key); ok {
		if identity, ok := cached.(Identity); ok {
			return identity, nil
		}
	}
	var identity Identity
	err := s.db.WithContext(ctx).Where("player_id = ?", key).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrPlayerNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	s.cache.Store(key, identity)
	return identity, nil
}

// SessionClaims converts an identity into session cookie claims.
func SessionClaims(identity Identity) auth.SessionClaims {
	return auth.SessionClaims{
		PlayerID:    identity.PlayerID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
	}
}
