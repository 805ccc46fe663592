package players

import (
	"strings"
	"time"
)

// ProviderDiscord is the only login provider the game supports.
const ProviderDiscord = "discord"

// Identity maps a provider login onto a stable player id.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null" json:"provider"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null" json:"-"`
	PlayerID    string    `gorm:"column:player_id;size:36;not null;uniqueIndex" json:"playerId"`
	Username    string    `gorm:"column:username;size:190;not null" json:"username"`
	DisplayName string    `gorm:"column:display_name;size:190" json:"displayName"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512" json:"avatarUrl,omitempty"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at" json:"lastSeenAt"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName exposes the table backing player identities.
func (Identity) TableName() string {
	return "player_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
