package scores

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Category enumerates the leaderboard boards.
type Category string

const (
	// CategoryBiggestCatch keeps each player's heaviest fish.
	CategoryBiggestCatch Category = "biggest_catch"
	// CategorySessionCatches keeps each player's best catch count in one session.
	CategorySessionCatches Category = "session_catches"
	// CategoryLegendaryCatches logs every legendary catch.
	CategoryLegendaryCatches Category = "legendary_catches"
)

// Rarity enumerates fish rarities.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
	RarityUltraRare Rarity = "ultra_rare"
)

const maxNameLength = 190

// bestPerPlayerPredicate must match the partial unique index text exactly so the
// upsert conflict target resolves to it.
const bestPerPlayerPredicate = "category IN ('biggest_catch', 'session_catches')"

var (
	// ErrInvalidCategory indicates an unknown leaderboard category.
	ErrInvalidCategory = errors.New("scores: invalid category")
	// ErrInvalidPlayerName indicates an empty or oversized player name.
	ErrInvalidPlayerName = errors.New("scores: invalid player name")
	// ErrInvalidRarity indicates an unknown fish rarity.
	ErrInvalidRarity = errors.New("scores: invalid rarity")
	// ErrInvalidValue indicates a metric that is not a finite number.
	ErrInvalidValue = errors.New("scores: invalid value")
	// ErrInvalidDate indicates a missing tournament date.
	ErrInvalidDate = errors.New("scores: invalid tournament date")
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{CategoryBiggestCatch, CategorySessionCatches, CategoryLegendaryCatches}
}

// ParseCategory validates raw input and returns a Category.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.TrimSpace(raw)) {
	case CategoryBiggestCatch:
		return CategoryBiggestCatch, nil
	case CategorySessionCatches:
		return CategorySessionCatches, nil
	case CategoryLegendaryCatches:
		return CategoryLegendaryCatches, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
}

// KeepsBest reports whether the category stores one high-water-mark row per player.
func (c Category) KeepsBest() bool {
	return c == CategoryBiggestCatch || c == CategorySessionCatches
}

// ParseRarity validates raw input. An empty value is allowed and yields "".
func ParseRarity(raw string) (Rarity, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch Rarity(trimmed) {
	case "":
		return "", nil
	case RarityCommon, RarityUncommon, RarityRare, RarityLegendary, RarityUltraRare:
		return Rarity(trimmed), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRarity, raw)
	}
}

// NewPlayerName trims and bounds a player name.
func NewPlayerName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPlayerName)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidPlayerName, maxNameLength)
	}
	return trimmed, nil
}

func validateMetric(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s is not finite", ErrInvalidValue, name)
	}
	return nil
}

// IsValidationError reports whether err stems from rejected input rather than storage.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidPlayerName) ||
		errors.Is(err, ErrInvalidRarity) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidDate)
}

// LeaderboardEntry is one ranked row on a board.
type LeaderboardEntry struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	PlayerName string    `gorm:"column:player_name;size:190;not null;index:idx_leaderboard_player,priority:1" json:"playerName"`
	Category   Category  `gorm:"column:category;size:32;not null;index:idx_leaderboard_category_value,priority:1;index:idx_leaderboard_player,priority:2" json:"category"`
	FishName   *string   `gorm:"column:fish_name;size:190" json:"fishName"`
	FishRarity *string   `gorm:"column:fish_rarity;size:32" json:"fishRarity"`
	Value      float64   `gorm:"column:value;not null;index:idx_leaderboard_category_value,priority:2" json:"value"`
	Score      int64     `gorm:"column:score;not null;default:0" json:"score"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}

// TournamentEntry is a player's best haul for one tournament day.
type TournamentEntry struct {
	ID              string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	PlayerName      string    `gorm:"column:player_name;size:190;not null" json:"playerName"`
	TournamentDate  string    `gorm:"column:tournament_date;size:10;not null;index:idx_tournament_date_score,priority:1" json:"tournamentDate"`
	TotalCaught     int64     `gorm:"column:total_caught;not null;default:0" json:"totalCaught"`
	TotalWeight     float64   `gorm:"column:total_weight;not null;default:0" json:"totalWeight"`
	LargestCatch    float64   `gorm:"column:largest_catch;not null;default:0" json:"largestCatch"`
	LargestFishName *string   `gorm:"column:largest_fish_name;size:190" json:"largestFishName"`
	RarityScore     int64     `gorm:"column:rarity_score;not null;default:0" json:"rarityScore"`
	CompositeScore  float64   `gorm:"column:composite_score;not null;default:0;index:idx_tournament_date_score,priority:2" json:"compositeScore"`
	Reward          int64     `gorm:"column:reward;not null;default:0" json:"reward"`
	CreatedAt       time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (TournamentEntry) TableName() string {
	return "tournament_entries"
}

// LeaderboardSubmission is validated input for SubmitLeaderboardEntry.
type LeaderboardSubmission struct {
	PlayerName string
	Category   Category
	FishName   string
	FishRarity Rarity
	Value      float64
	Score      int64
}

// TournamentSubmission is validated input for SubmitTournamentEntry.
type TournamentSubmission struct {
	PlayerName      string
	TournamentDate  string
	TotalCaught     int64
	TotalWeight     float64
	LargestCatch    float64
	LargestFishName string
	RarityScore     int64
	CompositeScore  float64
}

// Outcome describes what an upsert did to storage.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeImproved  Outcome = "improved"
	OutcomeUnchanged Outcome = "unchanged"
)

// LeaderboardResult is the row after a submission and what happened to it.
type LeaderboardResult struct {
	Entry   LeaderboardEntry
	Outcome Outcome
}

// TournamentResult is the row after a submission and what happened to it.
type TournamentResult struct {
	Entry   TournamentEntry
	Outcome Outcome
}

// Standing is a player's position within one tournament day.
type Standing struct {
	Rank              int
	TotalParticipants int
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
