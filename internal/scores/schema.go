package scores

import "gorm.io/gorm"

const (
	createBestPerPlayerIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_leaderboard_best_per_player " +
		"ON leaderboard_entries (player_name, category) WHERE " + bestPerPlayerPredicate
	createTournamentPlayerDateIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_tournament_player_date " +
		"ON tournament_entries (player_name, tournament_date)"
)

// Models lists the tables owned by the score store.
func Models() []any {
	return []any{&LeaderboardEntry{}, &TournamentEntry{}}
}

// EnsureUniqueIndexes creates the indexes the upserts resolve conflicts against.
// The leaderboard index is partial so legendary catches stay append-only.
func EnsureUniqueIndexes(db *gorm.DB) error {
	if err := db.Exec(createBestPerPlayerIndex).Error; err != nil {
		return err
	}
	return db.Exec(createTournamentPlayerDateIndex).Error
}

// Migrate creates the score tables and their unique indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return EnsureUniqueIndexes(db)
}
