package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationDedupeBestLeaderboardRows = "2026-10-01_dedupe_best_leaderboard_rows"
	migrationDedupeTournamentRows      = "2026-10-01_dedupe_tournament_rows"
)

// Rows written before the unique indexes existed may repeat a key; keep the best one.
const (
	dedupeBestLeaderboardRows = `DELETE FROM leaderboard_entries WHERE id IN (
	SELECT id FROM (
		SELECT id, ROW_NUMBER() OVER (
			PARTITION BY player_name, category
			ORDER BY value DESC, created_at ASC, id ASC
		) AS position
		FROM leaderboard_entries
		WHERE category IN ('biggest_catch', 'session_catches')
	) ranked WHERE ranked.position > 1
)`
	dedupeTournamentRows = `DELETE FROM tournament_entries WHERE id IN (
	SELECT id FROM (
		SELECT id, ROW_NUMBER() OVER (
			PARTITION BY player_name, tournament_date
			ORDER BY composite_score DESC, created_at ASC, id ASC
		) AS position
		FROM tournament_entries
	) ranked WHERE ranked.position > 1
)`
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDedupeBestLeaderboardRows, apply: execStatement(dedupeBestLeaderboardRows)},
		{name: migrationDedupeTournamentRows, apply: execStatement(dedupeTournamentRows)},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func execStatement(statement string) func(*gorm.DB) error {
	return func(db *gorm.DB) error {
		return db.Exec(statement).Error
	}
}
