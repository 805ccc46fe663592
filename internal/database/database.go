package database

import (
	"fmt"
	"strings"

	"github.com/grudge-angeler/backend/internal/players"
	"github.com/grudge-angeler/backend/internal/scores"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the backing store.
type Config struct {
	Driver string
	Path   string
	URL    string
}

// Open establishes the configured connection and performs schema migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	db, target, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, logger); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database initialized", zap.String("driver", normalizeDriver(cfg.Driver)), zap.String("target", target))
	}
	return db, nil
}

// Migrate creates every table, applies data migrations, then adds the unique
// indexes the score upserts depend on.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	models := append(scores.Models(), &players.Identity{}, &migrationRecord{})
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	if err := applyMigrations(db, logger); err != nil {
		return err
	}
	return scores.EnsureUniqueIndexes(db)
}

func dial(cfg Config) (*gorm.DB, string, error) {
	switch normalizeDriver(cfg.Driver) {
	case DriverSQLite:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return nil, "", fmt.Errorf("database path is required")
		}
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
		if err != nil {
			return nil, "", err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, "", err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, path, nil
	case DriverPostgres:
		dsn := strings.TrimSpace(cfg.URL)
		if dsn == "" {
			return nil, "", fmt.Errorf("database url is required for postgres")
		}
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, "", err
		}
		return db, redactURL(dsn), nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func normalizeDriver(driver string) string {
	normalized := strings.ToLower(strings.TrimSpace(driver))
	switch normalized {
	case "", "sqlite3":
		return DriverSQLite
	case "postgresql", "pgx":
		return DriverPostgres
	}
	return normalized
}

// redactURL drops credentials from a connection url before logging.
func redactURL(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return "postgres"
	}
	return dsn[:schemeEnd+3] + "***" + dsn[at:]
}
