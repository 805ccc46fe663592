package scores

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DefaultLimit applies when a caller does not request a positive limit.
	DefaultLimit = 50
	// MaxLimit caps every listing regardless of the requested limit.
	MaxLimit = 100
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable dotted code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew               = "scores.service.new"
	opSubmitLeaderboard        = "scores.submit_leaderboard_entry"
	opListLeaderboard          = "scores.list_leaderboard"
	opSubmitTournament         = "scores.submit_tournament_entry"
	opListTournamentResults    = "scores.list_tournament_results"
	opTournamentStanding       = "scores.tournament_standing"
	opAssignRewards            = "scores.assign_rewards"
	reasonMissingDatabase      = "missing_database"
	reasonMissingIDProvider    = "missing_id_provider"
	reasonInvalidInput         = "invalid_input"
	reasonIDGenerationFailed   = "id_generation_failed"
	reasonUpsertFailed         = "upsert_failed"
	reasonInsertFailed         = "insert_failed"
	reasonReloadFailed         = "reload_failed"
	reasonQueryFailed          = "query_failed"
	reasonRewardUpdateFailed   = "reward_update_failed"
	fieldPlayerName            = "player_name"
	fieldCategory              = "category"
	fieldTournamentDate        = "tournament_date"
	orderValueDesc             = "value DESC, id ASC"
	orderCompositeDesc         = "composite_score DESC, id ASC"
	queryPlayerCategory        = fieldPlayerName + " = ? AND " + fieldCategory + " = ?"
	queryPlayerDate            = fieldPlayerName + " = ? AND " + fieldTournamentDate + " = ?"
	queryCategory              = fieldCategory + " = ?"
	queryTournamentDate        = fieldTournamentDate + " = ?"
	queryRankedAhead           = fieldTournamentDate + " = ? AND (composite_score > ? OR (composite_score = ? AND id < ?))"
	leaderboardUpsertCondition = "excluded.value > leaderboard_entries.value"
	tournamentUpsertCondition  = "excluded.composite_score > tournament_entries.composite_score"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the score store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues row identifiers. Identifiers must sort in issue order because
// ranking ties fall back to id order.
type IDProvider interface {
	NewID() (string, error)
}

// Service is the score store for leaderboard and tournament entries.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (s *Service) ready(operation string, issuesIDs bool) error {
	if s == nil || s.db == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(operation, reasonMissingDatabase, errMissingDatabase)
	}
	if issuesIDs && s.idProvider == nil {
		s.logError(operation, reasonMissingIDProvider, errMissingIDProvider)
		return newServiceError(operation, reasonMissingIDProvider, errMissingIDProvider)
	}
	return nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("scores service error", attrs...)
}
