package scores

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmitLeaderboardEntry records a submission. Best-per-player categories keep a single
// row per (player, category) that only moves when the new value is strictly higher;
// legendary catches append a new row every time.
func (s *Service) SubmitLeaderboardEntry(ctx context.Context, submission LeaderboardSubmission) (LeaderboardResult, error) {
	if err := s.ready(opSubmitLeaderboard, true); err != nil {
		return LeaderboardResult{}, err
	}

	model, err := s.newLeaderboardModel(submission)
	if err != nil {
		return LeaderboardResult{}, err
	}

	if !model.Category.KeepsBest() {
		if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
			s.logError(opSubmitLeaderboard, reasonInsertFailed, err,
				zap.String(fieldPlayerName, model.PlayerName),
				zap.String(fieldCategory, string(model.Category)))
			return LeaderboardResult{}, newServiceError(opSubmitLeaderboard, reasonInsertFailed, err)
		}
		return LeaderboardResult{Entry: model, Outcome: OutcomeInserted}, nil
	}

	var result LeaderboardResult
	transactionError := s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		candidate := model
		upsert := transaction.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: fieldPlayerName}, {Name: fieldCategory}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: bestPerPlayerPredicate},
			}},
			DoUpdates: clause.AssignmentColumns([]string{"fish_name", "fish_rarity", "value", "score", "created_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: leaderboardUpsertCondition},
			}},
		}).Create(&candidate)
		if upsert.Error != nil {
			s.logError(opSubmitLeaderboard, reasonUpsertFailed, upsert.Error,
				zap.String(fieldPlayerName, model.PlayerName),
				zap.String(fieldCategory, string(model.Category)))
			return newServiceError(opSubmitLeaderboard, reasonUpsertFailed, upsert.Error)
		}

		var stored LeaderboardEntry
		if err := transaction.Where(queryPlayerCategory, model.PlayerName, model.Category).Take(&stored).Error; err != nil {
			s.logError(opSubmitLeaderboard, reasonReloadFailed, err,
				zap.String(fieldPlayerName, model.PlayerName),
				zap.String(fieldCategory, string(model.Category)))
			return newServiceError(opSubmitLeaderboard, reasonReloadFailed, err)
		}

		result = LeaderboardResult{Entry: stored, Outcome: classify(stored.ID == model.ID, upsert.RowsAffected)}
		return nil
	})
	if transactionError != nil {
		return LeaderboardResult{}, transactionError
	}

	return result, nil
}

// ListLeaderboard returns a board ordered by value, highest first. Limit is clamped to MaxLimit.
func (s *Service) ListLeaderboard(ctx context.Context, category Category, limit int) ([]LeaderboardEntry, error) {
	if err := s.ready(opListLeaderboard, false); err != nil {
		return nil, err
	}
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, newServiceError(opListLeaderboard, reasonInvalidInput, err)
	}

	entries := make([]LeaderboardEntry, 0)
	if err := s.db.WithContext(ctx).
		Where(queryCategory, category).
		Order(orderValueDesc).
		Limit(clampLimit(limit)).
		Find(&entries).Error; err != nil {
		s.logError(opListLeaderboard, reasonQueryFailed, err, zap.String(fieldCategory, string(category)))
		return nil, newServiceError(opListLeaderboard, reasonQueryFailed, err)
	}
	return entries, nil
}

func (s *Service) newLeaderboardModel(submission LeaderboardSubmission) (LeaderboardEntry, error) {
	playerName, err := NewPlayerName(submission.PlayerName)
	if err != nil {
		return LeaderboardEntry{}, newServiceError(opSubmitLeaderboard, reasonInvalidInput, err)
	}
	category, err := ParseCategory(string(submission.Category))
	if err != nil {
		return LeaderboardEntry{}, newServiceError(opSubmitLeaderboard, reasonInvalidInput, err)
	}
	rarity, err := ParseRarity(string(submission.FishRarity))
	if err != nil {
		return LeaderboardEntry{}, newServiceError(opSubmitLeaderboard, reasonInvalidInput, err)
	}
	if err := validateMetric("value", submission.Value); err != nil {
		return LeaderboardEntry{}, newServiceError(opSubmitLeaderboard, reasonInvalidInput, err)
	}

	entryID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSubmitLeaderboard, reasonIDGenerationFailed, err)
		return LeaderboardEntry{}, newServiceError(opSubmitLeaderboard, reasonIDGenerationFailed, err)
	}

	return LeaderboardEntry{
		ID:         entryID,
		PlayerName: playerName,
		Category:   category,
		FishName:   optionalString(submission.FishName),
		FishRarity: optionalString(string(rarity)),
		Value:      submission.Value,
		Score:      submission.Score,
		CreatedAt:  s.now(),
	}, nil
}

// classify derives the upsert outcome: a stored row carrying the candidate id was just
// inserted, otherwise an affected row means the stored row was replaced.
func classify(storedIsCandidate bool, rowsAffected int64) Outcome {
	switch {
	case storedIsCandidate:
		return OutcomeInserted
	case rowsAffected > 0:
		return OutcomeImproved
	default:
		return OutcomeUnchanged
	}
}
