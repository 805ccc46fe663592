package scores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmitTournamentEntry keeps the best composite score per (player, date). A submission
// replaces the stored row only when its composite score is strictly greater; the returned
// row always carries the maximum of the stored and submitted scores.
func (s *Service) SubmitTournamentEntry(ctx context.Context, submission TournamentSubmission) (TournamentResult, error) {
	if err := s.ready(opSubmitTournament, true); err != nil {
		return TournamentResult{}, err
	}

	model, err := s.newTournamentModel(submission)
	if err != nil {
		return TournamentResult{}, err
	}

	var result TournamentResult
	transactionError := s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		candidate := model
		upsert := transaction.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: fieldPlayerName}, {Name: fieldTournamentDate}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_caught",
				"total_weight",
				"largest_catch",
				"largest_fish_name",
				"rarity_score",
				"composite_score",
				"created_at",
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: tournamentUpsertCondition},
			}},
		}).Create(&candidate)
		if upsert.Error != nil {
			s.logError(opSubmitTournament, reasonUpsertFailed, upsert.Error,
				zap.String(fieldPlayerName, model.PlayerName),
				zap.String(fieldTournamentDate, model.TournamentDate))
			return newServiceError(opSubmitTournament, reasonUpsertFailed, upsert.Error)
		}

		var stored TournamentEntry
		if err := transaction.Where(queryPlayerDate, model.PlayerName, model.TournamentDate).Take(&stored).Error; err != nil {
			s.logError(opSubmitTournament, reasonReloadFailed, err,
				zap.String(fieldPlayerName, model.PlayerName),
				zap.String(fieldTournamentDate, model.TournamentDate))
			return newServiceError(opSubmitTournament, reasonReloadFailed, err)
		}
		if stored.CompositeScore < model.CompositeScore {
			// A concurrent writer cannot lower the row, so this only trips on a broken upsert.
			return newServiceError(opSubmitTournament, reasonUpsertFailed,
				fmt.Errorf("stored score %v below submitted %v", stored.CompositeScore, model.CompositeScore))
		}

		result = TournamentResult{Entry: stored, Outcome: classify(stored.ID == model.ID, upsert.RowsAffected)}
		return nil
	})
	if transactionError != nil {
		return TournamentResult{}, transactionError
	}

	return result, nil
}

// ListTournamentResults returns one day's entries by composite score, highest first.
// Equal scores keep insertion order.
func (s *Service) ListTournamentResults(ctx context.Context, date string, limit int) ([]TournamentEntry, error) {
	if err := s.ready(opListTournamentResults, false); err != nil {
		return nil, err
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, newServiceError(opListTournamentResults, reasonInvalidInput, ErrInvalidDate)
	}

	entries := make([]TournamentEntry, 0)
	if err := s.db.WithContext(ctx).
		Where(queryTournamentDate, date).
		Order(orderCompositeDesc).
		Limit(clampLimit(limit)).
		Find(&entries).Error; err != nil {
		s.logError(opListTournamentResults, reasonQueryFailed, err, zap.String(fieldTournamentDate, date))
		return nil, newServiceError(opListTournamentResults, reasonQueryFailed, err)
	}
	return entries, nil
}

// TournamentStanding ranks a player's stored entry among every entry for the date using
// the same ordering as ListTournamentResults. Rank is zero when the player has no entry.
func (s *Service) TournamentStanding(ctx context.Context, date, playerName string) (Standing, error) {
	if err := s.ready(opTournamentStanding, false); err != nil {
		return Standing{}, err
	}

	var standing Standing
	transactionError := s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var total int64
		if err := transaction.Model(&TournamentEntry{}).Where(queryTournamentDate, date).Count(&total).Error; err != nil {
			s.logError(opTournamentStanding, reasonQueryFailed, err, zap.String(fieldTournamentDate, date))
			return newServiceError(opTournamentStanding, reasonQueryFailed, err)
		}
		standing.TotalParticipants = int(total)

		var entry TournamentEntry
		err := transaction.Where(queryPlayerDate, playerName, date).Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			s.logError(opTournamentStanding, reasonQueryFailed, err,
				zap.String(fieldPlayerName, playerName),
				zap.String(fieldTournamentDate, date))
			return newServiceError(opTournamentStanding, reasonQueryFailed, err)
		}

		var ahead int64
		if err := transaction.Model(&TournamentEntry{}).
			Where(queryRankedAhead, date, entry.CompositeScore, entry.CompositeScore, entry.ID).
			Count(&ahead).Error; err != nil {
			s.logError(opTournamentStanding, reasonQueryFailed, err,
				zap.String(fieldPlayerName, playerName),
				zap.String(fieldTournamentDate, date))
			return newServiceError(opTournamentStanding, reasonQueryFailed, err)
		}
		standing.Rank = int(ahead) + 1
		return nil
	})
	if transactionError != nil {
		return Standing{}, transactionError
	}
	return standing, nil
}

// AssignRewards writes prizes[i] to the entry ranked i+1 for the date and returns how many
// entries received a prize.
func (s *Service) AssignRewards(ctx context.Context, date string, prizes []int64) (int, error) {
	if err := s.ready(opAssignRewards, false); err != nil {
		return 0, err
	}
	if len(prizes) == 0 {
		return 0, nil
	}

	awarded := 0
	transactionError := s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var winners []TournamentEntry
		if err := transaction.
			Where(queryTournamentDate, date).
			Order(orderCompositeDesc).
			Limit(len(prizes)).
			Find(&winners).Error; err != nil {
			s.logError(opAssignRewards, reasonQueryFailed, err, zap.String(fieldTournamentDate, date))
			return newServiceError(opAssignRewards, reasonQueryFailed, err)
		}
		for index, winner := range winners {
			if err := transaction.Model(&TournamentEntry{}).
				Where("id = ?", winner.ID).
				Update("reward", prizes[index]).Error; err != nil {
				s.logError(opAssignRewards, reasonRewardUpdateFailed, err,
					zap.String(fieldPlayerName, winner.PlayerName),
					zap.String(fieldTournamentDate, date))
				return newServiceError(opAssignRewards, reasonRewardUpdateFailed, err)
			}
			awarded++
		}
		return nil
	})
	if transactionError != nil {
		return 0, transactionError
	}
	return awarded, nil
}

func (s *Service) newTournamentModel(submission TournamentSubmission) (TournamentEntry, error) {
	playerName, err := NewPlayerName(submission.PlayerName)
	if err != nil {
		return TournamentEntry{}, newServiceError(opSubmitTournament, reasonInvalidInput, err)
	}
	date := strings.TrimSpace(submission.TournamentDate)
	if date == "" {
		return TournamentEntry{}, newServiceError(opSubmitTournament, reasonInvalidInput, ErrInvalidDate)
	}
	metrics := map[string]float64{
		"totalWeight":    submission.TotalWeight,
		"largestCatch":   submission.LargestCatch,
		"compositeScore": submission.CompositeScore,
	}
	for name, value := range metrics {
		if err := validateMetric(name, value); err != nil {
			return TournamentEntry{}, newServiceError(opSubmitTournament, reasonInvalidInput, err)
		}
	}

	entryID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSubmitTournament, reasonIDGenerationFailed, err)
		return TournamentEntry{}, newServiceError(opSubmitTournament, reasonIDGenerationFailed, err)
	}

	return TournamentEntry{
		ID:              entryID,
		PlayerName:      playerName,
		TournamentDate:  date,
		TotalCaught:     submission.TotalCaught,
		TotalWeight:     submission.TotalWeight,
		LargestCatch:    submission.LargestCatch,
		LargestFishName: optionalString(submission.LargestFishName),
		RarityScore:     submission.RarityScore,
		CompositeScore:  submission.CompositeScore,
		CreatedAt:       s.now(),
	}, nil
}
