package tournament

import (
	"context"
	"errors"

	"github.com/grudge-angeler/backend/internal/scores"
)

var (
	// ErrWindowClosed indicates a submission outside the daily tournament window.
	ErrWindowClosed = errors.New("tournament: submissions are only accepted while the tournament is running")
	errMissingStore = errors.New("tournament: entry store is required")
)

// EntryStore persists tournament entries and answers standing queries.
type EntryStore interface {
	SubmitTournamentEntry(ctx context.Context, submission scores.TournamentSubmission) (scores.TournamentResult, error)
	TournamentStanding(ctx context.Context, date string, playerName string) (scores.Standing, error)
}

// SubmissionResult is the stored entry after a submission together with its current rank.
type SubmissionResult struct {
	Entry             scores.TournamentEntry
	Outcome           scores.Outcome
	Rank              int
	TotalParticipants int
}

// Entries gates submissions on the tournament window and stamps them with the running date.
type Entries struct {
	calendar *Calendar
	store    EntryStore
}

// NewEntries puts the window gate in front of store.
func NewEntries(calendar *Calendar, store EntryStore) (*Entries, error) {
	if calendar == nil {
		return nil, errMissingCalendar
	}
	if store == nil {
		return nil, errMissingStore
	}
	return &Entries{calendar: calendar, store: store}, nil
}

// Submit records the player's haul for today's tournament. The tournament date is
// always taken from the clock, never from the client. Nothing is stored when the
// window is closed.
func (e *Entries) Submit(ctx context.Context, submission scores.TournamentSubmission) (SubmissionResult, error) {
	status := e.calendar.Status()
	if !status.Active {
		return SubmissionResult{}, ErrWindowClosed
	}
	submission.TournamentDate = status.Date

	result, err := e.store.SubmitTournamentEntry(ctx, submission)
	if err != nil {
		return SubmissionResult{}, err
	}
	standing, err := e.store.TournamentStanding(ctx, result.Entry.TournamentDate, result.Entry.PlayerName)
	if err != nil {
		return SubmissionResult{}, err
	}
	return SubmissionResult{
		Entry:             result.Entry,
		Outcome:           result.Outcome,
		Rank:              standing.Rank,
		TotalParticipants: standing.TotalParticipants,
	}, nil
}
