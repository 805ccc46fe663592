package tournament

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/grudge-angeler/backend/internal/events"
	"go.uber.org/zap"
)

const (
	defaultPollInterval    = 30 * time.Second
	defaultDispatchTimeout = 30 * time.Second
)

var (
	errMissingCalendar  = errors.New("tournament: calendar is required")
	errMissingAnnouncer = errors.New("tournament: announcer is required")
)

// Announcement identifies one of the three per-day notifications.
type Announcement string

const (
	AnnouncementStart    Announcement = "start"
	AnnouncementReminder Announcement = "reminder"
	AnnouncementEnd      Announcement = "end"
)

// Announcer delivers tournament notifications.
type Announcer interface {
	TournamentStarted(ctx context.Context, date string, endsIn time.Duration) error
	TournamentReminder(ctx context.Context, date string, endsIn time.Duration) error
	TournamentEnded(ctx context.Context, date string) error
}

// RewardAssigner hands out prizes for a concluded tournament day.
type RewardAssigner interface {
	AssignRewards(ctx context.Context, date string, prizes []int64) (int, error)
}

// Publisher receives phase events for live subscribers.
type Publisher interface {
	Publish(message events.Message)
}

// AnnouncementRecorder observes announcement dispatch outcomes.
type AnnouncementRecorder interface {
	RecordAnnouncement(kind string, outcome string)
}

// AnnouncementState remembers which announcements went out for each date.
// Only the scheduler loop touches it.
type AnnouncementState struct {
	days map[string]map[Announcement]bool
}

// NewAnnouncementState returns an empty set of per-date announcement flags.
func NewAnnouncementState() *AnnouncementState {
	return &AnnouncementState{days: make(map[string]map[Announcement]bool)}
}

// Sent reports whether kind was already dispatched for date.
func (s *AnnouncementState) Sent(date string, kind Announcement) bool {
	return s.days[date][kind]
}

// MarkOnce records kind for date and reports whether this call was the first.
func (s *AnnouncementState) MarkOnce(date string, kind Announcement) bool {
	flags, ok := s.days[date]
	if !ok {
		flags = make(map[Announcement]bool, 3)
		s.days[date] = flags
	}
	if flags[kind] {
		return false
	}
	flags[kind] = true
	return true
}

// Retain drops every date not listed.
func (s *AnnouncementState) Retain(dates ...string) {
	keep := make(map[string]struct{}, len(dates))
	for _, date := range dates {
		keep[date] = struct{}{}
	}
	for date := range s.days {
		if _, ok := keep[date]; !ok {
			delete(s.days, date)
		}
	}
}

// SchedulerConfig wires a Scheduler.
type SchedulerConfig struct {
	Calendar        *Calendar
	Announcer       Announcer
	Rewards         RewardAssigner
	Prizes          []int64
	Publisher       Publisher
	Recorder        AnnouncementRecorder
	PollInterval    time.Duration
	DispatchTimeout time.Duration
	Logger          *zap.Logger
}

// Scheduler polls the calendar and fires each announcement at most once per date.
// Tick is not safe for concurrent use; Run calls it from a single goroutine.
type Scheduler struct {
	calendar        *Calendar
	announcer       Announcer
	rewards         RewardAssigner
	prizes          []int64
	publisher       Publisher
	recorder        AnnouncementRecorder
	pollInterval    time.Duration
	dispatchTimeout time.Duration
	logger          *zap.Logger

	state              *AnnouncementState
	lastObservedActive bool
	lastObservedDate   string
	inflight           sync.WaitGroup
}

// NewScheduler validates the wiring and applies defaults.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Calendar == nil {
		return nil, errMissingCalendar
	}
	if cfg.Announcer == nil {
		return nil, errMissingAnnouncer
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	dispatchTimeout := cfg.DispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = defaultDispatchTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		calendar:        cfg.Calendar,
		announcer:       cfg.Announcer,
		rewards:         cfg.Rewards,
		prizes:          append([]int64(nil), cfg.Prizes...),
		publisher:       cfg.Publisher,
		recorder:        cfg.Recorder,
		pollInterval:    pollInterval,
		dispatchTimeout: dispatchTimeout,
		logger:          logger,
		state:           NewAnnouncementState(),
	}, nil
}

// Run ticks until ctx is cancelled, then waits for in-flight dispatches.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("tournament scheduler started",
		zap.Duration("poll_interval", s.pollInterval),
		zap.String("zone", s.calendar.Location().String()))

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Wait()
			s.logger.Info("tournament scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates the window once and returns the announcements it dispatched.
func (s *Scheduler) Tick(ctx context.Context) []Announcement {
	status := s.calendar.Status()
	local := s.calendar.Now()
	var fired []Announcement

	if s.lastObservedActive && !status.Active {
		concluded := s.lastObservedDate
		if s.state.MarkOnce(concluded, AnnouncementEnd) {
			fired = append(fired, AnnouncementEnd)
			s.publish(events.TypeTournamentEnd, concluded, 0)
			s.dispatch(ctx, AnnouncementEnd, concluded, func(dispatchCtx context.Context) error {
				s.assignRewards(dispatchCtx, concluded)
				return s.announcer.TournamentEnded(dispatchCtx, concluded)
			})
		}
	}

	if status.Active {
		date := status.Date
		endsIn := time.Duration(*status.SecondsUntilEnd) * time.Second
		if s.state.MarkOnce(date, AnnouncementStart) {
			fired = append(fired, AnnouncementStart)
			s.publish(events.TypeTournamentStart, date, *status.SecondsUntilEnd)
			s.dispatch(ctx, AnnouncementStart, date, func(dispatchCtx context.Context) error {
				return s.announcer.TournamentStarted(dispatchCtx, date, endsIn)
			})
		}
		if local.Hour() >= s.calendar.Window().ReminderHour && s.state.MarkOnce(date, AnnouncementReminder) {
			fired = append(fired, AnnouncementReminder)
			s.publish(events.TypeTournamentReminder, date, *status.SecondsUntilEnd)
			s.dispatch(ctx, AnnouncementReminder, date, func(dispatchCtx context.Context) error {
				return s.announcer.TournamentReminder(dispatchCtx, date, endsIn)
			})
		}
		s.lastObservedDate = date
	}
	s.lastObservedActive = status.Active
	s.state.Retain(status.Date, s.lastObservedDate)

	return fired
}

// Wait blocks until every dispatched announcement has finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// State exposes the announcement flags.
func (s *Scheduler) State() *AnnouncementState {
	return s.state
}

func (s *Scheduler) dispatch(ctx context.Context, kind Announcement, date string, send func(context.Context) error) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
		defer cancel()
		if err := send(dispatchCtx); err != nil {
			s.record(kind, "failed")
			s.logger.Warn("tournament announcement failed",
				zap.String("announcement", string(kind)),
				zap.String("date", date),
				zap.Error(err))
			return
		}
		s.record(kind, "sent")
		s.logger.Info("tournament announcement sent",
			zap.String("announcement", string(kind)),
			zap.String("date", date))
	}()
}

func (s *Scheduler) assignRewards(ctx context.Context, date string) {
	if s.rewards == nil || len(s.prizes) == 0 {
		return
	}
	awarded, err := s.rewards.AssignRewards(ctx, date, s.prizes)
	if err != nil {
		s.logger.Error("tournament reward assignment failed", zap.String("date", date), zap.Error(err))
		return
	}
	s.logger.Info("tournament rewards assigned", zap.String("date", date), zap.Int("winners", awarded))
}

func (s *Scheduler) publish(eventType, date string, seconds int64) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Message{
		Type:    eventType,
		Date:    date,
		Seconds: seconds,
	})
}

func (s *Scheduler) record(kind Announcement, outcome string) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordAnnouncement(string(kind), outcome)
}
