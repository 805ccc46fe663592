package tournament

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/grudge-angeler/backend/internal/events"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(value time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = value
}

func (c *fakeClock) Advance(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(step)
}

type recordingAnnouncer struct {
	mu        sync.Mutex
	calls     map[Announcement][]string
	failWith  error
	rewardLog *[]string
}

func newRecordingAnnouncer() *recordingAnnouncer {
	return &recordingAnnouncer{calls: make(map[Announcement][]string)}
}

func (a *recordingAnnouncer) record(kind Announcement, date string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[kind] = append(a.calls[kind], date)
	if a.rewardLog != nil {
		*a.rewardLog = append(*a.rewardLog, "announce:"+string(kind))
	}
	return a.failWith
}

func (a *recordingAnnouncer) TournamentStarted(_ context.Context, date string, _ time.Duration) error {
	return a.record(AnnouncementStart, date)
}

func (a *recordingAnnouncer) TournamentReminder(_ context.Context, date string, _ time.Duration) error {
	return a.record(AnnouncementReminder, date)
}

func (a *recordingAnnouncer) TournamentEnded(_ context.Context, date string) error {
	return a.record(AnnouncementEnd, date)
}

func (a *recordingAnnouncer) dates(kind Announcement) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls[kind]...)
}

type recordingRewards struct {
	mu     sync.Mutex
	log    *[]string
	dates  []string
	prizes []int64
}

func (r *recordingRewards) AssignRewards(_ context.Context, date string, prizes []int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, date)
	r.prizes = prizes
	*r.log = append(*r.log, "rewards:"+date)
	return len(prizes), nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []events.Message
}

func (p *recordingPublisher) Publish(message events.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) RecordAnnouncement(kind string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[kind+":"+outcome]++
}

type schedulerFixture struct {
	clock     *fakeClock
	announcer *recordingAnnouncer
	publisher *recordingPublisher
	recorder  *countingRecorder
	scheduler *Scheduler
}

func newSchedulerFixture(t *testing.T, start time.Time) schedulerFixture {
	t.Helper()
	clock := &fakeClock{now: start}
	calendar := newTestCalendar(t, clock.Now)
	announcer := newRecordingAnnouncer()
	publisher := &recordingPublisher{}
	recorder := &countingRecorder{}
	scheduler, err := NewScheduler(SchedulerConfig{
		Calendar:     calendar,
		Announcer:    announcer,
		Publisher:    publisher,
		Recorder:     recorder,
		PollInterval: time.Minute,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}
	return schedulerFixture{
		clock:     clock,
		announcer: announcer,
		publisher: publisher,
		recorder:  recorder,
		scheduler: scheduler,
	}
}

func TestSchedulerAnnouncesOncePerWindow(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(17, 58, 0))
	ctx := context.Background()

	if fired := fixture.scheduler.Tick(ctx); len(fired) != 0 {
		t.Fatalf("expected nothing before the window, got %v", fired)
	}

	fixture.clock.Set(localTime(18, 10, 0))
	for tick := 0; tick < 100; tick++ {
		fixture.scheduler.Tick(ctx)
		fixture.clock.Advance(time.Minute)
	}
	fixture.scheduler.Wait()

	if got := fixture.announcer.dates(AnnouncementStart); len(got) != 1 || got[0] != "2026-10-15" {
		t.Fatalf("expected exactly one start for 2026-10-15, got %v", got)
	}
	if got := fixture.announcer.dates(AnnouncementReminder); len(got) != 1 || got[0] != "2026-10-15" {
		t.Fatalf("expected exactly one reminder for 2026-10-15, got %v", got)
	}
	if got := fixture.announcer.dates(AnnouncementEnd); len(got) != 0 {
		t.Fatalf("expected no end while the window is open, got %v", got)
	}

	fixture.clock.Set(localTime(20, 0, 0))
	if fired := fixture.scheduler.Tick(ctx); len(fired) != 1 || fired[0] != AnnouncementEnd {
		t.Fatalf("expected end on the falling edge, got %v", fired)
	}
	for tick := 0; tick < 10; tick++ {
		fixture.clock.Advance(time.Minute)
		fixture.scheduler.Tick(ctx)
	}
	fixture.scheduler.Wait()

	if got := fixture.announcer.dates(AnnouncementEnd); len(got) != 1 || got[0] != "2026-10-15" {
		t.Fatalf("expected exactly one end for the concluded date, got %v", got)
	}
	if fixture.recorder.outcomes["start:sent"] != 1 || fixture.recorder.outcomes["end:sent"] != 1 {
		t.Fatalf("unexpected recorded outcomes %v", fixture.recorder.outcomes)
	}
}

func TestSchedulerReminderWaitsForReminderHour(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(18, 0, 0))
	ctx := context.Background()

	for tick := 0; tick < 59; tick++ {
		for _, kind := range fixture.scheduler.Tick(ctx) {
			if kind == AnnouncementReminder {
				t.Fatalf("reminder fired at %v", fixture.clock.Now())
			}
		}
		fixture.clock.Advance(time.Minute)
	}
	fixture.clock.Set(localTime(19, 0, 0))
	if fired := fixture.scheduler.Tick(ctx); len(fired) != 1 || fired[0] != AnnouncementReminder {
		t.Fatalf("expected reminder at 19:00, got %v", fired)
	}
	fixture.scheduler.Wait()
}

func TestSchedulerLateStartFiresStartAndReminder(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(19, 30, 0))

	fired := fixture.scheduler.Tick(context.Background())
	fixture.scheduler.Wait()
	if len(fired) != 2 || fired[0] != AnnouncementStart || fired[1] != AnnouncementReminder {
		t.Fatalf("expected start then reminder, got %v", fired)
	}
}

func TestSchedulerStartupAfterWindowSendsNoEnd(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(20, 30, 0))

	for tick := 0; tick < 5; tick++ {
		if fired := fixture.scheduler.Tick(context.Background()); len(fired) != 0 {
			t.Fatalf("expected no announcements without an observed window, got %v", fired)
		}
		fixture.clock.Advance(time.Minute)
	}
	fixture.scheduler.Wait()
}

func TestSchedulerDoesNotRetryFailedAnnouncements(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(18, 0, 0))
	fixture.announcer.failWith = errors.New("webhook unreachable")
	ctx := context.Background()

	for tick := 0; tick < 5; tick++ {
		fixture.scheduler.Tick(ctx)
		fixture.clock.Advance(time.Minute)
	}
	fixture.scheduler.Wait()

	if got := fixture.announcer.dates(AnnouncementStart); len(got) != 1 {
		t.Fatalf("expected a single failed start attempt, got %v", got)
	}
	if !fixture.scheduler.State().Sent("2026-10-15", AnnouncementStart) {
		t.Fatalf("expected start flag to stay set after failure")
	}
	if fixture.recorder.outcomes["start:failed"] != 1 {
		t.Fatalf("expected failure to be recorded, got %v", fixture.recorder.outcomes)
	}
}

func TestSchedulerRunsAcrossDays(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(18, 5, 0))
	ctx := context.Background()

	fixture.scheduler.Tick(ctx)
	fixture.scheduler.Wait()
	fixture.clock.Set(localTime(20, 1, 0))
	fixture.scheduler.Tick(ctx)
	fixture.scheduler.Wait()
	fixture.clock.Set(localTime(18, 5, 0).AddDate(0, 0, 1))
	fixture.scheduler.Tick(ctx)
	fixture.scheduler.Wait()

	starts := fixture.announcer.dates(AnnouncementStart)
	if len(starts) != 2 || starts[0] != "2026-10-15" || starts[1] != "2026-10-16" {
		t.Fatalf("expected one start per day, got %v", starts)
	}
	if fixture.scheduler.State().Sent("2026-10-14", AnnouncementStart) {
		t.Fatalf("unexpected state for an unseen day")
	}
	if len(fixture.scheduler.State().days) > 2 {
		t.Fatalf("expected old dates to be pruned, got %d", len(fixture.scheduler.State().days))
	}
}

func TestSchedulerAssignsRewardsBeforeEndAnnouncement(t *testing.T) {
	var log []string
	clock := &fakeClock{now: localTime(19, 59, 30)}
	announcer := newRecordingAnnouncer()
	announcer.rewardLog = &log
	rewards := &recordingRewards{log: &log}
	scheduler, err := NewScheduler(SchedulerConfig{
		Calendar:  newTestCalendar(t, clock.Now),
		Announcer: announcer,
		Rewards:   rewards,
		Prizes:    []int64{300, 200, 100},
	})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}
	ctx := context.Background()

	scheduler.Tick(ctx)
	scheduler.Wait()
	log = log[:0]

	clock.Set(localTime(20, 0, 30))
	scheduler.Tick(ctx)
	scheduler.Wait()

	if len(log) != 2 || log[0] != "rewards:2026-10-15" || log[1] != "announce:end" {
		t.Fatalf("expected rewards before the end announcement, got %v", log)
	}
	if len(rewards.prizes) != 3 || rewards.prizes[0] != 300 {
		t.Fatalf("unexpected prizes %v", rewards.prizes)
	}
}

func TestSchedulerPublishesPhaseEvents(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(19, 0, 0))
	ctx := context.Background()

	fixture.scheduler.Tick(ctx)
	fixture.clock.Set(localTime(20, 0, 0))
	fixture.scheduler.Tick(ctx)
	fixture.scheduler.Wait()

	fixture.publisher.mu.Lock()
	defer fixture.publisher.mu.Unlock()
	types := make([]string, 0, len(fixture.publisher.messages))
	for _, message := range fixture.publisher.messages {
		types = append(types, message.Type)
	}
	expected := []string{events.TypeTournamentStart, events.TypeTournamentReminder, events.TypeTournamentEnd}
	if len(types) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, types)
	}
	for index := range expected {
		if types[index] != expected[index] {
			t.Fatalf("expected %v, got %v", expected, types)
		}
	}
	if fixture.publisher.messages[0].Seconds != 3600 {
		t.Fatalf("expected start event to carry seconds until end, got %d", fixture.publisher.messages[0].Seconds)
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	fixture := newSchedulerFixture(t, localTime(18, 0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		fixture.scheduler.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(fixture.announcer.dates(AnnouncementStart)) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected the first tick to announce the start")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestNewSchedulerRequiresDependencies(t *testing.T) {
	if _, err := NewScheduler(SchedulerConfig{Announcer: newRecordingAnnouncer()}); !errors.Is(err, errMissingCalendar) {
		t.Fatalf("expected missing calendar error, got %v", err)
	}
	if _, err := NewScheduler(SchedulerConfig{Calendar: newTestCalendar(t, nil)}); !errors.Is(err, errMissingAnnouncer) {
		t.Fatalf("expected missing announcer error, got %v", err)
	}
}
