package tournament

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the civil date format used for tournament days.
const DateLayout = "2006-01-02"

const (
	defaultUTCOffsetHours = -6
	defaultStartHour      = 18
	defaultEndHour        = 20
	defaultReminderHour   = 19
)

var (
	// ErrInvalidWindow indicates the configured tournament hours do not describe a window inside one day.
	ErrInvalidWindow = errors.New("tournament: invalid window configuration")
	// ErrInvalidDate indicates a civil date string could not be parsed.
	ErrInvalidDate = errors.New("tournament: invalid date")
)

// Phase describes where an instant falls relative to the day's window.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseActive Phase = "active"
	PhaseAfter  Phase = "after"
)

// WindowConfig describes the daily tournament window in a fixed UTC offset.
type WindowConfig struct {
	UTCOffsetHours int
	StartHour      int
	EndHour        int
	ReminderHour   int
}

// DefaultWindowConfig returns the 18:00-20:00 window at UTC-6 with a 19:00 reminder.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		UTCOffsetHours: defaultUTCOffsetHours,
		StartHour:      defaultStartHour,
		EndHour:        defaultEndHour,
		ReminderHour:   defaultReminderHour,
	}
}

// Validate reports whether the window fits inside a single civil day.
func (cfg WindowConfig) Validate() error {
	if cfg.UTCOffsetHours < -12 || cfg.UTCOffsetHours > 14 {
		return fmt.Errorf("%w: utc offset %d out of range", ErrInvalidWindow, cfg.UTCOffsetHours)
	}
	if cfg.StartHour < 0 || cfg.EndHour > 24 || cfg.StartHour >= cfg.EndHour {
		return fmt.Errorf("%w: start %d must precede end %d", ErrInvalidWindow, cfg.StartHour, cfg.EndHour)
	}
	if cfg.ReminderHour < cfg.StartHour || cfg.ReminderHour >= cfg.EndHour {
		return fmt.Errorf("%w: reminder hour %d outside window", ErrInvalidWindow, cfg.ReminderHour)
	}
	return nil
}

// WindowStatus is the evaluator's view of the tournament at one instant.
// SecondsUntilStart is set when inactive, SecondsUntilEnd when active.
type WindowStatus struct {
	Active            bool
	Phase             Phase
	Date              string
	SecondsUntilStart *int64
	SecondsUntilEnd   *int64
}

// CalendarConfig wires a Calendar.
type CalendarConfig struct {
	Window WindowConfig
	Clock  func() time.Time
}

// Calendar maps instants to tournament windows. It holds no mutable state.
type Calendar struct {
	window WindowConfig
	zone   *time.Location
	clock  func() time.Time
}

// NewCalendar validates the window and builds a Calendar.
func NewCalendar(cfg CalendarConfig) (*Calendar, error) {
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Calendar{
		window: cfg.Window,
		zone:   fixedZone(cfg.Window.UTCOffsetHours),
		clock:  clock,
	}, nil
}

func fixedZone(offsetHours int) *time.Location {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	if offsetHours == 0 {
		name = "UTC"
	}
	return time.FixedZone(name, offsetHours*int(time.Hour/time.Second))
}

// Window returns the configured window.
func (c *Calendar) Window() WindowConfig {
	return c.window
}

// Location returns the fixed-offset zone the calendar evaluates in.
func (c *Calendar) Location() *time.Location {
	return c.zone
}

// Now returns the current instant in the calendar's zone.
func (c *Calendar) Now() time.Time {
	return c.clock().In(c.zone)
}

// CurrentDate returns today's civil date in the calendar's zone.
func (c *Calendar) CurrentDate() string {
	return c.Now().Format(DateLayout)
}

// Status evaluates the window at the current instant.
func (c *Calendar) Status() WindowStatus {
	return c.StatusAt(c.clock())
}

// StatusAt evaluates the window at the given instant. After today's window closes the
// reported date and countdown refer to tomorrow's window.
func (c *Calendar) StatusAt(instant time.Time) WindowStatus {
	local := instant.In(c.zone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.zone)
	start := midnight.Add(time.Duration(c.window.StartHour) * time.Hour)
	end := midnight.Add(time.Duration(c.window.EndHour) * time.Hour)

	switch {
	case local.Before(start):
		return WindowStatus{
			Phase:             PhaseBefore,
			Date:              midnight.Format(DateLayout),
			SecondsUntilStart: secondsUntil(local, start),
		}
	case local.Before(end):
		return WindowStatus{
			Active:          true,
			Phase:           PhaseActive,
			Date:            midnight.Format(DateLayout),
			SecondsUntilEnd: secondsUntil(local, end),
		}
	default:
		nextStart := start.AddDate(0, 0, 1)
		return WindowStatus{
			Phase:             PhaseAfter,
			Date:              nextStart.Format(DateLayout),
			SecondsUntilStart: secondsUntil(local, nextStart),
		}
	}
}

// secondsUntil rounds partial seconds up so a countdown never reads zero before the boundary.
func secondsUntil(from, to time.Time) *int64 {
	remaining := to.Sub(from)
	seconds := int64(remaining / time.Second)
	if remaining%time.Second > 0 {
		seconds++
	}
	return &seconds
}

// ParseDate validates a civil date string and returns it in canonical form.
func ParseDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return parsed.Format(DateLayout), nil
}
