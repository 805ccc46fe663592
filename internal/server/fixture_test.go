package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/grudge-angeler/backend/internal/events"
	"github.com/grudge-angeler/backend/internal/metrics"
	"github.com/grudge-angeler/backend/internal/notify"
	"github.com/grudge-angeler/backend/internal/scores"
	"github.com/grudge-angeler/backend/internal/tournament"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

var testZone = time.FixedZone("UTC-6", -6*60*60)

func localTime(hour, minute, second int) time.Time {
	return time.Date(2026, 10, 15, hour, minute, second, 0, testZone)
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

func (c *fakeClock) Set(instant time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = instant
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.CatchEvent
}

func (n *recordingNotifier) NotifyCatch(_ context.Context, event notify.CatchEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []notify.CatchEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.CatchEvent(nil), n.events...)
}

type routerFixture struct {
	db       *gorm.DB
	store    *scores.Service
	calendar *tournament.Calendar
	clock    *fakeClock
	notifier *recordingNotifier
	hub      *events.Hub
	metrics  *metrics.Metrics
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := scores.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func newRouterFixture(t *testing.T, at time.Time) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &fakeClock{now: at}
	database := openTestDatabase(t)
	store, err := scores.NewService(scores.ServiceConfig{Database: database, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to build score store: %v", err)
	}
	calendar, err := tournament.NewCalendar(tournament.CalendarConfig{
		Window: tournament.DefaultWindowConfig(),
		Clock:  clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build calendar: %v", err)
	}
	recorder, err := metrics.NewWithRegistry(prometheus.NewRegistry(), false)
	if err != nil {
		t.Fatalf("failed to build metrics: %v", err)
	}
	return &routerFixture{
		db:       database,
		store:    store,
		calendar: calendar,
		clock:    clock,
		notifier: &recordingNotifier{},
		hub:      events.NewHub(),
		metrics:  recorder,
	}
}

func (f *routerFixture) dependencies(t *testing.T) Dependencies {
	t.Helper()
	entries, err := tournament.NewEntries(f.calendar, f.store)
	if err != nil {
		t.Fatalf("failed to build entries: %v", err)
	}
	return Dependencies{
		Scores:            f.store,
		Calendar:          f.calendar,
		Entries:           entries,
		Notifier:          f.notifier,
		Events:            f.hub,
		Metrics:           f.metrics,
		HeartbeatInterval: time.Hour,
	}
}

func (f *routerFixture) handler(t *testing.T) http.Handler {
	t.Helper()
	handler, err := NewHTTPHandler(f.dependencies(t))
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func performJSON(t *testing.T, handler http.Handler, method string, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	switch typed := body.(type) {
	case nil:
		payload = bytes.NewReader(nil)
	case string:
		payload = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		payload = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, target, payload)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode %q: %v", recorder.Body.String(), err)
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
