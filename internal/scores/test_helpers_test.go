package scores

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sequentialIDProvider struct {
	next atomic.Int64
}

func (p *sequentialIDProvider) NewID() (string, error) {
	return fmt.Sprintf("entry-%06d", p.next.Add(1)), nil
}

type failingIDProvider struct{}

func (failingIDProvider) NewID() (string, error) {
	return "", fmt.Errorf("entropy exhausted")
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	var clockMu sync.Mutex
	clockNow := time.Date(2026, 10, 15, 0, 30, 0, 0, time.UTC)
	service, err := NewService(ServiceConfig{
		Database:   openTestDatabase(t),
		IDProvider: &sequentialIDProvider{},
		Logger:     zap.NewNop(),
		Clock: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clockNow = clockNow.Add(time.Second)
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
