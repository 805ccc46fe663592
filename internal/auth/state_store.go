package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	defaultStateTTL             = 10 * time.Minute
	defaultStateCleanupInterval = 5 * time.Minute
)

// ErrUnknownState indicates an OAuth state that was never issued, already used, or expired.
var ErrUnknownState = errors.New("auth: unknown oauth state")

// StateStore holds single-use OAuth state values until they expire.
type StateStore struct {
	mu      sync.Mutex
	entries *cache.Cache
	ttl     time.Duration
	newID   func() (uuid.UUID, error)
}

func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateStore{
		entries: cache.New(ttl, defaultStateCleanupInterval),
		ttl:     ttl,
		newID:   uuid.NewRandom,
	}
}

// Issue creates a new state value remembering where to send the player afterwards.
func (s *StateStore) Issue(returnTo string) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", err
	}
	state := strings.ReplaceAll(id.String(), "-", "")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.entries.Add(state, returnTo, s.ttl); err != nil {
		return "", err
	}
	return state, nil
}

// Consume validates and removes state, returning the stored redirect target.
func (s *StateStore) Consume(state string) (string, error) {
	key := strings.TrimSpace(state)
	if key == "" {
		return "", ErrUnknownState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.entries.Get(key)
	if !ok {
		return "", ErrUnknownState
	}
	s.entries.Delete(key)
	returnTo, _ := value.(string)
	return returnTo, nil
}

// Len reports stored states, including expired ones the janitor has not swept yet.
func (s *StateStore) Len() int {
	return s.entries.ItemCount()
}
