package events

import (
	"context"
	"sync"
	"time"
)

const (
	TypeTournamentStart    = "tournament-start"
	TypeTournamentReminder = "tournament-reminder"
	TypeTournamentEnd      = "tournament-end"
	TypeHeartbeat          = "heartbeat"
	SourceBackend          = "angeler-backend"

	defaultBufferSize = 16
)

// Message is a single event fanned out to every subscriber.
type Message struct {
	Type      string    `json:"type"`
	Date      string    `json:"date"`
	Seconds   int64     `json:"seconds,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub broadcasts messages to subscribers. Slow subscribers drop messages rather than block publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Message
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int64]*subscriber),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe registers a stream that is removed when ctx ends or the returned cleanup runs.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Message, func()) {
	sub := &subscriber{
		stream: make(chan Message, h.bufferSize),
	}
	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cleanup := func() {
		once.Do(func() {
			close(done)
			h.unsubscribe(sub.id)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return sub.stream, cleanup
}

func (h *Hub) Publish(message Message) {
	if message.Type == "" {
		return
	}
	if message.Source == "" {
		message.Source = SourceBackend
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(sub.stream)
}
