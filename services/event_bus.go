package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EventDesignAnalysisComplete = "design.analysis_complete"
	EventDesignAnalysisFailed   = "design.analysis_failed"
	EventQuotesGenerated        = "design.quotes_generated"
	EventOrderCreated           = "order.created"
	EventOrderStatusChanged     = "order.status_changed"
	EventManufacturerReviewed   = "manufacturer.reviewed"
)

// Event is a status change notification fanned out to subscribers
type Event struct {
	Type       string    `json:"type"`
	SubjectID  string    `json:"subject_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType, subjectID, status string) Event {
	return Event{Type: eventType, SubjectID: subjectID, Status: status, OccurredAt: time.Now().UTC()}
}

// EventBus publishes domain events. Publishing is best effort: callers log
// failures and never roll back committed state because of them.
type EventBus interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type redisEventBus struct {
	rdb     *redis.Client
	channel string
}

// NewRedisEventBus connects to addr and publishes on channel
func NewRedisEventBus(ctx context.Context, addr, channel string) (EventBus, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if channel == "" {
		channel = "fabmarket.events"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisEventBus{rdb: rdb, channel: channel}, nil
}

func (b *redisEventBus) Publish(ctx context.Context, evt Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisEventBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// NoopEventBus drops every event
type NoopEventBus struct{}

func (NoopEventBus) Publish(context.Context, Event) error { return nil }
func (NoopEventBus) Close() error                         { return nil }

// MemoryEventBus records published events (for tests and local runs)
type MemoryEventBus struct {
	mu     sync.Mutex
	events []Event
}

func (b *MemoryEventBus) Publish(_ context.Context, evt Event) error {
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
	return nil
}

func (b *MemoryEventBus) Close() error { return nil }

// Events returns a copy of everything published so far
func (b *MemoryEventBus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

var eventBusInstance EventBus = NoopEventBus{}

// GetEventBus returns the process-wide event bus
func GetEventBus() EventBus {
	return eventBusInstance
}

// SetEventBus replaces the process-wide event bus
func SetEventBus(bus EventBus) {
	if bus == nil {
		bus = NoopEventBus{}
	}
	eventBusInstance = bus
}
