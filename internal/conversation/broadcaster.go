// ABOUTME: In-memory fan-out of engine side-channel events
// ABOUTME: Lets the front end react to diagrams, calendar-link signals and failed sends

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/stakeholder-chat/internal/api"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 32

// EventType names a side-channel notification.
type EventType string

const (
	EventDiagrams              EventType = "diagrams"
	EventCalendarLinkRequested EventType = "calendar_link_requested"
	EventCalendarLinked        EventType = "calendar_linked"
	EventSendFailed            EventType = "send_failed"
)

// Event is a side-channel notification from the engine.
type Event struct {
	Type      EventType
	Diagrams  []api.Diagram // EventDiagrams
	MessageID string        // EventSendFailed: the rolled-back message
	Text      string        // EventSendFailed: its content
	Err       error         // EventSendFailed
}

// EventBroadcaster fans events out to every subscriber. Slow subscribers
// lose events rather than stall the engine.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	closed      bool
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber and returns its channel and ID. The
// subscription ends when ctx is cancelled, on Unsubscribe, or on Close; the
// channel is closed in every case. Subscribing after Close yields an already
// closed channel.
func (b *EventBroadcaster) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish delivers event to all subscribers without blocking.
func (b *EventBroadcaster) Publish(event Event) {
	// Sends happen under the read lock so a concurrent Unsubscribe cannot
	// close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"sub_id", id,
				"event_type", event.Type)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes all subscriber channels. Later publishes are dropped.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}

	b.logger.Debug("broadcaster closed")
}
