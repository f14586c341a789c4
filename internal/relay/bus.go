// ABOUTME: Single-subscriber message bus standing in for the browser's cross-window channel
// ABOUTME: Delivers posted messages only when their origin matches the subscription's origin

package relay

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrAlreadySubscribed is returned when a second listener tries to attach.
var ErrAlreadySubscribed = errors.New("relay bus already has a subscriber")

// MessageType identifies a cross-window message shape.
type MessageType string

// Message types posted by the callback page.
const (
	TypeAuthSuccess MessageType = "auth-success"
	TypeAuthError   MessageType = "auth-error"
)

// Message is a cross-window message. Origin identifies the sender and is
// stamped by the poster, never taken from untrusted input.
type Message struct {
	Origin string
	Type   MessageType
	Code   string
	State  string
	Error  string
}

// Handler receives delivered messages. It runs on the posting goroutine and
// must not block.
type Handler func(Message)

type subscription struct {
	id      string
	origin  string
	handler Handler
}

// Bus holds at most one subscription at a time.
type Bus struct {
	mu     sync.Mutex
	sub    *subscription
	logger *slog.Logger
}

// NewBus creates a bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With("component", "relay")}
}

// Subscribe attaches handler for messages from origin. The returned function
// detaches it and is safe to call more than once.
func (b *Bus) Subscribe(origin string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		return nil, ErrAlreadySubscribed
	}

	sub := &subscription{
		id:      uuid.New().String(),
		origin:  origin,
		handler: handler,
	}
	b.sub = sub
	b.logger.Debug("subscriber added", "sub_id", sub.id, "origin", origin)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(sub.id) })
	}, nil
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A newer subscription must not be removed by a stale unsubscribe
	if b.sub == nil || b.sub.id != id {
		return
	}
	b.sub = nil
	b.logger.Debug("subscriber removed", "sub_id", id)
}

// Subscribed reports whether a listener is attached.
func (b *Bus) Subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub != nil
}

// Post delivers msg to the subscriber if its origin matches and reports
// whether it was delivered.
func (b *Bus) Post(msg Message) bool {
	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()

	if sub == nil {
		b.logger.Debug("dropped message with no subscriber", "type", msg.Type)
		return false
	}
	if msg.Origin != sub.origin {
		b.logger.Warn("ignored message from foreign origin",
			"origin", msg.Origin,
			"want_origin", sub.origin,
			"type", msg.Type)
		return false
	}

	sub.handler(msg)
	return true
}
