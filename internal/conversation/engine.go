// ABOUTME: Conversation session engine owning history, the display window and the send protocol
// ABOUTME: Optimistic append with rollback by ID, latest-wins cancellation, one-shot history load

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/stakeholder-chat/internal/api"
)

// Window sizes.
const (
	InitialWindow = 5 // messages shown after history loads
	PageSize      = 5 // messages revealed by LoadMore
	ExchangeSize  = 2 // user + assistant pair revealed by a successful send
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("conversation engine closed")

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message. Messages are never edited; a failed send
// removes its optimistic message by ID.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// Transport is the backend surface the engine needs.
type Transport interface {
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.SendMessageResponse, error)
	GetMessages(ctx context.Context, params api.GetMessagesParams) (*api.MessagesResponse, error)
}

// Gate reports whether the stakeholder accepts messages at an instant.
type Gate interface {
	IsAvailable(now time.Time) bool
}

// Config configures an Engine.
type Config struct {
	AssignmentID string
	SessionID    string
	Transport    Transport
	Gate         Gate // nil means always available
	Now          func() time.Time
	Logger       *slog.Logger
}

// Snapshot is a copy of engine state for rendering.
type Snapshot struct {
	AssignmentID   string
	SessionID      string
	ConversationID string
	Visible        []Message
	Total          int
	Displayed      int
	HasMore        bool
	Sending        bool
	LoadingHistory bool
	Input          string
}

// Engine owns one conversation for the lifetime of a chat screen.
type Engine struct {
	assignmentID string
	sessionID    string
	transport    Transport
	gate         Gate
	now          func() time.Time
	logger       *slog.Logger
	events       *EventBroadcaster

	mu             sync.Mutex
	messages       []Message
	displayed      int
	conversationID string
	input          string
	sending        bool
	pendingCounted bool // the in-flight optimistic message is inside displayed
	loadingHistory bool
	historyStarted bool
	generation     uint64
	cancelSend     context.CancelFunc
	closed         bool
}

// NewEngine creates an engine bound to one assignment and session.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger = logger.With("component", "conversation", "assignment_id", cfg.AssignmentID)

	return &Engine{
		assignmentID: cfg.AssignmentID,
		sessionID:    cfg.SessionID,
		transport:    cfg.Transport,
		gate:         cfg.Gate,
		now:          now,
		logger:       logger,
		events:       NewEventBroadcaster(logger),
	}
}

// LoadHistory fetches the stored conversation. It runs at most once per
// engine; later calls return immediately. Failures leave the history empty
// and are only logged.
func (e *Engine) LoadHistory(ctx context.Context) {
	e.mu.Lock()
	if e.historyStarted || e.closed || e.assignmentID == "" {
		e.mu.Unlock()
		return
	}
	e.historyStarted = true
	e.loadingHistory = true
	e.mu.Unlock()

	resp, err := e.transport.GetMessages(ctx, api.GetMessagesParams{
		AssignmentID: e.assignmentID,
		SessionID:    e.sessionID,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadingHistory = false

	if err != nil {
		e.logger.Warn("loading history failed", "error", err)
		return
	}
	if e.closed {
		return
	}

	history := make([]Message, 0, len(resp.Messages))
	for _, hm := range resp.Messages {
		history = append(history, fromHistory(hm))
	}

	// Anything sent while history was loading stays visible after it
	local := len(e.messages)
	e.messages = append(history, e.messages...)
	e.displayed = max(e.displayed, min(len(history), InitialWindow)+local)
	e.displayed = min(e.displayed, len(e.messages))
	if e.sending {
		e.pendingCounted = true
	}
	if resp.ConversationID != "" {
		e.conversationID = resp.ConversationID
	}

	e.logger.Debug("history loaded", "messages", len(history), "displayed", e.displayed)
}

func fromHistory(hm api.HistoryMessage) Message {
	id := hm.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	ts, err := time.Parse(time.RFC3339Nano, hm.Timestamp)
	if err != nil {
		ts = time.Time{}
	}
	return Message{
		ID:        id,
		Role:      Role(hm.Role),
		Content:   hm.Content,
		Timestamp: ts,
	}
}

// Send posts text as a user message. It is a silent no-op (nil, no request)
// when the trimmed text is empty, no assignment is bound, or the gate is
// closed. A send started while another is in flight cancels the earlier one;
// the earlier call then returns nil and its result is discarded. A failure of
// the current send removes its optimistic message and is returned.
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.assignmentID == "" || !e.availableLocked() {
		e.mu.Unlock()
		return nil
	}

	msg := Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: e.now(),
	}
	e.messages = append(e.messages, msg)
	e.input = ""

	if e.cancelSend != nil {
		e.cancelSend()
	}
	e.generation++
	gen := e.generation
	sendCtx, cancel := context.WithCancel(ctx)
	e.cancelSend = cancel
	e.sending = true
	e.pendingCounted = false
	e.mu.Unlock()

	resp, err := e.transport.SendMessage(sendCtx, api.SendMessageRequest{
		AssignmentID: e.assignmentID,
		Message:      text,
		SessionID:    e.sessionID,
	})
	cancel()

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		e.logger.Debug("discarded superseded send result", "message_id", msg.ID)
		return nil
	}
	e.sending = false
	e.pendingCounted = false
	e.cancelSend = nil

	if err != nil {
		e.removeLocked(msg.ID)
		e.mu.Unlock()

		e.logger.Warn("send failed", "message_id", msg.ID, "error", err)
		e.events.Publish(Event{Type: EventSendFailed, MessageID: msg.ID, Text: text, Err: err})
		return err
	}

	reply := Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   resp.AIResponse,
		Timestamp: e.now(),
		Metadata:  resp.Metadata,
	}
	e.messages = append(e.messages, reply)
	if resp.ConversationID != "" {
		e.conversationID = resp.ConversationID
	}
	// A fresh exchange is always fully visible regardless of window size
	e.displayed = min(e.displayed+ExchangeSize, len(e.messages))
	e.mu.Unlock()

	if len(resp.Diagrams) > 0 {
		e.events.Publish(Event{Type: EventDiagrams, Diagrams: resp.Diagrams})
	}
	if resp.NeedsGoogleAuth {
		e.events.Publish(Event{Type: EventCalendarLinkRequested})
	}
	if resp.GoogleCalendarLinked {
		e.events.Publish(Event{Type: EventCalendarLinked})
	}
	return nil
}

// removeLocked drops the message with id. Must be called with mu held.
func (e *Engine) removeLocked(id string) {
	for i, m := range e.messages {
		if m.ID == id {
			e.messages = append(e.messages[:i], e.messages[i+1:]...)
			break
		}
	}
	e.displayed = min(e.displayed, len(e.messages))
}

func (e *Engine) availableLocked() bool {
	return e.gate == nil || e.gate.IsAvailable(e.now())
}

// Submit sends the input buffer. It is a no-op while a send is in flight.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.sending {
		e.mu.Unlock()
		return nil
	}
	text := e.input
	e.mu.Unlock()

	return e.Send(ctx, text)
}

// SetInput replaces the input buffer.
func (e *Engine) SetInput(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.input = text
}

// ApplySuggestedPrompt fills the input buffer with a suggested prompt
// without sending it.
func (e *Engine) ApplySuggestedPrompt(text string) {
	e.SetInput(text)
}

// CanSend reports whether the send control should be enabled at now.
func (e *Engine) CanSend(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.sending || e.assignmentID == "" {
		return false
	}
	if strings.TrimSpace(e.input) == "" {
		return false
	}
	return e.gate == nil || e.gate.IsAvailable(now)
}

// LoadMore reveals up to PageSize older messages. Purely local.
func (e *Engine) LoadMore() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.messages) <= e.displayed {
		return
	}
	e.displayed = min(e.displayed+PageSize, len(e.messages))
}

// Snapshot returns a copy of the state for rendering. The visible window is
// the last Displayed messages; while a send is in flight its optimistic
// message is shown in addition unless history loading already counted it.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	shown := e.displayed
	if e.sending && !e.pendingCounted {
		shown = min(shown+1, len(e.messages))
	}
	visible := make([]Message, shown)
	copy(visible, e.messages[len(e.messages)-shown:])

	return Snapshot{
		AssignmentID:   e.assignmentID,
		SessionID:      e.sessionID,
		ConversationID: e.conversationID,
		Visible:        visible,
		Total:          len(e.messages),
		Displayed:      e.displayed,
		HasMore:        len(e.messages) > e.displayed,
		Sending:        e.sending,
		LoadingHistory: e.loadingHistory,
		Input:          e.input,
	}
}

// Subscribe returns side-channel events until ctx ends or the engine closes.
func (e *Engine) Subscribe(ctx context.Context) <-chan Event {
	ch, _ := e.events.Subscribe(ctx)
	return ch
}

// Close cancels any in-flight send, invalidates its result and closes event
// subscriptions. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.generation++
	if e.cancelSend != nil {
		e.cancelSend()
		e.cancelSend = nil
	}
	e.sending = false
	e.pendingCounted = false
	e.mu.Unlock()

	e.events.Close()
	e.logger.Debug("engine closed")
}
