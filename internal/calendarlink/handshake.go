// ABOUTME: Cross-window authorization handshake that links an external calendar mid-conversation
// ABOUTME: Opens the consent page, waits for one same-origin completion message, exchanges the code and syncs milestones

package calendarlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/2389/stakeholder-chat/internal/api"
	"github.com/2389/stakeholder-chat/internal/relay"
	"github.com/2389/stakeholder-chat/internal/store"
)

// Handshake errors reported through the Notifier.
var (
	ErrNoClientID    = errors.New("calendar client id is not configured")
	ErrWindowBlocked = errors.New("authorization window could not be opened")
	ErrAuthFailed    = errors.New("calendar authorization failed")
	ErrClosed        = errors.New("handshake closed")
)

// State is the handshake's position in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateAwaiting   State = "awaiting_completion"
	StateExchanging State = "exchanging"
	StateDone       State = "done"
)

// LinkState is the persisted calendar link status for one identity.
type LinkState string

const (
	Unlinked LinkState = "unlinked"
	Linking  LinkState = "linking"
	Linked   LinkState = "linked"
)

// LinkKey returns the store key holding identity's link state.
func LinkKey(identity string) string {
	if identity == "" {
		identity = "anonymous"
	}
	return "calendar_link_" + identity
}

// API is the subset of the backend the handshake calls.
type API interface {
	LinkGoogleAuth(ctx context.Context, code string) (*api.LinkResponse, error)
	SyncMilestones(ctx context.Context, assignmentID string) (*api.SyncResult, error)
	GetStatus(ctx context.Context, assignmentID, sessionID string) (*api.StatusResponse, error)
}

// Result describes a completed link. SyncErr is set when the account was
// linked but the follow-up milestone sync failed.
type Result struct {
	Email       string
	SyncedCount int
	SyncErr     error
}

// Notifier receives the handshake outcome. Methods may be called from any
// goroutine.
type Notifier interface {
	LinkSucceeded(Result)
	LinkFailed(error)
}

// NotifierFuncs adapts a pair of functions to Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	OnSuccess func(Result)
	OnFailure func(error)
}

func (n NotifierFuncs) LinkSucceeded(r Result) {
	if n.OnSuccess != nil {
		n.OnSuccess(r)
	}
}

func (n NotifierFuncs) LinkFailed(err error) {
	if n.OnFailure != nil {
		n.OnFailure(err)
	}
}

// Options configures a Handshake.
type Options struct {
	AssignmentID string
	Identity     string // authenticated subject; scopes the persisted link state

	ClientID    string
	RedirectURL string
	Scopes      []string
	Origin      string // origin completion messages must carry

	API      API
	Bus      *relay.Bus
	Opener   WindowOpener
	Store    store.KV
	Notifier Notifier
	Logger   *slog.Logger
}

// Handshake runs at most one authorization flow at a time.
type Handshake struct {
	opts   Options
	oauth  *oauth2.Config
	logger *slog.Logger

	// Lifetime context for the code exchange; canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	oauthState  string
	window      Window
	unsubscribe func()
	closed      bool
	wg          sync.WaitGroup
}

// New creates an idle handshake.
func New(opts Options) *Handshake {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFuncs{}
	}
	if opts.Opener == nil {
		opts.Opener = BrowserOpener{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Handshake{
		opts: opts,
		oauth: &oauth2.Config{
			ClientID:    opts.ClientID,
			RedirectURL: opts.RedirectURL,
			Scopes:      opts.Scopes,
			Endpoint:    endpoints.Google,
		},
		logger: logger.With("component", "calendarlink", "assignment_id", opts.AssignmentID),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// AuthURL builds the consent page URL for the given anti-forgery state.
func (h *Handshake) AuthURL(state string) string {
	return h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Initiate starts a flow. It is a no-op while a flow is already pending.
// Configuration and window failures are reported to the Notifier and also
// returned; the handshake is back to idle afterwards.
func (h *Handshake) Initiate(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.state == StateAwaiting || h.state == StateExchanging {
		h.mu.Unlock()
		h.logger.Debug("initiate ignored, flow already pending", "state", h.state)
		return nil
	}
	if h.opts.ClientID == "" {
		h.mu.Unlock()
		h.opts.Notifier.LinkFailed(ErrNoClientID)
		return ErrNoClientID
	}

	oauthState := uuid.New().String()
	unsubscribe, err := h.opts.Bus.Subscribe(h.opts.Origin, h.onMessage)
	if err != nil {
		h.mu.Unlock()
		err = fmt.Errorf("listening for completion: %w", err)
		h.opts.Notifier.LinkFailed(err)
		return err
	}
	h.state = StateAwaiting
	h.oauthState = oauthState
	h.unsubscribe = unsubscribe
	h.mu.Unlock()

	// The guard is already held, so opening outside the lock is safe
	authURL := h.AuthURL(oauthState)
	window, err := h.opts.Opener.Open(authURL)
	if err != nil {
		h.logger.Warn("authorization window blocked", "error", err)
		h.finish(StateIdle)
		wrapped := fmt.Errorf("%w: %v", ErrWindowBlocked, err)
		h.opts.Notifier.LinkFailed(wrapped)
		return wrapped
	}

	h.mu.Lock()
	if h.state != StateAwaiting || h.oauthState != oauthState {
		// Closed or completed while the window was opening
		h.mu.Unlock()
		_ = window.Close()
		return nil
	}
	h.window = window
	h.mu.Unlock()

	h.persist(ctx, Linking)
	h.logger.Info("authorization window opened")
	return nil
}

// onMessage handles a relay delivery. The bus has already enforced origin.
func (h *Handshake) onMessage(msg relay.Message) {
	h.mu.Lock()
	if h.state != StateAwaiting {
		h.mu.Unlock()
		return
	}
	if msg.State != "" && msg.State != h.oauthState {
		h.mu.Unlock()
		h.logger.Warn("ignored completion for a different authorization request")
		return
	}

	switch {
	case msg.Type == relay.TypeAuthSuccess && msg.Code != "":
		h.state = StateExchanging
		h.wg.Add(1)
		h.mu.Unlock()
		go h.exchange(msg.Code)

	case msg.Type == relay.TypeAuthError:
		h.mu.Unlock()
		h.logger.Info("authorization failed in window", "error", msg.Error)
		h.finish(StateIdle)
		h.persist(h.ctx, Unlinked)
		h.opts.Notifier.LinkFailed(fmt.Errorf("%w: %s", ErrAuthFailed, msg.Error))

	default:
		h.mu.Unlock()
		h.logger.Debug("ignored unrecognized completion message", "type", msg.Type)
	}
}

func (h *Handshake) exchange(code string) {
	defer h.wg.Done()

	link, err := h.opts.API.LinkGoogleAuth(h.ctx, code)
	if err != nil {
		h.logger.Error("linking calendar failed", "error", err)
		h.finish(StateIdle)
		if h.ctx.Err() != nil {
			// Torn down mid-exchange; Close records the outcome
			return
		}
		h.persist(h.ctx, Unlinked)
		h.opts.Notifier.LinkFailed(fmt.Errorf("%w: %w", ErrAuthFailed, err))
		return
	}

	result := Result{}
	if link != nil {
		result.Email = link.Email
	}
	h.persist(h.ctx, Linked)

	synced, err := h.opts.API.SyncMilestones(h.ctx, h.opts.AssignmentID)
	if err != nil {
		h.logger.Warn("milestone sync after linking failed", "error", err)
		result.SyncErr = err
	} else if synced != nil {
		result.SyncedCount = synced.SyncedCount
	}

	h.finish(StateDone)
	h.logger.Info("calendar linked", "synced", result.SyncedCount)
	h.opts.Notifier.LinkSucceeded(result)
}

// finish releases the listener and window and moves to next. Runs on every
// exit path.
func (h *Handshake) finish(next State) {
	h.mu.Lock()
	unsubscribe := h.unsubscribe
	window := h.window
	h.unsubscribe = nil
	h.window = nil
	h.oauthState = ""
	h.state = next
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if window != nil && !window.Closed() {
		if err := window.Close(); err != nil {
			h.logger.Debug("closing authorization window", "error", err)
		}
	}
}

func (h *Handshake) persist(ctx context.Context, state LinkState) {
	if h.opts.Store == nil {
		return
	}
	// Link state must land even when the handshake is being torn down
	ctx = context.WithoutCancel(ctx)
	if err := h.opts.Store.Set(ctx, LinkKey(h.opts.Identity), string(state)); err != nil {
		h.logger.Warn("saving link state", "state", state, "error", err)
	}
}

// LinkState returns the persisted link state for the current identity.
// Anything unreadable counts as Unlinked.
func (h *Handshake) LinkState(ctx context.Context) LinkState {
	if h.opts.Store == nil {
		return Unlinked
	}
	v, err := h.opts.Store.Get(ctx, LinkKey(h.opts.Identity))
	if err != nil {
		return Unlinked
	}
	switch LinkState(v) {
	case Linking, Linked:
		return LinkState(v)
	default:
		return Unlinked
	}
}

// RefreshLinkState asks the backend whether the calendar is linked and
// persists the answer. A pending flow keeps its Linking state.
func (h *Handshake) RefreshLinkState(ctx context.Context, sessionID string) (LinkState, error) {
	status, err := h.opts.API.GetStatus(ctx, h.opts.AssignmentID, sessionID)
	if err != nil {
		return h.LinkState(ctx), fmt.Errorf("fetching link status: %w", err)
	}

	h.mu.Lock()
	pending := h.state == StateAwaiting || h.state == StateExchanging
	h.mu.Unlock()

	next := Unlinked
	switch {
	case status.GoogleCalendarLinked:
		next = Linked
	case pending:
		next = Linking
	}
	h.persist(ctx, next)
	return next, nil
}

// MarkLinked records a link confirmed by another channel, such as a chat
// response reporting the calendar as linked.
func (h *Handshake) MarkLinked(ctx context.Context) {
	h.persist(ctx, Linked)
}

// Close aborts any pending flow, releases the listener and window, and waits
// for an in-progress exchange to return. Idempotent.
func (h *Handshake) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	wasPending := h.state == StateAwaiting || h.state == StateExchanging
	h.mu.Unlock()

	h.cancel()
	h.finish(StateIdle)
	h.wg.Wait()

	// An exchange that won the race may have completed the link
	if wasPending && h.State() != StateDone {
		h.persist(h.ctx, Unlinked)
	}
}
