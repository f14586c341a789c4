// ABOUTME: Tests for the interactive chat loop against a fake backend API
// ABOUTME: Covers rendering, pagination, prompts, gating and the informational commands

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/stakeholder-chat/internal/api"
	"github.com/2389/stakeholder-chat/internal/availability"
	"github.com/2389/stakeholder-chat/internal/calendarlink"
	"github.com/2389/stakeholder-chat/internal/conversation"
	"github.com/2389/stakeholder-chat/internal/relay"
	"github.com/2389/stakeholder-chat/internal/store"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// Monday 10:00 UTC, inside office hours.
var openTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// Saturday, outside office hours.
var closedTime = time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)

// fakeBackend serves the subset of the API the client uses.
type fakeBackend struct {
	mu         sync.Mutex
	history    []api.HistoryMessage
	milestones []api.Milestone
	diagrams   []api.Diagram
	reply      string
	sent       []string
	linked     bool
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}

	mux.HandleFunc("GET /chat/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		write(w, api.MessagesResponse{ConversationID: "conv-1", Messages: f.history})
	})
	mux.HandleFunc("POST /chat/send-message", func(w http.ResponseWriter, r *http.Request) {
		var req api.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.sent = append(f.sent, req.Message)
		reply := f.reply
		f.mu.Unlock()
		write(w, api.SendMessageResponse{AIResponse: reply, ConversationID: "conv-1"})
	})
	mux.HandleFunc("GET /chat/milestones/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		write(w, map[string]any{"milestones": f.milestones})
	})
	mux.HandleFunc("POST /chat/sync-milestones/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		write(w, api.SyncResult{SyncedCount: len(f.milestones)})
	})
	mux.HandleFunc("GET /chat/diagrams/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		write(w, map[string]any{"diagrams": f.diagrams})
	})
	mux.HandleFunc("GET /chat/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		write(w, api.StatusResponse{GoogleCalendarLinked: f.linked})
	})
	return mux
}

func (f *fakeBackend) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// safeBuffer lets the test read output while background sends write to it.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	app     *app
	backend *fakeBackend
	out     *safeBuffer
	ctx     context.Context
}

func newHarness(t *testing.T, backend *fakeBackend, now time.Time) *harness {
	t.Helper()

	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)
	client := api.New(srv.URL)

	gate, err := availability.New(time.UTC, availability.DefaultDays, availability.DefaultHours)
	require.NoError(t, err)

	engine := conversation.NewEngine(conversation.Config{
		AssignmentID: "a1",
		SessionID:    "session_1_abc",
		Transport:    client,
		Gate:         gate,
		Now:          func() time.Time { return now },
	})
	t.Cleanup(engine.Close)

	out := &safeBuffer{}
	a := newApp(engine, nil, client, gate, out, nil)
	a.now = func() time.Time { return now }

	hs := calendarlink.New(calendarlink.Options{
		AssignmentID: "a1",
		Identity:     "user-1",
		API:          client,
		Bus:          relay.NewBus(nil),
		Store:        store.NewMockStore(),
		Notifier:     a.notifier(),
	})
	t.Cleanup(hs.Close)
	a.handshake = hs

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &harness{app: a, backend: backend, out: out, ctx: ctx}
}

func historyOf(n int) []api.HistoryMessage {
	msgs := make([]api.HistoryMessage, n)
	for i := range n {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = api.HistoryMessage{
			MessageID: "m" + string(rune('a'+i)),
			Role:      role,
			Content:   "history " + string(rune('a'+i)),
			Timestamp: openTime.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}
	}
	return msgs
}

func TestApp_StartEmptyConversationOffersPrompts(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, openTime)

	h.app.start(h.ctx)

	out := h.out.String()
	assert.Contains(t, out, "Not sure where to start?")
	assert.Contains(t, out, "1. "+suggestedPrompts[0])
	assert.Contains(t, out, "The stakeholder is available now.")
}

func TestApp_StartShowsLatestWindowAndMoreHint(t *testing.T) {
	h := newHarness(t, &fakeBackend{history: historyOf(7)}, openTime)

	h.app.start(h.ctx)

	out := h.out.String()
	assert.NotContains(t, out, "history a")
	assert.NotContains(t, out, "history b")
	assert.Contains(t, out, "history c")
	assert.Contains(t, out, "history g")
	assert.Contains(t, out, "(2 earlier messages, /more to show)")
}

func TestApp_MoreRevealsEarlierMessages(t *testing.T) {
	h := newHarness(t, &fakeBackend{history: historyOf(7)}, openTime)
	h.app.start(h.ctx)

	assert.False(t, h.app.handle(h.ctx, "/more"))

	out := h.out.String()
	assert.Contains(t, out, "── 2 earlier messages ──")
	assert.Contains(t, out, "history a")
	assert.Contains(t, out, "history b")

	h.app.handle(h.ctx, "/more")
	assert.Contains(t, h.out.String(), "No earlier messages.")
}

func TestApp_PlainTextSendsAndRendersReply(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: "Happy to help."}, openTime)
	h.app.start(h.ctx)

	h.app.handle(h.ctx, "What are the goals?")
	h.app.wait()

	assert.Equal(t, []string{"What are the goals?"}, h.backend.sentMessages())
	out := h.out.String()
	assert.Contains(t, out, "you")
	assert.Contains(t, out, "What are the goals?")
	assert.Contains(t, out, "stakeholder")
	assert.Contains(t, out, "Happy to help.")

	// Each message is rendered once
	assert.Equal(t, 1, strings.Count(out, "What are the goals?"))
}

func TestApp_PromptThenSend(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: "Sure."}, openTime)
	h.app.start(h.ctx)

	h.app.handle(h.ctx, "/prompt 2")
	assert.Contains(t, h.out.String(), "Input set to: "+suggestedPrompts[1])
	assert.Equal(t, suggestedPrompts[1], h.app.engine.Snapshot().Input)

	h.app.handle(h.ctx, "/send")
	h.app.wait()

	assert.Equal(t, []string{suggestedPrompts[1]}, h.backend.sentMessages())
	assert.Empty(t, h.app.engine.Snapshot().Input)
}

func TestApp_PromptOutOfRangeListsSuggestions(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, openTime)

	h.app.handle(h.ctx, "/prompt 9")

	assert.Contains(t, h.out.String(), "Not sure where to start?")
	assert.Empty(t, h.app.engine.Snapshot().Input)
}

func TestApp_ClosedGateBlocksSend(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, closedTime)
	h.app.start(h.ctx)

	h.app.handle(h.ctx, "hello?")
	h.app.wait()

	assert.Empty(t, h.backend.sentMessages())
	out := h.out.String()
	assert.Contains(t, out, "The stakeholder is unavailable. Office hours:")
	assert.Contains(t, out, "Back Monday at 09:00")
	// Input is kept for later
	assert.Equal(t, "hello?", h.app.engine.Snapshot().Input)
}

func TestApp_Milestones(t *testing.T) {
	h := newHarness(t, &fakeBackend{milestones: []api.Milestone{
		{ID: "1", Title: "Requirements", DueDate: "2026-03-10", Status: "completed"},
		{ID: "2", Title: "Prototype", Description: "Clickable mockups", Status: "in_progress"},
	}}, openTime)

	h.app.handle(h.ctx, "/milestones")

	out := h.out.String()
	assert.Contains(t, out, "[x] Requirements (2026-03-10)")
	assert.Contains(t, out, "[~] Prototype (no due date)")
	assert.Contains(t, out, "Clickable mockups")
}

func TestApp_SyncAndDiagrams(t *testing.T) {
	h := newHarness(t, &fakeBackend{
		milestones: []api.Milestone{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}},
		diagrams:   []api.Diagram{{Code: "graph TD; A-->B", Description: "Flow"}},
	}, openTime)

	h.app.handle(h.ctx, "/sync")
	h.app.handle(h.ctx, "/diagrams")

	out := h.out.String()
	assert.Contains(t, out, "Synced 2 milestones to your calendar.")
	assert.Contains(t, out, "#1 Flow")
	assert.Contains(t, out, "graph TD; A-->B")
}

func TestApp_StatusReportsCalendarLink(t *testing.T) {
	h := newHarness(t, &fakeBackend{linked: true}, openTime)
	h.app.start(h.ctx)

	h.app.handle(h.ctx, "/status")

	out := h.out.String()
	assert.Contains(t, out, "Assignment:   a1")
	assert.Contains(t, out, "Session:      session_1_abc")
	assert.Contains(t, out, "Conversation: conv-1")
	assert.Contains(t, out, "Calendar:     linked")
}

func TestApp_LinkWithoutClientIDReportsMisconfiguration(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, openTime)

	h.app.handle(h.ctx, "/link")

	assert.Contains(t, h.out.String(), "Calendar linking is not configured")
	assert.Equal(t, calendarlink.StateIdle, h.app.handshake.State())
}

func TestApp_QuitAndUnknown(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, openTime)

	assert.False(t, h.app.handle(h.ctx, "/bogus"))
	assert.Contains(t, h.out.String(), "Unknown command /bogus")
	assert.False(t, h.app.handle(h.ctx, "   "))

	for _, cmd := range []string{"/quit", "/exit", "/q"} {
		assert.True(t, h.app.handle(h.ctx, cmd), cmd)
	}
}

func TestStatusMark(t *testing.T) {
	assert.Equal(t, "[x]", statusMark("Completed"))
	assert.Equal(t, "[x]", statusMark("done"))
	assert.Equal(t, "[~]", statusMark("in_progress"))
	assert.Equal(t, "[ ]", statusMark("pending"))
	assert.Equal(t, "[ ]", statusMark(""))
}
