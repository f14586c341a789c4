// ABOUTME: Interactive chat loop driving the conversation engine from the terminal
// ABOUTME: Parses slash commands, renders messages and reacts to engine and handshake events

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/2389/stakeholder-chat/internal/api"
	"github.com/2389/stakeholder-chat/internal/availability"
	"github.com/2389/stakeholder-chat/internal/calendarlink"
	"github.com/2389/stakeholder-chat/internal/conversation"
)

// suggestedPrompts are offered to a student facing an empty conversation.
var suggestedPrompts = []string{
	"Could you walk me through the main goals of this project?",
	"Who are the end users, and what problems do they have today?",
	"What would a successful first milestone look like for you?",
	"Are there any constraints on budget, timeline or technology?",
}

// backend is the part of the API client the commands call directly.
type backend interface {
	GetMilestones(ctx context.Context, assignmentID string) ([]api.Milestone, error)
	SyncMilestones(ctx context.Context, assignmentID string) (*api.SyncResult, error)
	GetDiagrams(ctx context.Context, assignmentID string) ([]api.Diagram, error)
}

type app struct {
	engine    *conversation.Engine
	handshake *calendarlink.Handshake
	backend   backend
	gate      *availability.Gate
	now       func() time.Time
	logger    *slog.Logger

	outMu   sync.Mutex
	out     io.Writer
	printed map[string]bool

	sends sync.WaitGroup
}

func newApp(engine *conversation.Engine, handshake *calendarlink.Handshake, b backend, gate *availability.Gate, out io.Writer, logger *slog.Logger) *app {
	if logger == nil {
		logger = slog.Default()
	}
	return &app{
		engine:    engine,
		handshake: handshake,
		backend:   b,
		gate:      gate,
		now:       time.Now,
		logger:    logger.With("component", "cli"),
		out:       out,
		printed:   make(map[string]bool),
	}
}

func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// start loads history and begins relaying engine events to the terminal.
func (a *app) start(ctx context.Context) {
	events := a.engine.Subscribe(ctx)
	go a.watchEvents(ctx, events)

	a.engine.LoadHistory(ctx)
	a.renderNew()

	snap := a.engine.Snapshot()
	if snap.Total == 0 {
		a.printSuggestions()
	} else if snap.HasMore {
		a.printf("%s\n", color.HiBlackString("(%d earlier messages, /more to show)", snap.Total-snap.Displayed))
	}
	a.printAvailability()
}

func (a *app) watchEvents(ctx context.Context, events <-chan conversation.Event) {
	for ev := range events {
		switch ev.Type {
		case conversation.EventDiagrams:
			for _, d := range ev.Diagrams {
				desc := d.Description
				if desc == "" {
					desc = "untitled diagram"
				}
				a.printf("%s %s\n", color.MagentaString("[diagram]"), desc)
			}
			a.printf("%s\n", color.HiBlackString("(use /diagrams to list diagram sources)"))
		case conversation.EventCalendarLinkRequested:
			a.printf("%s\n", color.YellowString("The stakeholder would like to see your calendar. Type /link to connect it."))
		case conversation.EventCalendarLinked:
			a.handshake.MarkLinked(ctx)
		case conversation.EventSendFailed:
			a.printf("%s %v\n", color.RedString("[not delivered]"), ev.Err)
			a.printf("%s\n", color.HiBlackString("Your message was: %s", ev.Text))
		}
	}
}

// handle processes one input line. It reports true when the user asked to quit.
func (a *app) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		a.engine.SetInput(line)
		a.submit(ctx)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		a.printHelp()
	case "/more":
		a.showMore()
	case "/send":
		a.submit(ctx)
	case "/prompt":
		a.applyPrompt(arg)
	case "/link":
		if err := a.handshake.Initiate(ctx); err == nil && a.handshake.State() == calendarlink.StateAwaiting {
			a.printf("%s\n", color.CyanString("Opened the calendar consent page in your browser. Finish there to continue."))
		}
	case "/status":
		a.showStatus(ctx)
	case "/milestones":
		a.showMilestones(ctx)
	case "/sync":
		a.syncMilestones(ctx)
	case "/diagrams":
		a.showDiagrams(ctx)
	default:
		a.printf("Unknown command %s. /help lists commands.\n", cmd)
	}
	return false
}

// submit sends the input buffer in the background so typing stays responsive.
func (a *app) submit(ctx context.Context) {
	snap := a.engine.Snapshot()
	switch {
	case snap.Sending:
		a.printf("%s\n", color.HiBlackString("Still waiting for the last reply; your text is kept, /send when it arrives."))
		return
	case strings.TrimSpace(snap.Input) == "":
		return
	case !a.engine.CanSend(a.now()):
		a.printUnavailable()
		return
	}

	a.sends.Add(1)
	go func() {
		defer a.sends.Done()
		if err := a.engine.Submit(ctx); err != nil {
			// send_failed event already told the user
			a.logger.Debug("send returned error", "error", err)
		}
		a.renderNew()
	}()
	a.renderNew()
}

// wait blocks until background sends finish.
func (a *app) wait() {
	a.sends.Wait()
}

func (a *app) renderNew() {
	snap := a.engine.Snapshot()
	a.outMu.Lock()
	defer a.outMu.Unlock()

	for _, m := range snap.Visible {
		if a.printed[m.ID] {
			continue
		}
		a.printed[m.ID] = true
		writeMessage(a.out, m)
	}
}

func writeMessage(w io.Writer, m conversation.Message) {
	who := color.New(color.FgGreen, color.Bold).Sprint("you")
	if m.Role == conversation.RoleAssistant {
		who = color.New(color.FgBlue, color.Bold).Sprint("stakeholder")
	}
	stamp := ""
	if !m.Timestamp.IsZero() {
		stamp = color.HiBlackString(" %s", m.Timestamp.Local().Format("Mon 15:04"))
	}
	fmt.Fprintf(w, "%s%s: %s\n", who, stamp, m.Content)
}

func (a *app) showMore() {
	before := a.engine.Snapshot()
	if !before.HasMore {
		a.printf("%s\n", color.HiBlackString("No earlier messages."))
		return
	}
	a.engine.LoadMore()
	after := a.engine.Snapshot()

	revealed := after.Displayed - before.Displayed
	a.outMu.Lock()
	fmt.Fprintf(a.out, "%s\n", color.HiBlackString("── %d earlier messages ──", revealed))
	for _, m := range after.Visible[:revealed] {
		a.printed[m.ID] = true
		writeMessage(a.out, m)
	}
	fmt.Fprintf(a.out, "%s\n", color.HiBlackString("── end of earlier messages ──"))
	a.outMu.Unlock()
}

func (a *app) applyPrompt(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(suggestedPrompts) {
		a.printSuggestions()
		return
	}
	a.engine.ApplySuggestedPrompt(suggestedPrompts[n-1])
	a.printf("Input set to: %s\n%s\n", suggestedPrompts[n-1], color.HiBlackString("Type /send to send it."))
}

func (a *app) printSuggestions() {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, "Not sure where to start? Try one of these with /prompt N:")
	for i, p := range suggestedPrompts {
		fmt.Fprintf(a.out, "  %d. %s\n", i+1, p)
	}
}

func (a *app) printAvailability() {
	if a.gate == nil {
		return
	}
	if a.gate.IsAvailable(a.now()) {
		a.printf("%s\n", color.GreenString("The stakeholder is available now."))
		return
	}
	a.printUnavailable()
}

func (a *app) printUnavailable() {
	if a.gate == nil {
		return
	}
	now := a.now()
	if a.gate.IsAvailable(now) {
		return
	}
	a.printf("%s\n", color.YellowString("The stakeholder is unavailable. Office hours: %s, %s.", a.gate.DaysLabel(), a.gate.HoursLabel()))
	next := a.gate.NextOpening(now)
	if !next.IsZero() {
		a.printf("%s\n", color.HiBlackString("Back %s.", next.In(a.gate.Location()).Format("Monday at 15:04 MST")))
	}
}

func (a *app) showStatus(ctx context.Context) {
	snap := a.engine.Snapshot()
	a.printf("Assignment:   %s\nSession:      %s\n", snap.AssignmentID, snap.SessionID)
	if snap.ConversationID != "" {
		a.printf("Conversation: %s\n", snap.ConversationID)
	}
	a.printf("Messages:     %d (%d shown)\n", snap.Total, snap.Displayed)

	state, err := a.handshake.RefreshLinkState(ctx, snap.SessionID)
	if err != nil {
		a.printf("Calendar:     %s %s\n", state, color.HiBlackString("(server unreachable: %v)", err))
	} else {
		a.printf("Calendar:     %s\n", state)
	}
	a.printAvailability()
}

func (a *app) showMilestones(ctx context.Context) {
	milestones, err := a.backend.GetMilestones(ctx, a.engine.Snapshot().AssignmentID)
	if err != nil {
		a.printError("loading milestones", err)
		return
	}
	if len(milestones) == 0 {
		a.printf("No milestones yet.\n")
		return
	}

	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, "Milestones:")
	for _, m := range milestones {
		due := m.DueDate
		if due == "" {
			due = "no due date"
		}
		fmt.Fprintf(a.out, "  %s %s (%s)\n", statusMark(m.Status), m.Title, due)
		if m.Description != "" {
			fmt.Fprintf(a.out, "      %s\n", color.HiBlackString("%s", m.Description))
		}
	}
}

func statusMark(status string) string {
	switch strings.ToLower(status) {
	case "completed", "done":
		return color.GreenString("[x]")
	case "in_progress":
		return color.YellowString("[~]")
	default:
		return "[ ]"
	}
}

func (a *app) syncMilestones(ctx context.Context) {
	res, err := a.backend.SyncMilestones(ctx, a.engine.Snapshot().AssignmentID)
	if err != nil {
		a.printError("syncing milestones", err)
		return
	}
	a.printf("Synced %d milestones to your calendar.\n", res.SyncedCount)
}

func (a *app) showDiagrams(ctx context.Context) {
	diagrams, err := a.backend.GetDiagrams(ctx, a.engine.Snapshot().AssignmentID)
	if err != nil {
		a.printError("loading diagrams", err)
		return
	}
	if len(diagrams) == 0 {
		a.printf("No diagrams yet.\n")
		return
	}

	a.outMu.Lock()
	defer a.outMu.Unlock()
	for i, d := range diagrams {
		title := d.Description
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(a.out, "%s %s\n%s\n\n", color.MagentaString("#%d", i+1), title, d.Code)
	}
}

func (a *app) printError(action string, err error) {
	if api.IsNetworkError(err) && !errors.Is(err, context.Canceled) {
		a.printf("%s %s: server unreachable\n", color.RedString("[error]"), action)
		return
	}
	a.printf("%s %s: %v\n", color.RedString("[error]"), action, err)
}

// notifier reports handshake outcomes on the terminal.
func (a *app) notifier() calendarlink.Notifier {
	return calendarlink.NotifierFuncs{
		OnSuccess: func(r calendarlink.Result) {
			msg := "Calendar linked"
			if r.Email != "" {
				msg += " (" + r.Email + ")"
			}
			a.printf("%s\n", color.GreenString("%s.", msg))
			if r.SyncErr != nil {
				a.printf("%s %v\n", color.YellowString("Milestone sync failed, try /sync:"), r.SyncErr)
			} else {
				a.printf("Synced %d milestones.\n", r.SyncedCount)
			}
		},
		OnFailure: func(err error) {
			switch {
			case errors.Is(err, calendarlink.ErrNoClientID):
				a.printf("%s\n", color.RedString("Calendar linking is not configured (calendar.client_id)."))
			case errors.Is(err, calendarlink.ErrWindowBlocked):
				a.printf("%s %v\n", color.RedString("Could not open the browser:"), err)
			default:
				a.printf("%s %v\n", color.RedString("Calendar not linked:"), err)
			}
		},
	}
}

func (a *app) printHelp() {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, "Type a message and press Enter to send it.")
	fmt.Fprintln(a.out, "Commands:")
	fmt.Fprintln(a.out, "  /more          Show earlier messages")
	fmt.Fprintln(a.out, "  /prompt [N]    List suggested prompts or load prompt N")
	fmt.Fprintln(a.out, "  /send          Send the current input")
	fmt.Fprintln(a.out, "  /link          Connect your calendar")
	fmt.Fprintln(a.out, "  /milestones    List assignment milestones")
	fmt.Fprintln(a.out, "  /sync          Sync milestones to your calendar")
	fmt.Fprintln(a.out, "  /diagrams      List diagrams from this conversation")
	fmt.Fprintln(a.out, "  /status        Show session and calendar status")
	fmt.Fprintln(a.out, "  /help          Show this help")
	fmt.Fprintln(a.out, "  /quit          Exit")
}
