// ABOUTME: Terminal client for chatting with a simulated project stakeholder
// ABOUTME: Wires config, local state, the API client, calendar linking and the conversation engine

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/stakeholder-chat/internal/api"
	"github.com/2389/stakeholder-chat/internal/auth"
	"github.com/2389/stakeholder-chat/internal/calendarlink"
	"github.com/2389/stakeholder-chat/internal/config"
	"github.com/2389/stakeholder-chat/internal/conversation"
	"github.com/2389/stakeholder-chat/internal/dedupe"
	"github.com/2389/stakeholder-chat/internal/relay"
	"github.com/2389/stakeholder-chat/internal/sessionid"
	"github.com/2389/stakeholder-chat/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file path (default: $STAKEHOLDER_CHAT_CONFIG or ~/.config/stakeholder-chat/config.yaml)")
	assignmentID := flag.String("assignment", "", "Assignment ID to open")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("stakeholder-chat", version)
		return
	}

	// .env is optional; real environment wins
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	if *assignmentID == "" {
		*assignmentID = os.Getenv("STAKEHOLDER_CHAT_ASSIGNMENT")
	}
	if *assignmentID == "" {
		fmt.Fprintln(os.Stderr, "Usage: stakeholder-chat -assignment <id> [-config path]")
		os.Exit(2)
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, path, *assignmentID, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath, assignmentID string, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer db.Close()

	sessionID, err := sessionid.New(db, logger).GetOrCreate(ctx, assignmentID)
	if err != nil {
		// The generated ID still works for this run; it just won't be reused
		logger.Warn("session id not persisted", "error", err)
	}

	tokens := auth.Tokens{
		EnvVar: cfg.Auth.TokenEnv,
		Static: cfg.Auth.Token,
		File:   expandHome(cfg.Auth.TokenFile),
	}
	identity := resolveIdentity(tokens.Token(), logger)

	client := api.New(cfg.API.BaseURL,
		api.WithTokenSource(tokens),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		api.WithLogger(logger),
	)

	gate, err := cfg.Gate()
	if err != nil {
		return fmt.Errorf("availability schedule: %w", err)
	}

	bus := relay.NewBus(logger)
	codes := dedupe.New(10*time.Minute, 256)
	defer codes.Close()

	callbackPath := "/callback"
	if u, err := url.Parse(cfg.Calendar.RedirectURL); err == nil && u.Path != "" {
		callbackPath = u.Path
	}
	callback := relay.NewServer(cfg.Calendar.CallbackAddr, callbackPath,
		relay.NewCallbackHandler(bus, cfg.Calendar.Origin, codes, logger), logger)
	if err := callback.Start(); err != nil {
		// Chat still works; only /link is affected
		logger.Warn("calendar callback unavailable", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Calendar.ShutdownTimeout)
			defer cancel()
			if err := callback.Shutdown(shutdownCtx); err != nil {
				logger.Warn("stopping callback server", "error", err)
			}
		}()
	}

	engine := conversation.NewEngine(conversation.Config{
		AssignmentID: assignmentID,
		SessionID:    sessionID,
		Transport:    client,
		Gate:         gate,
		Logger:       logger,
	})
	defer engine.Close()

	a := newApp(engine, nil, client, gate, out, logger)

	handshake := calendarlink.New(calendarlink.Options{
		AssignmentID: assignmentID,
		Identity:     identity,
		ClientID:     cfg.Calendar.ClientID,
		RedirectURL:  cfg.Calendar.RedirectURL,
		Scopes:       cfg.Calendar.Scopes,
		Origin:       cfg.Calendar.Origin,
		API:          client,
		Bus:          bus,
		Opener:       calendarlink.BrowserOpener{},
		Store:        db,
		Notifier:     a.notifier(),
		Logger:       logger,
	})
	defer handshake.Close()
	a.handshake = handshake

	fmt.Fprintf(out, "stakeholder-chat %s connected to %s\n", version, cfg.API.BaseURL)
	fmt.Fprintln(out, "Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Fprintln(out)

	if _, err := handshake.RefreshLinkState(ctx, sessionID); err != nil {
		logger.Debug("initial link status unavailable", "error", err)
	}
	a.start(ctx)

	err = readLoop(ctx, in, out, a)

	// Cancel any pending send or link flow before waiting on them
	engine.Close()
	handshake.Close()
	a.wait()
	return err
}

func readLoop(ctx context.Context, in io.Reader, out io.Writer, a *app) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		fmt.Fprint(out, "> ")

		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case line := <-lines:
			if a.handle(ctx, line) {
				return nil
			}
		}
	}
}

// resolveIdentity extracts the token subject for scoping local state.
func resolveIdentity(token string, logger *slog.Logger) string {
	if token == "" {
		logger.Warn("no API token configured; authenticated requests will fail",
			"env", auth.DefaultTokenEnv)
		return ""
	}

	id, err := auth.ParseIdentity(token)
	if err != nil {
		logger.Warn("could not read identity from token", "error", err)
		return ""
	}
	if id.Expired(time.Now()) {
		logger.Warn("API token has expired", "subject", id.Subject, "expired_at", id.ExpiresAt)
	}
	return id.Subject
}

func expandHome(p string) string {
	if p == "" || !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
