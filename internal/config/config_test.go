// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, schedules and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/stakeholder-chat/internal/availability"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
api:
  base_url: "https://api.example.edu/v1"
  rate_limit: 2
  rate_burst: 4

auth:
  token_file: "/tmp/token"

database:
  path: "./test.db"

availability:
  timezone: "Europe/Berlin"
  days: ["mon", "Wednesday", "FRI"]
  hours: ["8-11", "14:00-18:00"]

calendar:
  client_id: "client-123.apps.googleusercontent.com"
  redirect_url: "http://localhost:9999/oauth/callback"
  callback_addr: "127.0.0.1:9999"
  shutdown_timeout: "2s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.edu/v1" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.RateLimit != 2 || cfg.API.RateBurst != 4 {
		t.Errorf("API rate = %v/%d, want 2/4", cfg.API.RateLimit, cfg.API.RateBurst)
	}
	if cfg.Auth.TokenFile != "/tmp/token" {
		t.Errorf("Auth.TokenFile = %q", cfg.Auth.TokenFile)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}

	if cfg.Availability.Location.String() != "Europe/Berlin" {
		t.Errorf("Availability.Location = %v", cfg.Availability.Location)
	}
	wantDays := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	if len(cfg.Availability.Weekdays) != len(wantDays) {
		t.Fatalf("Availability.Weekdays = %v, want %v", cfg.Availability.Weekdays, wantDays)
	}
	for i, d := range wantDays {
		if cfg.Availability.Weekdays[i] != d {
			t.Errorf("Weekdays[%d] = %v, want %v", i, cfg.Availability.Weekdays[i], d)
		}
	}
	wantRanges := []availability.HourRange{{Start: 8, End: 11}, {Start: 14, End: 18}}
	if len(cfg.Availability.Ranges) != 2 || cfg.Availability.Ranges[0] != wantRanges[0] || cfg.Availability.Ranges[1] != wantRanges[1] {
		t.Errorf("Availability.Ranges = %v, want %v", cfg.Availability.Ranges, wantRanges)
	}

	if cfg.Calendar.ClientID != "client-123.apps.googleusercontent.com" {
		t.Errorf("Calendar.ClientID = %q", cfg.Calendar.ClientID)
	}
	if cfg.Calendar.Origin != "http://localhost:9999" {
		t.Errorf("Calendar.Origin = %q, want derived from redirect_url", cfg.Calendar.Origin)
	}
	if cfg.Calendar.ShutdownTimeout != 2*time.Second {
		t.Errorf("Calendar.ShutdownTimeout = %v, want 2s", cfg.Calendar.ShutdownTimeout)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	configPath := writeConfig(t, "config.yaml", `
api:
  base_url: "http://localhost:3000"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != filepath.Join("/data", "stakeholder-chat", "state.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Auth.TokenEnv != DefaultTokenEnv {
		t.Errorf("Auth.TokenEnv = %q, want %q", cfg.Auth.TokenEnv, DefaultTokenEnv)
	}
	if cfg.Availability.Location.String() != DefaultTimezone {
		t.Errorf("Availability.Location = %v, want %s", cfg.Availability.Location, DefaultTimezone)
	}
	if len(cfg.Availability.Weekdays) != 5 {
		t.Errorf("Availability.Weekdays = %v, want Monday to Friday", cfg.Availability.Weekdays)
	}
	if len(cfg.Availability.Ranges) != 2 {
		t.Errorf("Availability.Ranges = %v, want two default ranges", cfg.Availability.Ranges)
	}
	if cfg.Calendar.RedirectURL != DefaultRedirectURL {
		t.Errorf("Calendar.RedirectURL = %q", cfg.Calendar.RedirectURL)
	}
	if cfg.Calendar.Origin != "http://127.0.0.1:8765" {
		t.Errorf("Calendar.Origin = %q", cfg.Calendar.Origin)
	}
	if len(cfg.Calendar.Scopes) != 1 || cfg.Calendar.Scopes[0] != DefaultCalendarScope {
		t.Errorf("Calendar.Scopes = %v", cfg.Calendar.Scopes)
	}
	if cfg.Calendar.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Calendar.ShutdownTimeout = %v", cfg.Calendar.ShutdownTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[api]
base_url = "https://api.example.edu"

[availability]
timezone = "UTC"
days = ["sat", "sun"]
hours = ["10-16"]

[logging]
level = "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.edu" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if len(cfg.Availability.Weekdays) != 2 || cfg.Availability.Weekdays[0] != time.Saturday {
		t.Errorf("Availability.Weekdays = %v", cfg.Availability.Weekdays)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CHAT_API", "https://from-env.example.edu")
	t.Setenv("TEST_CHAT_CLIENT_ID", "client-from-env")

	configPath := writeConfig(t, "config.yaml", `
api:
  base_url: "${TEST_CHAT_API}"
calendar:
  client_id: "${TEST_CHAT_CLIENT_ID}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://from-env.example.edu" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Calendar.ClientID != "client-from-env" {
		t.Errorf("Calendar.ClientID = %q", cfg.Calendar.ClientID)
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, "config.yaml", `
api:
  base_url: "http://localhost:3000"
calendar:
  client_id: "${UNSET_VAR_FOR_TEST}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset client id is allowed; the handshake reports it at use time
	if cfg.Calendar.ClientID != "" {
		t.Errorf("Calendar.ClientID = %q, want empty", cfg.Calendar.ClientID)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing base url",
			content: "logging:\n  level: info\n",
			wantErr: "api.base_url is required",
		},
		{
			name:    "base url without scheme",
			content: "api:\n  base_url: \"example.edu\"\n",
			wantErr: "api.base_url must be an http(s) URL",
		},
		{
			name:    "negative rate limit",
			content: "api:\n  base_url: \"http://x\"\n  rate_limit: -1\n",
			wantErr: "api.rate_limit",
		},
		{
			name:    "unknown timezone",
			content: "api:\n  base_url: \"http://x\"\navailability:\n  timezone: \"Mars/Olympus\"\n",
			wantErr: "availability.timezone",
		},
		{
			name:    "unknown weekday",
			content: "api:\n  base_url: \"http://x\"\navailability:\n  days: [\"someday\"]\n",
			wantErr: "unknown weekday",
		},
		{
			name:    "inverted hour range",
			content: "api:\n  base_url: \"http://x\"\navailability:\n  hours: [\"17-9\"]\n",
			wantErr: "invalid hour range",
		},
		{
			name:    "bad duration",
			content: "api:\n  base_url: \"http://x\"\ncalendar:\n  shutdown_timeout: \"soon\"\n",
			wantErr: "shutdown_timeout",
		},
		{
			name:    "bad log level",
			content: "api:\n  base_url: \"http://x\"\nlogging:\n  level: \"loud\"\n",
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			content: "api:\n  base_url: \"http://x\"\nlogging:\n  format: \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "invalid yaml",
			content: "api: [unterminated\n",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v, want reading config file error", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(ConfigEnv, "/etc/chat.yaml")
	if got := DefaultPath(); got != "/etc/chat.yaml" {
		t.Errorf("DefaultPath() = %q, want env override", got)
	}

	t.Setenv(ConfigEnv, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "stakeholder-chat", "config.yaml") {
		t.Errorf("DefaultPath() = %q, want XDG path", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/student")
	if got := DefaultPath(); got != filepath.Join("/home/student", ".config", "stakeholder-chat", "config.yaml") {
		t.Errorf("DefaultPath() = %q, want home path", got)
	}
}

func TestParseHourRange(t *testing.T) {
	tests := []struct {
		in      string
		want    availability.HourRange
		wantErr bool
	}{
		{in: "9-12", want: availability.HourRange{Start: 9, End: 12}},
		{in: "09:00-17:00", want: availability.HourRange{Start: 9, End: 17}},
		{in: " 0 - 24 ", want: availability.HourRange{Start: 0, End: 24}},
		{in: "9:30-12", wantErr: true},
		{in: "12-12", wantErr: true},
		{in: "noon-1", wantErr: true},
		{in: "9", wantErr: true},
		{in: "20-25", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHourRange(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseHourRange(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHourRange(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHourRange(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfig_Gate(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
api:
  base_url: "http://localhost:3000"
availability:
  timezone: "UTC"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	gate, err := cfg.Gate()
	if err != nil {
		t.Fatalf("Gate() error = %v", err)
	}

	// Tuesday 10:30 UTC is inside the default schedule
	open := time.Date(2024, time.January, 9, 10, 30, 0, 0, time.UTC)
	if !gate.IsAvailable(open) {
		t.Errorf("IsAvailable(%v) = false, want true", open)
	}
	// Saturday is outside
	closed := time.Date(2024, time.January, 13, 10, 30, 0, 0, time.UTC)
	if gate.IsAvailable(closed) {
		t.Errorf("IsAvailable(%v) = true, want false", closed)
	}
}
