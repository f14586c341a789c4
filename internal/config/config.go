// ABOUTME: Configuration loading and parsing for stakeholder-chat
// ABOUTME: Supports YAML or TOML files with environment variable expansion and schedule parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/stakeholder-chat/internal/availability"
)

// ConfigEnv overrides the config file location.
const ConfigEnv = "STAKEHOLDER_CHAT_CONFIG"

// Default values applied by Load when a field is left empty.
const (
	DefaultTimezone        = "America/New_York"
	DefaultCallbackAddr    = "127.0.0.1:8765"
	DefaultRedirectURL     = "http://127.0.0.1:8765/callback"
	DefaultCalendarScope   = "https://www.googleapis.com/auth/calendar"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultTokenEnv        = "STAKEHOLDER_CHAT_TOKEN"
)

// Config represents the complete stakeholder-chat configuration
type Config struct {
	API          APIConfig          `yaml:"api" toml:"api"`
	Auth         AuthConfig         `yaml:"auth" toml:"auth"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Availability AvailabilityConfig `yaml:"availability" toml:"availability"`
	Calendar     CalendarConfig     `yaml:"calendar" toml:"calendar"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// APIConfig holds backend connection settings
type APIConfig struct {
	BaseURL   string  `yaml:"base_url" toml:"base_url"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"` // requests per second, 0 disables
	RateBurst int     `yaml:"rate_burst" toml:"rate_burst"`
}

// AuthConfig holds bearer token sources
type AuthConfig struct {
	Token     string `yaml:"token" toml:"token"`
	TokenFile string `yaml:"token_file" toml:"token_file"`
	TokenEnv  string `yaml:"token_env" toml:"token_env"`
}

// DatabaseConfig holds local state database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AvailabilityConfig holds the stakeholder's weekly schedule.
type AvailabilityConfig struct {
	Timezone string   `yaml:"timezone" toml:"timezone"`
	Days     []string `yaml:"days" toml:"days"`
	Hours    []string `yaml:"hours" toml:"hours"`

	// Parsed values
	Location *time.Location           `yaml:"-" toml:"-"`
	Weekdays []time.Weekday           `yaml:"-" toml:"-"`
	Ranges   []availability.HourRange `yaml:"-" toml:"-"`
}

// CalendarConfig holds the external calendar authorization settings
type CalendarConfig struct {
	ClientID     string   `yaml:"client_id" toml:"client_id"`
	RedirectURL  string   `yaml:"redirect_url" toml:"redirect_url"`
	Scopes       []string `yaml:"scopes" toml:"scopes"`
	CallbackAddr string   `yaml:"callback_addr" toml:"callback_addr"`
	Origin       string   `yaml:"origin" toml:"origin"`

	ShutdownTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultPath returns the config file location.
// Priority: STAKEHOLDER_CHAT_CONFIG > $XDG_CONFIG_HOME/stakeholder-chat/config.yaml
// > ~/.config/stakeholder-chat/config.yaml
func DefaultPath() string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stakeholder-chat", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "stakeholder-chat", "config.yaml")
	}
	return filepath.Join(home, ".config", "stakeholder-chat", "config.yaml")
}

// DefaultDataDir returns the directory for local state.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "stakeholder-chat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "stakeholder-chat")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := parseFields(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config values: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.API.RateLimit > 0 && c.API.RateBurst == 0 {
		c.API.RateBurst = 1
	}
	if c.Auth.TokenEnv == "" {
		c.Auth.TokenEnv = DefaultTokenEnv
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(DefaultDataDir(), "state.db")
	}

	if c.Availability.Timezone == "" {
		c.Availability.Timezone = DefaultTimezone
	}
	if len(c.Availability.Days) == 0 {
		for _, d := range availability.DefaultDays {
			c.Availability.Days = append(c.Availability.Days, strings.ToLower(d.String()))
		}
	}
	if len(c.Availability.Hours) == 0 {
		for _, r := range availability.DefaultHours {
			c.Availability.Hours = append(c.Availability.Hours, r.String())
		}
	}

	if c.Calendar.RedirectURL == "" {
		c.Calendar.RedirectURL = DefaultRedirectURL
	}
	if c.Calendar.CallbackAddr == "" {
		c.Calendar.CallbackAddr = DefaultCallbackAddr
	}
	if len(c.Calendar.Scopes) == 0 {
		c.Calendar.Scopes = []string{DefaultCalendarScope}
	}
	if c.Calendar.Origin == "" {
		if u, err := url.Parse(c.Calendar.RedirectURL); err == nil && u.Host != "" {
			c.Calendar.Origin = u.Scheme + "://" + u.Host
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if _, err := url.Parse(c.Calendar.RedirectURL); err != nil {
		return fmt.Errorf("calendar.redirect_url: %w", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// Gate builds the availability gate described by the config.
func (c *Config) Gate() (*availability.Gate, error) {
	return availability.New(c.Availability.Location, c.Availability.Weekdays, c.Availability.Ranges)
}

// parseFields converts raw strings into typed values
func parseFields(cfg *Config) error {
	var err error

	cfg.Availability.Location, err = time.LoadLocation(cfg.Availability.Timezone)
	if err != nil {
		return fmt.Errorf("parsing availability.timezone %q: %w", cfg.Availability.Timezone, err)
	}

	cfg.Availability.Weekdays = nil
	for _, raw := range cfg.Availability.Days {
		d, err := ParseWeekday(raw)
		if err != nil {
			return fmt.Errorf("parsing availability.days: %w", err)
		}
		cfg.Availability.Weekdays = append(cfg.Availability.Weekdays, d)
	}

	cfg.Availability.Ranges = nil
	for _, raw := range cfg.Availability.Hours {
		r, err := ParseHourRange(raw)
		if err != nil {
			return fmt.Errorf("parsing availability.hours: %w", err)
		}
		cfg.Availability.Ranges = append(cfg.Availability.Ranges, r)
	}

	cfg.Calendar.ShutdownTimeout = DefaultShutdownTimeout
	if cfg.Calendar.ShutdownTimeoutRaw != "" {
		cfg.Calendar.ShutdownTimeout, err = time.ParseDuration(cfg.Calendar.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Calendar.ShutdownTimeoutRaw, err)
		}
	}

	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts full or abbreviated English day names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

// ParseHourRange parses "9-12" or "09:00-12:00". Only whole hours are allowed.
func ParseHourRange(s string) (availability.HourRange, error) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return availability.HourRange{}, fmt.Errorf("hour range %q: missing '-'", s)
	}

	start, err := parseHour(startRaw)
	if err != nil {
		return availability.HourRange{}, fmt.Errorf("hour range %q: %w", s, err)
	}
	end, err := parseHour(endRaw)
	if err != nil {
		return availability.HourRange{}, fmt.Errorf("hour range %q: %w", s, err)
	}
	if start < 0 || end > 24 || start >= end {
		return availability.HourRange{}, fmt.Errorf("%w: %q", availability.ErrInvalidRange, s)
	}

	return availability.HourRange{Start: start, End: end}, nil
}

func parseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if h, m, ok := strings.Cut(s, ":"); ok {
		if m != "00" {
			return 0, errors.New("only whole hours are supported")
		}
		s = h
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", s)
	}
	return n, nil
}
