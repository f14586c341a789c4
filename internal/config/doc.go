// Package config handles configuration loading for stakeholder-chat.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) with
// environment variable expansion. Load applies defaults, parses schedule and
// duration strings, then validates.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from STAKEHOLDER_CHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/stakeholder-chat/config.yaml
//  3. ~/.config/stakeholder-chat/config.yaml
//
// # Environment Variable Expansion
//
//	auth:
//	  token: "${STAKEHOLDER_API_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	api:
//	  base_url: "https://api.example.edu"   # required
//	  rate_limit: 5                         # requests/second, 0 = unlimited
//	  rate_burst: 5
//
//	auth:
//	  token_env: "STAKEHOLDER_CHAT_TOKEN"   # checked first
//	  token: ""
//	  token_file: "~/.config/stakeholder-chat/token"
//
//	database:
//	  path: "~/.local/share/stakeholder-chat/state.db"
//
//	availability:
//	  timezone: "America/New_York"
//	  days: ["mon", "tue", "wed", "thu", "fri"]
//	  hours: ["09:00-12:00", "13:00-17:00"]
//
//	calendar:
//	  client_id: "${GOOGLE_CLIENT_ID}"      # handshake refuses to start without it
//	  redirect_url: "http://127.0.0.1:8765/callback"
//	  callback_addr: "127.0.0.1:8765"
//	  origin: ""                            # defaults to redirect_url's scheme://host
//	  shutdown_timeout: "5s"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gate, err := cfg.Gate()
package config
