// Package config loads environment variables into a typed Config shared by the
// API process, the bot and the tools. Defaults let the API run locally with no
// setup; use ValidateBotReady before starting the Twitch bot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Default values referenced outside this package.
const (
	DefaultChannel = "colinbenders"
	DefaultMode    = "testing"
	DefaultAPIURL  = "http://localhost:8000"
)

// User store backends.
const (
	UserStoreFile     = "file"
	UserStorePostgres = "postgres"
)

type Config struct {
	// HTTP API
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8000"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	// Initial bot status
	TwitchChannels []string `env:"TWITCH_CHANNELS" envSeparator:"," envDefault:"colinbenders"`
	BotMode        string   `env:"BOT_MODE" envDefault:"testing"`
	ControlTarget  string   `env:"CONTROL_TARGET"`
	ControlAddress string   `env:"CONTROL_ADDRESS" envDefault:"/twitch-chat"`

	// Twitch
	TwitchBotUsername  string   `env:"TWITCH_BOT_USERNAME"`
	TwitchOAuthToken   string   `env:"TWITCH_OAUTH_TOKEN"`
	TwitchClientID     string   `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string   `env:"TWITCH_CLIENT_SECRET"`
	TwitchAdmins       []string `env:"TWITCH_ADMINS" envSeparator:","`

	// Bot side
	APIURL                string        `env:"API_URL" envDefault:"http://localhost:8000"`
	ReconcileInterval     time.Duration `env:"RECONCILE_INTERVAL" envDefault:"3s"`
	ReconcileFetchTimeout time.Duration `env:"RECONCILE_FETCH_TIMEOUT" envDefault:"5s"`
	ReconcilePartRemoved  bool          `env:"RECONCILE_PART_REMOVED" envDefault:"true"`

	// Ledger
	RallyAPIURL    string        `env:"RALLY_API_URL" envDefault:"https://api.rally.io"`
	RallyAPIToken  string        `env:"RALLY_API_TOKEN"`
	RallyTimeout   time.Duration `env:"RALLY_TIMEOUT" envDefault:"10s"`
	NFTTemplateIDs []string      `env:"NFT_TEMPLATE_IDS" envSeparator:","`

	// Budget for one template's template and instances fetches; 2x RALLY_TIMEOUT when unset
	RallyTemplateTimeout time.Duration `env:"RALLY_TEMPLATE_TIMEOUT"`

	// User store
	UserStore                string `env:"USER_STORE" envDefault:"file"`
	UserStorePath            string `env:"USER_STORE_PATH" envDefault:"data/users.json"`
	DBDsn                    string `env:"DB_DSN"`
	OwnershipRefreshSchedule string `env:"OWNERSHIP_REFRESH_SCHEDULE" envDefault:"@every 1h"`

	// Admin auth for status writes; unprotected when neither is set
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminToken    string `env:"ADMIN_TOKEN"`

	// Rate limiting for /user/auth
	RateLimitEnabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS_PER_IP" envDefault:"10"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// CORS; permissive unless ENV names a non-dev environment
	Env                string   `env:"ENV"`
	CORSPermissive     string   `env:"CORS_PERMISSIVE"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load parses the environment. Malformed values (durations, booleans, ints)
// are errors; missing optional values disable the features that need them.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.TwitchChannels = cleanList(cfg.TwitchChannels, true)
	cfg.TwitchAdmins = cleanList(cfg.TwitchAdmins, true)
	cfg.NFTTemplateIDs = cleanList(cfg.NFTTemplateIDs, false)
	cfg.CORSAllowedOrigins = cleanList(cfg.CORSAllowedOrigins, false)
	cfg.UserStore = strings.ToLower(strings.TrimSpace(cfg.UserStore))

	switch cfg.UserStore {
	case UserStoreFile, UserStorePostgres:
	default:
		return nil, fmt.Errorf("invalid USER_STORE %q: want %s or %s", cfg.UserStore, UserStoreFile, UserStorePostgres)
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, errors.New("RECONCILE_INTERVAL must be positive")
	}
	if cfg.RallyTemplateTimeout <= 0 {
		cfg.RallyTemplateTimeout = 2 * cfg.RallyTimeout
	}
	return cfg, nil
}

// ValidateBotReady checks the fields the Twitch bot cannot start without.
func (c *Config) ValidateBotReady() error {
	var missing []string
	if c.TwitchBotUsername == "" {
		missing = append(missing, "TWITCH_BOT_USERNAME")
	}
	if c.TwitchOAuthToken == "" {
		missing = append(missing, "TWITCH_OAUTH_TOKEN")
	}
	if c.APIURL == "" {
		missing = append(missing, "API_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing twitch env: require %s", strings.Join(missing, ", "))
	}
	return nil
}

// CORSIsPermissive reports whether CORS allows every origin.
func (c *Config) CORSIsPermissive() bool {
	if c.CORSPermissive != "" {
		return c.CORSPermissive == "1" || strings.EqualFold(c.CORSPermissive, "true")
	}
	mode := strings.ToLower(c.Env)
	return mode == "" || mode == "dev" || mode == "development"
}

// HelixEnabled reports whether Twitch app credentials are configured.
func (c *Config) HelixEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

func cleanList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
