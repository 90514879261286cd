// Package config loads process configuration from the environment (and, for
// the command-line client, from flags).
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrMissing = errors.New("missing required setting")

const (
	TransportREST = "rest"
	TransportSDK  = "sdk"
)

// Config is the analysis server configuration.
type Config struct {
	Port        string
	AppPassword string

	GeminiAPIKey    string
	GeminiModel     string
	GeminiTransport string
	GeminiBaseURL   string
	MockProvider    bool

	ProviderTimeout time.Duration
	ModelsCacheTTL  time.Duration
	LogLevel        string
}

// Bot is the Telegram client configuration.
type Bot struct {
	Port             string
	TelegramBotToken string
	APIURL           string
	WebhookURL       string
	DatabaseDSN      string
	LogLevel         string
}

// CLI is the command-line client configuration.
type CLI struct {
	APIURL    string
	StatePath string
	LogLevel  string
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

func required(v *viper.Viper, key string) (string, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissing, key)
	}
	return s, nil
}

// Load reads the server configuration. A missing secret or provider key is an
// error: the server must not start half-configured.
func Load() (*Config, error) {
	v := newEnv()
	v.SetDefault("PORT", "8000")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("GEMINI_TRANSPORT", TransportREST)
	v.SetDefault("PROVIDER_TIMEOUT", 120*time.Second)
	v.SetDefault("MODELS_CACHE_TTL", 10*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Port:            v.GetString("PORT"),
		GeminiAPIKey:    strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:     strings.TrimSpace(v.GetString("GEMINI_MODEL")),
		GeminiTransport: strings.ToLower(strings.TrimSpace(v.GetString("GEMINI_TRANSPORT"))),
		GeminiBaseURL:   strings.TrimSpace(v.GetString("GEMINI_BASE_URL")),
		MockProvider:    v.GetBool("MOCK_PROVIDER"),
		ProviderTimeout: v.GetDuration("PROVIDER_TIMEOUT"),
		ModelsCacheTTL:  v.GetDuration("MODELS_CACHE_TTL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
	}

	var err error
	if cfg.AppPassword, err = required(v, "APP_PASSWORD"); err != nil {
		return nil, err
	}
	if !cfg.MockProvider && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", ErrMissing)
	}
	switch cfg.GeminiTransport {
	case TransportREST, TransportSDK:
	default:
		return nil, fmt.Errorf("GEMINI_TRANSPORT must be %q or %q, got %q", TransportREST, TransportSDK, cfg.GeminiTransport)
	}
	return cfg, nil
}

// LoadBot reads the Telegram client configuration.
func LoadBot() (*Bot, error) {
	v := newEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Bot{
		Port:        v.GetString("PORT"),
		WebhookURL:  strings.TrimSpace(v.GetString("WEBHOOK_URL")),
		DatabaseDSN: resolveDSN(v),
		LogLevel:    v.GetString("LOG_LEVEL"),
	}
	var err error
	if cfg.TelegramBotToken, err = required(v, "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.APIURL, err = required(v, "FOOD_API_URL"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveDSN prefers DATABASE_URL and otherwise builds a DSN from POSTGRES_*/PG* parts.
func resolveDSN(v *viper.Viper) string {
	if s := strings.TrimSpace(v.GetString("DATABASE_URL")); s != "" {
		return s
	}
	v.SetDefault("POSTGRES_USER", "calorie")
	v.SetDefault("PGHOST", "db")
	v.SetDefault("PGPORT", "5432")
	v.SetDefault("POSTGRES_DB", "calorie")

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("POSTGRES_USER"), v.GetString("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(v.GetString("PGHOST"), v.GetString("PGPORT")),
		Path:     "/" + v.GetString("POSTGRES_DB"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// DefaultStatePath is where the command-line client keeps its state.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "foodcal", "state.db")
}

// LoadCLI merges flags with FOODCAL_* environment variables. Flags set on the
// command line win over the environment.
func LoadCLI(flags *pflag.FlagSet) (*CLI, error) {
	v := viper.New()
	v.SetEnvPrefix("FOODCAL")
	v.AutomaticEnv()
	v.SetDefault("url", "http://localhost:8000")
	v.SetDefault("state", DefaultStatePath())
	v.SetDefault("log-level", "warn")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, name := range []string{"url", "state", "log-level"} {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(name, f); err != nil {
				return nil, err
			}
		}
	}
	cfg := &CLI{
		APIURL:    strings.TrimRight(strings.TrimSpace(v.GetString("url")), "/"),
		StatePath: v.GetString("state"),
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("%w: url", ErrMissing)
	}
	return cfg, nil
}
