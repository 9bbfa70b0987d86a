package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pumpspares/src_project/internal/auth"
	"github.com/pumpspares/src_project/internal/config"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	CalcURL     string // es. http://calculator:8080
	CalcPath    string
	Timeout     time.Duration
	MaxUploadMB int

	CBFails      int
	CBOpen       time.Duration
	CBInterval   time.Duration
	WizardTTL    time.Duration
	SweepEvery   time.Duration
	Debounce     time.Duration
	ShutdownWait time.Duration

	// none | static | remote
	AuthMode        string
	AccountsURL     string
	AuthCacheTTL    time.Duration
	StaticTokens    []string // token=email
	AuthTimeout     time.Duration
	MetricsDisabled bool
}

func loadConfig() (Config, error) {
	src, err := config.Load(os.Getenv("CONFIG_FILE"), "gateway")
	if err != nil {
		return Config{}, err
	}
	return Config{
		Port:      src.String("PORT", "5009"),
		LogLevel:  src.String("LOG_LEVEL", "info"),
		LogFormat: src.String("LOG_FORMAT", "text"),

		CalcURL:     src.String("CALC_BASE_URL", "http://calculator:8080"),
		CalcPath:    src.String("CALC_PATH", "/api/calculate-src-curves/"),
		Timeout:     src.Duration("TIMEOUT_MS", 15*time.Second),
		MaxUploadMB: src.Int("MAX_UPLOAD_MB", 10),

		CBFails:      src.Int("CB_FAILS", 3),
		CBOpen:       src.Duration("CB_OPEN_MS", 30*time.Second),
		CBInterval:   src.Duration("CB_INTERVAL_MS", time.Minute),
		WizardTTL:    src.Duration("WIZARD_TTL", 2*time.Hour),
		SweepEvery:   src.Duration("WIZARD_SWEEP", time.Minute),
		Debounce:     src.Duration("PREVIEW_DEBOUNCE_MS", 500*time.Millisecond),
		ShutdownWait: src.Duration("SHUTDOWN_WAIT", 10*time.Second),

		AuthMode:        strings.ToLower(src.String("AUTH_MODE", "remote")),
		AccountsURL:     src.String("ACCOUNTS_BASE_URL", "http://accounts:8000"),
		AuthCacheTTL:    src.Duration("AUTH_CACHE_TTL", 5*time.Minute),
		StaticTokens:    src.List("STATIC_TOKENS", ""),
		AuthTimeout:     src.Duration("AUTH_TIMEOUT_MS", 3*time.Second),
		MetricsDisabled: src.Bool("METRICS_DISABLED", false),
	}, nil
}

func (c Config) sessionProvider() (auth.SessionProvider, error) {
	switch c.AuthMode {
	case "none", "open":
		return auth.OpenProvider{}, nil
	case "static":
		tokens := make(map[string]string, len(c.StaticTokens))
		for _, kv := range c.StaticTokens {
			tok, email, _ := strings.Cut(kv, "=")
			if tok = strings.TrimSpace(tok); tok != "" {
				tokens[tok] = strings.TrimSpace(email)
			}
		}
		if len(tokens) == 0 {
			return nil, fmt.Errorf("AUTH_MODE=static needs STATIC_TOKENS")
		}
		return auth.NewStaticProvider(tokens), nil
	case "remote":
		return auth.NewRemoteProvider(c.AccountsURL, c.AuthTimeout, c.AuthCacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
}
