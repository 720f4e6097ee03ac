// Package config reads the environment-variable defaults for
// twitchchat-demo, so the binary can be run from a unit file or
// compose service without a long flag line. Command-line flags still
// win: Load only supplies the values flag.StringVar et al. treat as
// defaults.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything twitchchat-demo needs to run, as read from
// the environment. Every field except BatchSize and FlushMaxMS has a
// flag counterpart of the same meaning; those two are environment-only.
type Config struct {
	Channel   string
	Nick      string
	Token     string
	TokenFile string
	Addr      string
	TLS       bool

	SQLitePath string
	BatchSize  int
	FlushMaxMS int

	MetricsAddr string
	APIAddr     string

	HelixClientID     string
	HelixClientSecret string

	RefreshClientID     string
	RefreshClientSecret string
	RefreshTokenFile    string
}

const (
	defaultAddr       = "irc.chat.twitch.tv:6697"
	defaultBatchSize  = 1
	defaultFlushMaxMS = 0
)

// Load reads TWITCHCHAT_* environment variables into a Config. Unset
// variables leave the corresponding field at its zero value (or the
// documented default for Addr/TLS/BatchSize).
func Load() Config {
	cfg := Config{
		Channel:             strings.TrimSpace(os.Getenv("TWITCHCHAT_CHANNEL")),
		Nick:                strings.TrimSpace(os.Getenv("TWITCHCHAT_NICK")),
		Token:               strings.TrimSpace(os.Getenv("TWITCHCHAT_TOKEN")),
		TokenFile:           strings.TrimSpace(os.Getenv("TWITCHCHAT_TOKEN_FILE")),
		Addr:                strings.TrimSpace(os.Getenv("TWITCHCHAT_ADDR")),
		TLS:                 readBoolDefaultTrue("TWITCHCHAT_TLS", true),
		SQLitePath:          strings.TrimSpace(os.Getenv("TWITCHCHAT_SQLITE")),
		BatchSize:           readInt("TWITCHCHAT_SINK_BATCH_SIZE", defaultBatchSize),
		FlushMaxMS:          readInt("TWITCHCHAT_SINK_FLUSH_MAX_MS", defaultFlushMaxMS),
		MetricsAddr:         strings.TrimSpace(os.Getenv("TWITCHCHAT_METRICS_ADDR")),
		APIAddr:             strings.TrimSpace(os.Getenv("TWITCHCHAT_API_ADDR")),
		HelixClientID:       strings.TrimSpace(os.Getenv("TWITCHCHAT_HELIX_CLIENT_ID")),
		HelixClientSecret:   strings.TrimSpace(os.Getenv("TWITCHCHAT_HELIX_CLIENT_SECRET")),
		RefreshClientID:     strings.TrimSpace(os.Getenv("TWITCHCHAT_REFRESH_CLIENT_ID")),
		RefreshClientSecret: strings.TrimSpace(os.Getenv("TWITCHCHAT_REFRESH_CLIENT_SECRET")),
		RefreshTokenFile:    strings.TrimSpace(os.Getenv("TWITCHCHAT_REFRESH_TOKEN_FILE")),
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	return cfg
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func readBoolDefaultTrue(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Batch returns BatchSize, falling back to the default when unset or invalid.
func (c Config) Batch() int {
	if c.BatchSize <= 0 {
		return defaultBatchSize
	}
	return c.BatchSize
}

// FlushInterval converts FlushMaxMS to a time.Duration, or zero
// (flush-on-every-write) when unset.
func (c Config) FlushInterval() time.Duration {
	if c.FlushMaxMS <= 0 {
		return 0
	}
	return time.Duration(c.FlushMaxMS) * time.Millisecond
}

// Redacted returns a JSON-safe view of c with every secret replaced by
// a length-only placeholder, suitable for logging at startup.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"channel":      c.Channel,
		"nick":         c.Nick,
		"token":        redactString(c.Token),
		"token_file":   c.TokenFile,
		"addr":         c.Addr,
		"tls":          c.TLS,
		"sqlite":       c.SQLitePath,
		"batch_size":   c.Batch(),
		"flush_ms":     c.FlushMaxMS,
		"metrics_addr": c.MetricsAddr,
		"api_addr":     c.APIAddr,
		"helix_enabled": c.HelixClientID != "" && c.HelixClientSecret != "",
		"refresh_enabled": c.RefreshClientID != "" && c.RefreshClientSecret != "" &&
			c.RefreshTokenFile != "",
	}
}

// RedactedJSON is Redacted marshaled for a log line.
func (c Config) RedactedJSON() []byte {
	data, _ := json.Marshal(c.Redacted())
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}
