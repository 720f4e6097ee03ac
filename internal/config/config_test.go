package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"TWITCHCHAT_CHANNEL", "TWITCHCHAT_NICK", "TWITCHCHAT_TOKEN", "TWITCHCHAT_TOKEN_FILE",
		"TWITCHCHAT_ADDR", "TWITCHCHAT_TLS", "TWITCHCHAT_SQLITE",
		"TWITCHCHAT_SINK_BATCH_SIZE", "TWITCHCHAT_SINK_FLUSH_MAX_MS",
		"TWITCHCHAT_METRICS_ADDR", "TWITCHCHAT_API_ADDR",
		"TWITCHCHAT_HELIX_CLIENT_ID", "TWITCHCHAT_HELIX_CLIENT_SECRET",
		"TWITCHCHAT_REFRESH_CLIENT_ID", "TWITCHCHAT_REFRESH_CLIENT_SECRET", "TWITCHCHAT_REFRESH_TOKEN_FILE",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.Addr != defaultAddr {
		t.Fatalf("expected default addr %q, got %q", defaultAddr, cfg.Addr)
	}
	if !cfg.TLS {
		t.Fatalf("expected TLS enabled by default")
	}
	if cfg.Batch() != 1 {
		t.Fatalf("expected default batch size 1, got %d", cfg.Batch())
	}
	if cfg.FlushInterval() != 0 {
		t.Fatalf("expected zero flush interval, got %s", cfg.FlushInterval())
	}
	if cfg.Channel != "" || cfg.SQLitePath != "" {
		t.Fatalf("expected empty channel/sqlite path with no env set, got %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TWITCHCHAT_CHANNEL", "elora")
	t.Setenv("TWITCHCHAT_NICK", "elora_bot")
	t.Setenv("TWITCHCHAT_TOKEN", "oauth:abc")
	t.Setenv("TWITCHCHAT_ADDR", "irc.example.test:6697")
	t.Setenv("TWITCHCHAT_TLS", "false")
	t.Setenv("TWITCHCHAT_SQLITE", "/data/elora.db")
	t.Setenv("TWITCHCHAT_SINK_BATCH_SIZE", "25")
	t.Setenv("TWITCHCHAT_SINK_FLUSH_MAX_MS", "250")

	cfg := Load()
	if cfg.Channel != "elora" {
		t.Fatalf("unexpected channel: %q", cfg.Channel)
	}
	if cfg.Nick != "elora_bot" {
		t.Fatalf("unexpected nick: %q", cfg.Nick)
	}
	if cfg.Token != "oauth:abc" {
		t.Fatalf("unexpected token: %q", cfg.Token)
	}
	if cfg.Addr != "irc.example.test:6697" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if cfg.TLS {
		t.Fatalf("expected TLS disabled from env override")
	}
	if cfg.SQLitePath != "/data/elora.db" {
		t.Fatalf("unexpected sqlite path: %q", cfg.SQLitePath)
	}
	if cfg.Batch() != 25 {
		t.Fatalf("batch size mismatch: %d", cfg.Batch())
	}
	if cfg.FlushInterval() != 250*time.Millisecond {
		t.Fatalf("flush interval mismatch: %s", cfg.FlushInterval())
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Config{
		Channel:             "elora",
		Token:               "oauth:secret",
		HelixClientID:       "abcd",
		HelixClientSecret:   "shh",
		RefreshClientID:     "id",
		RefreshClientSecret: "secret",
		RefreshTokenFile:    "/secrets/refresh",
	}

	redacted := cfg.Redacted()
	if redacted["token"].(string) != "***REDACTED*** (len=12)" {
		t.Fatalf("expected redacted token, got %v", redacted["token"])
	}
	if redacted["channel"].(string) != "elora" {
		t.Fatalf("expected channel to survive redaction, got %v", redacted["channel"])
	}
	if redacted["helix_enabled"].(bool) != true {
		t.Fatalf("expected helix_enabled true, got %v", redacted["helix_enabled"])
	}
	if redacted["refresh_enabled"].(bool) != true {
		t.Fatalf("expected refresh_enabled true, got %v", redacted["refresh_enabled"])
	}
}

func TestRefreshEnabledRequiresAllThree(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"nothing set", Config{}, false},
		{"missing token file", Config{RefreshClientID: "id", RefreshClientSecret: "secret"}, false},
		{"missing secret", Config{RefreshClientID: "id", RefreshTokenFile: "/tmp/r"}, false},
		{"fully configured", Config{RefreshClientID: "id", RefreshClientSecret: "secret", RefreshTokenFile: "/tmp/r"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.cfg.Redacted()["refresh_enabled"].(bool)
			if got != tc.want {
				t.Fatalf("refresh_enabled: want %v got %v", tc.want, got)
			}
		})
	}
}
