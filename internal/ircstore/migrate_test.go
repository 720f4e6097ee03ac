package ircstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateAddsDedupKeyToLegacyTable(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	legacy := `CREATE TABLE events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  channel TEXT,
  nick TEXT,
  ts TEXT NOT NULL,
  raw TEXT NOT NULL
);`
	if _, err := db.Exec(legacy); err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO events (kind, channel, nick, ts, raw) VALUES ('JOIN', NULL, 'alice', 't1', '{}');`); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cols, err := tableInfo(context.Background(), db, "events")
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	if _, ok := cols["dedup_key"]; !ok {
		t.Fatalf("expected dedup_key column after migrate")
	}

	var channel string
	if err := db.QueryRow(`SELECT channel FROM events WHERE nick = 'alice'`).Scan(&channel); err != nil {
		t.Fatalf("query migrated row: %v", err)
	}
	if channel != "" {
		t.Fatalf("expected NULL channel normalized to empty string, got %q", channel)
	}

	ok, err := hasIndex(context.Background(), db, "events", "events_dedup_key")
	if err != nil {
		t.Fatalf("inspect indices: %v", err)
	}
	if !ok {
		t.Fatalf("expected events_dedup_key index after migrate")
	}
}

func TestMigrateNoOpOnFreshSchema(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := migrate(context.Background(), store.db); err != nil {
		t.Fatalf("re-running migrate on fresh schema should be a no-op, got: %v", err)
	}
}
