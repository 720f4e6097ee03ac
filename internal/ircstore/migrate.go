package ircstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/pkg/errors"
)

// migrate brings an events table created by an older version of this
// package up to the current schema. CREATE TABLE IF NOT EXISTS in Open
// is a no-op against an existing table, so a database written before
// dedup_key existed would otherwise keep silently accepting duplicate
// rows on reconnect replay; migrate detects that and repairs it in
// place instead of requiring a fresh file.
func migrate(ctx context.Context, db *sql.DB) error {
	columns, err := tableInfo(ctx, db, "events")
	if err != nil {
		return errors.Wrap(err, "ircstore: describe events")
	}
	if len(columns) == 0 {
		return nil
	}

	if _, ok := columns["dedup_key"]; !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE events ADD COLUMN dedup_key TEXT NOT NULL DEFAULT '';`); err != nil {
			return errors.Wrap(err, "ircstore: add dedup_key column")
		}
		if _, err := db.ExecContext(ctx,
			`UPDATE events SET dedup_key = 'legacy:' || id WHERE dedup_key = '';`); err != nil {
			return errors.Wrap(err, "ircstore: backfill dedup_key")
		}
		log.Printf("ircstore: migrate: added dedup_key column")
	}

	for _, col := range []string{"channel", "nick"} {
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE events SET %s = '' WHERE %s IS NULL;`, col, col)); err != nil {
			return errors.Wrap(err, "ircstore: normalize "+col)
		}
	}

	hasIndex, err := hasIndex(ctx, db, "events", "events_dedup_key")
	if err != nil {
		return errors.Wrap(err, "ircstore: inspect indices")
	}
	if !hasIndex {
		if _, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS events_dedup_key ON events(dedup_key);`); err != nil {
			return errors.Wrap(err, "ircstore: create events_dedup_key index")
		}
	}
	return nil
}

type sqliteColumn struct {
	Name    string
	Type    string
	NotNull bool
}

func tableInfo(ctx context.Context, db *sql.DB, table string) (map[string]sqliteColumn, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]sqliteColumn)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		lower := strings.ToLower(strings.TrimSpace(name))
		out[lower] = sqliteColumn{Name: name, Type: strings.TrimSpace(colType), NotNull: notNull == 1}
	}
	return out, rows.Err()
}

func hasIndex(ctx context.Context, db *sql.DB, table, index string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_list('%s');`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return false, err
		}
		if strings.EqualFold(strings.TrimSpace(name), index) {
			return true, nil
		}
	}
	return false, rows.Err()
}
