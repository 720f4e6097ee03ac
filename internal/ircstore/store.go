// Package ircstore persists a subset of chat events to SQLite so a
// client can answer "what happened while I was away" without replaying
// the wire. It is an optional sink: nothing in the rest of the module
// depends on it being wired up.
package ircstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/twitchchat/internal/ingesttrace"
	"github.com/you/twitchchat/ircevent"
	"github.com/you/twitchchat/ircframe"
	"github.com/you/twitchchat/ircmsg"
)

const schema = `CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  channel TEXT NOT NULL DEFAULT '',
  nick TEXT NOT NULL DEFAULT '',
  ts TEXT NOT NULL,
  raw TEXT NOT NULL,
  dedup_key TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_channel_ts ON events(channel, ts);
CREATE INDEX IF NOT EXISTS events_kind_ts ON events(kind, ts);
CREATE UNIQUE INDEX IF NOT EXISTS events_dedup_key ON events(dedup_key);`

// Store is a SQLite-backed append-only log of chat events.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "ircstore: open")
	}
	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ircstore: apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ircstore: set WAL")
	}
	applyTuning(context.Background(), db)
	return &Store{db: db}, nil
}

// applyTuning mirrors the opt-in pragma tuning the wider example pack
// gates on an environment variable, so a busy single-process client
// doesn't pay fsync cost on every insert unless asked to.
func applyTuning(ctx context.Context, db *sql.DB) {
	if os.Getenv("TWITCHCHAT_SQLITE_TUNING") != "1" {
		return
	}
	pragmas := []string{
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA wal_autocheckpoint=1000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			continue
		}
	}
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

type storedEvent struct {
	Kind    string `json:"kind"`
	Channel string `json:"channel,omitempty"`
	Nick    string `json:"nick,omitempty"`
	Command string `json:"command"`
	Tags    any    `json:"tags,omitempty"`
}

// Record appends one event to the log. It is safe to call from the
// dispatcher's SubscribeAll consumer: a write failure is logged by the
// caller, not retried, so a slow disk never blocks chat delivery.
func (s *Store) Record(msg ircmsg.Message) error {
	ev := storedEvent{Kind: string(msg.Kind())}
	var frame ircframe.Owned
	hasFrame := false

	switch m := msg.(type) {
	case ircmsg.Privmsg:
		ev.Channel, ev.Nick, ev.Command, frame, hasFrame = m.Channel, m.Name, "PRIVMSG", m.Frame, true
	case ircmsg.UserNotice:
		ev.Channel, ev.Nick, ev.Command, frame, hasFrame = m.Channel, m.Login, "USERNOTICE", m.Frame, true
	case ircmsg.Whisper:
		ev.Nick, ev.Command, frame, hasFrame = m.From, "WHISPER", m.Frame, true
	case ircmsg.ClearChat:
		ev.Channel, ev.Command, frame, hasFrame = m.Channel, "CLEARCHAT", m.Frame, true
	case ircmsg.Notice:
		ev.Channel, ev.Command, frame, hasFrame = m.Channel, "NOTICE", m.Frame, true
	case ircmsg.Join:
		ev.Channel, ev.Nick, ev.Command, frame, hasFrame = m.Channel, m.Name, "JOIN", m.Frame, true
	case ircmsg.Part:
		ev.Channel, ev.Nick, ev.Command, frame, hasFrame = m.Channel, m.Name, "PART", m.Frame, true
	default:
		ev.Command = string(msg.Kind())
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "ircstore: marshal event")
	}

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	// Dedup only applies to kinds whose replay we actually expect
	// (reconnect redelivers PRIVMSG/JOIN/PART, etc.); everything else
	// is keyed on its own timestamp so it always inserts.
	dedupSeed := ts
	if hasFrame {
		dedupSeed = frameText(frame)
	}
	dedupKey := ingesttrace.Key(ev.Command, ev.Channel, ev.Nick, dedupSeed)

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO events (kind, channel, nick, ts, raw, dedup_key) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Kind, ev.Channel, ev.Nick, ts, string(raw), dedupKey,
	)
	return errors.Wrap(err, "ircstore: insert event")
}

// Describe extracts the channel, sender, and canonical IRC command for
// a typed message, for callers (such as a live query/stream API) that
// want the same per-kind shape Record persists without touching SQLite.
// ok is false for kinds the store does not special-case.
func Describe(msg ircmsg.Message) (channel, nick, command string, ok bool) {
	switch m := msg.(type) {
	case ircmsg.Privmsg:
		return m.Channel, m.Name, "PRIVMSG", true
	case ircmsg.UserNotice:
		return m.Channel, m.Login, "USERNOTICE", true
	case ircmsg.Whisper:
		return "", m.From, "WHISPER", true
	case ircmsg.ClearChat:
		return m.Channel, "", "CLEARCHAT", true
	case ircmsg.Notice:
		return m.Channel, "", "NOTICE", true
	case ircmsg.Join:
		return m.Channel, m.Name, "JOIN", true
	case ircmsg.Part:
		return m.Channel, m.Name, "PART", true
	default:
		return "", "", string(msg.Kind()), false
	}
}

// frameText builds a deterministic textual representation of the
// message's underlying frame, good enough to key an "already stored
// this exact message" check without needing Twitch message IDs (IRC
// frames carry none outside tags that themselves vary by delivery).
func frameText(f ircframe.Owned) string {
	return f.Prefix + "\x1f" + f.Command + "\x1f" + strings.Join(f.Params, "\x1f") + "\x1f" + f.Trailer
}

// RecordAll drains sub forever, writing every delivered event via
// Record. It returns when sub.Next reports the end: the subscription
// was closed or ctx is done. Callers typically run it in its own
// goroutine: RecordAll(ctx, store, ircevent.SubscribeAll(dispatcher)).
func RecordAll(ctx context.Context, s *Store, sub *ircevent.Subscription[ircmsg.Message], onError func(error)) {
	for {
		msg, ok := sub.Next(ctx)
		if !ok {
			return
		}
		if err := s.Record(msg); err != nil && onError != nil {
			onError(err)
		}
	}
}

// CountByKind returns how many stored events match kind, for a channel
// if channel is non-empty.
func (s *Store) CountByKind(ctx context.Context, kind, channel string) (int64, error) {
	query := `SELECT COUNT(*) FROM events WHERE kind = ?`
	args := []any{kind}
	if channel != "" {
		query += ` AND channel = ?`
		args = append(args, channel)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "ircstore: count")
	}
	return n, nil
}

// Query narrows a ListEvents/CountEvents call. A zero-value Query
// matches every stored event.
type Query struct {
	Kind    string
	Channel string
	Nick    string
	Since   time.Time
	Limit   int
	Desc    bool
}

// Event is the decoded form of one stored row, returned by ListEvents.
type Event struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Channel string `json:"channel,omitempty"`
	Nick    string `json:"nick,omitempty"`
	Command string `json:"command"`
	Ts      string `json:"ts"`
}

func (q Query) where() (string, []any) {
	var clauses []string
	var args []any
	if q.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, q.Kind)
	}
	if q.Channel != "" {
		clauses = append(clauses, "channel = ?")
		args = append(args, q.Channel)
	}
	if q.Nick != "" {
		clauses = append(clauses, "nick = ?")
		args = append(args, q.Nick)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "ts >= ?")
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountEvents returns how many stored events satisfy q.
func (s *Store) CountEvents(ctx context.Context, q Query) (int64, error) {
	where, args := q.where()
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&n)
	return n, errors.Wrap(err, "ircstore: count events")
}

// ListEvents returns stored events satisfying q, most recent first
// unless q.Desc is false, in which case oldest first. q.Limit <= 0
// means no limit.
func (s *Store) ListEvents(ctx context.Context, q Query) ([]Event, error) {
	where, args := q.where()
	order := "id ASC"
	if q.Desc {
		order = "id DESC"
	}
	query := `SELECT id, kind, channel, nick, ts, raw FROM events` + where + ` ORDER BY ` + order
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "ircstore: list events")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var raw string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Channel, &e.Nick, &e.Ts, &raw); err != nil {
			return nil, errors.Wrap(err, "ircstore: scan event")
		}
		var stored storedEvent
		if err := json.Unmarshal([]byte(raw), &stored); err == nil {
			e.Command = stored.Command
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "ircstore: iterate events")
}

// String implements fmt.Stringer for diagnostic logging.
func (s *Store) String() string { return fmt.Sprintf("ircstore.Store{%p}", s.db) }
