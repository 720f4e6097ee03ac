package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/you/twitchchat/internal/ircstore"
	"github.com/you/twitchchat/ircevent"
	"github.com/you/twitchchat/ircframe"
	"github.com/you/twitchchat/ircmsg"
)

func mustFrame(t *testing.T, line string) ircframe.Frame {
	t.Helper()
	_, f, needMore, err := ircframe.DecodeOne([]byte(line + "\r\n"))
	if needMore || err != nil {
		t.Fatalf("decode %q: needMore=%v err=%v", line, needMore, err)
	}
	return f
}

func newTestServer(t *testing.T) (*Server, *ircstore.Store) {
	t.Helper()
	store, err := ircstore.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := New(store, Options{})
	return srv, store
}

func TestHandleHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleCountAndEvents(t *testing.T) {
	srv, store := newTestServer(t)

	msg, err := ircmsg.Parse(mustFrame(t, ":user!user@user.tmi.twitch.tv PRIVMSG #chan :hello"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := store.Record(msg); err != nil {
		t.Fatalf("record: %v", err)
	}

	countReq := httptest.NewRequest(http.MethodGet, "/count?kind=PRIVMSG&channel=chan", nil)
	countRec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(countRec, countReq)
	if countRec.Code != http.StatusOK {
		t.Fatalf("count: expected 200, got %d: %s", countRec.Code, countRec.Body.String())
	}
	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(countRec.Body.Bytes(), &countResp); err != nil {
		t.Fatalf("decode count response: %v", err)
	}
	if countResp.Count != 1 {
		t.Fatalf("expected count 1, got %d", countResp.Count)
	}

	eventsReq := httptest.NewRequest(http.MethodGet, "/events?channel=chan", nil)
	eventsRec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(eventsRec, eventsReq)
	if eventsRec.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", eventsRec.Code)
	}
	var rows []ircstore.Event
	if err := json.Unmarshal(eventsRec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode events response: %v", err)
	}
	if len(rows) != 1 || rows[0].Command != "PRIVMSG" {
		t.Fatalf("expected one PRIVMSG event, got %+v", rows)
	}
}

func TestHandleCountBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/count?limit=-1", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServeDispatcherBroadcastsToStreamClients(t *testing.T) {
	srv, _ := newTestServer(t)

	d := ircevent.New()
	sub := ircevent.SubscribeAll(d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ServeDispatcher(ctx, sub)

	client := &streamClient{ch: make(chan liveEvent, 4), filters: Filters{}}
	if !srv.addClient(client) {
		t.Fatalf("addClient failed")
	}
	defer srv.removeClient(client)

	frame := mustFrame(t, ":user!user@user.tmi.twitch.tv JOIN #chan")
	msg, err := ircmsg.Parse(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d.Dispatch(frame, msg)

	select {
	case ev := <-client.ch:
		if ev.Kind != "JOIN" || ev.Channel != "#chan" || ev.Nick != "user" {
			t.Fatalf("unexpected live event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast event")
	}

	sub.Close()
}

func TestServerRejectsDisallowedOrigin(t *testing.T) {
	store, err := ircstore.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	srv := New(store, Options{CORSOrigins: []string{"https://allowed.example"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disallowed origin, got %d", rec.Code)
	}
}
