// Package chatapi exposes the events ircstore has recorded, plus a
// live tail of the running client's ircevent.Dispatcher, over HTTP:
// a JSON query surface for "what did I miss" and an SSE/WebSocket
// stream for "what's happening now". Nothing else in the module
// depends on it being wired up.
package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/you/twitchchat/internal/chatmetrics"
	"github.com/you/twitchchat/internal/ircstore"
	"github.com/you/twitchchat/ircevent"
	"github.com/you/twitchchat/ircmsg"
)

// Store is the subset of *ircstore.Store the API queries against.
type Store interface {
	CountEvents(ctx context.Context, q ircstore.Query) (int64, error)
	ListEvents(ctx context.Context, q ircstore.Query) ([]ircstore.Event, error)
}

// BuildInfo describes the compiled binary, reported on /info.
type BuildInfo struct {
	Version  string
	Revision string
	BuiltAt  time.Time
}

// Options configures a Server.
type Options struct {
	Addr            string
	CORSOrigins     []string
	RateLimitRPS    int
	RateLimitBurst  int
	EnableAccessLog bool
	EnablePprof     bool
	Build           BuildInfo
	Metrics         *chatmetrics.Metrics
	Reloader        Reloader
}

type streamClient struct {
	ch        chan liveEvent
	filters   Filters
	transport string
}

type liveEvent struct {
	Kind    string `json:"kind"`
	Channel string `json:"channel,omitempty"`
	Nick    string `json:"nick,omitempty"`
	Ts      string `json:"ts"`
}

// Server serves the query and live-stream HTTP API.
type Server struct {
	httpServer *http.Server
	store      Store
	opts       Options

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool

	rateLimiter *ipRateLimiter
	cors        *corsPolicy
}

// New builds a Server backed by store. Call ServeDispatcher separately
// to feed it live events; New alone only answers queries against store.
func New(store Store, opts Options) *Server {
	srv := &Server{
		store:       store,
		opts:        opts,
		clients:     make(map[*streamClient]struct{}),
		rateLimiter: newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		cors:        newCORSPolicy(opts.CORSOrigins),
	}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/healthz", s.wrap("healthz", s.handleHealthz, handlerOptions{}))
	mux.Handle("/count", s.wrap("count", s.handleCount, handlerOptions{gzip: true}))
	mux.Handle("/events", s.wrap("events", s.handleEvents, handlerOptions{gzip: true}))
	mux.Handle("/stream", s.wrap("stream", s.handleStream, handlerOptions{}))
	mux.Handle("/ws", s.wrap("ws", s.handleWS, handlerOptions{}))
	mux.Handle("/info", s.wrap("info", s.handleInfo, handlerOptions{}))
	if s.opts.Reloader != nil {
		mux.Handle("/admin/reload", s.wrap("admin-reload", s.handleAdminReload, handlerOptions{}))
	}
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.wrap("metrics", func(w http.ResponseWriter, r *http.Request) {
			s.opts.Metrics.Handler().ServeHTTP(w, r)
		}, handlerOptions{}))
	}
	if s.opts.EnablePprof {
		mux.Handle("/debug/pprof/", s.wrap("pprof", http.HandlerFunc(pprof.Index), handlerOptions{}))
		mux.Handle("/debug/pprof/cmdline", s.wrap("pprof", http.HandlerFunc(pprof.Cmdline), handlerOptions{}))
		mux.Handle("/debug/pprof/profile", s.wrap("pprof", http.HandlerFunc(pprof.Profile), handlerOptions{}))
		mux.Handle("/debug/pprof/symbol", s.wrap("pprof", http.HandlerFunc(pprof.Symbol), handlerOptions{}))
		mux.Handle("/debug/pprof/trace", s.wrap("pprof", http.HandlerFunc(pprof.Trace), handlerOptions{}))
	}
}

type handlerOptions struct {
	gzip bool
}

func (s *Server) wrap(route string, fn http.HandlerFunc, opts handlerOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newResponseRecorder(w)
		start := time.Now()
		var gz *gzipResponseWriter
		var panicErr any

		defer func() {
			if gz != nil {
				_ = gz.Close()
			}
			if panicErr != nil {
				slog.Error("chatapi: panic recovered", "panic", panicErr)
			}
			status := rec.Status()
			duration := time.Since(start)
			s.opts.Metrics.ObserveHTTPRequest(route, r.Method, status, duration)
			if s.opts.EnableAccessLog {
				s.logAccess(r, status, duration, rec.Bytes())
			}
		}()

		defer func() {
			if err := recover(); err != nil {
				panicErr = err
				http.Error(rec, "internal server error", http.StatusInternalServerError)
			}
		}()

		if s.cors != nil {
			if handled, status := s.cors.handlePreflight(rec, r); handled {
				rec.status = status
				return
			}
		}

		if s.cors != nil && r.Method != http.MethodOptions {
			if !s.cors.applyHeaders(rec, r) {
				http.Error(rec, "origin not allowed", http.StatusForbidden)
				rec.status = http.StatusForbidden
				return
			}
		}

		if s.rateLimiter != nil {
			if !s.rateLimiter.Allow(remoteIP(r)) {
				s.opts.Metrics.ObserveHTTPRateLimited()
				http.Error(rec, "rate limit exceeded", http.StatusTooManyRequests)
				rec.status = http.StatusTooManyRequests
				return
			}
		}

		if opts.gzip {
			if gzWriter, ok := maybeGzip(rec, r); ok {
				gz = gzWriter
				rec.ResponseWriter = gzWriter
			}
		}

		fn(rec, r)
	})
}

func (s *Server) logAccess(r *http.Request, status int, dur time.Duration, bytes int64) {
	slog.Info("chatapi access",
		"remote", remoteIP(r), "method", r.Method, "path", r.URL.RequestURI(),
		"status", status, "dur", dur, "bytes", bytes, "ua", r.Header.Get("User-Agent"))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	count, err := s.store.CountEvents(r.Context(), filters.ToQuery())
	if err != nil {
		http.Error(w, "count error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"count": count})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.store.ListEvents(r.Context(), filters.ToQuery())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(rows)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filters, err := ParseFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filters = filters.CloneForStream()

	ip := remoteIP(r)
	if !s.rateLimiter.AcquireStream(ip) {
		http.Error(w, "too many concurrent streams", http.StatusTooManyRequests)
		return
	}
	defer s.rateLimiter.ReleaseStream(ip)

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if r.Method == http.MethodHead {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &streamClient{
		ch:        make(chan liveEvent, 256),
		filters:   filters,
		transport: "sse",
	}

	if !s.addClient(client) {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.removeClient(client)

	s.opts.Metrics.AddSSEClients(1)
	defer s.opts.Metrics.AddSSEClients(-1)

	fmt.Fprintf(w, ":ok\n\n")
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ":ping %d\n\n", time.Now().Unix()); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-client.ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			s.opts.Metrics.ObserveMessageSent("sse")
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filters = filters.CloneForStream()

	if s.isClosed() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	ip := remoteIP(r)
	if !s.rateLimiter.AcquireStream(ip) {
		http.Error(w, "too many concurrent streams", http.StatusTooManyRequests)
		return
	}
	defer s.rateLimiter.ReleaseStream(ip)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Warn("chatapi: websocket accept error", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := conn.CloseRead(r.Context())

	client := &streamClient{
		ch:        make(chan liveEvent, 256),
		filters:   filters,
		transport: "ws",
	}

	if !s.addClient(client) {
		_ = conn.Close(websocket.StatusPolicyViolation, "server shutting down")
		return
	}
	defer s.removeClient(client)

	s.opts.Metrics.AddWSClients(1)
	defer s.opts.Metrics.AddWSClients(-1)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := conn.Ping(pingCtx); err != nil {
				cancel()
				return
			}
			cancel()
		case ev, ok := <-client.ch:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := wsjson.Write(writeCtx, conn, ev); err != nil {
				cancel()
				return
			}
			cancel()
			s.opts.Metrics.ObserveMessageSent("ws")
		}
	}
}

func (s *Server) addClient(client *streamClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[client] = struct{}{}
	return true
}

func (s *Server) removeClient(client *streamClient) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.ch)
	}
	s.mu.Unlock()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// broadcast fans ev out to every connected client whose filters match.
func (s *Server) broadcast(ev liveEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if !client.filters.Matches(ev.Kind, ev.Channel, ev.Nick) {
			continue
		}
		select {
		case client.ch <- ev:
		default:
			s.opts.Metrics.ObserveBroadcastDrop(client.transport)
		}
	}
}

// ServeDispatcher drains every message the dispatcher delivers and
// broadcasts it to matching stream clients, until sub is closed or ctx
// is done. Run it in its own goroutine alongside Start.
func (s *Server) ServeDispatcher(ctx context.Context, sub *ircevent.Subscription[ircmsg.Message]) {
	for {
		msg, ok := sub.Next(ctx)
		if !ok {
			return
		}
		channel, nick, command, described := ircstore.Describe(msg)
		if !described {
			command = string(msg.Kind())
		}
		s.broadcast(liveEvent{
			Kind:    command,
			Channel: channel,
			Nick:    nick,
			Ts:      time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	slog.Info("chatapi: listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and disconnects every stream client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for client := range s.clients {
		close(client.ch)
	}
	s.clients = make(map[*streamClient]struct{})
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	resp := infoResponse{
		Version:  s.opts.Build.Version,
		Revision: s.opts.Build.Revision,
		Go:       runtime.Version(),
	}
	if !s.opts.Build.BuiltAt.IsZero() {
		resp.BuiltAt = s.opts.Build.BuiltAt.UTC().Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

type infoResponse struct {
	Version  string `json:"version"`
	Revision string `json:"rev"`
	BuiltAt  string `json:"built_at"`
	Go       string `json:"go"`
}
