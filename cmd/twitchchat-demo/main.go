// Command twitchchat-demo wires the library packages into a minimal
// chat client: it joins one channel, logs PRIVMSGs, answers PINGs, and
// reconnects with backoff when the connection drops.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/you/twitchchat/internal/badgeimages"
	"github.com/you/twitchchat/internal/chatapi"
	"github.com/you/twitchchat/internal/chatmetrics"
	"github.com/you/twitchchat/internal/config"
	"github.com/you/twitchchat/internal/credwatch"
	"github.com/you/twitchchat/internal/ircstore"
	"github.com/you/twitchchat/internal/tokenrefresh"
	"github.com/you/twitchchat/ircconfig"
	"github.com/you/twitchchat/ircevent"
	"github.com/you/twitchchat/ircmsg"
	"github.com/you/twitchchat/ircrunner"
	"github.com/you/twitchchat/irctags"
	"github.com/you/twitchchat/ircwriter"
	"github.com/you/twitchchat/ratelimit"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.Load()

	var (
		channel       string
		nick          string
		token         string
		tokenFile     string
		addr          string
		useTLS        bool
		sqlitePath    string
		metricsAddr   string
		apiAddr       string
		helixID       string
		helixSecret   string
		refreshID     string
		refreshSecret string
		refreshFile   string
	)

	flag.StringVar(&channel, "channel", cfg.Channel, "Twitch channel to join (without #)")
	flag.StringVar(&nick, "nick", cfg.Nick, "Nickname to login as (blank for anonymous read-only)")
	flag.StringVar(&token, "token", cfg.Token, "OAuth token (format: oauth:xxxx, or blank for anonymous)")
	flag.StringVar(&tokenFile, "token-file", cfg.TokenFile, "Path to a file containing the OAuth token; watched for changes")
	flag.StringVar(&addr, "addr", cfg.Addr, "IRC server address")
	flag.BoolVar(&useTLS, "tls", cfg.TLS, "Use TLS when dialing addr")
	flag.StringVar(&sqlitePath, "sqlite", cfg.SQLitePath, "Optional path to a SQLite file to log events into")
	flag.StringVar(&metricsAddr, "metrics-addr", cfg.MetricsAddr, "Optional address to expose Prometheus metrics on (e.g. :9090)")
	flag.StringVar(&apiAddr, "api-addr", cfg.APIAddr, "Optional address to expose a query/stream HTTP API on (e.g. :8765); requires -sqlite")
	flag.StringVar(&helixID, "helix-client-id", cfg.HelixClientID, "Optional Helix app client ID, enables badge image resolution")
	flag.StringVar(&helixSecret, "helix-client-secret", cfg.HelixClientSecret, "Optional Helix app client secret, enables badge image resolution")
	flag.StringVar(&refreshID, "refresh-client-id", cfg.RefreshClientID, "Optional Twitch app client ID, enables automatic token refresh")
	flag.StringVar(&refreshSecret, "refresh-client-secret", cfg.RefreshClientSecret, "Optional Twitch app client secret, enables automatic token refresh")
	flag.StringVar(&refreshFile, "refresh-token-file", cfg.RefreshTokenFile, "Path to the stored refresh token; required with -refresh-client-id")
	flag.Parse()

	slog.Info("twitchchat-demo: starting", "config", string(cfg.RedactedJSON()))

	if strings.TrimSpace(channel) == "" {
		log.Fatal("twitchchat-demo: -channel is required")
	}
	if strings.TrimSpace(nick) == "" {
		nick = ircconfig.AnonymousNick
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("twitchchat-demo: received %s, shutting down", sig)
		cancel()
	}()

	metrics := chatmetrics.New()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("twitchchat-demo: metrics server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = server.Shutdown(shutdownCtx)
		}()
		log.Printf("twitchchat-demo: metrics on %s", metricsAddr)
	}

	var store *ircstore.Store
	if sqlitePath != "" {
		s, err := ircstore.Open(sqlitePath)
		if err != nil {
			log.Fatalf("twitchchat-demo: open sqlite: %v", err)
		}
		defer s.Close()
		store = s
	}

	state := newTokenState(strings.TrimSpace(token))
	restart := make(chan struct{}, 1)
	if tokenFile != "" {
		watcher, err := credwatch.Watch(tokenFile, func(newToken string) {
			if state.Set(newToken) {
				log.Printf("twitchchat-demo: token file changed; reconnecting with new token")
				select {
				case restart <- struct{}{}:
				default:
				}
			}
		})
		if err != nil {
			log.Fatalf("twitchchat-demo: watch token file: %v", err)
		}
		defer watcher.Close()
	}

	var reloader chatapi.Reloader
	if refreshID != "" {
		if tokenFile == "" || refreshFile == "" {
			log.Fatal("twitchchat-demo: -refresh-client-id requires both -token-file and -refresh-token-file")
		}
		mgr := &tokenrefresh.Manager{
			ClientID:     refreshID,
			ClientSecret: refreshSecret,
			AccessPath:   tokenFile,
			RefreshPath:  refreshFile,
		}
		mgr.StartAuto(ctx, func(newToken string) {
			if state.Set(newToken) {
				log.Printf("twitchchat-demo: token refreshed; reconnecting")
				select {
				case restart <- struct{}{}:
				default:
				}
			}
		})
		reloader = mgr
	}

	badges := badgeimages.NewResolver(helixID, helixSecret)

	dispatcher := ircevent.New()
	privmsgs := ircevent.Subscribe[ircmsg.Privmsg](dispatcher)
	go func() {
		for {
			msg, ok := privmsgs.Next(context.Background())
			if !ok {
				return
			}
			fmt.Printf("#%s %s: %s%s\n", strings.TrimPrefix(msg.Channel, "#"), msg.Name, msg.Data,
				formatBadges(badges, strings.TrimPrefix(msg.Channel, "#"), msg.Tags.Badges()))
		}
	}()

	if store != nil {
		all := ircevent.SubscribeAll(dispatcher)
		go ircstore.RecordAll(context.Background(), store, all, func(err error) {
			slog.Error("twitchchat-demo: store write failed", "err", err)
		})
	}

	if apiAddr != "" {
		if store == nil {
			log.Fatal("twitchchat-demo: -api-addr requires -sqlite")
		}
		apiSrv := chatapi.New(store, chatapi.Options{
			Addr:            apiAddr,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			EnableAccessLog: true,
			Metrics:         metrics,
			Reloader:        reloader,
		})
		apiSub := ircevent.SubscribeAll(dispatcher)
		go apiSrv.ServeDispatcher(ctx, apiSub)
		go func() {
			if err := apiSrv.Start(); err != nil {
				log.Printf("twitchchat-demo: api server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			apiSub.Close()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = apiSrv.Shutdown(shutdownCtx)
		}()
		log.Printf("twitchchat-demo: query/stream api on %s", apiAddr)
	}

	runForever(ctx, channel, nick, addr, useTLS, state, restart, dispatcher, metrics)

	log.Printf("twitchchat-demo: shutdown complete")
}

// runForever drives the reconnect-with-backoff loop: each iteration
// builds a fresh Runner and Conn (the token may have changed) and runs
// it to a terminal Status, then backs off before retrying unless ctx
// has been canceled for good. A token rotation delivered on restart
// cancels only the in-flight run's own context, not the process
// lifecycle, so the next iteration picks up the new token immediately
// instead of waiting out the backoff.
func runForever(
	parent context.Context,
	channel, nick, addr string,
	useTLS bool,
	state *tokenState,
	restart <-chan struct{},
	dispatcher *ircevent.Dispatcher,
	metrics *chatmetrics.Metrics,
) {
	backoff := time.Second
	for {
		if parent.Err() != nil {
			return
		}

		runCtx, runCancel := context.WithCancel(parent)
		stopWatch := make(chan struct{})
		restartedCh := make(chan struct{})
		go func() {
			select {
			case <-restart:
				close(restartedCh)
				runCancel()
			case <-stopWatch:
			}
		}()

		status, err := runOnce(runCtx, channel, nick, addr, useTLS, state, dispatcher, metrics)
		close(stopWatch)
		runCancel()

		if parent.Err() != nil {
			return
		}
		select {
		case <-restartedCh:
			backoff = time.Second
			continue
		default:
		}

		switch status {
		case ircrunner.StatusEof:
			log.Printf("twitchchat-demo: disconnected (eof/reconnect); retrying in %s", backoff)
		case ircrunner.StatusTimedOut:
			log.Printf("twitchchat-demo: inactivity timeout; retrying in %s", backoff)
		case ircrunner.StatusErrored:
			if errors.Is(err, ircrunner.ErrInvalidRegistration) {
				log.Printf("twitchchat-demo: registration failed (bad token?); retrying in %s", backoff)
			} else {
				log.Printf("twitchchat-demo: disconnected: %v; retrying in %s", err, backoff)
			}
		default:
			log.Printf("twitchchat-demo: run ended with status=%s err=%v; retrying in %s", status, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-parent.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if backoff < 60*time.Second {
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
		}
	}
}

func runOnce(
	ctx context.Context,
	channel, nick, addr string,
	useTLS bool,
	state *tokenState,
	dispatcher *ircevent.Dispatcher,
	metrics *chatmetrics.Metrics,
) (ircrunner.Status, error) {
	builder := ircconfig.NewBuilder(nick).Capability(ircconfig.CapMembership).
		Capability(ircconfig.CapTags).Capability(ircconfig.CapCommands)
	if tok := state.Current(); tok != "" {
		builder = builder.Token(tok)
	}
	cfg, err := builder.Build()
	if err != nil {
		return ircrunner.StatusErrored, err
	}

	conn, err := dial(ctx, addr, useTLS)
	if err != nil {
		return ircrunner.StatusErrored, err
	}

	queue := ircwriter.NewQueue()
	limiter := ratelimit.New()
	runner := ircrunner.New(cfg, []string{channel}, dispatcher, queue, limiter,
		ircrunner.WithMetrics(metrics),
	)
	return runner.Run(ctx, conn)
}

func dial(ctx context.Context, addr string, useTLS bool) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 15 * time.Second}
	if !useTLS {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host})
}

// formatBadges renders a short " [badge=url,...]" suffix for any badges
// the resolver found artwork for, or "" when the resolver is disabled
// (no Helix credentials) or none of the badges matched.
func formatBadges(r *badgeimages.Resolver, channel string, badges []irctags.Badge) string {
	if len(badges) == 0 {
		return ""
	}
	enriched := r.Enrich(context.Background(), channel, badges)
	var parts []string
	for _, b := range enriched {
		if len(b.Images) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", b.Kind, b.Images[0].URL))
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ",") + "]"
}

type tokenState struct {
	mu    sync.RWMutex
	token string
}

func newTokenState(initial string) *tokenState {
	return &tokenState{token: strings.TrimSpace(initial)}
}

func (s *tokenState) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *tokenState) Set(token string) bool {
	token = strings.TrimSpace(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token {
		return false
	}
	s.token = token
	return true
}
