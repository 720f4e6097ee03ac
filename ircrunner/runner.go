// Package ircrunner wires the frame decoder, typed parser, event
// dispatcher, and rate-limited writer into the read/write event loop
// that owns a single connection's lifetime.
package ircrunner

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/you/twitchchat/internal/chatmetrics"
	"github.com/you/twitchchat/ircconfig"
	"github.com/you/twitchchat/ircevent"
	"github.com/you/twitchchat/ircframe"
	"github.com/you/twitchchat/ircmsg"
	"github.com/you/twitchchat/ircwriter"
	"github.com/you/twitchchat/ratelimit"
)

// connectionStates lists every State.String() value chatmetrics should
// expose a gauge for, so SetConnectionState can zero out the ones the
// runner isn't currently in.
var connectionStates = []string{
	StateIdle.String(), StateConnecting.String(), StateRegistering.String(),
	StateRunning.String(), StateClosing.String(), StateClosed.String(), StateErrored.String(),
}

// Conn is the narrow transport capability the runner needs: a readable,
// writable, deadline-aware, closable byte stream. *net.Conn and
// *tls.Conn satisfy it directly; transport/wsconn adapts a websocket.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	Close() error
}

// Status is the terminal outcome of one Run call.
type Status string

const (
	StatusEof       Status = "eof"
	StatusCanceled  Status = "canceled"
	StatusTimedOut  Status = "timed_out"
	StatusErrored   Status = "errored"
)

// Error kinds from section 7 of the design: registration and transport
// failures the runner itself can produce (typed-parse errors are
// delivered to subscribers instead of returned here).
var (
	ErrInvalidRegistration = errors.New("ircrunner: invalid registration")
	ErrNotConnected        = errors.New("ircrunner: not connected")
)

const (
	defaultInactivityTimeout = 5 * time.Minute
	defaultReadBuffer        = 4096
	registrationTimeout      = 15 * time.Second
)

// Runner owns the read and write loops for one connection's lifetime.
// Build one with New and reuse it across reconnects: each call to Run
// takes a fresh Conn.
type Runner struct {
	cfg        ircconfig.UserConfig
	channels   []string
	dispatcher *ircevent.Dispatcher
	queue      *ircwriter.Queue
	limiter    *ratelimit.Limiter
	inactivity time.Duration
	dropLog    *dropLogger
	metrics    *chatmetrics.Metrics

	mu    sync.Mutex
	state State
}

// State is the runner's registration/run lifecycle, per the state machine
// Idle -> Connecting -> Registering -> Running -> {Closing -> Closed | Errored}.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateRegistering
	StateRunning
	StateClosing
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Option configures a Runner at construction time.
type Option func(*Runner)

// WithInactivityTimeout overrides the default 5 minute no-data timeout.
func WithInactivityTimeout(d time.Duration) Option {
	return func(r *Runner) { r.inactivity = d }
}

// WithDropLogging enables verbose per-drop logging in addition to the
// default windowed summaries.
func WithDropLogging(verbose bool, interval time.Duration) Option {
	return func(r *Runner) { r.dropLog = newDropLogger(time.Now(), verbose, interval) }
}

// WithMetrics attaches a chatmetrics.Metrics bundle the runner reports
// frame/parse/reconnect/state counters into. A nil Metrics (the default)
// makes every observation a no-op.
func WithMetrics(m *chatmetrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New builds a Runner. queue is the FIFO that Writer handles obtained
// from Writer() push into; limiter governs how fast the write loop drains it.
func New(cfg ircconfig.UserConfig, channels []string, dispatcher *ircevent.Dispatcher, queue *ircwriter.Queue, limiter *ratelimit.Limiter, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		channels:   channels,
		dispatcher: dispatcher,
		queue:      queue,
		limiter:    limiter,
		inactivity: defaultInactivityTimeout,
		dropLog:    newDropLogger(time.Now(), false, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Writer returns a writer handle bound to this runner's shared queue.
// Writes submitted before the runner reaches Running simply wait in the
// queue for the write loop to start draining it.
func (r *Runner) Writer() ircwriter.Writer {
	return ircwriter.NewWriter(r.queue)
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.metrics.SetConnectionState(connectionStates, s.String())
}

// CurrentState reports the runner's lifecycle state.
func (r *Runner) CurrentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run drives one connection end to end: registration, then the read and
// write loops until ctx is canceled, the connection fails, the server
// asks for RECONNECT (-> StatusEof, matching the documented "terminate
// and let the caller reconnect" policy), or the registration sequence
// fails outright (-> ErrInvalidRegistration).
func (r *Runner) Run(ctx context.Context, conn Conn) (status Status, err error) {
	connID := uuid.NewString()
	slog.Info("ircrunner: connection starting", "conn_id", connID, "nick", r.cfg.Nick())
	defer func() {
		slog.Info("ircrunner: connection ended", "conn_id", connID, "status", status, "err", err)
	}()

	r.setState(StateConnecting)
	defer func() {
		_ = conn.Close()
	}()

	r.setState(StateRegistering)
	if regErr := r.register(ctx, conn); regErr != nil {
		r.setState(StateErrored)
		return StatusErrored, regErr
	}

	r.setState(StateRunning)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		errCh <- r.readLoop(runCtx, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- r.writeLoop(runCtx, conn)
	}()

	first := <-errCh
	r.setState(StateClosing)
	cancel()
	wg.Wait()

	r.dropLog.flush(time.Now())

	switch {
	case ctx.Err() != nil:
		r.setState(StateClosed)
		return StatusCanceled, ctx.Err()
	case errors.Is(first, io.EOF):
		r.setState(StateClosed)
		return StatusEof, nil
	case errors.Is(first, errReconnectRequested):
		r.setState(StateClosed)
		return StatusEof, nil
	case errors.Is(first, errTimedOut):
		r.setState(StateClosed)
		return StatusTimedOut, nil
	case first != nil:
		r.setState(StateErrored)
		return StatusErrored, first
	default:
		r.setState(StateClosed)
		return StatusEof, nil
	}
}

func (r *Runner) register(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithTimeout(ctx, registrationTimeout)
	defer cancel()

	send := func(line string) error {
		_, err := io.WriteString(conn, line)
		return err
	}

	if !r.cfg.IsAnonymous() {
		line, _ := ircwriter.Raw("PASS " + r.cfg.Token())
		if err := send(line); err != nil {
			return errors.Wrap(err, "ircrunner: send PASS")
		}
	}
	nickLine, _ := ircwriter.Raw("NICK " + r.cfg.Nick())
	if err := send(nickLine); err != nil {
		return errors.Wrap(err, "ircrunner: send NICK")
	}

	if caps := r.cfg.Capabilities(); len(caps) > 0 {
		names := make([]string, len(caps))
		for i, c := range caps {
			names[i] = string(c)
		}
		capLine, _ := ircwriter.Raw("CAP REQ :" + strings.Join(names, " "))
		if err := send(capLine); err != nil {
			return errors.Wrap(err, "ircrunner: send CAP REQ")
		}
	}

	for _, ch := range r.channels {
		joinLine, _ := ircwriter.Join(ch)
		if err := send(joinLine); err != nil {
			return errors.Wrap(err, "ircrunner: send JOIN")
		}
	}

	return r.awaitReady(ctx, conn)
}

// awaitReady reads frames until it sees 001 or GLOBALUSERSTATE (ready),
// a registration-failure NOTICE, or the connection ends.
func (r *Runner) awaitReady(ctx context.Context, conn Conn) error {
	var buf []byte
	chunk := make([]byte, defaultReadBuffer)
	for {
		if ctx.Err() != nil {
			return ErrInvalidRegistration
		}
		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return err
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		frames, consumed := ircframe.DecodeAll(buf, func(e error, line string) {
			r.dropLog.note(time.Now(), "malformed_during_registration", line)
		})
		buf = buf[consumed:]

		for _, f := range frames {
			msg, perr := ircmsg.Parse(f)
			if perr != nil {
				continue
			}
			switch m := msg.(type) {
			case ircmsg.IrcReady:
				r.dispatcher.Dispatch(f, m)
				return nil
			case ircmsg.GlobalUserState:
				r.dispatcher.Dispatch(f, m)
				r.dispatcher.Dispatch(f, ircmsg.Ready{GlobalUserState: m})
				return nil
			case ircmsg.Notice:
				if registrationFailed(m.Text) {
					return ErrInvalidRegistration
				}
				r.dispatcher.Dispatch(f, m)
			default:
				r.dispatcher.Dispatch(f, m)
			}
		}

		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return ErrInvalidRegistration
			}
			return err
		}
	}
}

func registrationFailed(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "login authentication failed") ||
		strings.Contains(lower, "improperly formatted auth")
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

var errReconnectRequested = errors.New("ircrunner: server requested reconnect")

// readLoop fills a growable buffer, decodes every complete frame after
// each read, parses and dispatches them, answers PING with PONG, and
// enforces the inactivity timeout.
func (r *Runner) readLoop(ctx context.Context, conn Conn) error {
	var buf []byte
	chunk := make([]byte, defaultReadBuffer)
	writer := r.Writer()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := conn.SetReadDeadline(time.Now().Add(r.inactivity)); err != nil {
			return err
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			frames, consumed := ircframe.DecodeAll(buf, func(e error, line string) {
				r.dropLog.note(time.Now(), "malformed", line)
				r.metrics.ObserveFrameDropped("malformed")
			})
			buf = buf[consumed:]

			for _, f := range frames {
				r.metrics.ObserveFrameDecoded()
				msg, perr := ircmsg.Parse(f)
				if perr != nil {
					r.dropLog.note(time.Now(), "parse_error", f.Command)
					r.metrics.ObserveFrameDropped("parse_error")
					if pe, ok := perr.(*ircmsg.ParseError); ok {
						r.metrics.ObserveParseError(pe.Command, string(pe.Kind))
					}
					continue
				}
				r.metrics.ObserveMessageParsed(string(msg.Kind()))
				r.dispatcher.Dispatch(f, msg)

				switch m := msg.(type) {
				case ircmsg.Ping:
					if err := writer.Pong(m.Token); err != nil {
						return err
					}
				case ircmsg.Reconnect:
					r.metrics.ObserveReconnect()
					return errReconnectRequested
				case ircmsg.UserState:
					r.limiter.SetModerator(m.Channel, m.Moderator)
				case ircmsg.GlobalUserState:
					r.dispatcher.Dispatch(f, ircmsg.Ready{GlobalUserState: m})
				}
			}
		}

		if err != nil {
			if isTimeout(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errTimedOut
			}
			return err
		}
	}
}

var errTimedOut = errors.New("ircrunner: inactivity timeout")

// writeLoop pulls outbound lines in FIFO order, waits for the
// class-appropriate rate-limit token, then writes the line to conn.
func (r *Runner) writeLoop(ctx context.Context, conn Conn) error {
	for {
		line, class, ok := r.queue.Pop(ctx)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return io.EOF
		}
		waitStart := time.Now()
		if err := r.limiter.Wait(ctx, class); err != nil {
			return err
		}
		r.metrics.ObserveRateLimitWait(class.String(), time.Since(waitStart).Seconds())
		if _, err := io.WriteString(conn, line); err != nil {
			return err
		}
	}
}
