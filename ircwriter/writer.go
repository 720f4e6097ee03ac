package ircwriter

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Class buckets an outgoing command by the Twitch rate-limit budget it
// draws from.
type Class int

const (
	ClassOther Class = iota
	ClassJoinPart
	ClassPrivmsg
	ClassWhisper
	ClassModeration
)

func (c Class) String() string {
	switch c {
	case ClassJoinPart:
		return "join_part"
	case ClassPrivmsg:
		return "privmsg"
	case ClassWhisper:
		return "whisper"
	case ClassModeration:
		return "moderation"
	default:
		return "other"
	}
}

var moderationVerbs = map[string]struct{}{
	"ban": {}, "unban": {}, "timeout": {}, "untimeout": {}, "clear": {},
	"mod": {}, "unmod": {}, "vip": {}, "unvip": {}, "slow": {}, "slowoff": {},
	"followers": {}, "followersoff": {}, "subscribers": {}, "subscribersoff": {},
	"emoteonly": {}, "emoteonlyoff": {}, "r9kbeta": {}, "r9kbetaoff": {},
	"host": {}, "unhost": {}, "disconnect": {}, "commercial": {},
}

// ClassifyLine inspects an encoded outgoing line (as produced by this
// package's encoder functions) and reports the rate-limit bucket it
// belongs to.
func ClassifyLine(line string) Class {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, "JOIN "), strings.HasPrefix(line, "PART "):
		return ClassJoinPart
	case strings.HasPrefix(line, "PRIVMSG "):
		if idx := strings.Index(line, " :/"); idx != -1 {
			verb, _, _ := strings.Cut(line[idx+3:], " ")
			if verb == "w" {
				return ClassWhisper
			}
			if _, ok := moderationVerbs[verb]; ok {
				return ClassModeration
			}
		}
		return ClassPrivmsg
	default:
		return ClassOther
	}
}

// ErrClosed is returned by Write once the writer's queue has been closed.
var ErrClosed = errors.New("ircwriter: writer closed")

// pending is one queued outbound line with its classification.
type pending struct {
	line  string
	class Class
}

// Queue is the FIFO handed between writer clones (producers) and the
// runner's write loop (the single consumer). It preserves submission
// order across every clone sharing it.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []pending
	closed bool
}

// NewQueue creates an empty, open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a line for the write loop to send, preserving the order
// writers called Push in. It is safe to call concurrently from any
// number of Writer clones.
func (q *Queue) push(line string, class Class) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, pending{line: line, class: class})
	q.cond.Signal()
	return nil
}

// pushUrgent enqueues a line ahead of everything already waiting,
// instead of behind it. PONG is the only user: spec.md §8 requires a
// PONG to reach the wire before any pending ordinary write, since a
// late PONG risks the server timing out the connection regardless of
// how much chat traffic is backed up in front of it.
func (q *Queue) pushUrgent(line string, class Class) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append([]pending{{line: line, class: class}}, q.items...)
	q.cond.Signal()
	return nil
}

// Pop blocks until an item is available, the queue is closed, or ctx is
// canceled. Cancellation is safe: no item is lost, it simply remains at
// the head of the queue for the next Pop.
func (q *Queue) Pop(ctx context.Context) (string, Class, bool) {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		close(done)
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-done:
			return "", 0, false
		default:
		}
		if ctx.Err() != nil {
			return "", 0, false
		}
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			return item.line, item.class, true
		}
		if q.closed {
			return "", 0, false
		}
		q.cond.Wait()
	}
}

// Close marks the queue closed; pending items already queued are still
// available to Pop, but Push thereafter fails with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Writer is a clonable handle onto a shared Queue. Every clone writes
// into the same FIFO, so ordering is preserved across goroutines that
// each hold their own Writer.
type Writer struct {
	queue *Queue
}

// NewWriter wraps queue in a Writer handle. Clone (or simply copying the
// struct, since Writer holds only a pointer) shares the same queue.
func NewWriter(queue *Queue) Writer {
	return Writer{queue: queue}
}

// Clone returns a Writer sharing the same underlying queue, safe to hand
// to another goroutine.
func (w Writer) Clone() Writer { return w }

func (w Writer) submit(encoded string, err error) error {
	if err != nil {
		return err
	}
	return w.queue.push(encoded, ClassifyLine(encoded))
}

// Raw submits an arbitrary already-terminated line.
func (w Writer) Raw(line string) error { return w.submit(Raw(line)) }

// Ping submits a PING.
func (w Writer) Ping(token string) error { return w.submit(Ping(token)) }

// Pong submits a PONG ahead of any already-queued writes, so it reaches
// the wire before pending chat traffic regardless of how deep the
// queue is. Twitch (and IRC servers generally) time out the connection
// on a late PONG; it does not wait its turn behind a backlog of
// PRIVMSGs.
func (w Writer) Pong(token string) error {
	encoded, err := Pong(token)
	if err != nil {
		return err
	}
	return w.queue.pushUrgent(encoded, ClassifyLine(encoded))
}

// Join submits a channel join.
func (w Writer) Join(channel string) error { return w.submit(Join(channel)) }

// Part submits a channel part.
func (w Writer) Part(channel string) error { return w.submit(Part(channel)) }

// Privmsg submits a chat message.
func (w Writer) Privmsg(channel, text string) error { return w.submit(Privmsg(channel, text)) }

// Me submits a /me action message.
func (w Writer) Me(channel, text string) error { return w.submit(Me(channel, text)) }

// Whisper submits a whisper.
func (w Writer) Whisper(channel, toUser, text string) error {
	return w.submit(Whisper(channel, toUser, text))
}

// Ban submits a ban.
func (w Writer) Ban(channel, user, reason string) error { return w.submit(Ban(channel, user, reason)) }

// Timeout submits a timeout.
func (w Writer) Timeout(channel, user string, seconds int, reason string) error {
	return w.submit(Timeout(channel, user, seconds, reason))
}
