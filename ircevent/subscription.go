package ircevent

import (
	"context"
	"sync"

	"github.com/you/twitchchat/ircmsg"
)

// Subscription is a handle returned by Subscribe/SubscribeAll/SubscribeRaw.
// It yields a lazy, finite sequence of events: finite because closing it
// ends the sequence. The Dispatcher has no close operation of its own, so
// a subscription stays open until its Close is called. The zero value is
// not usable; obtain one from the package-level Subscribe functions.
type Subscription[T any] struct {
	q *queue[T]

	chOnce sync.Once
	ch     chan T
}

// Next blocks until ctx is canceled, an event is queued, or the
// subscription is closed, checked in that order: a canceled ctx wins over
// a queued event, and events queued before Close are still delivered
// after it. It is the blocking-iterator sink:
// callers typically loop `for { v, ok := sub.Next(ctx); if !ok { break } }`.
func (s *Subscription[T]) Next(ctx context.Context) (T, bool) {
	return s.q.popCtx(ctx)
}

// Chan returns the async-stream sink: a channel that receives every
// queued event and is closed once the subscription ends. The channel is
// created lazily on first call and is the same channel on every call.
func (s *Subscription[T]) Chan() <-chan T {
	s.chOnce.Do(func() {
		s.ch = make(chan T)
		go func() {
			defer close(s.ch)
			for {
				v, ok := s.q.pop()
				if !ok {
					return
				}
				s.ch <- v
			}
		}()
	})
	return s.ch
}

// Close ends the subscription. Pending events already queued remain
// available to a Next caller that has already retrieved them, but no
// further events will be delivered, and any blocked Next/Chan reader
// unblocks with ok=false / channel close.
func (s *Subscription[T]) Close() {
	s.q.close()
}

// WaitFor subscribes for the next message of type T, returns it, and
// unsubscribes — a convenience for "wait for exactly one event" that
// doesn't leak a subscription if the caller only wanted one value.
func WaitFor[T ircmsg.Message](ctx context.Context, d *Dispatcher) (T, error) {
	sub := Subscribe[T](d)
	defer sub.Close()
	v, ok := sub.Next(ctx)
	if !ok {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, context.Canceled
	}
	return v, nil
}
