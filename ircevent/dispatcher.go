// Package ircevent is the typed, multi-subscriber event dispatcher that
// sits between the runner's read loop and application code: every
// decoded frame and every parsed message is fanned out to however many
// subscribers asked for it, each with its own drop-safe queue so one
// slow reader can't stall another.
package ircevent

import (
	"sync"

	"github.com/you/twitchchat/ircframe"
	"github.com/you/twitchchat/ircmsg"
)

// Dispatcher fans out decoded frames and typed messages to subscribers.
// The zero value is not usable; construct with New.
//
// mu serializes every access to byKind/all/raw: Dispatch compacts these
// slices in place on every send, and Subscribe*/SubscribeAll/SubscribeRaw
// append to them from whatever goroutine calls them (typically
// application code, concurrently with the runner's read loop calling
// Dispatch) — per spec.md's concurrency model, subscribing is expected to
// race with dispatch, not merely with other subscribes.
type Dispatcher struct {
	mu     sync.Mutex
	byKind map[ircmsg.Kind][]func(ircmsg.Message) bool
	all    []func(ircmsg.Message) bool
	raw    []func(ircframe.Owned) bool
}

// New returns an empty Dispatcher ready to accept subscriptions.
func New() *Dispatcher {
	return &Dispatcher{byKind: make(map[ircmsg.Kind][]func(ircmsg.Message) bool)}
}

// Dispatch delivers one decoded frame to every interested subscriber.
// Ordering for a single frame is raw, then the specific typed kind, then
// All, matching the order callers most often want to observe a message
// in (cheapest/most general first).
func (d *Dispatcher) Dispatch(frame ircframe.Frame, msg ircmsg.Message) {
	owned := frame.AsOwned()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = compactSend(d.raw, owned)
	if subs, ok := d.byKind[msg.Kind()]; ok {
		d.byKind[msg.Kind()] = compactSend(subs, msg)
	}
	d.all = compactSend(d.all, msg)
}

// compactSend calls every subscriber function with v, dropping (not
// calling again) any that report themselves no longer alive. This is the
// "append-only, compacted on each send" subscriber-list policy: closing
// a subscription doesn't shrink the slice immediately, the next send does.
func compactSend[T any](subs []func(T) bool, v T) []func(T) bool {
	if len(subs) == 0 {
		return subs
	}
	out := subs[:0]
	for _, fn := range subs {
		if fn(v) {
			out = append(out, fn)
		}
	}
	return out
}

// Subscribe returns a new subscription for messages of type T (e.g.
// ircevent.Subscribe[ircmsg.Privmsg](d)). The subscriber list for T is
// independent of every other type's list.
func Subscribe[T ircmsg.Message](d *Dispatcher) *Subscription[T] {
	var zero T
	kind := zero.Kind()
	q := newQueue[T]()
	push := func(m ircmsg.Message) bool {
		if v, ok := m.(T); ok {
			q.push(v)
		}
		return !q.isClosed()
	}
	d.mu.Lock()
	d.byKind[kind] = append(d.byKind[kind], push)
	d.mu.Unlock()
	return &Subscription[T]{q: q}
}

// SubscribeAll returns a subscription receiving every parsed message
// regardless of kind, as the sum-typed ircmsg.Message.
func SubscribeAll(d *Dispatcher) *Subscription[ircmsg.Message] {
	q := newQueue[ircmsg.Message]()
	push := func(m ircmsg.Message) bool {
		q.push(m)
		return !q.isClosed()
	}
	d.mu.Lock()
	d.all = append(d.all, push)
	d.mu.Unlock()
	return &Subscription[ircmsg.Message]{q: q}
}

// SubscribeRaw returns a subscription receiving every decoded frame,
// recognized or not, before typed parsing/dispatch.
func SubscribeRaw(d *Dispatcher) *Subscription[ircframe.Owned] {
	q := newQueue[ircframe.Owned]()
	push := func(f ircframe.Owned) bool {
		q.push(f)
		return !q.isClosed()
	}
	d.mu.Lock()
	d.raw = append(d.raw, push)
	d.mu.Unlock()
	return &Subscription[ircframe.Owned]{q: q}
}
