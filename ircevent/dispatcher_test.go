package ircevent

import (
	"context"
	"testing"
	"time"

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

func TestDispatchFanOutOrderPerSubscriber(t *testing.T) {
	d := New()
	sub := Subscribe[ircmsg.Join](d)

	for i := 0; i < 5; i++ {
		f := mustFrame(t, ":a!a@a JOIN #chan")
		msg, err := ircmsg.Parse(f)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		d.Dispatch(f, msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		if _, ok := sub.Next(ctx); !ok {
			t.Fatalf("expected event %d", i)
		}
	}
}

func TestDispatchMultipleSubscribersIndependent(t *testing.T) {
	d := New()
	subA := Subscribe[ircmsg.Privmsg](d)
	subB := Subscribe[ircmsg.Privmsg](d)

	f := mustFrame(t, ":u!u@u PRIVMSG #c :hi")
	msg, err := ircmsg.Parse(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d.Dispatch(f, msg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := subA.Next(ctx); !ok {
		t.Fatalf("subA expected an event")
	}
	if _, ok := subB.Next(ctx); !ok {
		t.Fatalf("subB expected an event")
	}
}

func TestDispatchAllAndRaw(t *testing.T) {
	d := New()
	all := SubscribeAll(d)
	raw := SubscribeRaw(d)

	f := mustFrame(t, ":u!u@u PRIVMSG #c :hi")
	msg, err := ircmsg.Parse(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d.Dispatch(f, msg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if v, ok := all.Next(ctx); !ok || v.Kind() != ircmsg.KindPrivmsg {
		t.Fatalf("all sub got %+v ok=%v", v, ok)
	}
	if v, ok := raw.Next(ctx); !ok || v.Command != "PRIVMSG" {
		t.Fatalf("raw sub got %+v ok=%v", v, ok)
	}
}

func TestDispatchTypeFilteringDoesNotCrossDeliver(t *testing.T) {
	d := New()
	joins := Subscribe[ircmsg.Join](d)
	parts := Subscribe[ircmsg.Part](d)

	f := mustFrame(t, ":u!u@u JOIN #c")
	msg, err := ircmsg.Parse(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d.Dispatch(f, msg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, ok := joins.Next(ctx); !ok {
		t.Fatalf("joins expected an event")
	}
	if _, ok := parts.Next(ctx); ok {
		t.Fatalf("parts should not have received a JOIN")
	}
}

func TestSubscriptionCloseEndsStream(t *testing.T) {
	d := New()
	sub := Subscribe[ircmsg.Join](d)
	sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, ok := sub.Next(ctx); ok {
		t.Fatalf("expected end-of-stream after Close")
	}
}

func TestWaitForUnsubscribesAfterOneEvent(t *testing.T) {
	d := New()
	done := make(chan ircmsg.Join, 1)
	go func() {
		v, err := WaitFor[ircmsg.Join](context.Background(), d)
		if err == nil {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	f := mustFrame(t, ":u!u@u JOIN #c")
	msg, _ := ircmsg.Parse(f)
	d.Dispatch(f, msg)

	select {
	case v := <-done:
		if v.Channel != "#c" {
			t.Fatalf("got %+v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not resolve")
	}
}

// TestConcurrentSubscribeAndDispatch exercises spec.md §5's requirement
// that Dispatch and Subscribe/SubscribeAll/SubscribeRaw are safe to call
// concurrently from separate goroutines (a runner's read loop dispatching
// while application code subscribes). It is not expected to catch
// anything under a normal run; it exists to be run with -race.
func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := New()
	f := mustFrame(t, ":u!u@u JOIN #c")
	msg, err := ircmsg.Parse(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			d.Dispatch(f, msg)
		}
	}()

	var subs []*Subscription[ircmsg.Join]
	for i := 0; i < 200; i++ {
		subs = append(subs, Subscribe[ircmsg.Join](d))
	}
	_ = SubscribeAll(d)
	_ = SubscribeRaw(d)

	<-done
	for _, sub := range subs {
		sub.Close()
	}
}

func TestChanSinkDeliversAndCloses(t *testing.T) {
	d := New()
	sub := Subscribe[ircmsg.Join](d)
	ch := sub.Chan()

	f := mustFrame(t, ":u!u@u JOIN #c")
	msg, _ := ircmsg.Parse(f)
	d.Dispatch(f, msg)

	select {
	case v := <-ch:
		if v.Channel != "#c" {
			t.Fatalf("got %+v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a value on the channel sink")
	}

	sub.Close()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after Close")
	}
}
