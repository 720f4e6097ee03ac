package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/you/twitchchat/ircwriter"
)

func TestWaitAllowsBurstThenBlocks(t *testing.T) {
	l := NewFromBudgets(map[ircwriter.Class]Budget{
		ircwriter.ClassPrivmsg: {Burst: 2, Period: time.Second},
	})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, ircwriter.ClassPrivmsg); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("burst of 2 should not have waited, took %s", elapsed)
	}

	if err := l.Wait(ctx, ircwriter.ClassPrivmsg); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("third acquisition should have waited for refill, took %s", elapsed)
	}
}

func TestWaitCancellationDoesNotConsumeToken(t *testing.T) {
	l := NewFromBudgets(map[ircwriter.Class]Budget{
		ircwriter.ClassPrivmsg: {Burst: 1, Period: time.Hour},
	})
	ctx := context.Background()
	if err := l.Wait(ctx, ircwriter.ClassPrivmsg); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(cancelCtx, ircwriter.ClassPrivmsg); err == nil {
		t.Fatalf("expected the second wait to be canceled while the bucket is empty")
	}
}

func TestSetModeratorUpgradesBudget(t *testing.T) {
	l := New()
	l.SetModerator("#foo", true)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := l.Wait(ctx, ircwriter.ClassPrivmsg); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("moderator budget should allow 50 privmsgs without waiting, took %s", elapsed)
	}
}
