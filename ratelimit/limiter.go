// Package ratelimit governs outbound Twitch IRC command rates with a
// token bucket per command class, built on golang.org/x/time/rate the
// same way the corpus's HTTP middleware rate-limits inbound requests
// per client IP.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/you/twitchchat/ircwriter"
)

// Budget describes one class's bucket: Burst tokens available
// immediately, refilling to Burst again over Period.
type Budget struct {
	Burst  int
	Period time.Duration
}

// DefaultBudgets mirrors Twitch's documented limits for a normal (non-
// moderator) user.
func DefaultBudgets() map[ircwriter.Class]Budget {
	return map[ircwriter.Class]Budget{
		ircwriter.ClassJoinPart:   {Burst: 50, Period: 15 * time.Second},
		ircwriter.ClassPrivmsg:    {Burst: 20, Period: 30 * time.Second},
		ircwriter.ClassWhisper:    {Burst: 20, Period: 60 * time.Second},
		ircwriter.ClassModeration: {Burst: 20, Period: 30 * time.Second},
		ircwriter.ClassOther:      {Burst: 20, Period: 30 * time.Second},
	}
}

// ModeratorBudgets mirrors Twitch's higher limits granted to channel
// moderators, mainly a larger PRIVMSG/moderation allowance.
func ModeratorBudgets() map[ircwriter.Class]Budget {
	b := DefaultBudgets()
	b[ircwriter.ClassPrivmsg] = Budget{Burst: 100, Period: 30 * time.Second}
	b[ircwriter.ClassModeration] = Budget{Burst: 100, Period: 30 * time.Second}
	return b
}

func (b Budget) toLimiter() *rate.Limiter {
	if b.Burst <= 0 || b.Period <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	perSecond := rate.Limit(float64(b.Burst) / b.Period.Seconds())
	return rate.NewLimiter(perSecond, b.Burst)
}

// Limiter is a class-aware token bucket set, shared across every clone of
// an ircwriter.Writer. A single Limiter instance is safe for concurrent
// use, and is the one place a channel's moderator status is recorded so
// the write loop can pick the right bucket without re-deriving it.
type Limiter struct {
	mu       sync.RWMutex
	buckets  map[ircwriter.Class]*rate.Limiter
	moderator map[string]bool
}

// New builds a Limiter using the default (non-moderator) budgets.
func New() *Limiter {
	return NewFromBudgets(DefaultBudgets())
}

// NewFromBudgets builds a Limiter from explicit per-class budgets.
func NewFromBudgets(budgets map[ircwriter.Class]Budget) *Limiter {
	l := &Limiter{
		buckets:   make(map[ircwriter.Class]*rate.Limiter, len(budgets)),
		moderator: make(map[string]bool),
	}
	for class, budget := range budgets {
		l.buckets[class] = budget.toLimiter()
	}
	return l
}

// SetModerator records whether the client is a moderator in channel, and
// upgrades the shared privmsg/moderation buckets if so. Twitch grants the
// larger budget per-user, not per-channel, so this call affects every
// channel's writes through this Limiter; it is exposed per-channel to
// match where the USERSTATE tag that triggers it is observed.
func (l *Limiter) SetModerator(channel string, isModerator bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.moderator[channel] == isModerator {
		return
	}
	l.moderator[channel] = isModerator
	if !l.anyModeratorLocked() {
		for class, budget := range DefaultBudgets() {
			l.buckets[class] = budget.toLimiter()
		}
		return
	}
	for class, budget := range ModeratorBudgets() {
		l.buckets[class] = budget.toLimiter()
	}
}

func (l *Limiter) anyModeratorLocked() bool {
	for _, v := range l.moderator {
		if v {
			return true
		}
	}
	return false
}

// Wait blocks until a token is available for class, or ctx is canceled.
// Cancellation is safe: the x/time/rate reservation underneath is
// canceled too, so no token is consumed and no write should proceed.
func (l *Limiter) Wait(ctx context.Context, class ircwriter.Class) error {
	l.mu.RLock()
	limiter := l.buckets[class]
	l.mu.RUnlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
