package chatapi

import "testing"

func TestIPRateLimiterAcquireStreamCapsConcurrency(t *testing.T) {
	l := newIPRateLimiter(10, 10)
	l.maxStreams = 2

	if !l.AcquireStream("1.2.3.4") {
		t.Fatalf("expected first stream to be acquired")
	}
	if !l.AcquireStream("1.2.3.4") {
		t.Fatalf("expected second stream to be acquired")
	}
	if l.AcquireStream("1.2.3.4") {
		t.Fatalf("expected third concurrent stream from same ip to be rejected")
	}

	// a different ip has its own budget
	if !l.AcquireStream("5.6.7.8") {
		t.Fatalf("expected a different ip to get its own stream slot")
	}

	l.ReleaseStream("1.2.3.4")
	if !l.AcquireStream("1.2.3.4") {
		t.Fatalf("expected a released slot to be reusable")
	}
}

func TestIPRateLimiterNilIsPermissive(t *testing.T) {
	var l *ipRateLimiter
	if !l.Allow("1.2.3.4") {
		t.Fatalf("nil limiter should allow everything")
	}
	if !l.AcquireStream("1.2.3.4") {
		t.Fatalf("nil limiter should allow stream acquisition")
	}
	l.ReleaseStream("1.2.3.4")
}
