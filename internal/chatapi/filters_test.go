package chatapi

import (
	"net/url"
	"testing"
	"time"
)

func TestParseFiltersDefaults(t *testing.T) {
	f, err := ParseFilters(url.Values{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Limit != defaultLimit {
		t.Fatalf("expected default limit %d, got %d", defaultLimit, f.Limit)
	}
	if !f.Desc {
		t.Fatalf("expected default order desc")
	}
}

func TestParseFiltersChannelNormalized(t *testing.T) {
	f, err := ParseFilters(url.Values{"channel": {"SomeChan"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Channel != "#somechan" {
		t.Fatalf("expected normalized channel, got %q", f.Channel)
	}
}

func TestParseFiltersRejectsBadLimit(t *testing.T) {
	if _, err := ParseFilters(url.Values{"limit": {"0"}}); err == nil {
		t.Fatalf("expected error for non-positive limit")
	}
	if _, err := ParseFilters(url.Values{"limit": {"nope"}}); err == nil {
		t.Fatalf("expected error for non-numeric limit")
	}
}

func TestParseFiltersCapsLimit(t *testing.T) {
	f, err := ParseFilters(url.Values{"limit": {"99999"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Limit != maxLimit {
		t.Fatalf("expected limit capped to %d, got %d", maxLimit, f.Limit)
	}
}

func TestParseFiltersOrder(t *testing.T) {
	f, err := ParseFilters(url.Values{"order": {"asc"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Desc {
		t.Fatalf("expected ascending order")
	}
	if _, err := ParseFilters(url.Values{"order": {"sideways"}}); err == nil {
		t.Fatalf("expected error for invalid order")
	}
}

func TestParseFiltersSince(t *testing.T) {
	f, err := ParseFilters(url.Values{"since": {"1h"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Since == nil {
		t.Fatalf("expected since to be set")
	}
	if time.Since(*f.Since) < 59*time.Minute {
		t.Fatalf("expected since roughly an hour ago, got %v", f.Since)
	}

	if _, err := ParseFilters(url.Values{"since": {"not-a-time"}}); err == nil {
		t.Fatalf("expected error for invalid since")
	}
}

func TestFiltersMatches(t *testing.T) {
	f := Filters{Kind: "PRIVMSG", Channel: "#chan", Nick: "al"}
	if !f.Matches("PRIVMSG", "#chan", "alice") {
		t.Fatalf("expected match")
	}
	if f.Matches("JOIN", "#chan", "alice") {
		t.Fatalf("expected kind mismatch to reject")
	}
	if f.Matches("PRIVMSG", "#other", "alice") {
		t.Fatalf("expected channel mismatch to reject")
	}
	if f.Matches("PRIVMSG", "#chan", "bob") {
		t.Fatalf("expected nick mismatch to reject")
	}
}

func TestFiltersCloneForStreamDropsLimit(t *testing.T) {
	f := Filters{Limit: 50}
	if clone := f.CloneForStream(); clone.Limit != 0 {
		t.Fatalf("expected CloneForStream to zero the limit, got %d", clone.Limit)
	}
}
