package chatapi

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/twitchchat/internal/ircstore"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Filters captures the parsed query parameters for an event lookup or
// live stream subscription.
type Filters struct {
	Kind    string
	Channel string
	Nick    string
	Since   *time.Time
	Limit   int
	Desc    bool
}

// ParseFilters parses query parameters into a Filters struct.
func ParseFilters(values url.Values) (Filters, error) {
	f := Filters{Limit: defaultLimit, Desc: true}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Filters{}, errors.New("limit must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		f.Limit = n
	}

	if raw := values.Get("order"); raw != "" {
		switch strings.ToLower(raw) {
		case "desc":
			f.Desc = true
		case "asc":
			f.Desc = false
		default:
			return Filters{}, errors.New("order must be asc or desc")
		}
	}

	if raw := values.Get("since"); raw != "" {
		parsed, err := parseSince(raw)
		if err != nil {
			return Filters{}, err
		}
		f.Since = &parsed
	}

	if raw := values.Get("kind"); raw != "" {
		f.Kind = strings.ToUpper(strings.TrimSpace(raw))
	}

	if raw := values.Get("channel"); raw != "" {
		raw = strings.TrimSpace(raw)
		if !strings.HasPrefix(raw, "#") {
			raw = "#" + raw
		}
		f.Channel = strings.ToLower(raw)
	}

	if raw := values.Get("nick"); raw != "" {
		f.Nick = strings.ToLower(strings.TrimSpace(raw))
	}

	return f, nil
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().Add(-d).UTC(), nil
	}
	return time.Time{}, errors.New("invalid since parameter")
}

// ToQuery converts f to the ircstore.Query it should drive.
func (f Filters) ToQuery() ircstore.Query {
	q := ircstore.Query{
		Kind:    f.Kind,
		Channel: f.Channel,
		Nick:    f.Nick,
		Limit:   f.Limit,
		Desc:    f.Desc,
	}
	if f.Since != nil {
		q.Since = *f.Since
	}
	return q
}

// CloneForStream returns a copy of the filters adjusted for streaming
// transports, where Limit has no meaning.
func (f Filters) CloneForStream() Filters {
	f.Limit = 0
	return f
}

// Matches reports whether a live event with the given kind, channel,
// and nick satisfies the filters.
func (f Filters) Matches(kind, channel, nick string) bool {
	if f.Kind != "" && !strings.EqualFold(f.Kind, kind) {
		return false
	}
	if f.Channel != "" && !strings.EqualFold(f.Channel, channel) {
		return false
	}
	if f.Nick != "" && !strings.Contains(strings.ToLower(nick), f.Nick) {
		return false
	}
	return true
}
