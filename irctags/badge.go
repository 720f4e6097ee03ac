package irctags

import "strings"

// Badge is a single entry from the "badges" (or "badge-info") tag: a
// known kind with a version string (a numeric tier for most kinds, free
// text for a few like "subscriber").
type Badge struct {
	Kind    BadgeKind
	Version string
}

// BadgeKind is a closed enumeration of the badge kinds Twitch documents,
// with an escape hatch for anything new.
type BadgeKind struct {
	name    string
	unknown bool
}

func (k BadgeKind) String() string {
	return k.name
}

// IsUnknown reports whether k fell outside the documented badge catalogue.
func (k BadgeKind) IsUnknown() bool {
	return k.unknown
}

var knownBadgeKinds = map[string]BadgeKind{
	"admin":          {name: "admin"},
	"bits":           {name: "bits"},
	"bits-leader":    {name: "bits-leader"},
	"broadcaster":    {name: "broadcaster"},
	"founder":        {name: "founder"},
	"global_mod":     {name: "global_mod"},
	"moderator":      {name: "moderator"},
	"partner":        {name: "partner"},
	"premium":        {name: "premium"},
	"staff":          {name: "staff"},
	"subscriber":     {name: "subscriber"},
	"sub-gifter":     {name: "sub-gifter"},
	"sub-gift-leader": {name: "sub-gift-leader"},
	"turbo":          {name: "turbo"},
	"vip":            {name: "vip"},
}

// BadgeKindOf resolves the badge kind for name, falling back to an
// Unknown kind that still reports name via String().
func BadgeKindOf(name string) BadgeKind {
	if k, ok := knownBadgeKinds[name]; ok {
		return k
	}
	return BadgeKind{name: name, unknown: true}
}

// ParseBadges parses a "badges" or "badge-info" tag value ("id/version,id/version,...").
func ParseBadges(raw string) []Badge {
	if raw == "" {
		return nil
	}
	entries := strings.Split(raw, ",")
	out := make([]Badge, 0, len(entries))
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		id, version, _ := strings.Cut(entry, "/")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, Badge{Kind: BadgeKindOf(id), Version: strings.TrimSpace(version)})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Badges returns the parsed "badges" tag.
func (t Tags) Badges() []Badge {
	return ParseBadges(t.Raw("badges"))
}

// BadgeInfo returns the parsed "badge-info" tag, which carries finer-grained
// version info (e.g. the exact subscriber-month count) for some badge kinds.
func (t Tags) BadgeInfo() []Badge {
	return ParseBadges(t.Raw("badge-info"))
}
