// Package ircconfig holds the user-supplied configuration the runner
// needs to register with Twitch chat.
package ircconfig

import (
	"strings"

	"github.com/pkg/errors"
)

// Capability is one of the three IRCv3 capabilities Twitch recognizes.
type Capability string

const (
	CapMembership Capability = "twitch.tv/membership"
	CapTags       Capability = "twitch.tv/tags"
	CapCommands   Capability = "twitch.tv/commands"
)

// AnonymousNick and AnonymousToken are Twitch's documented convention for
// read-only, credential-less chat access ("justinfan" logins).
const (
	AnonymousNick  = "justinfan1234"
	AnonymousToken = "justinfan1234"
)

// UserConfig is immutable once built and describes how the runner
// should authenticate and which capabilities to request.
type UserConfig struct {
	nick         string
	token        string
	capabilities map[Capability]bool
}

// Builder constructs a UserConfig incrementally, mirroring the corpus's
// preference for small constructor helpers over exported mutable structs.
type Builder struct {
	cfg UserConfig
}

// NewBuilder starts a UserConfig for nick, defaulting to the anonymous
// token. Call Token to authenticate as a real user.
func NewBuilder(nick string) *Builder {
	return &Builder{cfg: UserConfig{
		nick:         nick,
		token:        AnonymousToken,
		capabilities: map[Capability]bool{},
	}}
}

// Token sets the OAuth token. Twitch expects the "oauth:" prefix; it is
// added automatically if missing (and the value isn't the anonymous token).
func (b *Builder) Token(token string) *Builder {
	token = strings.TrimSpace(token)
	if token != "" && token != AnonymousToken && !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	b.cfg.token = token
	return b
}

// Capability enables one capability request.
func (b *Builder) Capability(c Capability) *Builder {
	b.cfg.capabilities[c] = true
	return b
}

// Build validates and returns the immutable UserConfig.
func (b *Builder) Build() (UserConfig, error) {
	nick := strings.TrimSpace(b.cfg.nick)
	if nick == "" {
		return UserConfig{}, errors.New("ircconfig: nick is required")
	}
	token := b.cfg.token
	if token != AnonymousToken && !strings.HasPrefix(token, "oauth:") {
		return UserConfig{}, errors.New("ircconfig: token must start with oauth: or be the anonymous token")
	}
	caps := make(map[Capability]bool, len(b.cfg.capabilities))
	for k, v := range b.cfg.capabilities {
		caps[k] = v
	}
	return UserConfig{nick: nick, token: token, capabilities: caps}, nil
}

// Nick returns the configured nickname.
func (c UserConfig) Nick() string { return c.nick }

// Token returns the configured OAuth token (including the "oauth:" prefix).
func (c UserConfig) Token() string { return c.token }

// IsAnonymous reports whether this config uses Twitch's justinfan
// read-only convention, in which case PASS is omitted entirely.
func (c UserConfig) IsAnonymous() bool {
	return c.token == AnonymousToken || c.nick == AnonymousNick
}

// Capabilities returns every capability this config requests, in a
// stable order (membership, tags, commands) so the encoded CAP REQ line
// is deterministic.
func (c UserConfig) Capabilities() []Capability {
	var out []Capability
	for _, cap := range []Capability{CapMembership, CapTags, CapCommands} {
		if c.capabilities[cap] {
			out = append(out, cap)
		}
	}
	return out
}

// HasCapability reports whether cap was requested.
func (c UserConfig) HasCapability(cap Capability) bool {
	return c.capabilities[cap]
}
