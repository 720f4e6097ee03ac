// Package ircwriter encodes outgoing Twitch IRC commands and exposes a
// rate-limited, cancel-safe writer handle over an abstract transport.
package ircwriter

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrCannotEscape is returned when an outgoing payload contains a raw CR
// or LF, which would corrupt IRC framing if written verbatim.
var ErrCannotEscape = errors.New("ircwriter: message body contains CR or LF")

// NormalizeChannel lowercases a channel name and ensures exactly one
// leading '#', regardless of how the caller wrote it.
func NormalizeChannel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "#")
	if s == "" {
		return ""
	}
	return "#" + s
}

func checkBody(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return ErrCannotEscape
	}
	return nil
}

// Raw encodes an arbitrary line, appending the CRLF terminator.
func Raw(line string) (string, error) {
	if err := checkBody(line); err != nil {
		return "", err
	}
	return line + "\r\n", nil
}

// Ping encodes a PING with the given token.
func Ping(token string) (string, error) { return Raw("PING :" + token) }

// Pong encodes a PONG answering the given token.
func Pong(token string) (string, error) { return Raw("PONG :" + token) }

// Join encodes a channel join.
func Join(channel string) (string, error) { return Raw("JOIN " + NormalizeChannel(channel)) }

// Part encodes a channel part.
func Part(channel string) (string, error) { return Raw("PART " + NormalizeChannel(channel)) }

// Privmsg encodes a chat message to a channel.
func Privmsg(channel, text string) (string, error) {
	if err := checkBody(text); err != nil {
		return "", err
	}
	return Raw("PRIVMSG " + NormalizeChannel(channel) + " :" + text)
}

// Me encodes a /me action message.
func Me(channel, text string) (string, error) {
	return Privmsg(channel, "\x01ACTION "+text+"\x01")
}

// Whisper encodes a whisper command sent as a channel PRIVMSG (Twitch's
// IRC whisper surface rides on /w rather than a distinct command).
func Whisper(channel, toUser, text string) (string, error) {
	if err := checkBody(text); err != nil {
		return "", err
	}
	return Privmsg(channel, "/w "+toUser+" "+text)
}

func command(channel, name string, args ...string) (string, error) {
	parts := append([]string{"/" + name}, args...)
	return Privmsg(channel, strings.Join(parts, " "))
}

// Ban bans a user, optionally with a reason.
func Ban(channel, user, reason string) (string, error) {
	if reason == "" {
		return command(channel, "ban", user)
	}
	return command(channel, "ban", user, reason)
}

// Unban lifts a ban.
func Unban(channel, user string) (string, error) { return command(channel, "unban", user) }

// Timeout times a user out for the given duration in seconds.
func Timeout(channel, user string, seconds int, reason string) (string, error) {
	dur := strconv.Itoa(seconds)
	if reason == "" {
		return command(channel, "timeout", user, dur)
	}
	return command(channel, "timeout", user, dur, reason)
}

// Untimeout lifts a timeout early.
func Untimeout(channel, user string) (string, error) { return command(channel, "untimeout", user) }

// Clear wipes the channel's chat history.
func Clear(channel string) (string, error) { return command(channel, "clear") }

// Color sets the caller's own username color.
func Color(channel, color string) (string, error) { return command(channel, "color", color) }

// Commercial starts a commercial break of the given length in seconds;
// Twitch only accepts a small set of lengths (30/60/90/120/150/180).
func Commercial(channel string, seconds int) (string, error) {
	return command(channel, "commercial", strconv.Itoa(seconds))
}

// Disconnect asks the server to close the connection.
func Disconnect(channel string) (string, error) { return command(channel, "disconnect") }

// EmoteOnly toggles emote-only mode.
func EmoteOnly(channel string, on bool) (string, error) {
	if on {
		return command(channel, "emoteonly")
	}
	return command(channel, "emoteonlyoff")
}

// Followers toggles followers-only mode; an empty duration means "off".
func Followers(channel string, duration string) (string, error) {
	if duration == "" {
		return command(channel, "followersoff")
	}
	return command(channel, "followers", duration)
}

// Host starts hosting another channel.
func Host(channel, target string) (string, error) { return command(channel, "host", target) }

// Unhost stops hosting.
func Unhost(channel string) (string, error) { return command(channel, "unhost") }

// Marker drops a stream marker with an optional comment.
func Marker(channel, comment string) (string, error) {
	if comment == "" {
		return command(channel, "marker")
	}
	return command(channel, "marker", comment)
}

// Mod grants moderator status to a user.
func Mod(channel, user string) (string, error) { return command(channel, "mod", user) }

// Unmod revokes moderator status.
func Unmod(channel, user string) (string, error) { return command(channel, "unmod", user) }

// R9KBeta toggles unique-message (r9k) mode.
func R9KBeta(channel string, on bool) (string, error) {
	if on {
		return command(channel, "r9kbeta")
	}
	return command(channel, "r9kbetaoff")
}

// Slow toggles slow mode with the given per-message cooldown in seconds.
func Slow(channel string, seconds int) (string, error) {
	if seconds <= 0 {
		return command(channel, "slowoff")
	}
	return command(channel, "slow", strconv.Itoa(seconds))
}

// Subscribers toggles subscribers-only mode.
func Subscribers(channel string, on bool) (string, error) {
	if on {
		return command(channel, "subscribers")
	}
	return command(channel, "subscribersoff")
}

// VIP grants VIP status to a user.
func VIP(channel, user string) (string, error) { return command(channel, "vip", user) }

// UnVIP revokes VIP status.
func UnVIP(channel, user string) (string, error) { return command(channel, "unvip", user) }

// Mods lists the channel's moderators (reported back via NOTICE).
func Mods(channel string) (string, error) { return command(channel, "mods") }

// VIPs lists the channel's VIPs (reported back via NOTICE).
func VIPs(channel string) (string, error) { return command(channel, "vips") }

// Help requests the list of available chat commands.
func Help(channel string) (string, error) { return command(channel, "help") }
