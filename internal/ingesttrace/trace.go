// Package ingesttrace computes a content-addressed key for an incoming
// IRC message, used to de-duplicate events that Twitch (or a
// reconnecting client) delivers more than once.
package ingesttrace

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key returns a stable hex digest over the fields that make an event
// unique: its command, channel, sender, and raw line. Two deliveries of
// the exact same line for the same channel/sender produce the same key,
// which ircstore uses as a unique constraint to ignore replays without
// needing Twitch's (currently nonexistent for IRC) message IDs.
func Key(command, channel, nick, raw string) string {
	digest := sha256.Sum256([]byte(command + "\x1f" + channel + "\x1f" + nick + "\x1f" + raw))
	return hex.EncodeToString(digest[:])
}
