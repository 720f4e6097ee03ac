// Package ircmsg turns decoded IRC frames into the typed message
// catalogue Twitch chat clients actually need to branch on.
package ircmsg

import (
	"github.com/you/twitchchat/ircframe"
	"github.com/you/twitchchat/irctags"
)

// Kind names one of the closed set of recognized Twitch IRC commands.
type Kind string

const (
	KindIrcReady        Kind = "IRCREADY"
	KindReady           Kind = "READY"
	KindCap             Kind = "CAP"
	KindClearChat       Kind = "CLEARCHAT"
	KindClearMsg        Kind = "CLEARMSG"
	KindGlobalUserState Kind = "GLOBALUSERSTATE"
	KindHostTarget      Kind = "HOSTTARGET"
	KindJoin            Kind = "JOIN"
	KindPart            Kind = "PART"
	KindNotice          Kind = "NOTICE"
	KindPing            Kind = "PING"
	KindPong            Kind = "PONG"
	KindPrivmsg         Kind = "PRIVMSG"
	KindReconnect       Kind = "RECONNECT"
	KindRoomState       Kind = "ROOMSTATE"
	KindUserNotice      Kind = "USERNOTICE"
	KindUserState       Kind = "USERSTATE"
	KindWhisper         Kind = "WHISPER"
	KindMode            Kind = "MODE"
	KindNames           Kind = "NAMES"
	KindRaw             Kind = "RAW"
)

// Message is implemented by every typed variant in the catalogue, plus Raw.
type Message interface {
	Kind() Kind
}

// Raw wraps any frame that did not match a recognized command, or that
// the caller asked to see unparsed.
type Raw struct {
	Frame ircframe.Owned
}

func (Raw) Kind() Kind { return KindRaw }

// base carries the fields every typed variant shares: the tag map and the
// original frame, so callers needing an escape hatch can still reach the
// raw wire data from a typed value.
type base struct {
	Tags  irctags.Tags
	Frame ircframe.Owned
}
