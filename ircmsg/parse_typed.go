package ircmsg

import (
	"strings"

	"github.com/you/twitchchat/ircframe"
)

// The ParseXxx functions are per-variant entry points onto the same
// shape-checking parseXxx helpers Parse's dispatcher uses, for callers
// that already know which command they expect (a test fixture, a
// replay tool) and want InvalidCommand reported directly rather than
// getting back a Raw for a frame with the wrong command name. Parse
// itself never produces InvalidCommand, since an unrecognized command
// is a legitimate Raw, not a mismatch against a caller's expectation.

// ParseJoin parses f as a JOIN, or returns InvalidCommand if it isn't one.
func ParseJoin(f ircframe.Frame) (Join, error) {
	if !commandIs(f, "JOIN") {
		return Join{}, invalidCommand(f.Command)
	}
	msg, err := parseJoin(f, newBase(f))
	if err != nil {
		return Join{}, err
	}
	return msg.(Join), nil
}

// ParsePart parses f as a PART, or returns InvalidCommand if it isn't one.
func ParsePart(f ircframe.Frame) (Part, error) {
	if !commandIs(f, "PART") {
		return Part{}, invalidCommand(f.Command)
	}
	msg, err := parsePart(f, newBase(f))
	if err != nil {
		return Part{}, err
	}
	return msg.(Part), nil
}

// ParseNotice parses f as a NOTICE, or returns InvalidCommand if it isn't one.
func ParseNotice(f ircframe.Frame) (Notice, error) {
	if !commandIs(f, "NOTICE") {
		return Notice{}, invalidCommand(f.Command)
	}
	msg, err := parseNotice(f, newBase(f))
	if err != nil {
		return Notice{}, err
	}
	return msg.(Notice), nil
}

// ParsePrivmsg parses f as a PRIVMSG, or returns InvalidCommand if it isn't one.
func ParsePrivmsg(f ircframe.Frame) (Privmsg, error) {
	if !commandIs(f, "PRIVMSG") {
		return Privmsg{}, invalidCommand(f.Command)
	}
	msg, err := parsePrivmsg(f, newBase(f))
	if err != nil {
		return Privmsg{}, err
	}
	return msg.(Privmsg), nil
}

// ParseWhisper parses f as a WHISPER, or returns InvalidCommand if it isn't one.
func ParseWhisper(f ircframe.Frame) (Whisper, error) {
	if !commandIs(f, "WHISPER") {
		return Whisper{}, invalidCommand(f.Command)
	}
	msg, err := parseWhisper(f, newBase(f))
	if err != nil {
		return Whisper{}, err
	}
	return msg.(Whisper), nil
}

// ParseMode parses f as a MODE, or returns InvalidCommand if it isn't one.
func ParseMode(f ircframe.Frame) (Mode, error) {
	if !commandIs(f, "MODE") {
		return Mode{}, invalidCommand(f.Command)
	}
	msg, err := parseMode(f, newBase(f))
	if err != nil {
		return Mode{}, err
	}
	return msg.(Mode), nil
}

// ParseClearChat parses f as a CLEARCHAT, or returns InvalidCommand if it isn't one.
func ParseClearChat(f ircframe.Frame) (ClearChat, error) {
	if !commandIs(f, "CLEARCHAT") {
		return ClearChat{}, invalidCommand(f.Command)
	}
	msg, err := parseClearChat(f, newBase(f))
	if err != nil {
		return ClearChat{}, err
	}
	return msg.(ClearChat), nil
}

// ParseClearMsg parses f as a CLEARMSG, or returns InvalidCommand if it isn't one.
func ParseClearMsg(f ircframe.Frame) (ClearMsg, error) {
	if !commandIs(f, "CLEARMSG") {
		return ClearMsg{}, invalidCommand(f.Command)
	}
	msg, err := parseClearMsg(f, newBase(f))
	if err != nil {
		return ClearMsg{}, err
	}
	return msg.(ClearMsg), nil
}

// ParseHostTarget parses f as a HOSTTARGET, or returns InvalidCommand if it isn't one.
func ParseHostTarget(f ircframe.Frame) (HostTarget, error) {
	if !commandIs(f, "HOSTTARGET") {
		return HostTarget{}, invalidCommand(f.Command)
	}
	msg, err := parseHostTarget(f, newBase(f))
	if err != nil {
		return HostTarget{}, err
	}
	return msg.(HostTarget), nil
}

// ParseRoomState parses f as a ROOMSTATE, or returns InvalidCommand if it isn't one.
func ParseRoomState(f ircframe.Frame) (RoomState, error) {
	if !commandIs(f, "ROOMSTATE") {
		return RoomState{}, invalidCommand(f.Command)
	}
	msg, err := parseRoomState(f, newBase(f))
	if err != nil {
		return RoomState{}, err
	}
	return msg.(RoomState), nil
}

// ParseUserNotice parses f as a USERNOTICE, or returns InvalidCommand if it isn't one.
func ParseUserNotice(f ircframe.Frame) (UserNotice, error) {
	if !commandIs(f, "USERNOTICE") {
		return UserNotice{}, invalidCommand(f.Command)
	}
	msg, err := parseUserNotice(f, newBase(f))
	if err != nil {
		return UserNotice{}, err
	}
	return msg.(UserNotice), nil
}

// ParseUserState parses f as a USERSTATE, or returns InvalidCommand if it isn't one.
func ParseUserState(f ircframe.Frame) (UserState, error) {
	if !commandIs(f, "USERSTATE") {
		return UserState{}, invalidCommand(f.Command)
	}
	msg, err := parseUserState(f, newBase(f))
	if err != nil {
		return UserState{}, err
	}
	return msg.(UserState), nil
}

// ParseCap parses f as a CAP, or returns InvalidCommand if it isn't one.
func ParseCap(f ircframe.Frame) (Cap, error) {
	if !commandIs(f, "CAP") {
		return Cap{}, invalidCommand(f.Command)
	}
	msg, err := parseCap(f, newBase(f))
	if err != nil {
		return Cap{}, err
	}
	return msg.(Cap), nil
}

// ParseIrcReady parses f as the 001 welcome numeric, or returns
// InvalidCommand if it isn't one.
func ParseIrcReady(f ircframe.Frame) (IrcReady, error) {
	if !commandIs(f, "001") {
		return IrcReady{}, invalidCommand(f.Command)
	}
	msg, err := parseIrcReady(f, newBase(f))
	if err != nil {
		return IrcReady{}, err
	}
	return msg.(IrcReady), nil
}

// ParseGlobalUserState parses f as a GLOBALUSERSTATE, or returns
// InvalidCommand if it isn't one.
func ParseGlobalUserState(f ircframe.Frame) (GlobalUserState, error) {
	if !commandIs(f, "GLOBALUSERSTATE") {
		return GlobalUserState{}, invalidCommand(f.Command)
	}
	msg, err := parseGlobalUserState(f, newBase(f))
	if err != nil {
		return GlobalUserState{}, err
	}
	return msg.(GlobalUserState), nil
}

// ParseNames parses f as a 353 or 366 NAMES reply, or returns
// InvalidCommand if it's neither.
func ParseNames(f ircframe.Frame) (Names, error) {
	if !commandIs(f, "353") && !commandIs(f, "366") {
		return Names{}, invalidCommand(f.Command)
	}
	msg, err := parseNames(f, newBase(f))
	if err != nil {
		return Names{}, err
	}
	return msg.(Names), nil
}

// ParsePing parses f as a PING, or returns InvalidCommand if it isn't one.
func ParsePing(f ircframe.Frame) (Ping, error) {
	if !commandIs(f, "PING") {
		return Ping{}, invalidCommand(f.Command)
	}
	return Ping{base: newBase(f), Token: pingToken(f)}, nil
}

// ParsePong parses f as a PONG, or returns InvalidCommand if it isn't one.
func ParsePong(f ircframe.Frame) (Pong, error) {
	if !commandIs(f, "PONG") {
		return Pong{}, invalidCommand(f.Command)
	}
	return Pong{base: newBase(f), Token: pingToken(f)}, nil
}

// ParseReconnect parses f as a RECONNECT, or returns InvalidCommand if
// it isn't one.
func ParseReconnect(f ircframe.Frame) (Reconnect, error) {
	if !commandIs(f, "RECONNECT") {
		return Reconnect{}, invalidCommand(f.Command)
	}
	return Reconnect{base: newBase(f)}, nil
}

func commandIs(f ircframe.Frame, want string) bool {
	return strings.EqualFold(f.Command, want)
}
