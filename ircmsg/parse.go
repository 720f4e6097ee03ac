package ircmsg

import (
	"strconv"
	"strings"

	"github.com/you/twitchchat/ircframe"
	"github.com/you/twitchchat/irctags"
)

// Parse dispatches a decoded frame to its typed variant. Unrecognized
// commands (and any command the caller did not ask a specific parser for)
// come back as Raw. Parse never fails outright for an unrecognized
// command; it only returns an error for a recognized command whose shape
// is nonetheless invalid (a required argument or trailing data missing).
func Parse(f ircframe.Frame) (Message, error) {
	owned := f.AsOwned()
	b := newBase(f)

	switch strings.ToUpper(f.Command) {
	case "001":
		return parseIrcReady(f, b)
	case "GLOBALUSERSTATE":
		return parseGlobalUserState(f, b)
	case "CAP":
		return parseCap(f, b)
	case "CLEARCHAT":
		return parseClearChat(f, b)
	case "CLEARMSG":
		return parseClearMsg(f, b)
	case "HOSTTARGET":
		return parseHostTarget(f, b)
	case "JOIN":
		return parseJoin(f, b)
	case "PART":
		return parsePart(f, b)
	case "NOTICE":
		return parseNotice(f, b)
	case "PING":
		return Ping{base: b, Token: pingToken(f)}, nil
	case "PONG":
		return Pong{base: b, Token: pingToken(f)}, nil
	case "PRIVMSG":
		return parsePrivmsg(f, b)
	case "RECONNECT":
		return Reconnect{base: b}, nil
	case "ROOMSTATE":
		return parseRoomState(f, b)
	case "USERNOTICE":
		return parseUserNotice(f, b)
	case "USERSTATE":
		return parseUserState(f, b)
	case "WHISPER":
		return parseWhisper(f, b)
	case "MODE":
		return parseMode(f, b)
	case "353", "366":
		return parseNames(f, b)
	default:
		return Raw{Frame: owned}, nil
	}
}

// newBase builds the shared fields (parsed tags, owned copy of the
// frame) every typed variant embeds.
func newBase(f ircframe.Frame) base {
	return base{Tags: irctags.Parse(f.Tags), Frame: f.AsOwned()}
}

// pingToken returns a PING/PONG's token, preferring the first middle
// argument (the form Twitch's own tmi.twitch.tv server uses) and falling
// back to the trailing argument (the ":"-prefixed form most clients send).
func pingToken(f ircframe.Frame) string {
	if len(f.Params) > 0 {
		return f.Params[0]
	}
	return f.Trailer
}

func prefixNick(prefix string) string {
	if name, _, ok := strings.Cut(prefix, "!"); ok {
		return name
	}
	return prefix
}

func parseIrcReady(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("001", 0)
	}
	return IrcReady{base: b, Nick: f.Arg(0)}, nil
}

func parseGlobalUserState(f ircframe.Frame, b base) (Message, error) {
	return GlobalUserState{
		base:        b,
		UserID:      b.Tags.GetString("user-id"),
		DisplayName: b.Tags.GetString("display-name"),
		Color:       b.Tags.Color(),
		Badges:      b.Tags.Badges(),
		EmoteSets:   b.Tags.GetList("emote-sets"),
	}, nil
}

func parseCap(f ircframe.Frame, b base) (Message, error) {
	ack := false
	for _, p := range f.Params {
		if p == "ACK" {
			ack = true
		}
	}
	var caps []string
	if f.Trailing {
		caps = strings.Fields(f.Trailer)
	}
	return Cap{base: b, Acknowledged: ack, Capabilities: caps}, nil
}

func parseClearChat(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("CLEARCHAT", 0)
	}
	cc := ClearChat{base: b, Channel: f.Arg(0)}
	if f.Trailing {
		cc.Target = f.Trailer
	}
	if dur, ok := b.Tags.GetInt("ban-duration"); ok {
		cc.BanDuration = dur
		cc.HasBanDuration = true
	}
	return cc, nil
}

func parseClearMsg(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("CLEARMSG", 0)
	}
	return ClearMsg{
		base:        b,
		Channel:     f.Arg(0),
		Login:       b.Tags.GetString("login"),
		TargetMsgID: b.Tags.GetString("target-msg-id"),
	}, nil
}

func parseHostTarget(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("HOSTTARGET", 0)
	}
	if !f.Trailing {
		return nil, expectedData("HOSTTARGET")
	}
	ht := HostTarget{base: b, SourceChannel: f.Arg(0)}
	fields := strings.Fields(f.Trailer)
	if len(fields) == 0 {
		return nil, expectedData("HOSTTARGET")
	}
	target := fields[0]
	if target == "-" {
		ht.HostKind = HostEnd
	} else {
		ht.HostKind = HostStart
		ht.TargetChannel = target
	}
	if len(fields) > 1 {
		if n, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			ht.Viewers = n
			ht.HasViewers = true
		}
	}
	return ht, nil
}

func parseJoin(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("JOIN", 0)
	}
	return Join{base: b, Name: prefixNick(f.Prefix), Channel: f.Arg(0)}, nil
}

func parsePart(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("PART", 0)
	}
	return Part{base: b, Name: prefixNick(f.Prefix), Channel: f.Arg(0)}, nil
}

func parseNotice(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("NOTICE", 0)
	}
	n := Notice{base: b, Channel: f.Arg(0), Text: f.Trailer}
	if msgID, ok := b.Tags.Get("msg-id"); ok {
		n.MsgID = NoticeMsgIDOf(msgID)
		n.HasMsgID = true
	}
	return n, nil
}

func parsePrivmsg(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("PRIVMSG", 0)
	}
	if !f.Trailing {
		return nil, expectedData("PRIVMSG")
	}
	p := Privmsg{
		base:        b,
		Channel:     f.Arg(0),
		Name:        prefixNick(f.Prefix),
		Data:        f.Trailer,
		Badges:      b.Tags.Badges(),
		BadgeInfo:   b.Tags.BadgeInfo(),
		Color:       b.Tags.Color(),
		DisplayName: b.Tags.GetString("display-name"),
		Emotes:      b.Tags.Emotes(),
		ID:          b.Tags.GetString("id"),
		RoomID:      b.Tags.GetString("room-id"),
		UserID:      b.Tags.GetString("user-id"),
	}
	if bits, ok := b.Tags.GetInt("bits"); ok {
		p.Bits = bits
		p.HasBits = true
	}
	if ts, ok := b.Tags.GetInt("tmi-sent-ts"); ok {
		p.TmiSentTS = ts
	}
	if mod, ok := b.Tags.GetBool("mod"); ok {
		p.Moderator = mod
	}
	return p, nil
}

func parseRoomState(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("ROOMSTATE", 0)
	}
	rs := RoomState{base: b, Channel: f.Arg(0), BroadcasterLang: b.Tags.GetString("broadcaster-lang")}
	if v, ok := b.Tags.GetBool("emote-only"); ok {
		rs.EmoteOnly, rs.HasEmoteOnly = v, true
	}
	if v, ok := b.Tags.GetInt("followers-only"); ok {
		rs.FollowersOnly, rs.HasFollowersOnly = v, true
	}
	if v, ok := b.Tags.GetBool("r9k"); ok {
		rs.R9K, rs.HasR9K = v, true
	}
	if v, ok := b.Tags.GetInt("slow"); ok {
		rs.Slow, rs.HasSlow = v, true
	}
	if v, ok := b.Tags.GetBool("subs-only"); ok {
		rs.SubsOnly, rs.HasSubsOnly = v, true
	}
	if v, ok := b.Tags.GetBool("rituals"); ok {
		rs.Rituals, rs.HasRituals = v, true
	}
	return rs, nil
}

func parseUserNotice(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("USERNOTICE", 0)
	}
	un := UserNotice{
		base:      b,
		Channel:   f.Arg(0),
		SystemMsg: b.Tags.GetString("system-msg"),
		Login:     b.Tags.GetString("login"),
		Badges:    b.Tags.Badges(),
		MsgID:     NoticeMsgIDOf(b.Tags.GetString("msg-id")),
	}
	if f.Trailing {
		un.Message, un.HasMessage = f.Trailer, true
	}
	return un, nil
}

func parseUserState(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("USERSTATE", 0)
	}
	us := UserState{
		base:        b,
		Channel:     f.Arg(0),
		Color:       b.Tags.Color(),
		DisplayName: b.Tags.GetString("display-name"),
		BadgeInfo:   b.Tags.BadgeInfo(),
		Badges:      b.Tags.Badges(),
		EmoteSets:   b.Tags.GetList("emote-sets"),
	}
	if mod, ok := b.Tags.GetBool("mod"); ok {
		us.Moderator = mod
	}
	return us, nil
}

func parseWhisper(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg("WHISPER", 0)
	}
	if !f.Trailing {
		return nil, expectedData("WHISPER")
	}
	return Whisper{
		base:      b,
		From:      prefixNick(f.Prefix),
		To:        f.Arg(0),
		Data:      f.Trailer,
		Badges:    b.Tags.Badges(),
		Color:     b.Tags.Color(),
		Emotes:    b.Tags.Emotes(),
		MessageID: b.Tags.GetString("message-id"),
		ThreadID:  b.Tags.GetString("thread-id"),
		UserID:    b.Tags.GetString("user-id"),
	}, nil
}

func parseMode(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 3 {
		return nil, expectedArg("MODE", 2)
	}
	return Mode{
		base:    b,
		Channel: f.Arg(0),
		Grant:   f.Arg(1) == "+o",
		Nick:    f.Arg(2),
	}, nil
}

func parseNames(f ircframe.Frame, b base) (Message, error) {
	if len(f.Params) < 1 {
		return nil, expectedArg(f.Command, 0)
	}
	channel := ""
	for _, p := range f.Params {
		if strings.HasPrefix(p, "#") {
			channel = p
		}
	}
	n := Names{base: b, Channel: channel, Done: f.Command == "366"}
	if f.Trailing {
		n.Names = strings.Fields(f.Trailer)
	}
	return n, nil
}
