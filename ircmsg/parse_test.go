package ircmsg

import (
	"testing"

	"github.com/you/twitchchat/ircframe"
)

func decode(t *testing.T, line string) ircframe.Frame {
	t.Helper()
	_, f, needMore, err := ircframe.DecodeOne([]byte(line + "\r\n"))
	if needMore || err != nil {
		t.Fatalf("decode %q: needMore=%v err=%v", line, needMore, err)
	}
	return f
}

func TestParsePrivmsgWithTags(t *testing.T) {
	line := "@badge-info=;color=#FF0000;display-name=Foo;emotes=25:0-4;user-id=1 :foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :Kappa hi"
	msg, err := Parse(decode(t, line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, ok := msg.(Privmsg)
	if !ok {
		t.Fatalf("got %T, want Privmsg", msg)
	}
	if p.Channel != "#bar" || p.Name != "foo" || p.Data != "Kappa hi" {
		t.Fatalf("privmsg = %+v", p)
	}
	if p.Color.Hex() != "#FF0000" {
		t.Fatalf("color = %q", p.Color.Hex())
	}
	if len(p.Emotes) != 1 || p.Emotes[0].ID != "25" {
		t.Fatalf("emotes = %+v", p.Emotes)
	}
}

func TestParseUserNoticeColorAndTimestamp(t *testing.T) {
	line := "@badge-info=subscriber/8;color=#59517B;tmi-sent-ts=1580932171144;user-type= :tmi.twitch.tv USERNOTICE #justinfan1234"
	msg, err := Parse(decode(t, line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	un, ok := msg.(UserNotice)
	if !ok {
		t.Fatalf("got %T, want UserNotice", msg)
	}
	if un.Tags.Color().Hex() != "#59517B" {
		t.Fatalf("color = %q", un.Tags.Color().Hex())
	}
	ts, ok := un.Tags.GetInt("tmi-sent-ts")
	if !ok || ts != 1580932171144 {
		t.Fatalf("tmi-sent-ts = %d, %v", ts, ok)
	}
	if un.HasMessage {
		t.Fatalf("expected no comment on a bare resub USERNOTICE")
	}
}

func TestParsePingPong(t *testing.T) {
	msg, err := Parse(decode(t, ":tmi.twitch.tv PING 1234567"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ping, ok := msg.(Ping)
	if !ok {
		t.Fatalf("got %T, want Ping", msg)
	}
	if ping.Token != "1234567" {
		t.Fatalf("token = %q, want 1234567 from the middle argument", ping.Token)
	}

	msg, err = Parse(decode(t, ":tmi.twitch.tv PING :1234567"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ping = msg.(Ping)
	if ping.Token != "1234567" {
		t.Fatalf("token = %q", ping.Token)
	}
}

func TestParseJoinNameAndChannel(t *testing.T) {
	msg, err := Parse(decode(t, ":museun!museun@museun.tmi.twitch.tv JOIN #museun"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	j, ok := msg.(Join)
	if !ok {
		t.Fatalf("got %T, want Join", msg)
	}
	if j.Name != "museun" || j.Channel != "#museun" {
		t.Fatalf("join = %+v", j)
	}
}

func TestParseClearChatDistinguishesClearFromTimeout(t *testing.T) {
	clearMsg, err := Parse(decode(t, ":tmi.twitch.tv CLEARCHAT #bar"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cc := clearMsg.(ClearChat)
	if cc.Target != "" {
		t.Fatalf("expected no target for a full clear, got %q", cc.Target)
	}

	timeoutMsg, err := Parse(decode(t, "@ban-duration=600 :tmi.twitch.tv CLEARCHAT #bar :baduser"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	to := timeoutMsg.(ClearChat)
	if to.Target != "baduser" || !to.HasBanDuration || to.BanDuration != 600 {
		t.Fatalf("timeout clearchat = %+v", to)
	}
}

func TestParseHostTargetStartAndEnd(t *testing.T) {
	startMsg, err := Parse(decode(t, ":tmi.twitch.tv HOSTTARGET #foo :bar 42"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	start := startMsg.(HostTarget)
	if start.HostKind != HostStart || start.TargetChannel != "bar" || start.Viewers != 42 {
		t.Fatalf("host start = %+v", start)
	}

	endMsg, err := Parse(decode(t, ":tmi.twitch.tv HOSTTARGET #foo :-"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	end := endMsg.(HostTarget)
	if end.HostKind != HostEnd || end.TargetChannel != "" {
		t.Fatalf("host end = %+v", end)
	}
}

func TestParseNoticeUnknownMsgIDEscapeHatch(t *testing.T) {
	msg, err := Parse(decode(t, "@msg-id=brand_new_thing :tmi.twitch.tv NOTICE #foo :something happened"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := msg.(Notice)
	if !n.HasMsgID || !n.MsgID.IsUnknown() || n.MsgID.String() != "brand_new_thing" {
		t.Fatalf("notice msg-id = %+v", n.MsgID)
	}
}

func TestParseUnrecognizedCommandIsRaw(t *testing.T) {
	msg, err := Parse(decode(t, ":tmi.twitch.tv SOMETHINGNEW #foo :bar"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := msg.(Raw); !ok {
		t.Fatalf("got %T, want Raw", msg)
	}
}

func TestParseMissingRequiredArgIsError(t *testing.T) {
	_, err := Parse(decode(t, ":tmi.twitch.tv JOIN"))
	if err == nil {
		t.Fatalf("expected an error for JOIN with no channel")
	}
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ErrExpectedArg {
		t.Fatalf("err = %#v", err)
	}
}

func TestUserNoticeSubParams(t *testing.T) {
	line := "@msg-id=sub;msg-param-cumulative-months=8;msg-param-sub-plan=1000 :tmi.twitch.tv USERNOTICE #foo :Thanks!"
	msg, err := Parse(decode(t, line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	un := msg.(UserNotice)
	sub, ok := un.SubParams()
	if !ok || sub.CumulativeMonths != 8 || sub.Method != SubMethodTier1 {
		t.Fatalf("sub params = %+v, ok=%v", sub, ok)
	}
}
