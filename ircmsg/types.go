package ircmsg

import (
	"strings"

	"github.com/you/twitchchat/irctags"
)

// IrcReady is the bare IRC 001 (Welcome) numeric.
type IrcReady struct {
	base
	Nick string
}

func (IrcReady) Kind() Kind { return KindIrcReady }

// Ready is Twitch's GLOBALUSERSTATE, which doubles as "registration
// finished with tags+commands enabled".
type Ready struct {
	GlobalUserState
}

func (Ready) Kind() Kind { return KindReady }

// Cap reports the server's response to a CAP REQ.
type Cap struct {
	base
	Acknowledged bool
	Capabilities []string
}

func (Cap) Kind() Kind { return KindCap }

// ClearChat differentiates a full channel clear from a single user's
// timeout/ban via Target's presence.
type ClearChat struct {
	base
	Channel     string
	Target      string // empty if this is a whole-channel clear
	BanDuration int64  // seconds; 0 and HasBanDuration=false means permanent ban
	HasBanDuration bool
}

func (ClearChat) Kind() Kind { return KindClearChat }

// ClearMsg reports a single deleted message.
type ClearMsg struct {
	base
	Channel     string
	Login       string
	TargetMsgID string
}

func (ClearMsg) Kind() Kind { return KindClearMsg }

// GlobalUserState carries the logged-in user's own identity tags,
// delivered once at registration.
type GlobalUserState struct {
	base
	UserID     string
	DisplayName string
	Color      irctags.Color
	Badges     []irctags.Badge
	EmoteSets  []string
}

func (GlobalUserState) Kind() Kind { return KindGlobalUserState }

// HostKind distinguishes the start and end of a host relationship.
type HostKind int

const (
	HostStart HostKind = iota
	HostEnd
)

// HostTarget reports a channel starting or stopping hosting another.
type HostTarget struct {
	base
	SourceChannel string
	TargetChannel string // empty when HostKind is HostEnd
	Viewers       int64
	HasViewers    bool
	HostKind      HostKind
}

func (HostTarget) Kind() Kind { return KindHostTarget }

// Join reports a user joining a channel.
type Join struct {
	base
	Name    string
	Channel string
}

func (Join) Kind() Kind { return KindJoin }

// Part reports a user leaving a channel.
type Part struct {
	base
	Name    string
	Channel string
}

func (Part) Kind() Kind { return KindPart }

// NoticeMsgID is Twitch's closed enumeration of NOTICE msg-id values, with
// an escape hatch for anything undocumented.
type NoticeMsgID struct {
	name    string
	unknown bool
}

func (n NoticeMsgID) String() string   { return n.name }
func (n NoticeMsgID) IsUnknown() bool  { return n.unknown }

var knownNoticeMsgIDs = map[string]struct{}{
	"already_banned": {}, "already_emote_only_off": {}, "already_emote_only_on": {},
	"already_r9k_off": {}, "already_r9k_on": {}, "already_subs_off": {}, "already_subs_on": {},
	"bad_ban_admin": {}, "bad_ban_broadcaster": {}, "bad_ban_global_mod": {}, "bad_ban_self": {},
	"bad_ban_staff": {}, "bad_host_hosting": {}, "bad_host_rate_exceeded": {}, "bad_host_self": {},
	"bad_mod_banned": {}, "bad_mod_mod": {}, "bad_unban_no_ban": {}, "bad_unhost_error": {},
	"bad_unmod_mod": {}, "ban_success": {}, "cmds_available": {}, "color_changed": {},
	"commercial_success": {}, "emote_only_off": {}, "emote_only_on": {}, "followers_off": {},
	"followers_on": {}, "followers_onzero": {}, "host_off": {}, "host_on": {},
	"host_target_went_offline": {}, "hosts_remaining": {}, "invalid_user": {}, "mod_success": {},
	"msg_banned": {}, "msg_bad_characters": {}, "msg_channel_blocked": {}, "msg_channel_suspended": {},
	"msg_duplicate": {}, "msg_emoteonly": {}, "msg_followersonly": {}, "msg_r9k": {},
	"msg_ratelimit": {}, "msg_rejected": {}, "msg_slowmode": {}, "msg_subsonly": {},
	"msg_suspended": {}, "msg_timedout": {}, "msg_verified_email": {}, "no_permission": {},
	"not_hosting": {}, "r9k_off": {}, "r9k_on": {}, "raid_error_already_raiding": {},
	"raid_error_forbidden": {}, "raid_error_self": {}, "raid_error_too_many_viewers": {},
	"raid_error_unexpected": {}, "raid_notice_mature": {}, "raid_notice_restricted_chat": {},
	"room_mods": {}, "slow_off": {}, "slow_on": {}, "subs_off": {}, "subs_on": {},
	"timeout_no_timeout": {}, "timeout_success": {}, "tos_ban": {}, "turbo_only_color": {},
	"unban_success": {}, "unmod_success": {}, "unrecognized_cmd": {}, "unsupported_chatrooms_cmd": {},
	"untimeout_banned": {}, "usage_ban": {}, "usage_timeout": {}, "whisper_banned": {},
	"whisper_banned_recipient": {}, "whisper_invalid_args": {}, "whisper_invalid_login": {},
	"whisper_invalid_self": {}, "whisper_limit_per_min": {}, "whisper_limit_per_sec": {},
	"whisper_restricted": {}, "whisper_restricted_recipient": {},
}

// NoticeMsgIDOf resolves a NOTICE msg-id tag value against the documented set.
func NoticeMsgIDOf(name string) NoticeMsgID {
	if name == "" {
		return NoticeMsgID{}
	}
	if _, ok := knownNoticeMsgIDs[name]; ok {
		return NoticeMsgID{name: name}
	}
	return NoticeMsgID{name: name, unknown: true}
}

// Notice is a server informational/error message, optionally tagged with
// a closed msg-id.
type Notice struct {
	base
	Channel string
	MsgID   NoticeMsgID
	HasMsgID bool
	Text    string
}

func (Notice) Kind() Kind { return KindNotice }

// Ping carries the server's keep-alive token; the runner answers it
// automatically, but it is still dispatched to subscribers.
type Ping struct {
	base
	Token string
}

func (Ping) Kind() Kind { return KindPing }

// Pong is the client's own answer to a Ping, surfaced for completeness
// when echoed by a test transport.
type Pong struct {
	base
	Token string
}

func (Pong) Kind() Kind { return KindPong }

// Privmsg is a chat message.
type Privmsg struct {
	base
	Channel      string
	Name         string
	Data         string
	Badges       []irctags.Badge
	BadgeInfo    []irctags.Badge
	Bits         int64
	HasBits      bool
	Color        irctags.Color
	DisplayName  string
	Emotes       []irctags.Emote
	ID           string
	RoomID       string
	UserID       string
	TmiSentTS    int64
	Moderator    bool
}

func (Privmsg) Kind() Kind { return KindPrivmsg }

// Reconnect tells the client the server is about to close the connection
// and it should reconnect.
type Reconnect struct {
	base
}

func (Reconnect) Kind() Kind { return KindReconnect }

// RoomState carries per-channel chat room settings. Each optional field
// is only meaningful when its Has* companion is true; a tag's absence in
// a given ROOMSTATE means "unchanged since the last one", not "off".
type RoomState struct {
	base
	Channel           string
	EmoteOnly         bool
	HasEmoteOnly      bool
	FollowersOnly     int64 // minutes; -1 means disabled
	HasFollowersOnly  bool
	R9K               bool
	HasR9K            bool
	Slow              int64 // seconds
	HasSlow           bool
	SubsOnly          bool
	HasSubsOnly       bool
	BroadcasterLang   string
	Rituals           bool
	HasRituals        bool
}

func (RoomState) Kind() Kind { return KindRoomState }

// SubMethod is the plan behind a sub/resub USERNOTICE.
type SubMethod string

const (
	SubMethodPrime SubMethod = "Prime"
	SubMethodTier1 SubMethod = "1000"
	SubMethodTier2 SubMethod = "2000"
	SubMethodTier3 SubMethod = "3000"
)

// SubParams projects the msg-param-* tags carried by sub/resub USERNOTICEs.
type SubParams struct {
	CumulativeMonths int64
	ShouldShareStreak bool
	StreakMonths     int64
	Method           SubMethod
	SubPlanName      string
}

// RaidParams projects the msg-param-* tags carried by a raid USERNOTICE.
type RaidParams struct {
	DisplayName string
	Login       string
	ViewerCount int64
}

// GiftParams projects the msg-param-* tags carried by subgift/submysterygift
// USERNOTICEs.
type GiftParams struct {
	RecipientDisplayName string
	RecipientID          string
	RecipientUserName    string
	GiftMonths           int64
	Method               SubMethod
}

// UserNotice is Twitch's catch-all for subs, raids, rituals and similar
// channel events; Message is optional (e.g. a bare resub with no comment).
type UserNotice struct {
	base
	Channel     string
	Message     string
	HasMessage  bool
	SystemMsg   string
	Login       string
	Badges      []irctags.Badge
	MsgID       NoticeMsgID
}

func (UserNotice) Kind() Kind { return KindUserNotice }

// SubParams extracts the sub/resub parameters, if this USERNOTICE carries them.
func (u UserNotice) SubParams() (SubParams, bool) {
	if u.MsgID.String() != "sub" && u.MsgID.String() != "resub" {
		return SubParams{}, false
	}
	months, _ := u.Tags.GetInt("msg-param-cumulative-months")
	share, _ := u.Tags.GetBool("msg-param-should-share-streak")
	streak, _ := u.Tags.GetInt("msg-param-streak-months")
	return SubParams{
		CumulativeMonths:  months,
		ShouldShareStreak: share,
		StreakMonths:      streak,
		Method:            SubMethod(u.Tags.GetString("msg-param-sub-plan")),
		SubPlanName:       u.Tags.GetString("msg-param-sub-plan-name"),
	}, true
}

// RaidParams extracts the raid parameters, if this USERNOTICE is a raid.
func (u UserNotice) RaidParams() (RaidParams, bool) {
	if u.MsgID.String() != "raid" {
		return RaidParams{}, false
	}
	viewers, _ := u.Tags.GetInt("msg-param-viewerCount")
	return RaidParams{
		DisplayName: u.Tags.GetString("msg-param-displayName"),
		Login:       u.Tags.GetString("msg-param-login"),
		ViewerCount: viewers,
	}, true
}

// GiftParams extracts the gift-sub parameters, if this USERNOTICE is one.
func (u UserNotice) GiftParams() (GiftParams, bool) {
	id := u.MsgID.String()
	if id != "subgift" && id != "submysterygift" && id != "anonsubgift" {
		return GiftParams{}, false
	}
	months, _ := u.Tags.GetInt("msg-param-gift-months")
	return GiftParams{
		RecipientDisplayName: u.Tags.GetString("msg-param-recipient-display-name"),
		RecipientID:          u.Tags.GetString("msg-param-recipient-id"),
		RecipientUserName:    u.Tags.GetString("msg-param-recipient-user-name"),
		GiftMonths:           months,
		Method:               SubMethod(u.Tags.GetString("msg-param-sub-plan")),
	}, true
}

// UserState carries the logged-in user's per-channel state, sent after
// joining and whenever it changes.
type UserState struct {
	base
	Channel     string
	Color       irctags.Color
	DisplayName string
	BadgeInfo   []irctags.Badge
	Badges      []irctags.Badge
	EmoteSets   []string
	Moderator   bool
}

func (UserState) Kind() Kind { return KindUserState }

// Whisper is a direct message between two users.
type Whisper struct {
	base
	From       string
	To         string
	Data       string
	Badges     []irctags.Badge
	Color      irctags.Color
	Emotes     []irctags.Emote
	MessageID  string
	ThreadID   string
	UserID     string
}

func (Whisper) Kind() Kind { return KindWhisper }

// Mode reports an IRC MODE change on the membership capability, used by
// Twitch to announce moderator grants/revokes.
type Mode struct {
	base
	Channel string
	Grant   bool // true for "+o", false for "-o"
	Nick    string
}

func (Mode) Kind() Kind { return KindMode }

// IsOp reports whether this MODE change grants (rather than revokes)
// operator status.
func (m Mode) IsOp() bool { return m.Grant }

// Names reports a NAMES (353/366) channel membership listing.
type Names struct {
	base
	Channel string
	Names   []string
	Done    bool // true once the 366 end-of-list has arrived
}

func (Names) Kind() Kind { return KindNames }

// normalizeChannel lowercases and ensures a single leading '#'.
func normalizeChannel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "#")
	if s == "" {
		return ""
	}
	return "#" + s
}
