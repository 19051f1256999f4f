package moderation

import (
	"context"
	"discord-moderator/model"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

var errPlatform = errors.New("platform rejected the call")

// fakePlatform records every call as "op:arg:arg" and fails the ones configured in fail.
type fakePlatform struct {
	mu    sync.Mutex
	calls []string

	fail        map[string]bool // keyed by "op" or "op:target"
	canModerate bool
	members     map[string][]*discordgo.Member
	slowGuilds  map[string]bool
	guilds      []*discordgo.Guild
	channels    map[string][]*discordgo.Channel
	sendable    map[string]bool
	users       []*discordgo.User
	onDirect    func() // runs after a successful DM
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		fail:       map[string]bool{},
		members:    map[string][]*discordgo.Member{},
		slowGuilds: map[string]bool{},
		channels:   map[string][]*discordgo.Channel{},
		sendable:   map[string]bool{},
	}
}

func (f *fakePlatform) record(op string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := strings.Join(append([]string{op}, args...), ":")
	f.calls = append(f.calls, call)
	if f.fail[op] || (len(args) > 0 && f.fail[op+":"+args[0]]) {
		return fmt.Errorf("%s: %w", call, errPlatform)
	}
	return nil
}

func (f *fakePlatform) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsWith returns the recorded calls whose op is one of ops.
func (f *fakePlatform) CallsWith(ops ...string) []string {
	var out []string
	for _, c := range f.Calls() {
		op, _, _ := strings.Cut(c, ":")
		for _, want := range ops {
			if op == want {
				out = append(out, c)
			}
		}
	}
	return out
}

func (f *fakePlatform) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	if err := f.record("send", channelID); err != nil {
		return nil, err
	}
	return &discordgo.Message{ID: "sent", ChannelID: channelID}, nil
}

func (f *fakePlatform) Reply(ctx context.Context, channelID, messageID, content string) error {
	return f.record("reply", channelID, messageID)
}

func (f *fakePlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return f.record("delete", channelID, messageID)
}

func (f *fakePlatform) SendDirect(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	if err := f.record("dm", userID); err != nil {
		return err
	}
	if f.onDirect != nil {
		f.onDirect()
	}
	return nil
}

func (f *fakePlatform) GuildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	if err := f.record("members", guildID); err != nil {
		return nil, err
	}
	if f.slowGuilds[guildID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[guildID], nil
}

func (f *fakePlatform) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if err := f.record("member", userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[guildID] {
		if m.User != nil && m.User.ID == userID {
			return m, nil
		}
	}
	return nil, ErrMemberNotFound
}

func (f *fakePlatform) CanModerate(ctx context.Context, guildID, userID string) (bool, error) {
	if err := f.record("can_moderate", userID); err != nil {
		return false, err
	}
	return f.canModerate, nil
}

func (f *fakePlatform) Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	return f.record("timeout", userID, fmt.Sprint(int64(d/time.Second)))
}

func (f *fakePlatform) RemoveTimeout(ctx context.Context, guildID, userID string) error {
	return f.record("remove_timeout", userID)
}

func (f *fakePlatform) Kick(ctx context.Context, guildID, userID, reason string) error {
	return f.record("kick", userID)
}

func (f *fakePlatform) BanMember(ctx context.Context, member *discordgo.Member, reason string) error {
	return f.record("ban_member", member.User.ID)
}

func (f *fakePlatform) BanUser(ctx context.Context, guildID, userID, reason string) error {
	return f.record("ban_user", userID)
}

func (f *fakePlatform) Guilds() []*discordgo.Guild {
	return f.guilds
}

func (f *fakePlatform) Channels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	if err := f.record("channels", guildID); err != nil {
		return nil, err
	}
	return f.channels[guildID], nil
}

func (f *fakePlatform) CanSend(channelID string) bool {
	return f.sendable[channelID]
}

func (f *fakePlatform) CachedUsers() []*discordgo.User {
	return f.users
}

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *memAudit) Record(e model.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *memAudit) OfType(t model.AuditType) []model.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range a.entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type staticStore struct {
	rules    []model.Rule
	settings model.Settings
}

func (s staticStore) GetRules() []model.Rule      { return s.rules }
func (s staticStore) GetSettings() model.Settings { return s.settings }

type stubClassifier struct {
	mu      sync.Mutex
	verdict model.Verdict
	panics  bool
	calls   int
}

func (c *stubClassifier) Analyze(ctx context.Context, msg model.Message, history []model.ContextEntry, rules []model.Rule, style model.ModerationStyle) model.Verdict {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.panics {
		panic("classifier exploded")
	}
	return c.verdict
}

type opsRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (o *opsRecorder) LogWarn(module, operation, info string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, module+": "+operation)
}

func spamRule(action model.ActionKind) model.Rule {
	return model.Rule{ID: "spam", Name: "Spam", Severity: model.SeverityMedium, Action: action, TimeoutDuration: 300, Enabled: true}
}

func testSettings() model.Settings {
	s := model.DefaultSettings()
	s.DMOnAction = true
	s.BanRequestUser = "boss"
	return s
}

func testMessage() model.Message {
	return model.Message{
		ID:          "m1",
		ChannelID:   "c-chat",
		ChannelName: "chat",
		GuildID:     "g1",
		GuildName:   "Guild One",
		AuthorID:    "u-offender",
		AuthorName:  "offender",
		Content:     "buy cheap followers at spam.example",
		Timestamp:   time.Now(),
	}
}

func flaggedVerdict(rule string) model.Verdict {
	return model.Verdict{Flagged: true, Confidence: 0.9, Violations: []string{rule}, Reasoning: "advertising", SuggestedAction: model.ActionWarn}
}

// guildWithReviewer sets up g1 with the offender, a reviewer named "boss" and a few channels.
func guildWithReviewer(p *fakePlatform) {
	p.guilds = []*discordgo.Guild{{ID: "g1", Name: "Guild One"}}
	p.members["g1"] = []*discordgo.Member{
		{GuildID: "g1", User: &discordgo.User{ID: "u-offender", Username: "offender"}},
		{GuildID: "g1", User: &discordgo.User{ID: "u-boss", Username: "Boss"}},
	}
	p.channels["g1"] = []*discordgo.Channel{
		{ID: "c-chat", Name: "chat", Type: discordgo.ChannelTypeGuildText},
		{ID: "c-voice", Name: "mod", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "c-staff", Name: "staff", Type: discordgo.ChannelTypeGuildText},
		{ID: "c-mod", Name: "Mod-Log", Type: discordgo.ChannelTypeGuildText},
		{ID: "c-random", Name: "random", Type: discordgo.ChannelTypeGuildText},
	}
	p.sendable["c-random"] = true
}
