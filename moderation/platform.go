package moderation

import (
	"context"
	"discord-moderator/model"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrMemberNotFound is returned by Platform.Member when the user is not in the guild.
var ErrMemberNotFound = errors.New("member not found")

// Platform is the chat-platform capability surface the pipeline depends on.
// Implementations must be safe for concurrent use.
type Platform interface {
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	Reply(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendDirect(ctx context.Context, userID string, msg *discordgo.MessageSend) error

	GuildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error)
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	// CanModerate reports whether the bot outranks the member (role hierarchy, ownership).
	CanModerate(ctx context.Context, guildID, userID string) (bool, error)

	Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	BanMember(ctx context.Context, member *discordgo.Member, reason string) error
	BanUser(ctx context.Context, guildID, userID, reason string) error

	Guilds() []*discordgo.Guild
	Channels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	CanSend(channelID string) bool
	CachedUsers() []*discordgo.User
}

// Classifier produces a verdict for one message. It never fails; errors are
// reported through Verdict.Error.
type Classifier interface {
	Analyze(ctx context.Context, msg model.Message, history []model.ContextEntry, rules []model.Rule, style model.ModerationStyle) model.Verdict
}

// ContextStore keeps the rolling per-channel history.
type ContextStore interface {
	History(channelID string) []model.ContextEntry
	Add(channelID string, entry model.ContextEntry)
}

// RuleSource is the read side of the rule and settings store.
type RuleSource interface {
	GetRules() []model.Rule
	GetSettings() model.Settings
}

// AuditSink records entries without blocking the caller.
type AuditSink interface {
	Record(entry model.AuditEntry)
}

// OpsLogger posts operator-facing notices, e.g. to a log channel.
type OpsLogger interface {
	LogWarn(module, operation, info string)
}
