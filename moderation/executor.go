package moderation

import (
	"context"
	"discord-moderator/model"
	"errors"
	"log"

	"github.com/bwmarrin/discordgo"
)

var errInsufficientPrivilege = errors.New("insufficient privilege over member")

// Executor carries out a decided action. Every action is attempted once;
// platform failures are logged and never returned to the caller.
type Executor struct {
	platform Platform
	ledger   *Ledger
	audit    AuditSink
	bans     *BanRequests
}

func NewExecutor(platform Platform, ledger *Ledger, audit AuditSink, bans *BanRequests) *Executor {
	return &Executor{platform: platform, ledger: ledger, audit: audit, bans: bans}
}

// Execute applies action to the author of msg.
func (e *Executor) Execute(ctx context.Context, msg model.Message, v model.Verdict, action model.Action, settings model.Settings) {
	if action.Kind == model.ActionNone {
		return
	}
	actionsTotal.WithLabelValues(string(action.Kind)).Inc()

	if action.DeletesMessage() {
		e.deleteMessage(ctx, msg)
	}

	switch action.Kind {
	case model.ActionWarn:
		e.warn(ctx, msg, v, action)
	case model.ActionTimeout:
		e.timeout(ctx, msg, v, action, settings)
	case model.ActionKick:
		e.kick(ctx, msg, v, action, settings)
	case model.ActionRequestBan:
		e.requestBan(ctx, msg, v, action, settings)
	default:
		log.Printf("[Moderation] Unknown action %q for message %s, ignoring", action.Kind, msg.ID)
	}
}

func (e *Executor) deleteMessage(ctx context.Context, msg model.Message) {
	if err := e.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		platformErrors.WithLabelValues("delete").Inc()
		log.Printf("[Moderation] Failed to delete message %s in channel %s: %v", msg.ID, msg.ChannelID, err)
	}
}

func (e *Executor) notify(ctx context.Context, msg model.Message, v model.Verdict, action model.Action, settings model.Settings) {
	if !settings.DMOnAction {
		return
	}
	// Members with closed DMs are common; not delivering is not a failure.
	if err := e.platform.SendDirect(ctx, msg.AuthorID, directNotice(action, msg, v)); err != nil {
		log.Printf("[Moderation] Could not DM user %s about %s: %v", msg.AuthorID, action.Kind, err)
	}
}

func (e *Executor) announce(ctx context.Context, msg model.Message, v model.Verdict, action model.Action) {
	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{announceEmbed(action, msg, v)}}
	if _, err := e.platform.SendMessage(ctx, msg.ChannelID, send); err != nil {
		platformErrors.WithLabelValues("announce").Inc()
		log.Printf("[Moderation] Failed to announce %s in channel %s: %v", action.Kind, msg.ChannelID, err)
	}
}

func (e *Executor) warn(ctx context.Context, msg model.Message, v model.Verdict, action model.Action) {
	count := e.ledger.Increment(msg.AuthorID)
	if v.ReplyMessage != nil {
		if err := e.platform.Reply(ctx, msg.ChannelID, msg.ID, *v.ReplyMessage); err != nil {
			platformErrors.WithLabelValues("reply").Inc()
			log.Printf("[Moderation] Failed to reply to message %s: %v", msg.ID, err)
		}
	}
	log.Printf("[Moderation] Warned %s (%s) in guild %s, %d warning(s)", msg.AuthorName, msg.AuthorID, msg.GuildID, count)
	e.audit.Record(modActionEntry(msg, action, v, map[string]any{"warningCount": count}))
}

func (e *Executor) timeout(ctx context.Context, msg model.Message, v model.Verdict, action model.Action, settings model.Settings) {
	reason := actionReason(action, v)
	if err := e.platform.Timeout(ctx, msg.GuildID, msg.AuthorID, action.Duration, reason); err != nil {
		platformErrors.WithLabelValues("timeout").Inc()
		log.Printf("[Moderation] Failed to time out %s in guild %s: %v", msg.AuthorID, msg.GuildID, err)
		e.audit.Record(errorEntry(msg, string(model.ActionTimeout), err.Error(), map[string]any{"rule": action.RuleName("")}))
		return
	}
	e.announce(ctx, msg, v, action)
	e.notify(ctx, msg, v, action, settings)
	log.Printf("[Moderation] Timed out %s (%s) for %s", msg.AuthorName, msg.AuthorID, FormatDuration(action.Duration))
	e.audit.Record(modActionEntry(msg, action, v, nil))
}

func (e *Executor) kick(ctx context.Context, msg model.Message, v model.Verdict, action model.Action, settings model.Settings) {
	ok, err := e.platform.CanModerate(ctx, msg.GuildID, msg.AuthorID)
	if err != nil || !ok {
		if err == nil {
			err = errInsufficientPrivilege
		}
		platformErrors.WithLabelValues("kick").Inc()
		log.Printf("[Moderation] Not kicking %s in guild %s: %v", msg.AuthorID, msg.GuildID, err)
		e.audit.Record(errorEntry(msg, string(model.ActionKick), err.Error(), map[string]any{"rule": action.RuleName("")}))
		return
	}

	// DM first; once removed the user may share no server with the bot.
	e.notify(ctx, msg, v, action, settings)
	if err := e.platform.Kick(ctx, msg.GuildID, msg.AuthorID, actionReason(action, v)); err != nil {
		platformErrors.WithLabelValues("kick").Inc()
		log.Printf("[Moderation] Failed to kick %s from guild %s: %v", msg.AuthorID, msg.GuildID, err)
		e.audit.Record(errorEntry(msg, string(model.ActionKick), err.Error(), map[string]any{"rule": action.RuleName("")}))
		return
	}
	e.announce(ctx, msg, v, action)
	log.Printf("[Moderation] Kicked %s (%s) from guild %s", msg.AuthorName, msg.AuthorID, msg.GuildID)
	e.audit.Record(modActionEntry(msg, action, v, nil))
}

func (e *Executor) requestBan(ctx context.Context, msg model.Message, v model.Verdict, action model.Action, settings model.Settings) {
	e.notify(ctx, msg, v, action, settings)
	e.bans.Request(ctx, msg, v, action, settings)
}
