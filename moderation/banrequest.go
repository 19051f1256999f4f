package moderation

import (
	"context"
	"discord-moderator/model"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	// RestraintMuteDuration is the mute applied when the offender cannot be kicked.
	RestraintMuteDuration = 7 * 24 * time.Hour
	reviewerFetchTimeout  = 10 * time.Second
)

// Delivery routes recorded on a pending request, in the order they are tried.
const (
	ViaDirect           = "dm"
	ViaModChannel       = "mod_channel"
	ViaViolationChannel = "violation_channel"
	ViaAnyChannel       = "any_channel"
)

// modChannelNames is searched in order; the first exact (case-insensitive) match wins.
var modChannelNames = []string{
	"mod-log", "mod-logs", "modlog", "moderation", "moderation-log",
	"mod", "mods", "admin", "admins", "admin-chat",
	"staff", "staff-chat", "bot-log", "logs",
}

// BanRequests runs the human-reviewed ban escalation: restrain the offender,
// find the reviewer, deliver the review request and resolve the decision.
type BanRequests struct {
	platform     Platform
	audit        AuditSink
	ops          OpsLogger
	pending      *xsync.MapOf[string, model.PendingBanRequest]
	fetchTimeout time.Duration
}

// NewBanRequests returns an empty protocol state. ops may be nil.
func NewBanRequests(platform Platform, audit AuditSink, ops OpsLogger) *BanRequests {
	return &BanRequests{
		platform:     platform,
		audit:        audit,
		ops:          ops,
		pending:      xsync.NewMapOf[string, model.PendingBanRequest](),
		fetchTimeout: reviewerFetchTimeout,
	}
}

// Request restrains the author of msg and asks the configured reviewer to
// approve or deny a ban. The request is recorded before anything is sent and
// stays recorded even if it could not be delivered.
func (b *BanRequests) Request(ctx context.Context, msg model.Message, v model.Verdict, action model.Action, settings model.Settings) model.PendingBanRequest {
	key := model.BanRequestKey(msg.AuthorID, msg.GuildID)
	violations := append([]string(nil), v.Violations...)
	req := model.PendingBanRequest{
		UserID:     msg.AuthorID,
		GuildID:    msg.GuildID,
		ChannelID:  msg.ChannelID,
		Username:   msg.AuthorName,
		Reason:     actionReason(action, v),
		Violations: violations,
		Confidence: v.Confidence,
		Restraint:  model.RestraintNone,
		Timestamp:  time.Now(),
	}
	if existing, loaded := b.pending.LoadOrStore(key, req); loaded {
		log.Printf("[BanRequest] Ban request for %s in guild %s already pending since %s", msg.AuthorID, msg.GuildID, existing.Timestamp.Format(time.RFC3339))
		return existing
	}

	req.Restraint = b.restrain(ctx, msg, req.Reason)
	req.Kicked = req.Restraint == model.RestraintKick

	reviewer := b.LocateReviewer(ctx, msg.GuildID, settings.BanRequestUser)
	if reviewer != nil {
		req.ReviewerID = reviewer.ID
	}
	b.update(key, func(p *model.PendingBanRequest) {
		p.Restraint, p.Kicked, p.ReviewerID = req.Restraint, req.Kicked, req.ReviewerID
	})

	req.DeliveredVia, req.Delivered = b.deliver(ctx, reviewer, msg, reviewRequest(req, msg, v.Reasoning))
	if !b.update(key, func(p *model.PendingBanRequest) {
		p.Delivered, p.DeliveredVia = req.Delivered, req.DeliveredVia
	}) {
		log.Printf("[BanRequest] Ban request for %s in guild %s was resolved during delivery", msg.AuthorID, msg.GuildID)
	}

	reviewerName := ""
	if reviewer != nil {
		reviewerName = reviewer.Username
	}
	b.audit.Record(modActionEntry(msg, action, v, map[string]any{
		"restraint":    req.Restraint,
		"kicked":       req.Kicked,
		"delivered":    req.Delivered,
		"deliveredVia": req.DeliveredVia,
		"reviewer":     reviewerName,
	}))

	if !req.Delivered {
		banRequestsTotal.WithLabelValues("undelivered").Inc()
		log.Printf("[BanRequest] Could not deliver ban request for %s in guild %s through any route", msg.AuthorID, msg.GuildID)
		b.audit.Record(errorEntry(msg, "ban_request_undelivered", "all delivery routes failed", map[string]any{
			"restraint": req.Restraint,
			"reviewer":  settings.BanRequestUser,
		}))
		if b.ops != nil {
			b.ops.LogWarn("BanRequest", "Delivery failed", fmt.Sprintf("Ban request for <@%s> in guild %s is pending but undelivered. Restraint: %s", msg.AuthorID, msg.GuildID, req.Restraint))
		}
		return req
	}
	banRequestsTotal.WithLabelValues(req.DeliveredVia).Inc()
	log.Printf("[BanRequest] Ban request for %s in guild %s delivered via %s (restraint: %s)", msg.AuthorID, msg.GuildID, req.DeliveredVia, req.Restraint)
	return req
}

// update applies fn to a still pending request. It reports false, and stores
// nothing, when the request was resolved in the meantime.
func (b *BanRequests) update(key string, fn func(*model.PendingBanRequest)) bool {
	_, ok := b.pending.Compute(key, func(old model.PendingBanRequest, loaded bool) (model.PendingBanRequest, bool) {
		if !loaded {
			return old, true
		}
		fn(&old)
		return old, false
	})
	return ok
}

func (b *BanRequests) restrain(ctx context.Context, msg model.Message, reason string) model.Restraint {
	ok, err := b.platform.CanModerate(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		log.Printf("[BanRequest] Privilege check for %s in guild %s failed: %v", msg.AuthorID, msg.GuildID, err)
	}
	if ok {
		err := b.platform.Kick(ctx, msg.GuildID, msg.AuthorID, "Pending ban review: "+reason)
		if err == nil {
			return model.RestraintKick
		}
		platformErrors.WithLabelValues("restrain_kick").Inc()
		log.Printf("[BanRequest] Kick restraint failed for %s, trying mute: %v", msg.AuthorID, err)
	}
	if err := b.platform.Timeout(ctx, msg.GuildID, msg.AuthorID, RestraintMuteDuration, "Pending ban review: "+reason); err != nil {
		platformErrors.WithLabelValues("restrain_mute").Inc()
		log.Printf("[BanRequest] Mute restraint failed for %s: %v", msg.AuthorID, err)
		return model.RestraintNone
	}
	return model.RestraintMute
}

// LocateReviewer finds the user named name: first among members of guildID,
// then in every other guild, then in the global user cache.
func (b *BanRequests) LocateReviewer(ctx context.Context, guildID, name string) *discordgo.User {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if u := b.searchGuild(ctx, guildID, name); u != nil {
		return u
	}
	for _, g := range b.platform.Guilds() {
		if g == nil || g.ID == guildID {
			continue
		}
		if u := b.searchGuild(ctx, g.ID, name); u != nil {
			return u
		}
	}
	for _, u := range b.platform.CachedUsers() {
		if u != nil && matchesName(u, "", name) {
			return u
		}
	}
	log.Printf("[BanRequest] Reviewer %q not found in any guild or the user cache", name)
	return nil
}

func (b *BanRequests) searchGuild(ctx context.Context, guildID, name string) *discordgo.User {
	ctx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
	defer cancel()

	members, err := b.platform.GuildMembers(ctx, guildID)
	if err != nil {
		log.Printf("[BanRequest] Member fetch for guild %s failed: %v", guildID, err)
	}
	for _, m := range members {
		if m != nil && m.User != nil && matchesName(m.User, m.Nick, name) {
			return m.User
		}
	}
	return nil
}

func matchesName(u *discordgo.User, nick, name string) bool {
	return strings.EqualFold(u.Username, name) ||
		(u.GlobalName != "" && strings.EqualFold(u.GlobalName, name)) ||
		(nick != "" && strings.EqualFold(nick, name))
}

func findModChannel(channels []*discordgo.Channel) *discordgo.Channel {
	for _, want := range modChannelNames {
		for _, ch := range channels {
			if ch != nil && ch.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(ch.Name, want) {
				return ch
			}
		}
	}
	return nil
}

// deliver tries each route once, in order, and stops at the first success.
func (b *BanRequests) deliver(ctx context.Context, reviewer *discordgo.User, msg model.Message, payload *discordgo.MessageSend) (string, bool) {
	if reviewer != nil {
		err := b.platform.SendDirect(ctx, reviewer.ID, payload)
		if err == nil {
			return ViaDirect, true
		}
		log.Printf("[BanRequest] DM to reviewer %s failed: %v", reviewer.Username, err)
	}

	channels, err := b.platform.Channels(ctx, msg.GuildID)
	if err != nil {
		log.Printf("[BanRequest] Listing channels of guild %s failed: %v", msg.GuildID, err)
	}
	tried := map[string]bool{}

	if ch := findModChannel(channels); ch != nil {
		tried[ch.ID] = true
		_, err := b.platform.SendMessage(ctx, ch.ID, payload)
		if err == nil {
			return ViaModChannel, true
		}
		log.Printf("[BanRequest] Sending to moderation channel #%s failed: %v", ch.Name, err)
	}

	if msg.ChannelID != "" && !tried[msg.ChannelID] {
		tried[msg.ChannelID] = true
		_, err := b.platform.SendMessage(ctx, msg.ChannelID, payload)
		if err == nil {
			return ViaViolationChannel, true
		}
		log.Printf("[BanRequest] Sending to violation channel %s failed: %v", msg.ChannelID, err)
	}

	for _, ch := range channels {
		if ch == nil || ch.Type != discordgo.ChannelTypeGuildText || tried[ch.ID] || !b.platform.CanSend(ch.ID) {
			continue
		}
		// last resort gets a single attempt
		_, err := b.platform.SendMessage(ctx, ch.ID, payload)
		if err == nil {
			return ViaAnyChannel, true
		}
		log.Printf("[BanRequest] Sending to fallback channel #%s failed: %v", ch.Name, err)
		break
	}
	return "", false
}

// Approve bans the user. When the user is no longer a member the ban is
// issued by id. On failure the pending entry is kept so the reviewer can retry.
func (b *BanRequests) Approve(ctx context.Context, userID, guildID, reviewer string) (string, error) {
	key := model.BanRequestKey(userID, guildID)
	req, pending := b.pending.Load(key)

	reason := "Ban approved by " + reviewer
	if pending && req.Reason != "" {
		reason += ": " + req.Reason
	}
	reason = truncate(reason, maxAuditReason)

	member, err := b.platform.Member(ctx, guildID, userID)
	switch {
	case err == nil && member != nil:
		err = b.platform.BanMember(ctx, member, reason)
	default:
		if err != nil && !errors.Is(err, ErrMemberNotFound) {
			log.Printf("[BanRequest] Member lookup for %s in guild %s failed, banning by id: %v", userID, guildID, err)
		}
		err = b.platform.BanUser(ctx, guildID, userID, reason)
	}

	entry := model.AuditEntry{
		Timestamp: time.Now(),
		GuildID:   guildID,
		ChannelID: req.ChannelID,
		UserID:    userID,
		Username:  req.Username,
		Action:    "ban",
		Reason:    reason,
		Details:   details(map[string]any{"reviewer": reviewer, "pending": pending}),
	}
	if err != nil {
		banResolutions.WithLabelValues("approve", "failed").Inc()
		log.Printf("[BanRequest] Ban of %s in guild %s failed: %v", userID, guildID, err)
		entry.Type = model.AuditError
		entry.Message = err.Error()
		b.audit.Record(entry)
		return "", fmt.Errorf("ban user %s: %w", userID, err)
	}

	b.pending.Delete(key)
	banResolutions.WithLabelValues("approve", "ok").Inc()
	log.Printf("[BanRequest] %s approved ban of %s in guild %s", reviewer, userID, guildID)
	entry.Type = model.AuditModAction
	entry.Confidence = req.Confidence
	if len(req.Violations) > 0 {
		entry.RuleID = req.Violations[0]
	}
	b.audit.Record(entry)

	name := orDefault(req.Username, "<@"+userID+">")
	return fmt.Sprintf("%s has been banned.", name), nil
}

// Deny clears the request and lifts a mute restraint. A kick restraint cannot
// be reversed. Denying an unknown or already resolved request is a no-op.
func (b *BanRequests) Deny(ctx context.Context, userID, guildID, reviewer string) (string, error) {
	req, ok := b.pending.LoadAndDelete(model.BanRequestKey(userID, guildID))
	if !ok {
		return "This ban request has already been resolved.", nil
	}

	outcome := fmt.Sprintf("Ban request for %s denied.", orDefault(req.Username, "<@"+userID+">"))
	switch req.Restraint {
	case model.RestraintMute:
		if err := b.platform.RemoveTimeout(ctx, guildID, userID); err != nil {
			platformErrors.WithLabelValues("remove_timeout").Inc()
			log.Printf("[BanRequest] Failed to lift mute on %s in guild %s: %v", userID, guildID, err)
			outcome += " The mute could not be lifted automatically."
		} else {
			outcome += " The mute has been lifted."
		}
	case model.RestraintKick:
		outcome += " The user was kicked and may rejoin with a new invite."
	}

	banResolutions.WithLabelValues("deny", "ok").Inc()
	log.Printf("[BanRequest] %s denied ban of %s in guild %s", reviewer, userID, guildID)
	b.audit.Record(model.AuditEntry{
		Type:       model.AuditModAction,
		Timestamp:  time.Now(),
		GuildID:    guildID,
		ChannelID:  req.ChannelID,
		UserID:     userID,
		Username:   req.Username,
		Action:     "ban_denied",
		Reason:     req.Reason,
		Confidence: req.Confidence,
		Details:    details(map[string]any{"reviewer": reviewer, "restraint": req.Restraint}),
	})
	return outcome, nil
}

// Get returns the pending request for the user in the guild, if any.
func (b *BanRequests) Get(userID, guildID string) (model.PendingBanRequest, bool) {
	return b.pending.Load(model.BanRequestKey(userID, guildID))
}

// Pending lists the requests awaiting review, oldest first.
func (b *BanRequests) Pending() []model.PendingBanRequest {
	out := make([]model.PendingBanRequest, 0, b.pending.Size())
	b.pending.Range(func(_ string, req model.PendingBanRequest) bool {
		req.Violations = append([]string(nil), req.Violations...)
		out = append(out, req)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (b *BanRequests) Len() int {
	return b.pending.Size()
}
