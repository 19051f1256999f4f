package moderation

import (
	"discord-moderator/model"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// ApproveBanPrefix and DenyBanPrefix lead the custom ids of the review buttons.
	ApproveBanPrefix = "ban_approve"
	DenyBanPrefix    = "ban_deny"

	maxExcerpt     = 900
	maxAuditReason = 512
)

const (
	colorWarn     = 0xFEE75C
	colorTimeout  = 0xE67E22
	colorKick     = 0xED4245
	colorBan      = 0x992D22
	colorApproved = 0x57F287
	colorDenied   = 0x95A5A6
)

// BanControlID builds the custom id carried by an approve or deny button.
func BanControlID(prefix, userID, guildID string) string {
	return prefix + ":" + userID + ":" + guildID
}

// ParseBanControlID splits a review button custom id into its parts.
func ParseBanControlID(customID string) (prefix, userID, guildID string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	if parts[0] != ApproveBanPrefix && parts[0] != DenyBanPrefix {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// FormatDuration renders d the way moderators read it, e.g. "5 minutes" or "1 hour 30 minutes".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0 seconds"
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
		{time.Second, "second"},
	}
	var parts []string
	for _, u := range units {
		n := d / u.size
		if n == 0 {
			continue
		}
		d -= n * u.size
		name := u.name
		if n != 1 {
			name += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) == 0 {
		return "less than a second"
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func actionReason(action model.Action, v model.Verdict) string {
	reason := action.RuleName("AI moderation")
	if v.Reasoning != "" {
		reason += ": " + v.Reasoning
	}
	return truncate(reason, maxAuditReason)
}

func actionColor(kind model.ActionKind) int {
	switch kind {
	case model.ActionWarn:
		return colorWarn
	case model.ActionTimeout:
		return colorTimeout
	case model.ActionKick:
		return colorKick
	case model.ActionRequestBan:
		return colorBan
	}
	return colorDenied
}

func announceEmbed(action model.Action, msg model.Message, v model.Verdict) *discordgo.MessageEmbed {
	title := "Member timed out"
	if action.Kind == model.ActionKick {
		title = "Member kicked"
	}
	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: actionColor(action.Kind),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: "<@" + msg.AuthorID + ">", Inline: true},
			{Name: "Rule", Value: action.RuleName("Unspecified"), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if action.Kind == model.ActionTimeout {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Duration", Value: FormatDuration(action.Duration), Inline: true})
	}
	if v.Reasoning != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Reason", Value: truncate(v.Reasoning, 1024)})
	}
	return embed
}

func directNotice(action model.Action, msg model.Message, v model.Verdict) *discordgo.MessageSend {
	var what string
	switch action.Kind {
	case model.ActionTimeout:
		what = fmt.Sprintf("You have been timed out in **%s** for %s.", msg.GuildName, FormatDuration(action.Duration))
	case model.ActionKick:
		what = fmt.Sprintf("You have been removed from **%s**.", msg.GuildName)
	case model.ActionRequestBan:
		what = fmt.Sprintf("You have been removed from **%s** pending a moderator review of a ban.", msg.GuildName)
	default:
		what = fmt.Sprintf("A moderation action was taken on your account in **%s**.", msg.GuildName)
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Moderation notice",
		Description: what,
		Color:       actionColor(action.Kind),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Rule", Value: action.RuleName("Server rules")},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if v.Reasoning != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Reason", Value: truncate(v.Reasoning, 1024)})
	}
	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
}

func reviewRequest(req model.PendingBanRequest, msg model.Message, reasoning string) *discordgo.MessageSend {
	restraint := "none (could not kick or mute)"
	switch req.Restraint {
	case model.RestraintKick:
		restraint = "kicked from the server"
	case model.RestraintMute:
		restraint = "timed out for 7 days"
	}
	rules := strings.Join(req.Violations, ", ")
	if rules == "" {
		rules = "none"
	}
	excerpt := truncate(msg.Content, maxExcerpt)
	if excerpt == "" {
		excerpt = "(empty)"
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Ban request",
		Description: fmt.Sprintf("A ban was requested for **%s** (<@%s>) in **%s**.", req.Username, req.UserID, msg.GuildName),
		Color:       colorBan,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Channel", Value: "<#" + req.ChannelID + ">", Inline: true},
			{Name: "Rules", Value: rules, Inline: true},
			{Name: "Confidence", Value: fmt.Sprintf("%.0f%%", req.Confidence*100), Inline: true},
			{Name: "Restraint", Value: restraint, Inline: true},
			{Name: "Message", Value: "```" + strings.ReplaceAll(excerpt, "```", "'''") + "```"},
			{Name: "Reasoning", Value: truncate(orDefault(reasoning, "none given"), 1024)},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("User ID: %s | Guild ID: %s", req.UserID, req.GuildID)},
		Timestamp: req.Timestamp.Format(time.RFC3339),
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Approve ban",
						Style:    discordgo.DangerButton,
						CustomID: BanControlID(ApproveBanPrefix, req.UserID, req.GuildID),
					},
					discordgo.Button{
						Label:    "Deny",
						Style:    discordgo.SecondaryButton,
						CustomID: BanControlID(DenyBanPrefix, req.UserID, req.GuildID),
					},
				},
			},
		},
	}
}

// ResolutionEmbed describes the outcome of a review for the reviewer's message.
func ResolutionEmbed(approved bool, userID, reviewer, outcome string) *discordgo.MessageEmbed {
	title, color := "Ban denied", colorDenied
	if approved {
		title, color = "Ban approved", colorApproved
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: outcome,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: "<@" + userID + ">", Inline: true},
			{Name: "Reviewer", Value: reviewer, Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func details(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func modActionEntry(msg model.Message, action model.Action, v model.Verdict, extra map[string]any) model.AuditEntry {
	e := model.AuditEntry{
		Type:       model.AuditModAction,
		Timestamp:  time.Now(),
		GuildID:    msg.GuildID,
		ChannelID:  msg.ChannelID,
		UserID:     msg.AuthorID,
		Username:   msg.AuthorName,
		Action:     string(action.Kind),
		Reason:     v.Reasoning,
		Confidence: v.Confidence,
		Duration:   int64(action.Duration / time.Second),
		Message:    truncate(msg.Content, maxExcerpt),
		Details:    details(extra),
	}
	if action.Rule != nil {
		e.RuleID = action.Rule.ID
	} else {
		e.RuleID = v.PrimaryViolation()
	}
	return e
}

func errorEntry(msg model.Message, action, reason string, extra map[string]any) model.AuditEntry {
	return model.AuditEntry{
		Type:      model.AuditError,
		Timestamp: time.Now(),
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Username:  msg.AuthorName,
		Action:    action,
		Reason:    reason,
		Details:   details(extra),
	}
}
