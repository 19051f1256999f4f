package handlers

import (
	"context"
	"discord-moderator/bot"
	"discord-moderator/commands"
	"discord-moderator/model"
	"discord-moderator/moderation"
	"discord-moderator/utils"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const scanTimeout = 2 * time.Minute

type messageDeleter interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

func handleScan(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if err := utils.DeferResponse(s, i, true); err != nil {
		log.Printf("Failed to defer scan response: %v", err)
		return
	}
	count := commands.IntOption(i.ApplicationCommandData().Options, "count", commands.DefaultScanCount)

	rules := model.EnabledRules(b.Store.GetRules())
	if len(rules) == 0 {
		utils.SendFollowUpError(s, i.Interaction, "No moderation rules are enabled.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	msgs, err := b.Platform.RecentMessages(ctx, i.ChannelID, count)
	if err != nil {
		log.Printf("[Scan] %v", err)
		utils.SendFollowUpError(s, i.Interaction, "Could not read the recent messages of this channel.")
		return
	}
	if len(msgs) == 0 {
		utils.SendFollowUp(s, i.Interaction, "There are no messages to review.")
		return
	}

	moderator := ""
	if i.Member != nil && i.Member.User != nil {
		moderator = i.Member.User.Username
	}
	channelName := msgs[0].ChannelName
	res := b.Classifier.AnalyzeForPurge(ctx, msgs, channelName, rules)
	deleted := purgeFlagged(ctx, b.Platform, b.Audit, msgs, res, moderator)
	log.Printf("[Scan] %s reviewed %d messages in #%s, %d flagged, %d deleted", moderator, len(msgs), channelName, res.TotalFlagged, deleted)

	utils.SendFollowUpEmbed(s, i.Interaction, scanEmbed(res, len(msgs), deleted))
}

// purgeFlagged deletes the flagged messages and records one audit entry for
// each deletion. It returns how many were removed.
func purgeFlagged(ctx context.Context, deleter messageDeleter, sink moderation.AuditSink, msgs []model.Message, res model.PurgeResult, moderator string) int {
	deleted := 0
	for _, idx := range res.FlaggedIndexes {
		if idx < 0 || idx >= len(msgs) {
			continue
		}
		m := msgs[idx]
		if err := deleter.DeleteMessage(ctx, m.ChannelID, m.ID); err != nil {
			log.Printf("[Scan] Failed to delete message %s: %v", m.ID, err)
			continue
		}
		deleted++
		extra, _ := json.Marshal(map[string]any{"moderator": moderator, "messageId": m.ID})
		sink.Record(model.AuditEntry{
			Type:      model.AuditModAction,
			Timestamp: time.Now(),
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			UserID:    m.AuthorID,
			Username:  m.AuthorName,
			Action:    "purge",
			Reason:    res.Reasons[idx],
			Message:   m.Content,
			Details:   string(extra),
		})
	}
	return deleted
}

func scanEmbed(res model.PurgeResult, reviewed, deleted int) *discordgo.MessageEmbed {
	summary := strings.TrimSpace(res.Summary)
	if summary == "" {
		summary = "No summary was returned."
	}
	color := 0x57F287
	if res.TotalFlagged > 0 {
		color = 0xFEE75C
	}
	return &discordgo.MessageEmbed{
		Title:       "Channel scan",
		Description: summary,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reviewed", Value: fmt.Sprintf("%d", reviewed), Inline: true},
			{Name: "Flagged", Value: fmt.Sprintf("%d", res.TotalFlagged), Inline: true},
			{Name: "Deleted", Value: fmt.Sprintf("%d", deleted), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func handleSummary(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if err := utils.DeferResponse(s, i, false); err != nil {
		log.Printf("Failed to defer summary response: %v", err)
		return
	}
	count := commands.IntOption(i.ApplicationCommandData().Options, "count", commands.DefaultScanCount)

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	msgs, err := b.Platform.RecentMessages(ctx, i.ChannelID, count)
	if err != nil {
		log.Printf("[Summary] %v", err)
		utils.SendFollowUpError(s, i.Interaction, "Could not read the recent messages of this channel.")
		return
	}

	var channelName, guildName string
	if len(msgs) > 0 {
		channelName, guildName = msgs[0].ChannelName, msgs[0].GuildName
	}
	summary := b.Classifier.Summarize(ctx, msgs, channelName, guildName)
	utils.SendFollowUpEmbed(s, i.Interaction, bot.SummaryEmbed(summary, channelName))
}
