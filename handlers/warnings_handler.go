package handlers

import (
	"discord-moderator/bot"
	"discord-moderator/moderation"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

func handleWarnings(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	var target *discordgo.User
	reset := false
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "user":
			target = opt.UserValue(s)
		case "reset":
			reset = opt.BoolValue()
		}
	}
	if target == nil {
		return
	}

	content := warningsReply(b.Ledger, target.ID, reset, b.Store.GetSettings().WarningsBeforeAction)
	if reset {
		moderator := ""
		if i.Member != nil && i.Member.User != nil {
			moderator = i.Member.User.Username
		}
		log.Printf("[Moderation] %s reset warnings of %s", moderator, target.ID)
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Failed to respond to warnings command: %v", err)
	}
}

func warningsReply(ledger *moderation.Ledger, userID string, reset bool, threshold int) string {
	mention := "<@" + userID + ">"
	if reset {
		if ledger.Reset(userID) {
			return fmt.Sprintf("Warnings of %s have been cleared.", mention)
		}
		return fmt.Sprintf("%s has no warnings.", mention)
	}
	n := ledger.Count(userID)
	if n >= threshold {
		return fmt.Sprintf("%s has %d warning(s). Timeouts for this member are no longer softened to warnings.", mention, n)
	}
	return fmt.Sprintf("%s has %d warning(s), %d before timeouts apply.", mention, n, threshold-n)
}
