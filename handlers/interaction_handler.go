package handlers

import (
	"context"
	"discord-moderator/bot"
	"discord-moderator/model"
	"discord-moderator/moderation"
	"discord-moderator/utils"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

const banReviewTimeout = 30 * time.Second

var errUnknownControl = errors.New("unknown ban review control")

type pendingLookup interface {
	Get(userID, guildID string) (model.PendingBanRequest, bool)
}

type banResolver interface {
	Approve(ctx context.Context, userID, guildID, reviewer string) (string, error)
	Deny(ctx context.Context, userID, guildID, reviewer string) (string, error)
}

func handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if h, ok := b.CommandHandlers[i.ApplicationCommandData().Name]; ok {
			h(s, i)
		}
	case discordgo.InteractionMessageComponent:
		if _, _, _, ok := moderation.ParseBanControlID(i.MessageComponentData().CustomID); ok {
			handleBanReview(s, i, b)
		}
	}
}

// interactionUser returns who clicked, whether in a guild or in a DM.
func interactionUser(i *discordgo.InteractionCreate) (*discordgo.Member, *discordgo.User, int64) {
	if i.Member != nil {
		return i.Member, i.Member.User, i.Member.Permissions
	}
	return nil, i.User, 0
}

func handleBanReview(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	_, user, permissions := interactionUser(i)
	if user == nil {
		return
	}
	if !mayReview(b.Bans, i.MessageComponentData().CustomID, user.ID, permissions) {
		utils.SendErrorResponse(s, i, "You are not allowed to review ban requests.")
		return
	}
	if err := utils.DeferUpdate(s, i); err != nil {
		log.Printf("[BanRequest] Failed to acknowledge review from %s: %v", user.Username, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), banReviewTimeout)
	defer cancel()
	embed, err := resolveBanReview(ctx, b.Bans, i.MessageComponentData().CustomID, user.Username)
	if err != nil {
		_, ferr := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: "❌ " + err.Error(),
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		if ferr != nil {
			log.Printf("[BanRequest] Failed to send review error followup: %v", ferr)
		}
		return
	}

	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &[]discordgo.MessageComponent{},
	})
	if err != nil {
		log.Printf("[BanRequest] Failed to update review message: %v", err)
	}
	b.LogInfo("BanRequest", embed.Title, fmt.Sprintf("%s by %s: %s", embed.Title, user.Username, embed.Description))
}

// mayReview authorizes a click on a review control. Only the reviewer the
// request was addressed to, or a member allowed to ban, may decide it.
func mayReview(bans pendingLookup, customID, userID string, permissions int64) bool {
	reviewerID := ""
	if _, target, guildID, ok := moderation.ParseBanControlID(customID); ok {
		if req, ok := bans.Get(target, guildID); ok {
			reviewerID = req.ReviewerID
		}
	}
	return utils.CanReviewBans(userID, permissions, reviewerID)
}

// resolveBanReview applies the decision encoded in a review button.
func resolveBanReview(ctx context.Context, bans banResolver, customID, reviewer string) (*discordgo.MessageEmbed, error) {
	prefix, userID, guildID, ok := moderation.ParseBanControlID(customID)
	if !ok {
		return nil, errUnknownControl
	}
	switch prefix {
	case moderation.ApproveBanPrefix:
		outcome, err := bans.Approve(ctx, userID, guildID, reviewer)
		if err != nil {
			return nil, fmt.Errorf("the ban could not be applied, try again: %w", err)
		}
		return moderation.ResolutionEmbed(true, userID, reviewer, outcome), nil
	case moderation.DenyBanPrefix:
		outcome, err := bans.Deny(ctx, userID, guildID, reviewer)
		if err != nil {
			return nil, err
		}
		return moderation.ResolutionEmbed(false, userID, reviewer, outcome), nil
	}
	return nil, errUnknownControl
}
