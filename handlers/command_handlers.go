package handlers

import (
	"discord-moderator/bot"
	"discord-moderator/commands"
	"discord-moderator/utils"

	"github.com/bwmarrin/discordgo"
)

type commandHandler func(s *discordgo.Session, i *discordgo.InteractionCreate)

// requirePermission rejects the interaction unless allowed accepts the
// invoking member's resolved permission bits.
func requirePermission(allowed func(int64) bool, next commandHandler) commandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Member == nil || !allowed(i.Member.Permissions) {
			utils.SendErrorResponse(s, i, "You do not have permission to use this command.")
			return
		}
		next(s, i)
	}
}

func canModerateMembers(permissions int64) bool {
	return permissions&discordgo.PermissionAdministrator != 0 || permissions&discordgo.PermissionModerateMembers != 0
}

func commandHandlers(b *bot.Bot) map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		commands.Scan: requirePermission(utils.CanManageMessages, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleScan(s, i, b)
		}),
		commands.Summary: requirePermission(utils.CanManageMessages, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleSummary(s, i, b)
		}),
		commands.Warnings: requirePermission(canModerateMembers, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleWarnings(s, i, b)
		}),
		commands.Status: requirePermission(utils.CanManageMessages, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			SystemInfoHandler(s, i, b)
		}),
	}
}
