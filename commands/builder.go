package commands

import (
	"github.com/bwmarrin/discordgo"
)

const (
	Scan     = "mod-scan"
	Summary  = "mod-summary"
	Warnings = "mod-warnings"
	Status   = "mod-status"

	DefaultScanCount = 50
	MaxScanCount     = 100
)

var (
	minCount = float64(1)

	manageMessages  = int64(discordgo.PermissionManageMessages)
	moderateMembers = int64(discordgo.PermissionModerateMembers)
)

func countOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "count",
		Description: description,
		Required:    false,
		MinValue:    &minCount,
		MaxValue:    MaxScanCount,
	}
}

// GenerateCommands returns the global slash commands of the moderator.
func GenerateCommands() []*discordgo.ApplicationCommand {
	dmAllowed := false
	return []*discordgo.ApplicationCommand{
		{
			Name:                     Scan,
			Description:              "Review recent messages in this channel and delete the ones that break the rules.",
			DefaultMemberPermissions: &manageMessages,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				countOption("How many recent messages to review (default 50)."),
			},
		},
		{
			Name:                     Summary,
			Description:              "Summarize the recent conversation in this channel.",
			DefaultMemberPermissions: &manageMessages,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				countOption("How many recent messages to summarize (default 50)."),
			},
		},
		{
			Name:                     Warnings,
			Description:              "Show or reset the warning count of a member.",
			DefaultMemberPermissions: &moderateMembers,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The member to look up.",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "reset",
					Description: "Clear the member's warnings.",
					Required:    false,
				},
			},
		},
		{
			Name:                     Status,
			Description:              "Show the moderator's runtime status.",
			DefaultMemberPermissions: &manageMessages,
			DMPermission:             &dmAllowed,
		},
	}
}

// IntOption reads an integer option, returning def when it is absent.
func IntOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string, def int) int {
	for _, opt := range options {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return def
}
