package utils

import (
	"github.com/bwmarrin/discordgo"
)

// contains checks if a slice of strings contains an element.
func contains(slice []string, item string) bool {
	for _, a := range slice {
		if a == item {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether any of the member's role ids is in roleIDs.
func HasAnyRole(memberRoleIDs, roleIDs []string) bool {
	for _, id := range memberRoleIDs {
		if contains(roleIDs, id) {
			return true
		}
	}
	return false
}

// CanReviewBans checks whether the user clicking a ban review control may decide it:
// either they hold Ban Members / Administrator in the guild, or they are the
// reviewer the request was addressed to. Display names and nicknames are never trusted.
func CanReviewBans(userID string, permissions int64, reviewerID string) bool {
	if permissions&discordgo.PermissionAdministrator != 0 || permissions&discordgo.PermissionBanMembers != 0 {
		return true
	}
	return userID != "" && reviewerID != "" && userID == reviewerID
}

// CanManageMessages checks the interaction member's permission bits for moderator commands.
func CanManageMessages(permissions int64) bool {
	return permissions&discordgo.PermissionAdministrator != 0 || permissions&discordgo.PermissionManageMessages != 0
}
