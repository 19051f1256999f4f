package utils

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// SendPrivateMessage sends a direct message to a user. Users with closed DMs
// make this fail; callers decide whether that matters.
func SendPrivateMessage(s *discordgo.Session, userID string, msg *discordgo.MessageSend, options ...discordgo.RequestOption) error {
	channel, err := s.UserChannelCreate(userID, options...)
	if err != nil {
		return fmt.Errorf("create private channel with user %s: %w", userID, err)
	}
	if _, err = s.ChannelMessageSendComplex(channel.ID, msg, options...); err != nil {
		return fmt.Errorf("send private message to user %s: %w", userID, err)
	}
	return nil
}
