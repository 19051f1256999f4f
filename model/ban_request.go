package model

import "time"

// Restraint is the provisional containment applied before a ban is reviewed.
type Restraint string

const (
	RestraintKick Restraint = "kick"
	RestraintMute Restraint = "mute"
	RestraintNone Restraint = "none"
)

// PendingBanRequest is a ban awaiting a reviewer's decision.
type PendingBanRequest struct {
	UserID       string    `json:"userId"`
	GuildID      string    `json:"guildId"`
	ChannelID    string    `json:"channelId"`
	Username     string    `json:"username"`
	Reason       string    `json:"reason"`
	Violations   []string  `json:"violations"`
	Confidence   float64   `json:"confidence"`
	Kicked       bool      `json:"kicked"`
	Restraint    Restraint `json:"restraint"`
	Delivered    bool      `json:"delivered"`
	DeliveredVia string    `json:"deliveredVia,omitempty"`
	ReviewerID   string    `json:"reviewerId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// BanRequestKey is the composite key of a pending ban request.
func BanRequestKey(userID, guildID string) string {
	return userID + ":" + guildID
}
