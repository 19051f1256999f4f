package model

import "time"

// Message is the platform-neutral view of an inbound chat message.
type Message struct {
	ID          string
	ChannelID   string
	ChannelName string
	GuildID     string
	GuildName   string
	AuthorID    string
	AuthorName  string
	AuthorRoles []string
	AuthorIsBot bool
	Content     string
	Timestamp   time.Time
}

// ContextEntry is one prior message kept as classification context.
type ContextEntry struct {
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
