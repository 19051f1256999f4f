package model

import "time"

// AuditType discriminates audit entries.
type AuditType string

const (
	AuditModAction  AuditType = "mod_action"
	AuditAIAnalysis AuditType = "ai_analysis"
	AuditBotEvent   AuditType = "bot_event"
	AuditError      AuditType = "error"
)

// AuditEntry is one record in the audit log.
type AuditEntry struct {
	ID         string    `json:"id"`
	Type       AuditType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	GuildID    string    `json:"guildId,omitempty"`
	ChannelID  string    `json:"channelId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Username   string    `json:"username,omitempty"`
	Action     string    `json:"action,omitempty"`
	RuleID     string    `json:"ruleId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Duration   int64     `json:"duration,omitempty"` // seconds
	Message    string    `json:"message,omitempty"`
	Details    string    `json:"details,omitempty"` // JSON object
}

// AuditQuery filters audit log reads.
type AuditQuery struct {
	Type    AuditType
	GuildID string
	UserID  string
	Since   time.Time
	Limit   int
}

// AuditStats aggregates the audit log.
type AuditStats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"byType"`
	ByAction map[string]int `json:"byAction"`
	TopUsers map[string]int `json:"topUsers"`
	Since    time.Time      `json:"since"`
}
