package model

// ModerationStyle tunes how aggressively the classifier is told to flag.
type ModerationStyle string

const (
	StyleStrict   ModerationStyle = "strict"
	StyleBalanced ModerationStyle = "balanced"
	StyleLenient  ModerationStyle = "lenient"
)

const DefaultWarningsBeforeAction = 2

// Settings are the global moderation settings edited from the dashboard.
type Settings struct {
	ModerationStyle      ModerationStyle `json:"moderationStyle"`
	WarningsBeforeAction int             `json:"warningsBeforeAction"`
	BanRequestUser       string          `json:"banRequestUser"`
	DMOnAction           bool            `json:"dmOnAction"`
	IgnoredChannels      []string        `json:"ignoredChannels"`
	IgnoredRoles         []string        `json:"ignoredRoles"`
	TrustedRoles         []string        `json:"trustedRoles"`
	LogChannelID         string          `json:"logChannelId"`
	AuditRetentionDays   int             `json:"auditRetentionDays"`
}

// SettingsPatch carries the fields of a settings update; nil fields are left untouched.
type SettingsPatch struct {
	ModerationStyle      *ModerationStyle `json:"moderationStyle,omitempty"`
	WarningsBeforeAction *int             `json:"warningsBeforeAction,omitempty"`
	BanRequestUser       *string          `json:"banRequestUser,omitempty"`
	DMOnAction           *bool            `json:"dmOnAction,omitempty"`
	IgnoredChannels      *[]string        `json:"ignoredChannels,omitempty"`
	IgnoredRoles         *[]string        `json:"ignoredRoles,omitempty"`
	TrustedRoles         *[]string        `json:"trustedRoles,omitempty"`
	LogChannelID         *string          `json:"logChannelId,omitempty"`
	AuditRetentionDays   *int             `json:"auditRetentionDays,omitempty"`
}

// DefaultSettings returns the settings used before an operator changes anything.
func DefaultSettings() Settings {
	return Settings{
		ModerationStyle:      StyleBalanced,
		WarningsBeforeAction: DefaultWarningsBeforeAction,
		DMOnAction:           true,
		IgnoredChannels:      []string{},
		IgnoredRoles:         []string{},
		TrustedRoles:         []string{},
		AuditRetentionDays:   30,
	}
}
