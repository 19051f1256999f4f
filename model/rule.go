package model

// Severity grades how serious a rule violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rule is one operator-configured moderation rule.
type Rule struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Severity        Severity   `json:"severity"`
	Action          ActionKind `json:"action"`
	TimeoutDuration int        `json:"timeoutDuration"` // seconds
	Enabled         bool       `json:"enabled"`
	AIPrompt        string     `json:"aiPrompt"`
}

// RulePatch carries the fields of an update; nil fields are left untouched.
type RulePatch struct {
	Name            *string     `json:"name,omitempty"`
	Description     *string     `json:"description,omitempty"`
	Severity        *Severity   `json:"severity,omitempty"`
	Action          *ActionKind `json:"action,omitempty"`
	TimeoutDuration *int        `json:"timeoutDuration,omitempty"`
	Enabled         *bool       `json:"enabled,omitempty"`
	AIPrompt        *string     `json:"aiPrompt,omitempty"`
}

// EnabledRules returns the enabled subset of rules, preserving order.
func EnabledRules(rules []Rule) []Rule {
	enabled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled
}

// FindRule looks a rule up by id.
func FindRule(rules []Rule, id string) *Rule {
	for i := range rules {
		if rules[i].ID == id {
			r := rules[i]
			return &r
		}
	}
	return nil
}
