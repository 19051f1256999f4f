package model

import "time"

// ActionKind is the closed set of enforcement actions.
type ActionKind string

const (
	ActionNone       ActionKind = "none"
	ActionWarn       ActionKind = "warn"
	ActionTimeout    ActionKind = "timeout"
	ActionKick       ActionKind = "kick"
	ActionRequestBan ActionKind = "request_ban"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionNone, ActionWarn, ActionTimeout, ActionKick, ActionRequestBan:
		return true
	}
	return false
}

// Action is the concrete enforcement decided for one message.
type Action struct {
	Kind     ActionKind
	Duration time.Duration
	Rule     *Rule
}

// DeletesMessage reports whether the triggering message is removed before the action runs.
func (a Action) DeletesMessage() bool {
	switch a.Kind {
	case ActionTimeout, ActionKick, ActionRequestBan:
		return true
	}
	return false
}

// RuleName returns the name of the governing rule, or fallback when none matched.
func (a Action) RuleName(fallback string) string {
	if a.Rule != nil && a.Rule.Name != "" {
		return a.Rule.Name
	}
	return fallback
}
