package moderation

import (
	"discord-moderator/model"
	"log"
	"time"
)

// DefaultTimeout applies when neither the rule nor the verdict names a duration.
const DefaultTimeout = 300 * time.Second

// MaxTimeout is the longest timeout the platform accepts.
const MaxTimeout = 28 * 24 * time.Hour

// Decide maps a verdict to a concrete action. The matching rule's configured
// action always overrides the model's suggestion, and timeouts are softened to
// warnings until the user has reached settings.WarningsBeforeAction.
func Decide(v model.Verdict, rules []model.Rule, warningCount int, settings model.Settings) model.Action {
	enabled := model.EnabledRules(rules)
	if len(enabled) == 0 || !v.Flagged || v.Confidence <= model.FlagThreshold {
		return model.Action{Kind: model.ActionNone}
	}

	action := model.Action{
		Kind:     v.SuggestedAction,
		Duration: time.Duration(v.SuggestedDuration) * time.Second,
	}
	if primary := v.PrimaryViolation(); primary != "" {
		if rule := model.FindRule(enabled, primary); rule != nil {
			action.Kind = rule.Action
			action.Rule = rule
			if rule.TimeoutDuration > 0 {
				action.Duration = time.Duration(rule.TimeoutDuration) * time.Second
			}
		} else {
			log.Printf("[Moderation] Verdict names unknown rule %q, using suggested action %q", primary, v.SuggestedAction)
		}
	}
	if !action.Kind.Valid() {
		action.Kind = model.ActionNone
	}

	if action.Kind == model.ActionTimeout {
		if warningCount < settings.WarningsBeforeAction {
			return model.Action{Kind: model.ActionWarn, Rule: action.Rule}
		}
		if action.Duration <= 0 {
			action.Duration = DefaultTimeout
		}
		action.Duration = min(action.Duration, MaxTimeout)
	}
	if action.Kind != model.ActionTimeout {
		action.Duration = 0
	}
	return action
}
