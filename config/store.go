package config

import (
	"discord-moderator/model"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrInvalidPatch = errors.New("invalid patch")
)

const storeFileName = "moderation.json"

type storeFile struct {
	Rules    []model.Rule   `json:"rules"`
	Settings model.Settings `json:"settings"`
}

// Store holds the ordered moderation rules and the global settings, persisted as one JSON file.
type Store struct {
	mu   sync.RWMutex
	path string
	data storeFile
}

// OpenStore loads the store from dir, seeding default rules and settings when the file does not exist.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory %s: %w", dir, err)
	}
	s := &Store{path: filepath.Join(dir, storeFileName)}

	fileData, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading store file %s: %w", s.path, err)
		}
		s.data = storeFile{Rules: DefaultRules(), Settings: model.DefaultSettings()}
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	// keys missing from the file keep their default values
	s.data = storeFile{Settings: model.DefaultSettings()}
	if err := json.Unmarshal(fileData, &s.data); err != nil {
		return nil, fmt.Errorf("error unmarshalling store from %s: %w", s.path, err)
	}
	s.applyDefaults()
	return s, nil
}

func (s *Store) applyDefaults() {
	if s.data.Rules == nil {
		s.data.Rules = []model.Rule{}
	}
	def := model.DefaultSettings()
	if s.data.Settings.ModerationStyle == "" {
		s.data.Settings.ModerationStyle = def.ModerationStyle
	}
	if s.data.Settings.WarningsBeforeAction < 0 {
		s.data.Settings.WarningsBeforeAction = def.WarningsBeforeAction
	}
	if s.data.Settings.AuditRetentionDays <= 0 {
		s.data.Settings.AuditRetentionDays = def.AuditRetentionDays
	}
}

// GetRules returns a copy of every rule in configured order.
func (s *Store) GetRules() []model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make([]model.Rule, len(s.data.Rules))
	copy(rules, s.data.Rules)
	return rules
}

// UpdateRule applies patch to the rule with the given id and persists the result.
func (s *Store) UpdateRule(id string, patch model.RulePatch) (model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.data.Rules {
		if s.data.Rules[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	rule := s.data.Rules[idx]
	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Description != nil {
		rule.Description = *patch.Description
	}
	if patch.Severity != nil {
		if !patch.Severity.Valid() {
			return model.Rule{}, fmt.Errorf("%w: unknown severity %q", ErrInvalidPatch, *patch.Severity)
		}
		rule.Severity = *patch.Severity
	}
	if patch.Action != nil {
		if !patch.Action.Valid() {
			return model.Rule{}, fmt.Errorf("%w: unknown action %q", ErrInvalidPatch, *patch.Action)
		}
		rule.Action = *patch.Action
	}
	if patch.TimeoutDuration != nil {
		if *patch.TimeoutDuration < 0 {
			return model.Rule{}, fmt.Errorf("%w: timeoutDuration must be >= 0", ErrInvalidPatch)
		}
		rule.TimeoutDuration = *patch.TimeoutDuration
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.AIPrompt != nil {
		rule.AIPrompt = *patch.AIPrompt
	}

	prev := s.data.Rules[idx]
	s.data.Rules[idx] = rule
	if err := s.save(); err != nil {
		s.data.Rules[idx] = prev
		return model.Rule{}, err
	}
	return rule, nil
}

// GetSettings returns a copy of the current settings.
func (s *Store) GetSettings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.data.Settings)
}

// UpdateSettings applies patch to the settings and persists the result.
func (s *Store) UpdateSettings(patch model.SettingsPatch) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneSettings(s.data.Settings)
	if patch.ModerationStyle != nil {
		switch *patch.ModerationStyle {
		case model.StyleStrict, model.StyleBalanced, model.StyleLenient:
			next.ModerationStyle = *patch.ModerationStyle
		default:
			return model.Settings{}, fmt.Errorf("%w: unknown moderation style %q", ErrInvalidPatch, *patch.ModerationStyle)
		}
	}
	if patch.WarningsBeforeAction != nil {
		if *patch.WarningsBeforeAction < 0 {
			return model.Settings{}, fmt.Errorf("%w: warningsBeforeAction must be >= 0", ErrInvalidPatch)
		}
		next.WarningsBeforeAction = *patch.WarningsBeforeAction
	}
	if patch.BanRequestUser != nil {
		next.BanRequestUser = *patch.BanRequestUser
	}
	if patch.DMOnAction != nil {
		next.DMOnAction = *patch.DMOnAction
	}
	if patch.IgnoredChannels != nil {
		next.IgnoredChannels = append([]string{}, (*patch.IgnoredChannels)...)
	}
	if patch.IgnoredRoles != nil {
		next.IgnoredRoles = append([]string{}, (*patch.IgnoredRoles)...)
	}
	if patch.TrustedRoles != nil {
		next.TrustedRoles = append([]string{}, (*patch.TrustedRoles)...)
	}
	if patch.LogChannelID != nil {
		next.LogChannelID = *patch.LogChannelID
	}
	if patch.AuditRetentionDays != nil {
		if *patch.AuditRetentionDays <= 0 {
			return model.Settings{}, fmt.Errorf("%w: auditRetentionDays must be > 0", ErrInvalidPatch)
		}
		next.AuditRetentionDays = *patch.AuditRetentionDays
	}

	prev := s.data.Settings
	s.data.Settings = next
	if err := s.save(); err != nil {
		s.data.Settings = prev
		return model.Settings{}, err
	}
	return cloneSettings(next), nil
}

// save writes the store atomically. Callers hold s.mu.
func (s *Store) save() error {
	jsonData, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling store to JSON: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("error writing store to file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("error replacing store file %s: %w", s.path, err)
	}
	return nil
}

func cloneSettings(in model.Settings) model.Settings {
	out := in
	out.IgnoredChannels = append([]string{}, in.IgnoredChannels...)
	out.IgnoredRoles = append([]string{}, in.IgnoredRoles...)
	out.TrustedRoles = append([]string{}, in.TrustedRoles...)
	return out
}

// DefaultRules is the rule set written on first start.
func DefaultRules() []model.Rule {
	return []model.Rule{
		{
			ID:              "spam",
			Name:            "Spam",
			Description:     "Repeated messages, mass mentions or unsolicited advertising.",
			Severity:        model.SeverityLow,
			Action:          model.ActionTimeout,
			TimeoutDuration: 300,
			Enabled:         true,
			AIPrompt:        "Flag repeated or copy-pasted messages, mass mentions and unsolicited advertising or invite links.",
		},
		{
			ID:              "harassment",
			Name:            "Harassment",
			Description:     "Insults, threats or targeted abuse towards another member.",
			Severity:        model.SeverityMedium,
			Action:          model.ActionTimeout,
			TimeoutDuration: 600,
			Enabled:         true,
			AIPrompt:        "Flag messages that insult, threaten, demean or repeatedly target a specific person.",
		},
		{
			ID:          "hate-speech",
			Name:        "Hate speech",
			Description: "Attacks on people based on protected characteristics.",
			Severity:    model.SeverityHigh,
			Action:      model.ActionKick,
			Enabled:     true,
			AIPrompt:    "Flag slurs and attacks on people based on race, ethnicity, religion, gender, sexual orientation or disability.",
		},
		{
			ID:          "scam",
			Name:        "Scams and phishing",
			Description: "Fake giveaways, credential phishing and malicious links.",
			Severity:    model.SeverityCritical,
			Action:      model.ActionRequestBan,
			Enabled:     true,
			AIPrompt:    "Flag fake nitro or crypto giveaways, phishing links and requests for account credentials.",
		},
		{
			ID:          "off-topic",
			Name:        "Off-topic",
			Description: "Content clearly unrelated to the channel purpose.",
			Severity:    model.SeverityLow,
			Action:      model.ActionWarn,
			Enabled:     false,
			AIPrompt:    "Flag messages that are clearly unrelated to the channel topic.",
		},
	}
}
