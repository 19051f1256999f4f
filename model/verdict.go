package model

import "time"

// FlagThreshold is the confidence a verdict must exceed to count as flagged.
const FlagThreshold = 0.7

// Verdict is the normalized result of classifying one message.
type Verdict struct {
	Flagged           bool       `json:"flagged"`
	Violations        []string   `json:"violations"`
	Confidence        float64    `json:"confidence"`
	Reasoning         string     `json:"reasoning"`
	SuggestedAction   ActionKind `json:"suggestedAction"`
	SuggestedDuration int        `json:"suggestedDuration"`
	ReplyMessage      *string    `json:"replyMessage"`
	// Error is set only when the verdict is the safe default after a failed classification.
	Error string `json:"error,omitempty"`
}

// SafeVerdict is returned whenever classification fails.
func SafeVerdict(reason string) Verdict {
	return Verdict{
		Flagged:         false,
		Violations:      []string{},
		Confidence:      0,
		Reasoning:       reason,
		SuggestedAction: ActionNone,
		Error:           reason,
	}
}

// PrimaryViolation returns the first violated rule id, if any.
func (v Verdict) PrimaryViolation() string {
	if len(v.Violations) == 0 {
		return ""
	}
	return v.Violations[0]
}

// PurgeResult is the bulk retroactive review of a batch of messages.
type PurgeResult struct {
	FlaggedIndexes []int          `json:"flaggedIndexes"`
	Reasons        map[int]string `json:"reasons"`
	TotalFlagged   int            `json:"totalFlagged"`
	Summary        string         `json:"summary"`
}

// Summary is a generated digest of a batch of channel messages.
type Summary struct {
	Text         string    `json:"summary"`
	MessageCount int       `json:"messageCount"`
	Timestamp    time.Time `json:"timestamp"`
}
