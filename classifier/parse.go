package classifier

import (
	"discord-moderator/model"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var ErrNoJSONObject = errors.New("no JSON object in response")

// ExtractJSONObject returns the first balanced {...} object in s. Braces inside
// string literals are ignored, so surrounding prose and code fences are tolerated.
func ExtractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	for start != -1 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
		// unbalanced from this brace; try the next one
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// ParseVerdict extracts and normalizes a verdict from a raw model response.
func ParseVerdict(raw string) (model.Verdict, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return model.Verdict{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return model.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	return Normalize(fields), nil
}

// Normalize turns loosely typed classifier output into a verdict that satisfies
// Flagged => Confidence > model.FlagThreshold.
func Normalize(fields map[string]any) model.Verdict {
	v := model.Verdict{
		Flagged:         asBool(field(fields, "flagged", "is_flagged")),
		Violations:      asStrings(field(fields, "violations", "violated_rules")),
		Confidence:      asFloat(field(fields, "confidence")),
		Reasoning:       asString(field(fields, "reasoning", "reason")),
		SuggestedAction: model.ActionKind(strings.ToLower(asString(field(fields, "suggestedAction", "suggested_action")))),
	}

	if math.IsNaN(v.Confidence) || v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	if !v.SuggestedAction.Valid() {
		v.SuggestedAction = model.ActionNone
	}

	d := asFloat(field(fields, "suggestedDuration", "suggested_duration"))
	if math.IsNaN(d) || d < 0 {
		d = 0
	}
	if d > math.MaxInt32 {
		d = math.MaxInt32
	}
	v.SuggestedDuration = int(d)

	if reply := strings.TrimSpace(asString(field(fields, "replyMessage", "reply_message"))); reply != "" {
		v.ReplyMessage = &reply
	}

	if v.Flagged && v.Confidence <= model.FlagThreshold {
		v.Flagged = false
	}
	return v
}

// normalizePurge keeps in-range, unique indexes and their reasons.
func normalizePurge(fields map[string]any, count int) model.PurgeResult {
	res := model.PurgeResult{
		FlaggedIndexes: []int{},
		Reasons:        map[int]string{},
		Summary:        asString(field(fields, "summary")),
	}

	seen := map[int]bool{}
	if list, ok := field(fields, "flaggedIndexes", "flagged_indexes").([]any); ok {
		for _, item := range list {
			f := asFloat(item)
			if math.IsNaN(f) || f != math.Trunc(f) {
				continue
			}
			idx := int(f)
			if idx < 0 || idx >= count || seen[idx] {
				continue
			}
			seen[idx] = true
			res.FlaggedIndexes = append(res.FlaggedIndexes, idx)
		}
	}
	sort.Ints(res.FlaggedIndexes)

	if reasons, ok := field(fields, "reasons").(map[string]any); ok {
		for key, val := range reasons {
			idx, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil || !seen[idx] {
				continue
			}
			res.Reasons[idx] = asString(val)
		}
	}
	res.TotalFlagged = len(res.FlaggedIndexes)
	return res
}

func field(fields map[string]any, names ...string) any {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			return v
		}
	}
	return nil
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	}
	return false
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64, bool:
		return fmt.Sprint(t)
	}
	return ""
}

func asStrings(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
