package classifier

import (
	"discord-moderator/model"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	table := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"prefix {\"a\":{\"b\":2}} suffix {\"c\":3}", `{"a":{"b":2}}`, true},
		{`text {"s":"brace } inside"} tail`, `{"s":"brace } inside"}`, true},
		{`{"s":"escaped \" quote {"}`, `{"s":"escaped \" quote {"}`, true},
		{`{ unbalanced {"ok":true}`, `{"ok":true}`, true},
		{`no json here`, ``, false},
		{`{"never":"closed"`, ``, false},
	}
	for _, row := range table {
		got, err := ExtractJSONObject(row.in)
		if row.ok {
			assert.NoError(t, err, row.in)
			assert.Equal(t, row.want, got)
		} else {
			assert.ErrorIs(t, err, ErrNoJSONObject, row.in)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	assert := assert.New(t)

	v := Normalize(map[string]any{
		"flagged":           "true",
		"violations":        []any{"spam", 3, "", " harassment "},
		"confidence":        "1.7",
		"suggestedAction":   "BAN_EVERYONE",
		"suggestedDuration": -5.0,
		"replyMessage":      "   ",
	})
	assert.True(v.Flagged)
	assert.Equal([]string{"spam", "harassment"}, v.Violations)
	assert.Equal(1.0, v.Confidence)
	assert.Equal(model.ActionNone, v.SuggestedAction)
	assert.Zero(v.SuggestedDuration)
	assert.Nil(v.ReplyMessage)

	v = Normalize(map[string]any{})
	assert.False(v.Flagged)
	assert.Zero(v.Confidence)
	assert.NotNil(v.Violations)
}

func TestNormalizeRespectsFlagThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	// rawOf picks one loosely typed shape for a field, including a missing one.
	rawOf := func(kind int, f float64, b bool, str string) any {
		switch kind {
		case 0:
			return f
		case 1:
			return b
		case 2:
			return str
		case 3:
			return fmt.Sprint(f)
		case 4:
			return []any{str}
		}
		return nil
	}

	properties.Property("flagged implies confidence above threshold", prop.ForAll(
		func(k1, k2, k3 int, f float64, b bool, str string) bool {
			v := Normalize(map[string]any{
				"flagged":           rawOf(k1, f, b, str),
				"confidence":        rawOf(k2, f, b, str),
				"suggestedDuration": rawOf(k3, -f, b, str),
				"suggestedAction":   rawOf(k3, f, b, str),
			})
			if v.Confidence < 0 || v.Confidence > 1 {
				return false
			}
			if v.SuggestedDuration < 0 || !v.SuggestedAction.Valid() {
				return false
			}
			return !v.Flagged || v.Confidence > model.FlagThreshold
		},
		gen.IntRange(0, 5), gen.IntRange(0, 5), gen.IntRange(0, 5),
		gen.Float64Range(-2, 2), gen.Bool(), gen.AlphaString(),
	))

	properties.Property("parsed responses respect threshold", prop.ForAll(
		func(flagged bool, confidence float64, noise string) bool {
			body, _ := json.Marshal(map[string]any{"flagged": flagged, "confidence": confidence, "violations": []string{"spam"}})
			v, err := ParseVerdict(fmt.Sprintf("%s %s %s", noise, body, noise))
			if err != nil {
				return false
			}
			return !v.Flagged || v.Confidence > model.FlagThreshold
		},
		gen.Bool(), gen.Float64Range(-1, 2), gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestContextBound(t *testing.T) {
	assert := assert.New(t)
	c := NewContext()
	for i := 0; i < 15; i++ {
		c.Add("c1", model.ContextEntry{Author: "a", Content: fmt.Sprint(i), Timestamp: time.Now()})
	}
	h := c.History("c1")
	assert.Len(h, MaxContextMessages)
	assert.Equal("5", h[0].Content)
	assert.Equal("14", h[len(h)-1].Content)
	assert.Empty(c.History("unknown"))

	// History returns a copy
	h[0].Content = "mutated"
	assert.Equal("5", c.History("c1")[0].Content)
}
