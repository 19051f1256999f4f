package bot

import (
	"discord-moderator/model"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummaryEmbed(t *testing.T) {
	assert := assert.New(t)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	e := SummaryEmbed(model.Summary{Text: "cats", MessageCount: 7, Timestamp: ts}, "general")
	assert.Equal("Digest of #general", e.Title)
	assert.Equal("cats", e.Description)
	assert.Equal("7 messages", e.Footer.Text)
	assert.Equal(ts.Format(time.RFC3339), e.Timestamp)

	e = SummaryEmbed(model.Summary{Text: strings.Repeat("é", 5000)}, "")
	assert.Equal("Channel digest", e.Title)
	assert.Len([]rune(e.Description), 4001)
}
