package commands

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCommands(t *testing.T) {
	cmds := GenerateCommands()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
		require.NotNil(t, c.DefaultMemberPermissions, c.Name)
		assert.LessOrEqual(t, len(c.Description), 100, c.Name)
	}
	assert.Equal(t, []string{Scan, Summary, Warnings, Status}, names)
}

func TestIntOption(t *testing.T) {
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(25)},
	}
	assert.Equal(t, 25, IntOption(opts, "count", DefaultScanCount))
	assert.Equal(t, DefaultScanCount, IntOption(nil, "count", DefaultScanCount))
}
