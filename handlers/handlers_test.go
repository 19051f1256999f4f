package handlers

import (
	"context"
	"discord-moderator/model"
	"discord-moderator/moderation"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	approveErr error
	calls      []string
}

func (f *fakeResolver) Approve(ctx context.Context, userID, guildID, reviewer string) (string, error) {
	f.calls = append(f.calls, "approve:"+userID+":"+guildID+":"+reviewer)
	if f.approveErr != nil {
		return "", f.approveErr
	}
	return "offender has been banned.", nil
}

func (f *fakeResolver) Deny(ctx context.Context, userID, guildID, reviewer string) (string, error) {
	f.calls = append(f.calls, "deny:"+userID+":"+guildID+":"+reviewer)
	return "Ban request for offender denied.", nil
}

type fakeDeleter struct {
	fail    map[string]bool
	deleted []string
}

func (f *fakeDeleter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if f.fail[messageID] {
		return errors.New("missing access")
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

type memSink struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *memSink) Record(e model.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

type fakePending map[string]model.PendingBanRequest

func (f fakePending) Get(userID, guildID string) (model.PendingBanRequest, bool) {
	req, ok := f[model.BanRequestKey(userID, guildID)]
	return req, ok
}

func TestMayReview(t *testing.T) {
	pending := fakePending{
		model.BanRequestKey("offender", "g1"): {UserID: "offender", GuildID: "g1", ReviewerID: "reviewer"},
	}
	approve := moderation.BanControlID(moderation.ApproveBanPrefix, "offender", "g1")
	deny := moderation.BanControlID(moderation.DenyBanPrefix, "offender", "g1")

	assert.True(t, mayReview(pending, approve, "reviewer", 0))
	assert.True(t, mayReview(pending, deny, "reviewer", 0))
	assert.True(t, mayReview(pending, approve, "admin", discordgo.PermissionBanMembers))

	// a member renamed to the reviewer's name still has a different id
	assert.False(t, mayReview(pending, approve, "attacker", 0))
	assert.False(t, mayReview(pending, deny, "attacker", discordgo.PermissionManageMessages))

	// without a pending entry only ban permission authorizes
	other := moderation.BanControlID(moderation.ApproveBanPrefix, "someone", "g1")
	assert.False(t, mayReview(pending, other, "reviewer", 0))
	assert.True(t, mayReview(pending, other, "reviewer", discordgo.PermissionAdministrator))
	assert.False(t, mayReview(pending, "garbage", "reviewer", 0))
}

func TestResolveBanReview(t *testing.T) {
	ctx := context.Background()

	t.Run("approve", func(t *testing.T) {
		f := &fakeResolver{}
		embed, err := resolveBanReview(ctx, f, moderation.BanControlID(moderation.ApproveBanPrefix, "u1", "g1"), "boss")
		require.NoError(t, err)
		assert.Equal(t, "Ban approved", embed.Title)
		assert.Equal(t, "offender has been banned.", embed.Description)
		assert.Equal(t, []string{"approve:u1:g1:boss"}, f.calls)
	})

	t.Run("deny", func(t *testing.T) {
		f := &fakeResolver{}
		embed, err := resolveBanReview(ctx, f, moderation.BanControlID(moderation.DenyBanPrefix, "u1", "g1"), "boss")
		require.NoError(t, err)
		assert.Equal(t, "Ban denied", embed.Title)
		assert.Equal(t, []string{"deny:u1:g1:boss"}, f.calls)
	})

	t.Run("approve failure is reported", func(t *testing.T) {
		f := &fakeResolver{approveErr: errors.New("missing permissions")}
		_, err := resolveBanReview(ctx, f, moderation.BanControlID(moderation.ApproveBanPrefix, "u1", "g1"), "boss")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing permissions")
	})

	t.Run("malformed control", func(t *testing.T) {
		f := &fakeResolver{}
		_, err := resolveBanReview(ctx, f, "ban_approve:u1", "boss")
		assert.ErrorIs(t, err, errUnknownControl)
		assert.Empty(t, f.calls)
	})
}

func TestPurgeFlagged(t *testing.T) {
	msgs := []model.Message{
		{ID: "m0", ChannelID: "c1", GuildID: "g1", AuthorID: "a", Content: "hello"},
		{ID: "m1", ChannelID: "c1", GuildID: "g1", AuthorID: "b", AuthorName: "spammer", Content: "buy now"},
		{ID: "m2", ChannelID: "c1", GuildID: "g1", AuthorID: "c", Content: "scam link"},
	}
	res := model.PurgeResult{FlaggedIndexes: []int{1, 2, 7}, Reasons: map[int]string{1: "spam"}, TotalFlagged: 3}
	deleter := &fakeDeleter{fail: map[string]bool{"m2": true}}
	sink := &memSink{}

	n := purgeFlagged(context.Background(), deleter, sink, msgs, res, "mod")
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"m1"}, deleter.deleted)
	require.Len(t, sink.entries, 1)
	e := sink.entries[0]
	assert.Equal(t, model.AuditModAction, e.Type)
	assert.Equal(t, "purge", e.Action)
	assert.Equal(t, "spam", e.Reason)
	assert.Equal(t, "b", e.UserID)
	assert.JSONEq(t, `{"moderator":"mod","messageId":"m1"}`, e.Details)
}

func TestScanEmbed(t *testing.T) {
	embed := scanEmbed(model.PurgeResult{TotalFlagged: 2, Summary: " two spam posts "}, 40, 2)
	assert.Equal(t, "two spam posts", embed.Description)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "40", embed.Fields[0].Value)

	embed = scanEmbed(model.PurgeResult{}, 10, 0)
	assert.Equal(t, "No summary was returned.", embed.Description)
	assert.Equal(t, 0x57F287, embed.Color)
}

func TestWarningsReply(t *testing.T) {
	ledger := moderation.NewLedger()
	assert.Contains(t, warningsReply(ledger, "u1", false, 2), "0 warning(s), 2 before")
	ledger.Increment("u1")
	ledger.Increment("u1")
	assert.Contains(t, warningsReply(ledger, "u1", false, 2), "no longer softened")

	assert.Contains(t, warningsReply(ledger, "u1", true, 2), "cleared")
	assert.Zero(t, ledger.Count("u1"))
	assert.Contains(t, warningsReply(ledger, "u1", true, 2), "has no warnings")
}

func TestInteractionUser(t *testing.T) {
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{Username: "boss"}}}
	member, user, perms := interactionUser(dm)
	assert.Nil(t, member)
	assert.Equal(t, "boss", user.Username)
	assert.Zero(t, perms)

	inGuild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Member: &discordgo.Member{
		User:        &discordgo.User{Username: "mod"},
		Permissions: discordgo.PermissionBanMembers,
	}}}
	member, user, perms = interactionUser(inGuild)
	assert.NotNil(t, member)
	assert.Equal(t, "mod", user.Username)
	assert.Equal(t, int64(discordgo.PermissionBanMembers), perms)

	assert.True(t, canModerateMembers(discordgo.PermissionModerateMembers))
	assert.False(t, canModerateMembers(discordgo.PermissionManageMessages))
}
