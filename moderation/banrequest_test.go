package moderation

import (
	"context"
	"discord-moderator/model"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBans(p *fakePlatform) (*BanRequests, *memAudit, *opsRecorder) {
	audit := &memAudit{}
	ops := &opsRecorder{}
	return NewBanRequests(p, audit, ops), audit, ops
}

func TestBanRequestDeliveryOrder(t *testing.T) {
	table := []struct {
		name     string
		failing  []string
		attempts []string
		via      string
	}{
		{"reviewer dm", nil, []string{"dm:u-boss"}, ViaDirect},
		{"moderation channel", []string{"dm:u-boss"}, []string{"dm:u-boss", "send:c-mod"}, ViaModChannel},
		{"violation channel", []string{"dm:u-boss", "send:c-mod"}, []string{"dm:u-boss", "send:c-mod", "send:c-chat"}, ViaViolationChannel},
		{"any channel", []string{"dm:u-boss", "send:c-mod", "send:c-chat"}, []string{"dm:u-boss", "send:c-mod", "send:c-chat", "send:c-random"}, ViaAnyChannel},
		{"exhausted", []string{"dm:u-boss", "send:c-mod", "send:c-chat", "send:c-random"}, []string{"dm:u-boss", "send:c-mod", "send:c-chat", "send:c-random"}, ""},
	}
	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			assert := assert.New(t)
			p := newFakePlatform()
			guildWithReviewer(p)
			p.canModerate = true
			for _, f := range row.failing {
				p.fail[f] = true
			}
			bans, audit, ops := newTestBans(p)

			req := bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
			assert.Equal(row.attempts, p.CallsWith("dm", "send"))
			assert.Equal(row.via, req.DeliveredVia)
			assert.Equal(row.via != "", req.Delivered)

			stored, ok := bans.Get("u-offender", "g1")
			require.True(t, ok)
			assert.Equal(req.Delivered, stored.Delivered)
			assert.Len(audit.OfType(model.AuditModAction), 1)

			if row.via == "" {
				errs := audit.OfType(model.AuditError)
				require.Len(t, errs, 1)
				assert.Equal("ban_request_undelivered", errs[0].Action)
				assert.Len(ops.lines, 1)
			} else {
				assert.Empty(audit.OfType(model.AuditError))
				assert.Empty(ops.lines)
			}
		})
	}
}

func TestBanRequestRestraint(t *testing.T) {
	table := []struct {
		name        string
		canModerate bool
		failing     []string
		want        model.Restraint
		calls       []string
	}{
		{"kick", true, nil, model.RestraintKick, []string{"kick:u-offender"}},
		{"no privilege falls back to mute", false, nil, model.RestraintMute, []string{"timeout:u-offender:604800"}},
		{"kick fails falls back to mute", true, []string{"kick"}, model.RestraintMute, []string{"kick:u-offender", "timeout:u-offender:604800"}},
		{"nothing works", false, []string{"timeout"}, model.RestraintNone, []string{"timeout:u-offender:604800"}},
	}
	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			p := newFakePlatform()
			guildWithReviewer(p)
			p.canModerate = row.canModerate
			for _, f := range row.failing {
				p.fail[f] = true
			}
			bans, _, _ := newTestBans(p)
			req := bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
			assert.Equal(t, row.want, req.Restraint)
			assert.Equal(t, row.want == model.RestraintKick, req.Kicked)
			assert.Equal(t, row.calls, p.CallsWith("kick", "timeout"))
		})
	}
}

func TestBanRequestNotDuplicated(t *testing.T) {
	p := newFakePlatform()
	guildWithReviewer(p)
	p.canModerate = true
	bans, _, _ := newTestBans(p)

	first := bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
	second := bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Len(t, p.CallsWith("kick"), 1)
	assert.Equal(t, 1, bans.Len())
}

func TestBanRequestRecordsReviewer(t *testing.T) {
	p := newFakePlatform()
	guildWithReviewer(p)
	p.canModerate = true
	bans, _, _ := newTestBans(p)

	var during model.PendingBanRequest
	p.onDirect = func() { during, _ = bans.Get("u-offender", "g1") }

	req := bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
	assert.Equal(t, "u-boss", req.ReviewerID)
	assert.Equal(t, "u-boss", during.ReviewerID)
	assert.Equal(t, model.RestraintKick, during.Restraint)

	stored, ok := bans.Get("u-offender", "g1")
	require.True(t, ok)
	assert.Equal(t, "u-boss", stored.ReviewerID)
	assert.Equal(t, ViaDirect, stored.DeliveredVia)
}

func TestBanRequestResolvedDuringDelivery(t *testing.T) {
	p := newFakePlatform()
	guildWithReviewer(p)
	p.canModerate = true
	bans, _, _ := newTestBans(p)

	var outcome string
	var approveErr error
	p.onDirect = func() {
		outcome, approveErr = bans.Approve(context.Background(), "u-offender", "g1", "boss")
	}

	req := bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
	require.NoError(t, approveErr)
	assert.Contains(t, outcome, "banned")
	assert.True(t, req.Delivered)

	_, ok := bans.Get("u-offender", "g1")
	assert.False(t, ok)
	assert.Zero(t, bans.Len())
}

func TestLocateReviewer(t *testing.T) {
	ctx := context.Background()

	t.Run("violating guild first", func(t *testing.T) {
		p := newFakePlatform()
		guildWithReviewer(p)
		p.guilds = append(p.guilds, &discordgo.Guild{ID: "g2"})
		bans, _, _ := newTestBans(p)
		u := bans.LocateReviewer(ctx, "g1", "BOSS")
		require.NotNil(t, u)
		assert.Equal(t, "u-boss", u.ID)
		assert.Equal(t, []string{"members:g1"}, p.CallsWith("members"))
	})

	t.Run("other guilds stop at first match", func(t *testing.T) {
		p := newFakePlatform()
		p.guilds = []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}, {ID: "g3"}}
		p.members["g2"] = []*discordgo.Member{{User: &discordgo.User{ID: "u-boss", Username: "someone", GlobalName: "Boss"}}}
		p.members["g3"] = []*discordgo.Member{{User: &discordgo.User{ID: "u-other", Username: "boss"}}}
		bans, _, _ := newTestBans(p)
		u := bans.LocateReviewer(ctx, "g1", "boss")
		require.NotNil(t, u)
		assert.Equal(t, "u-boss", u.ID)
		assert.Equal(t, []string{"members:g1", "members:g2"}, p.CallsWith("members"))
	})

	t.Run("nickname", func(t *testing.T) {
		p := newFakePlatform()
		p.members["g1"] = []*discordgo.Member{{Nick: "Head Mod", User: &discordgo.User{ID: "u-nick", Username: "x"}}}
		bans, _, _ := newTestBans(p)
		u := bans.LocateReviewer(ctx, "g1", "head mod")
		require.NotNil(t, u)
		assert.Equal(t, "u-nick", u.ID)
	})

	t.Run("slow guild is bounded and cache is last", func(t *testing.T) {
		p := newFakePlatform()
		p.guilds = []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}}
		p.slowGuilds["g1"] = true
		p.slowGuilds["g2"] = true
		p.users = []*discordgo.User{{ID: "u-cached", Username: "Boss"}}
		bans, _, _ := newTestBans(p)
		bans.fetchTimeout = 20 * time.Millisecond

		start := time.Now()
		u := bans.LocateReviewer(ctx, "g1", "boss")
		require.NotNil(t, u)
		assert.Equal(t, "u-cached", u.ID)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("not configured", func(t *testing.T) {
		p := newFakePlatform()
		bans, _, _ := newTestBans(p)
		assert.Nil(t, bans.LocateReviewer(ctx, "g1", "  "))
		assert.Empty(t, p.Calls())
	})
}

func TestApproveAfterOffenderLeft(t *testing.T) {
	assert := assert.New(t)
	p := newFakePlatform()
	guildWithReviewer(p)
	p.canModerate = true
	bans, audit, _ := newTestBans(p)
	bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())

	// kicked during restraint, so the member lookup comes back empty
	p.members["g1"] = p.members["g1"][1:]

	outcome, err := bans.Approve(context.Background(), "u-offender", "g1", "boss")
	require.NoError(t, err)
	assert.Contains(outcome, "banned")
	assert.Equal([]string{"ban_user:u-offender"}, p.CallsWith("ban_user", "ban_member"))
	assert.Zero(bans.Len())

	mods := audit.OfType(model.AuditModAction)
	assert.Equal("ban", mods[len(mods)-1].Action)
}

func TestApproveMember(t *testing.T) {
	p := newFakePlatform()
	guildWithReviewer(p)
	bans, _, _ := newTestBans(p)

	_, err := bans.Approve(context.Background(), "u-offender", "g1", "boss")
	require.NoError(t, err)
	assert.Equal(t, []string{"ban_member:u-offender"}, p.CallsWith("ban_user", "ban_member"))
}

func TestApproveFailureKeepsRequest(t *testing.T) {
	p := newFakePlatform()
	guildWithReviewer(p)
	p.canModerate = true
	bans, audit, _ := newTestBans(p)
	bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
	p.fail["ban_user"] = true
	p.fail["ban_member"] = true

	_, err := bans.Approve(context.Background(), "u-offender", "g1", "boss")
	assert.ErrorIs(t, err, errPlatform)
	assert.Equal(t, 1, bans.Len())
	assert.NotEmpty(t, audit.OfType(model.AuditError))
}

func TestDeny(t *testing.T) {
	t.Run("mute is lifted", func(t *testing.T) {
		p := newFakePlatform()
		guildWithReviewer(p)
		bans, audit, _ := newTestBans(p)
		req := bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
		require.Equal(t, model.RestraintMute, req.Restraint)

		outcome, err := bans.Deny(context.Background(), "u-offender", "g1", "boss")
		require.NoError(t, err)
		assert.Contains(t, outcome, "lifted")
		assert.Equal(t, []string{"remove_timeout:u-offender"}, p.CallsWith("remove_timeout"))
		assert.Zero(t, bans.Len())

		mods := audit.OfType(model.AuditModAction)
		assert.Equal(t, "ban_denied", mods[len(mods)-1].Action)
	})

	t.Run("kick is not undone", func(t *testing.T) {
		p := newFakePlatform()
		guildWithReviewer(p)
		p.canModerate = true
		bans, _, _ := newTestBans(p)
		bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())

		_, err := bans.Deny(context.Background(), "u-offender", "g1", "boss")
		require.NoError(t, err)
		assert.Empty(t, p.CallsWith("remove_timeout"))
	})

	t.Run("second deny is a no-op", func(t *testing.T) {
		p := newFakePlatform()
		guildWithReviewer(p)
		bans, audit, _ := newTestBans(p)
		bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())

		_, err := bans.Deny(context.Background(), "u-offender", "g1", "boss")
		require.NoError(t, err)
		before := len(p.Calls())
		entries := len(audit.OfType(model.AuditModAction))

		outcome, err := bans.Deny(context.Background(), "u-offender", "g1", "boss")
		assert.NoError(t, err)
		assert.Contains(t, outcome, "already been resolved")
		assert.Len(t, p.Calls(), before)
		assert.Len(t, audit.OfType(model.AuditModAction), entries)
	})
}

func TestPendingSortedCopy(t *testing.T) {
	p := newFakePlatform()
	guildWithReviewer(p)
	bans, _, _ := newTestBans(p)

	second := testMessage()
	second.AuthorID = "u-second"
	bans.Request(context.Background(), testMessage(), flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())
	time.Sleep(2 * time.Millisecond)
	bans.Request(context.Background(), second, flaggedVerdict("spam"), model.Action{Kind: model.ActionRequestBan}, testSettings())

	pending := bans.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "u-offender", pending[0].UserID)
	assert.Equal(t, "u-second", pending[1].UserID)

	pending[0].Violations[0] = "mutated"
	stored, _ := bans.Get("u-offender", "g1")
	assert.Equal(t, "spam", stored.Violations[0])
}
