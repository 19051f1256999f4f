package bot

import (
	"context"
	"discord-moderator/model"
	"discord-moderator/moderation"
	"discord-moderator/utils"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	memberPageSize = 1000
	maxCachedUsers = 10000
	maxMemberPages = 100
)

// Platform adapts a discordgo session to moderation.Platform.
type Platform struct {
	session *discordgo.Session
	users   *lru.Cache[string, *discordgo.User]
}

var _ moderation.Platform = (*Platform)(nil)

func NewPlatform(s *discordgo.Session) *Platform {
	users, _ := lru.New[string, *discordgo.User](maxCachedUsers)
	return &Platform{session: s, users: users}
}

// RememberUser adds u to the global user cache searched for reviewers.
func (p *Platform) RememberUser(u *discordgo.User) {
	if u == nil || u.ID == "" || u.Bot {
		return
	}
	p.users.Add(u.ID, u)
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	return p.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
}

func (p *Platform) Reply(ctx context.Context, channelID, messageID, content string) error {
	ref := &discordgo.MessageReference{MessageID: messageID, ChannelID: channelID}
	_, err := p.session.ChannelMessageSendReply(channelID, content, ref, discordgo.WithContext(ctx))
	return err
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return p.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (p *Platform) SendDirect(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	return utils.SendPrivateMessage(p.session, userID, msg, discordgo.WithContext(ctx))
}

// GuildMembers pages through the whole member list. Whatever was fetched
// before an error or a cancelled context is returned alongside the error.
func (p *Platform) GuildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var all []*discordgo.Member
	after := ""
	for page := 0; page < maxMemberPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		members, err := p.session.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return all, fmt.Errorf("fetch members of guild %s: %w", guildID, err)
		}
		for _, m := range members {
			if m.User != nil {
				p.RememberUser(m.User)
			}
		}
		all = append(all, members...)
		if len(members) < memberPageSize {
			break
		}
		after = members[len(members)-1].User.ID
	}
	return all, nil
}

func (p *Platform) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	m, err := p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, moderation.ErrMemberNotFound
		}
		return nil, err
	}
	if m.GuildID == "" {
		m.GuildID = guildID
	}
	return m, nil
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return true
	}
	return restErr.Message != nil && (restErr.Message.Code == discordgo.ErrCodeUnknownMember || restErr.Message.Code == discordgo.ErrCodeUnknownUser)
}

func (p *Platform) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := p.session.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return g, nil
	}
	return p.session.Guild(guildID, discordgo.WithContext(ctx))
}

func (p *Platform) CanModerate(ctx context.Context, guildID, userID string) (bool, error) {
	if p.session.State.User == nil {
		return false, errors.New("session is not ready")
	}
	botID := p.session.State.User.ID
	g, err := p.guild(ctx, guildID)
	if err != nil {
		return false, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	target, err := p.Member(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	self, err := p.Member(ctx, guildID, botID)
	if err != nil {
		return false, fmt.Errorf("fetch own member record: %w", err)
	}
	return outranks(g, self, target), nil
}

// outranks reports whether actor may moderate target: owners can never be
// moderated, and otherwise the actor's highest role must sit strictly above
// the target's.
func outranks(g *discordgo.Guild, actor, target *discordgo.Member) bool {
	if target.User != nil && target.User.ID == g.OwnerID {
		return false
	}
	if actor.User != nil && actor.User.ID == g.OwnerID {
		return true
	}
	return highestRole(g, actor.Roles) > highestRole(g, target.Roles)
}

func highestRole(g *discordgo.Guild, roleIDs []string) int {
	highest := 0
	for _, r := range g.Roles {
		if r.Position > highest && slices.Contains(roleIDs, r.ID) {
			highest = r.Position
		}
	}
	return highest
}

func (p *Platform) Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	until := time.Now().Add(d)
	return p.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (p *Platform) RemoveTimeout(ctx context.Context, guildID, userID string) error {
	return p.session.GuildMemberTimeout(guildID, userID, nil, discordgo.WithContext(ctx))
}

func (p *Platform) Kick(ctx context.Context, guildID, userID, reason string) error {
	return p.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (p *Platform) BanMember(ctx context.Context, member *discordgo.Member, reason string) error {
	return p.session.GuildBanCreateWithReason(member.GuildID, member.User.ID, reason, 0, discordgo.WithContext(ctx))
}

func (p *Platform) BanUser(ctx context.Context, guildID, userID, reason string) error {
	return p.session.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
}

func (p *Platform) Guilds() []*discordgo.Guild {
	p.session.State.RLock()
	defer p.session.State.RUnlock()
	return append([]*discordgo.Guild(nil), p.session.State.Guilds...)
}

func (p *Platform) Channels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	if g, err := p.session.State.Guild(guildID); err == nil && len(g.Channels) > 0 {
		p.session.State.RLock()
		defer p.session.State.RUnlock()
		return append([]*discordgo.Channel(nil), g.Channels...), nil
	}
	return p.session.GuildChannels(guildID, discordgo.WithContext(ctx))
}

func (p *Platform) CanSend(channelID string) bool {
	if p.session.State.User == nil {
		return false
	}
	perms, err := p.session.State.UserChannelPermissions(p.session.State.User.ID, channelID)
	if err != nil {
		return false
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&discordgo.PermissionViewChannel != 0 && perms&discordgo.PermissionSendMessages != 0
}

func (p *Platform) CachedUsers() []*discordgo.User {
	return p.users.Values()
}

// MessageFrom converts a gateway message into the pipeline's view of it.
func (p *Platform) MessageFrom(m *discordgo.Message) model.Message {
	msg := model.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.AuthorIsBot = m.Author.Bot
		p.RememberUser(m.Author)
	}
	if m.Member != nil {
		msg.AuthorRoles = m.Member.Roles
		if m.Member.Nick != "" {
			msg.AuthorName = m.Member.Nick
		}
	}
	if ch, err := p.session.State.Channel(m.ChannelID); err == nil {
		msg.ChannelName = ch.Name
	}
	if g, err := p.session.State.Guild(m.GuildID); err == nil {
		msg.GuildName = g.Name
	}
	return msg
}

// RecentMessages returns up to limit (max 100) of the latest messages in a
// channel, oldest first, skipping bot authors.
func (p *Platform) RecentMessages(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	raw, err := p.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages of channel %s: %w", channelID, err)
	}
	out := make([]model.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		m := raw[i]
		if m.Author == nil || m.Author.Bot || m.Content == "" {
			continue
		}
		if m.GuildID == "" {
			if ch, err := p.session.State.Channel(channelID); err == nil {
				m.GuildID = ch.GuildID
			}
		}
		out = append(out, p.MessageFrom(m))
	}
	return out, nil
}
