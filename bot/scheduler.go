package bot

import (
	"context"
	"discord-moderator/feed"
	"discord-moderator/model"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	rcron "github.com/robfig/cron/v3"
)

const (
	statusSpec        = "@every 30s"
	pruneSpec         = "@daily"
	digestMessages    = 100
	digestTimeout     = 2 * time.Minute
	schedulerStopWait = 10 * time.Second
)

// Scheduler runs the periodic jobs while the bot is connected: status
// heartbeats on the live feed, audit retention and channel digests.
type Scheduler struct {
	bot  *Bot
	mu   sync.Mutex
	cron *rcron.Cron
}

func NewScheduler(b *Bot) *Scheduler {
	return &Scheduler{bot: b}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	c := rcron.New()
	if _, err := c.AddFunc(statusSpec, s.bot.publishStatus); err != nil {
		log.Printf("[Scheduler] failed to register status heartbeat: %v", err)
	}
	if _, err := c.AddFunc(pruneSpec, s.pruneAudit); err != nil {
		log.Printf("[Scheduler] failed to register audit pruning: %v", err)
	}
	cfg := s.bot.GetConfig()
	if cfg.DigestCron != "" && len(cfg.DigestChannelIDs) > 0 {
		if _, err := c.AddFunc(cfg.DigestCron, s.postDigests); err != nil {
			log.Printf("[Scheduler] invalid DIGEST_CRON %q: %v", cfg.DigestCron, err)
		}
	}
	c.Start()
	s.cron = c
	log.Printf("[Scheduler] started with %d jobs", len(c.Entries()))
}

// Stop waits a bounded time for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-time.After(schedulerStopWait):
		log.Printf("[Scheduler] stop timeout waiting for running jobs")
	}
	log.Printf("[Scheduler] stopped")
}

func (s *Scheduler) pruneAudit() {
	days := s.bot.Store.GetSettings().AuditRetentionDays
	if days <= 0 {
		return
	}
	removed, err := s.bot.AuditStore.Prune(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		log.Printf("[Scheduler] audit pruning failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[Scheduler] pruned %d audit entries older than %d days", removed, days)
		s.bot.Audit.Record(model.AuditEntry{
			Type:    model.AuditBotEvent,
			Action:  "audit_pruned",
			Message: fmt.Sprintf("removed %d entries older than %d days", removed, days),
		})
	}
}

func (s *Scheduler) postDigests() {
	for _, channelID := range s.bot.GetConfig().DigestChannelIDs {
		if err := s.postDigest(channelID); err != nil {
			log.Printf("[Scheduler] digest for channel %s failed: %v", channelID, err)
			s.bot.LogError("Scheduler", "Digest", fmt.Sprintf("Digest for <#%s> failed: %v", channelID, err))
		}
	}
}

func (s *Scheduler) postDigest(channelID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	msgs, err := s.bot.Platform.RecentMessages(ctx, channelID, digestMessages)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	channelName, guildName := msgs[0].ChannelName, msgs[0].GuildName
	summary := s.bot.Classifier.Summarize(ctx, msgs, channelName, guildName)
	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{SummaryEmbed(summary, channelName)}}
	if _, err := s.bot.Platform.SendMessage(ctx, channelID, send); err != nil {
		return err
	}
	s.bot.Feed.Publish(feed.Event{Kind: "digest", Payload: summary})
	return nil
}

// SummaryEmbed renders a channel digest.
func SummaryEmbed(summary model.Summary, channelName string) *discordgo.MessageEmbed {
	title := "Channel digest"
	if channelName != "" {
		title = "Digest of #" + channelName
	}
	text := summary.Text
	if len([]rune(text)) > 4000 {
		text = string([]rune(text)[:4000]) + "…"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: text,
		Color:       0x5865F2, // Discord Blurple
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d messages", summary.MessageCount)},
		Timestamp:   summary.Timestamp.Format(time.RFC3339),
	}
}
