package moderation

import (
	"context"
	"discord-moderator/model"
	"discord-moderator/utils"
	"log"
	"runtime/debug"
	"slices"
	"strings"
	"time"
)

// Pipeline takes one inbound message from filtering through classification to
// enforcement. It owns no state of its own; the ledger, channel context and
// pending bans are injected.
type Pipeline struct {
	store      RuleSource
	classifier Classifier
	history    ContextStore
	ledger     *Ledger
	executor   *Executor
	audit      AuditSink
	locks      *utils.UserLocks
}

func NewPipeline(store RuleSource, classifier Classifier, history ContextStore, ledger *Ledger, executor *Executor, audit AuditSink) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: classifier,
		history:    history,
		ledger:     ledger,
		executor:   executor,
		audit:      audit,
		locks:      utils.NewUserLocks(),
	}
}

// HandleMessage classifies msg and enforces the resulting action, which it
// returns. It never panics and never returns an error.
func (p *Pipeline) HandleMessage(ctx context.Context, msg model.Message) (action model.Action) {
	action = model.Action{Kind: model.ActionNone}
	defer func() {
		if r := recover(); r != nil {
			messagesProcessed.WithLabelValues("panic").Inc()
			log.Printf("[Moderation] Recovered from panic handling message %s: %v\n%s", msg.ID, r, debug.Stack())
			action = model.Action{Kind: model.ActionNone}
		}
	}()

	settings := p.store.GetSettings()
	if reason := skipReason(msg, settings); reason != "" {
		messagesProcessed.WithLabelValues("skipped").Inc()
		return action
	}

	history := p.history.History(msg.ChannelID)
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	p.history.Add(msg.ChannelID, model.ContextEntry{Author: msg.AuthorName, Content: msg.Content, Timestamp: ts})

	rules := model.EnabledRules(p.store.GetRules())
	if len(rules) == 0 {
		messagesProcessed.WithLabelValues("skipped").Inc()
		return action
	}

	v := p.classifier.Analyze(ctx, msg, history, rules, settings.ModerationStyle)
	if v.Error != "" {
		messagesProcessed.WithLabelValues("failed").Inc()
		p.audit.Record(errorEntry(msg, "classify", v.Error, map[string]any{"messageId": msg.ID}))
		return action
	}
	if !v.Flagged {
		messagesProcessed.WithLabelValues("clean").Inc()
		return action
	}
	messagesProcessed.WithLabelValues("flagged").Inc()
	p.audit.Record(analysisEntry(msg, v))

	// The ledger read in Decide and the increment in Execute must not interleave for one user.
	unlock := p.locks.Lock(msg.AuthorID)
	defer unlock()

	action = Decide(v, rules, p.ledger.Count(msg.AuthorID), settings)
	log.Printf("[Moderation] Message %s from %s flagged (%s, %.2f), action: %s", msg.ID, msg.AuthorName, strings.Join(v.Violations, ","), v.Confidence, action.Kind)
	p.executor.Execute(ctx, msg, v, action, settings)
	return action
}

// skipReason returns why msg is not classified, or "" when it should be.
func skipReason(msg model.Message, settings model.Settings) string {
	switch {
	case msg.AuthorIsBot:
		return "bot author"
	case msg.GuildID == "":
		return "direct message"
	case strings.TrimSpace(msg.Content) == "":
		return "empty content"
	case slices.Contains(settings.IgnoredChannels, msg.ChannelID):
		return "ignored channel"
	case utils.HasAnyRole(msg.AuthorRoles, settings.IgnoredRoles):
		return "ignored role"
	case utils.HasAnyRole(msg.AuthorRoles, settings.TrustedRoles):
		return "trusted role"
	}
	return ""
}

func analysisEntry(msg model.Message, v model.Verdict) model.AuditEntry {
	return model.AuditEntry{
		Type:       model.AuditAIAnalysis,
		Timestamp:  time.Now(),
		GuildID:    msg.GuildID,
		ChannelID:  msg.ChannelID,
		UserID:     msg.AuthorID,
		Username:   msg.AuthorName,
		Action:     string(v.SuggestedAction),
		RuleID:     v.PrimaryViolation(),
		Reason:     v.Reasoning,
		Confidence: v.Confidence,
		Duration:   int64(v.SuggestedDuration),
		Message:    truncate(msg.Content, maxExcerpt),
		Details:    details(map[string]any{"violations": v.Violations, "messageId": msg.ID}),
	}
}
