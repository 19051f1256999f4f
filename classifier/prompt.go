package classifier

import (
	"discord-moderator/model"
	"fmt"
	"strings"
)

const analyzeSystemPrompt = `You are a chat moderation classifier for a Discord server.
Decide whether the NEW message violates any of the enabled rules. Use the recent channel
messages only as context; judge the new message itself.

Moderation style: %s

Enabled rules:
%s
Respond with a single JSON object and nothing else:
{"flagged":bool,"violations":["rule id", ...],"confidence":0.0-1.0,"reasoning":"short explanation",
"suggestedAction":"none|warn|timeout|kick|request_ban","suggestedDuration":seconds,"replyMessage":"short public reply or null"}
Only set flagged to true when confidence is above 0.7. List the most relevant rule id first.`

const purgeSystemPrompt = `You are reviewing a batch of messages from the Discord channel #%s for rule violations.

Enabled rules:
%s
Respond with a single JSON object and nothing else:
{"flaggedIndexes":[index, ...],"reasons":{"index":"why"},"summary":"one paragraph overview"}
Only flag messages that clearly violate a rule.`

const summarySystemPrompt = `You summarize Discord conversations for moderators.
Write a concise digest of the messages from #%s in the server %s: main topics, notable
events and anything a moderator should look at. Plain text, at most 12 short lines.`

var styleGuidance = map[model.ModerationStyle]string{
	model.StyleStrict:   "strict: flag borderline content, prefer false positives over misses",
	model.StyleBalanced: "balanced: flag clear violations, give the benefit of the doubt on jokes and banter",
	model.StyleLenient:  "lenient: only flag severe and unambiguous violations",
}

func formatRules(rules []model.Rule) string {
	var b strings.Builder
	for _, r := range rules {
		criterion := r.AIPrompt
		if criterion == "" {
			criterion = r.Description
		}
		fmt.Fprintf(&b, "- id=%s name=%q severity=%s action=%s: %s\n", r.ID, r.Name, r.Severity, r.Action, criterion)
	}
	return b.String()
}

func buildAnalyzePrompt(msg model.Message, history []model.ContextEntry, rules []model.Rule, style model.ModerationStyle) (string, string) {
	guidance, ok := styleGuidance[style]
	if !ok {
		guidance = styleGuidance[model.StyleBalanced]
	}
	system := fmt.Sprintf(analyzeSystemPrompt, guidance, formatRules(rules))

	var b strings.Builder
	if len(history) > MaxContextMessages {
		history = history[len(history)-MaxContextMessages:]
	}
	if len(history) > 0 {
		b.WriteString("Recent messages in this channel:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "[%s] %s: %s\n", h.Timestamp.UTC().Format("15:04"), h.Author, h.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "NEW message from %s in #%s:\n%s", msg.AuthorName, msg.ChannelName, msg.Content)
	return system, b.String()
}

func buildPurgePrompt(msgs []model.Message, channelName string, rules []model.Rule) (string, string) {
	system := fmt.Sprintf(purgeSystemPrompt, channelName, formatRules(rules))
	var b strings.Builder
	for i, m := range msgs {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i, m.AuthorName, m.Content)
	}
	return system, b.String()
}

func buildSummaryPrompt(msgs []model.Message, channelName, guildName string) (string, string) {
	system := fmt.Sprintf(summarySystemPrompt, channelName, guildName)
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.UTC().Format("2006-01-02 15:04"), m.AuthorName, m.Content)
	}
	return system, b.String()
}
