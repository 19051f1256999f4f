package classifier

import (
	"context"
	"discord-moderator/model"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 1024
	// purge and summary batches are larger than a single message
	batchTimeoutFactor = 2
)

var errNotConfigured = errors.New("classifier is not configured (missing API key)")

type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Config configures the remote classification service.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client asks a chat-completions model for structured verdicts. None of its
// methods return errors: failures degrade to well-formed "not flagged" results.
type Client struct {
	completions chatCompletions
	model       string
	timeout     time.Duration
}

func New(cfg Config) *Client {
	c := &Client{model: cfg.Model, timeout: cfg.Timeout}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return c
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := openai.NewClient(opts...)
	c.completions = &client.Chat.Completions
	return c
}

func (c *Client) complete(ctx context.Context, timeout time.Duration, system, user string) (string, error) {
	if c.completions == nil {
		return "", errNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	completion, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(defaultMaxTokens),
		Temperature:         openai.Float(0.1),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("classification timed out after %s: %w", timeout, err)
		}
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", errors.New("empty choices in response")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty content in response")
	}
	return content, nil
}

// Analyze classifies one message against the enabled rules.
func (c *Client) Analyze(ctx context.Context, msg model.Message, history []model.ContextEntry, rules []model.Rule, style model.ModerationStyle) model.Verdict {
	system, user := buildAnalyzePrompt(msg, history, rules, style)
	resp, err := c.complete(ctx, c.timeout, system, user)
	if err != nil {
		requestsTotal.WithLabelValues("analyze", "error").Inc()
		log.Printf("[Classifier] Analysis failed for message %s: %v", msg.ID, err)
		return model.SafeVerdict(fmt.Sprintf("AI analysis failed: %v", err))
	}
	verdict, err := ParseVerdict(resp)
	if err != nil {
		requestsTotal.WithLabelValues("analyze", "malformed").Inc()
		log.Printf("[Classifier] Malformed verdict for message %s: %v", msg.ID, err)
		return model.SafeVerdict(fmt.Sprintf("AI analysis returned a malformed response: %v", err))
	}
	requestsTotal.WithLabelValues("analyze", "ok").Inc()
	return verdict
}

// AnalyzeForPurge reviews a batch of messages retroactively.
func (c *Client) AnalyzeForPurge(ctx context.Context, msgs []model.Message, channelName string, rules []model.Rule) model.PurgeResult {
	empty := func(summary string) model.PurgeResult {
		return model.PurgeResult{FlaggedIndexes: []int{}, Reasons: map[int]string{}, Summary: summary}
	}
	if len(msgs) == 0 {
		return empty("No messages to analyze.")
	}

	system, user := buildPurgePrompt(msgs, channelName, rules)
	resp, err := c.complete(ctx, c.timeout*batchTimeoutFactor, system, user)
	if err != nil {
		requestsTotal.WithLabelValues("purge", "error").Inc()
		log.Printf("[Classifier] Purge analysis failed for #%s: %v", channelName, err)
		return empty(fmt.Sprintf("Analysis failed: %v", err))
	}
	obj, err := ExtractJSONObject(resp)
	if err == nil {
		var fields map[string]any
		if err = json.Unmarshal([]byte(obj), &fields); err == nil {
			requestsTotal.WithLabelValues("purge", "ok").Inc()
			return normalizePurge(fields, len(msgs))
		}
	}
	requestsTotal.WithLabelValues("purge", "malformed").Inc()
	log.Printf("[Classifier] Malformed purge response for #%s: %v", channelName, err)
	return empty(fmt.Sprintf("Analysis failed: malformed response: %v", err))
}

// Summarize produces a digest of a batch of channel messages.
func (c *Client) Summarize(ctx context.Context, msgs []model.Message, channelName, guildName string) model.Summary {
	out := model.Summary{MessageCount: len(msgs), Timestamp: time.Now()}
	if len(msgs) == 0 {
		out.Text = "No messages to summarize."
		return out
	}

	system, user := buildSummaryPrompt(msgs, channelName, guildName)
	resp, err := c.complete(ctx, c.timeout*batchTimeoutFactor, system, user)
	if err != nil {
		requestsTotal.WithLabelValues("summarize", "error").Inc()
		log.Printf("[Classifier] Summary failed for #%s: %v", channelName, err)
		out.Text = fmt.Sprintf("Failed to generate summary: %v", err)
		return out
	}
	requestsTotal.WithLabelValues("summarize", "ok").Inc()
	out.Text = resp
	return out
}
