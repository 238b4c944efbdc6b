package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// TaskSummary is the minimal task info sent to Claude for dependency inference.
type TaskSummary struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Duration       int    `json:"duration"`
	PredecessorIDs []int  `json:"predecessor_ids,omitempty"`
}

// Edge is a single inferred predecessor relationship.
type Edge struct {
	TaskID        int    `json:"task_id"`        // task that waits
	PredecessorID int    `json:"predecessor_id"` // task that must finish first
	Reason        string `json:"reason"`
}

// InferResult holds the full response from Claude.
type InferResult struct {
	Edges   []Edge `json:"edges"`
	Summary string `json:"summary"`
}

// messageSender is the part of the SDK's message service the client uses.
type messageSender interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client wraps the Anthropic SDK for Claude API calls.
type Client struct {
	messages   messageSender
	model      anthropic.Model
	maxTokens  int64
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// Options configures a Client. Zero values take defaults.
type Options struct {
	APIKey     string // defaults to ANTHROPIC_API_KEY
	Model      string
	MaxTokens  int
	MaxRetries int
	Logger     *slog.Logger
}

// NewClient creates a Claude client.
func NewClient(opts Options) (*Client, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return newClient(&inner.Messages, opts), nil
}

func newClient(messages messageSender, opts Options) *Client {
	c := &Client{
		messages:   messages,
		model:      anthropic.Model(DefaultModel),
		maxTokens:  4096,
		maxRetries: 3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     opts.Logger,
	}
	if opts.Model != "" {
		c.model = anthropic.Model(opts.Model)
	}
	if opts.MaxTokens > 0 {
		c.maxTokens = int64(opts.MaxTokens)
	}
	if opts.MaxRetries > 0 {
		c.maxRetries = uint64(opts.MaxRetries)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

const inferPredecessorsPrompt = `You are an expert project planner. Given a list of tasks from a project schedule, infer which tasks must finish before others can start.

Rules:
- Only add a predecessor when there is a strong causal reason (task B cannot start until task A is complete).
- Prefer fewer edges — do not add transitive or speculative dependencies.
- Keep the predecessors a task already lists; only add missing ones.
- Do not create cycles.
- Only use task IDs from the provided list.
- A task cannot be its own predecessor.

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"task_id": <task that waits>, "predecessor_id": <task that must finish first>, "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the dependency structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the tasks:
`

// buildPrompt constructs the full prompt for predecessor inference.
func buildPrompt(tasks []TaskSummary) (string, error) {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return inferPredecessorsPrompt + string(data), nil
}

// InferPredecessors asks Claude which tasks should precede which.
// The returned edges are unvalidated; pass them through ValidateEdges.
func (c *Client) InferPredecessors(ctx context.Context, tasks []TaskSummary) (*InferResult, error) {
	prompt, err := buildPrompt(tasks)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, err
	}

	return parseInferResult(text)
}

// ParseInferResult decodes an edge list as returned by Claude, tolerating
// markdown fences. It is also used for edge files saved from earlier runs.
func ParseInferResult(data []byte) (*InferResult, error) {
	return parseInferResult(string(data))
}

func parseInferResult(text string) (*InferResult, error) {
	text = stripJSONFences(text)

	var result InferResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}
	return &result, nil
}

const explainSchedulePrompt = `You are a project manager explaining a critical path schedule to a stakeholder.

You will receive the schedule as a table: each task with its duration, early and late start/finish, slack and whether it is critical, followed by the project finish and the critical path.

Produce a concise narrative covering:
- Which chain of tasks determines the finish and why.
- Which tasks have the most slack and can safely slip.
- Any risks, such as near-critical tasks with very little slack.

Keep it short: a few sentences per point. Do not repeat the table.
`

// ExplainSchedule sends a rendered schedule to Claude and returns a
// human-readable narrative of what drives the project finish.
func (c *Client) ExplainSchedule(ctx context.Context, schedule string) (string, error) {
	text, err := c.complete(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: explainSchedulePrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(schedule)),
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// complete sends one message request, retrying transient failures with
// exponential backoff, and returns the concatenated text blocks.
func (c *Client) complete(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	var resp *anthropic.Message
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		resp, err = c.messages.New(ctx, params)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("Claude API call failed, retrying.", "attempt", attempt, "error", err)
		return err
	}

	b := backoff.WithMaxRetries(c.newBackOff(), c.maxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	c.logger.Debug("Claude API call complete.", "attempts", attempt, "chars", len(text))
	return text, nil
}

// retryable reports whether err is worth another attempt: rate limits,
// server errors and anything that never reached the API.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

// stripJSONFences removes markdown code fences that Claude sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	// Remove ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		// Strip opening fence line
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
