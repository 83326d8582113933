// Package llm wraps the Anthropic client behind a small completion interface
// used by the extractor, the intent classifier and the chat service.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/pkg/anthropic"
)

// Default generation limits when a Request leaves MaxTokens unset.
const (
	DefaultMaxTokens     int64 = 1000
	DefaultJSONMaxTokens int64 = 2000
	DefaultModel               = "claude-haiku-4-5"
)

// jsonInstruction is appended to the system prompt of JSON completions.
const jsonInstruction = "Respond with a single valid JSON object and nothing else."

// Request is one prompt. Temperature is always sent as given.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
	// CacheSystem marks the system prompt as a cache breakpoint.
	CacheSystem bool
	// Phase labels the call in cost attribution logs.
	Phase string
}

// Result is the text of a completion plus what it cost.
type Result struct {
	Text  string
	Model string
	Usage anthropic.TokenUsage
}

// Completer runs prompts against a language model.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Result, error)
	// CompleteJSON decodes the model's JSON object answer into out.
	CompleteJSON(ctx context.Context, req Request, out any) (*Result, error)
}

// Client is the Anthropic-backed Completer.
type Client struct {
	api   anthropic.Client
	model string
}

// New returns a Completer calling model through api. An empty model selects
// DefaultModel.
func New(api anthropic.Client, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: api, model: model}
}

// Model returns the model id used for every request.
func (c *Client) Model() string { return c.model }

// Complete sends req and returns the concatenated text answer.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	return c.send(ctx, req)
}

// CompleteJSON sends req with a JSON-only instruction, strips any code fence
// around the answer and unmarshals the object into out.
func (c *Client) CompleteJSON(ctx context.Context, req Request, out any) (*Result, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultJSONMaxTokens
	}
	if req.System == "" {
		req.System = jsonInstruction
	} else {
		req.System = req.System + "\n\n" + jsonInstruction
	}

	res, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(CleanJSON(res.Text)), out); err != nil {
		return res, eris.Wrap(err, "llm: parse json completion")
	}
	return res, nil
}

func (c *Client) send(ctx context.Context, req Request) (*Result, error) {
	temp := req.Temperature
	msg := anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: anthropic.RoleUser, Content: req.Prompt}},
	}
	if req.System != "" {
		if req.CacheSystem {
			msg.System = anthropic.BuildCachedSystemBlocks(req.System)
		} else {
			msg.System = []anthropic.SystemBlock{{Text: req.System}}
		}
	}

	resp, err := c.api.CreateMessage(ctx, msg)
	if err != nil {
		zap.L().Error("llm: completion failed",
			zap.String("model", c.model),
			zap.String("phase", req.Phase),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "llm: complete")
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	resp.Usage.LogCost(model, req.Phase)

	return &Result{Text: resp.Text(), Model: model, Usage: resp.Usage}, nil
}

// CleanJSON extracts a JSON object from text that may be wrapped in markdown
// code fences or prose.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
