// Package intent classifies chat messages into typed intents.
package intent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/llm"
	"github.com/sells-group/esg-research/internal/model"
)

// Temperature keeps classification stable across retries of the same message.
const Temperature = 0.1

// Classifier maps a message to a model.Intent with a language model.
type Classifier struct {
	llm llm.Completer
}

// New returns a Classifier using c.
func New(c llm.Completer) *Classifier {
	return &Classifier{llm: c}
}

type response struct {
	Intent        string   `json:"intent"`
	Companies     []string `json:"companies"`
	Question      *string  `json:"question"`
	NeedsAnalysis []string `json:"needs_analysis"`
}

// Classify returns the intent for message given the companies already
// analyzed. Failures and unknown intents fall back to analyzing the trimmed
// message as a company name.
func (c *Classifier) Classify(ctx context.Context, message string, analyzed []string) model.Intent {
	log := zap.L().With(zap.String("message", preview(message, 50)))

	var out response
	_, err := c.llm.CompleteJSON(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      Prompt(message, analyzed),
		Temperature: Temperature,
		Phase:       "classify",
	}, &out)
	if err != nil {
		log.Error("intent: classification failed", zap.Error(err))
		return Fallback(message)
	}

	m := model.Mentions{
		Companies:     clean(out.Companies),
		NeedsAnalysis: notAnalyzed(clean(out.NeedsAnalysis), analyzed),
	}
	question := ""
	if out.Question != nil {
		question = strings.TrimSpace(*out.Question)
	}

	in, ok := model.NewIntent(model.IntentKind(strings.TrimSpace(out.Intent)), m, question)
	if !ok {
		log.Warn("intent: unknown intent", zap.String("intent", out.Intent))
		return Fallback(message)
	}
	if q, isQuestion := in.(model.QuestionIntent); isQuestion && q.Question == "" {
		q.Question = strings.TrimSpace(message)
		in = q
	}

	log.Info("intent: classified",
		zap.String("intent", string(in.Kind())),
		zap.Strings("companies", m.Companies),
		zap.Strings("needs_analysis", m.NeedsAnalysis),
	)
	return in
}

// Fallback treats the whole message as a company to analyze.
func Fallback(message string) model.Intent {
	name := strings.TrimSpace(message)
	return model.AnalyzeIntent{Mentions: model.Mentions{
		Companies:     []string{name},
		NeedsAnalysis: []string{name},
	}}
}

// clean trims names and drops blanks and case-insensitive duplicates.
func clean(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// notAnalyzed removes names already present in analyzed.
func notAnalyzed(names, analyzed []string) []string {
	known := make(map[string]bool, len(analyzed))
	for _, a := range analyzed {
		known[strings.ToLower(strings.TrimSpace(a))] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !known[strings.ToLower(n)] {
			out = append(out, n)
		}
	}
	return out
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
