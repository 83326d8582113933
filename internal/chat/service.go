// Package chat turns free-form messages into analyses, comparisons, answers
// and reports over the stored company analyses.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/llm"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/pipeline"
	"github.com/sells-group/esg-research/internal/store"
)

// Directory lists and deletes stored analyses. *store.Directory satisfies it.
type Directory interface {
	List(ctx context.Context) ([]store.Entry, error)
	Analyses(ctx context.Context) (map[string]*model.Analysis, error)
	Names(ctx context.Context) ([]string, error)
	DeleteCompany(ctx context.Context, name string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Classifier maps a message to an intent.
type Classifier interface {
	Classify(ctx context.Context, message string, analyzed []string) model.Intent
}

// Analyzer produces or reuses one company's analysis.
type Analyzer interface {
	Analyze(ctx context.Context, name string, force bool) (*pipeline.Outcome, error)
}

// Exporter writes a report for one or more analyses and returns the written
// file paths.
type Exporter interface {
	Export(ctx context.Context, analyses []*model.Analysis) ([]string, error)
}

// Service handles chat turns.
type Service struct {
	dir        Directory
	classifier Classifier
	analyzer   Analyzer
	llm        llm.Completer
	exporter   Exporter
}

// NewService wires a chat service.
func NewService(dir Directory, classifier Classifier, analyzer Analyzer, completer llm.Completer, exporter Exporter) *Service {
	return &Service{
		dir:        dir,
		classifier: classifier,
		analyzer:   analyzer,
		llm:        completer,
		exporter:   exporter,
	}
}

// skipsAnalysis lists intents that never trigger analysis of new companies.
var skipsAnalysis = map[model.IntentKind]bool{
	model.IntentDelete:        true,
	model.IntentClear:         true,
	model.IntentListCompanies: true,
}

// Handle processes one user message and returns the assistant messages it
// produced, in order. Blank messages produce nothing.
func (s *Service) Handle(ctx context.Context, sess *Session, text string) ([]Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	sess.turn.Lock()
	defer sess.turn.Unlock()

	sess.add(Message{Role: RoleUser, Content: text})

	names, err := s.dir.Names(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "chat: list analyzed companies")
	}
	intent := s.classifier.Classify(ctx, text, names)
	targets := intent.Targets()

	zap.L().Debug("chat: intent",
		zap.String("session", sess.ID),
		zap.String("intent", string(intent.Kind())),
		zap.Strings("companies", targets.Companies),
		zap.Strings("needs_analysis", targets.NeedsAnalysis),
	)

	var out []Message
	if len(targets.NeedsAnalysis) > 0 && !skipsAnalysis[intent.Kind()] {
		out = append(out, sess.add(Message{
			Role:    RoleAssistant,
			Content: fmt.Sprintf("Let me analyze %s first...", strings.Join(targets.NeedsAnalysis, ", ")),
		}))
		for _, name := range targets.NeedsAnalysis {
			if err := ctx.Err(); err != nil {
				return out, eris.Wrap(err, "chat: analyze")
			}
			out = append(out, sess.add(Message{Role: RoleAssistant, Content: s.analyze(ctx, name)}))
		}
	}

	if _, ok := intent.(model.ClearIntent); ok {
		if _, err := s.dir.DeleteAll(ctx); err != nil {
			return out, eris.Wrap(err, "chat: clear")
		}
		sess.reset()
		return append(out, sess.Messages()...), nil
	}

	reply, err := s.dispatch(ctx, intent)
	if err != nil {
		return out, err
	}
	if reply.Content == "" {
		return out, nil
	}
	reply.Role = RoleAssistant
	reply.Content = strings.TrimSpace(reply.Content)
	return append(out, sess.add(reply)), nil
}

// analyze runs one analysis and renders its status line.
func (s *Service) analyze(ctx context.Context, name string) string {
	o, err := s.analyzer.Analyze(ctx, name, false)
	if err != nil {
		if !pipeline.IsNoSources(err) {
			zap.L().Error("chat: analysis failed", zap.String("company", name), zap.Error(err))
		}
		return fmt.Sprintf("❌ Couldn't find information about %s", name)
	}
	line := fmt.Sprintf("✅ **%s** analyzed! Score: %.1f/100 (%s)", name, o.Score(), o.Level())
	if o.Cached {
		line += " (cached)"
	}
	return line
}

func (s *Service) dispatch(ctx context.Context, intent model.Intent) (Message, error) {
	var (
		content string
		files   []string
		err     error
	)
	switch in := intent.(type) {
	case model.AnalyzeIntent:
		// The analysis status lines are the whole reply.
	case model.CompareIntent:
		content, err = s.compare(ctx, in.Companies)
	case model.QuestionIntent:
		content, err = s.answer(ctx, in.First(), in.Question)
	case model.ShowScoreIntent:
		content, err = s.showScore(ctx, in.First())
	case model.ShowDetailsIntent:
		content, err = s.showDetails(ctx, in.First())
	case model.ShowCategoryIntent:
		content, err = s.showCategory(ctx, in.First(), in.Category)
	case model.ShowStrengthsWeaknessesIntent:
		content, err = s.showStrengthsWeaknesses(ctx, in.First())
	case model.ListCompaniesIntent:
		content, err = s.listCompanies(ctx)
	case model.DeleteIntent:
		content, err = s.deleteCompanies(ctx, in.Companies)
	case model.DownloadIntent:
		content, files, err = s.download(ctx, in.Companies)
	default:
		return Message{}, eris.Errorf("chat: unhandled intent %q", intent.Kind())
	}
	if err != nil {
		return Message{}, eris.Wrapf(err, "chat: %s", intent.Kind())
	}
	return Message{Content: content, Files: files}, nil
}

// lookup finds name among analyses, falling back to a case-insensitive match.
func lookup(analyses map[string]*model.Analysis, name string) (*model.Analysis, bool) {
	if a, ok := analyses[name]; ok {
		return a, true
	}
	for k, a := range analyses {
		if strings.EqualFold(k, name) {
			return a, true
		}
	}
	return nil, false
}
