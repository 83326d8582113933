package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/esg-research/internal/chat"
	"github.com/sells-group/esg-research/internal/config"
	"github.com/sells-group/esg-research/internal/pipeline"
)

var (
	analyzeForce       bool
	analyzeJSON        bool
	analyzeConcurrency int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <company> [company...]",
	Short: "Research, extract and score one or more companies",
	Long: "Runs the full analysis for each named company. A fresh stored analysis is reused " +
		"unless --force is set. Exits non-zero when any company fails.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, config.ModeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		results := runAnalyses(ctx, env.Analyzer, args, analyzeForce, analyzeConcurrency)
		if err := formatAnalyzeResults(cmd.OutOrStdout(), results, analyzeJSON); err != nil {
			return err
		}

		var failed []string
		for _, r := range results {
			if r.Err != nil {
				failed = append(failed, r.Company)
			}
		}
		if len(failed) > 0 {
			return eris.Errorf("analysis failed for %d of %d companies: %s",
				len(failed), len(results), strings.Join(failed, ", "))
		}
		return nil
	},
}

// runAnalyses analyzes names with at most concurrency in flight and returns
// results in input order. Blank and repeated names are skipped.
func runAnalyses(ctx context.Context, a chat.Analyzer, names []string, force bool, concurrency int) []analyzeResult {
	if concurrency < 1 {
		concurrency = 1
	}

	seen := make(map[string]bool, len(names))
	var unique []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, n)
	}

	results := make([]analyzeResult, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range unique {
		g.Go(func() error {
			out, err := a.Analyze(gctx, name, force)
			if err != nil && !pipeline.IsNoSources(err) {
				zap.L().Error("analyze: company failed", zap.String("company", name), zap.Error(err))
			}
			results[i] = analyzeResult{Company: name, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "re-run the analysis even when a fresh one is stored")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print results as JSON")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 1, "companies to analyze in parallel")
	rootCmd.AddCommand(analyzeCmd)
}

