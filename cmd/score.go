package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/esg-research/internal/config"
	"github.com/sells-group/esg-research/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score <company>",
	Short: "Show the stored score breakdown for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		status, analysis, err := env.Gate.Check(ctx, args[0])
		if err != nil {
			return err
		}
		if status != model.CacheHit {
			return eris.Errorf("no fresh analysis for %s (%s); run: esg-research analyze %q", args[0], status, args[0])
		}
		return formatScore(cmd.OutOrStdout(), analysis)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
