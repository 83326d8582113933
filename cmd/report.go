package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/esg-research/internal/config"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/report"
)

var (
	reportFormats []string
	reportOut     string
)

var reportCmd = &cobra.Command{
	Use:   "report <company> [company...]",
	Short: "Export a sustainability report, or a comparison for several companies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		formats, err := parseFormats(reportFormats)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Directory.List(ctx)
		if err != nil {
			return err
		}
		var (
			analyses []*model.Analysis
			missing  []string
		)
		for _, name := range args {
			e, ok := findEntry(entries, name)
			if !ok || e.Analysis == nil {
				missing = append(missing, name)
				continue
			}
			analyses = append(analyses, e.Analysis)
		}
		if len(missing) > 0 {
			return eris.Errorf("no fresh analysis for: %v; run analyze first", missing)
		}

		dir := reportOut
		if dir == "" {
			dir = cfg.Report.OutputDir
		}
		paths, err := report.NewExporter(env.Renderer, dir, formats...).Export(ctx, analyses)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p) //nolint:errcheck
		}
		return nil
	},
}

func parseFormats(names []string) ([]report.Format, error) {
	var out []report.Format
	for _, n := range names {
		f, err := report.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func init() {
	reportCmd.Flags().StringSliceVar(&reportFormats, "format", []string{"md", "xlsx", "png"}, "report formats to write")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output directory (default report.output_dir)")
	rootCmd.AddCommand(reportCmd)
}
