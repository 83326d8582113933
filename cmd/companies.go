package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/esg-research/internal/config"
	"github.com/sells-group/esg-research/internal/store"
)

var (
	companiesFormat string
	companiesYes    bool
)

var companiesCmd = &cobra.Command{
	Use:     "companies",
	Aliases: []string{"company"},
	Short:   "List and manage analyzed companies",
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyzed companies, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Directory.List(ctx)
		if err != nil {
			return err
		}
		return formatCompanies(cmd.OutOrStdout(), entries, companiesFormat)
	},
}

var companiesDeleteCmd = &cobra.Command{
	Use:   "delete <company> [company...]",
	Short: "Delete companies and all their stored data",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Directory.List(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var missing []string
		for _, name := range args {
			e, ok := findEntry(entries, name)
			if !ok {
				missing = append(missing, name)
				continue
			}
			if _, err := env.Directory.DeleteCompany(ctx, e.Company.Name); err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %s\n", e.Company.Name) //nolint:errcheck
		}
		if len(missing) > 0 {
			return eris.Errorf("not found: %s", strings.Join(missing, ", "))
		}
		return nil
	},
}

var companiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !companiesYes {
			fmt.Fprint(cmd.OutOrStdout(), "Delete ALL stored companies? [y/N] ") //nolint:errcheck
			if !confirmed(bufio.NewReader(cmd.InOrStdin())) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.") //nolint:errcheck
				return nil
			}
		}

		env, err := initApp(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Directory.DeleteAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d companies.\n", n) //nolint:errcheck
		return nil
	},
}

// findEntry resolves name against entries, preferring an exact match over a
// case-insensitive one.
func findEntry(entries []store.Entry, name string) (store.Entry, bool) {
	name = strings.TrimSpace(name)
	for _, e := range entries {
		if e.Company.Name == name {
			return e, true
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Company.Name, name) {
			return e, true
		}
	}
	return store.Entry{}, false
}

func confirmed(r *bufio.Reader) bool {
	line, _ := r.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	companiesListCmd.Flags().StringVar(&companiesFormat, "format", formatTable, "output format: table, json or yaml")
	companiesClearCmd.Flags().BoolVarP(&companiesYes, "yes", "y", false, "skip the confirmation prompt")

	companiesCmd.AddCommand(companiesListCmd, companiesDeleteCmd, companiesClearCmd)
	rootCmd.AddCommand(companiesCmd)
}
