package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/summary"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <id>",
	Short: "Generate a SWOT summary for one business",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initExplorer(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		b, ok := env.Explorer.Get(args[0])
		if !ok {
			return eris.Wrapf(explorer.ErrBusinessNotFound, "summarize: %s", args[0])
		}

		text := summary.New(ctx, cfg).Summarize(ctx, b)
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
