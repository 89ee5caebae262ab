package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the snapshot to the seed records",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initExplorer(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Explorer.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot cleared, %d seed records remain\n", env.Explorer.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
