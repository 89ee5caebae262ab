package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bizmap/internal/estimate"
)

var (
	totalsCounty string
	totalsZip    string
)

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Print employee and revenue totals for the state, a county or a zip",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := totalsScope(totalsCounty, totalsZip)
		if err != nil {
			return err
		}

		env, err := initExplorer(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		t := env.Explorer.Totals(scope)
		label := "North Carolina"
		if scope.Value != "" {
			label = fmt.Sprintf("%s %s", scope.Kind, scope.Value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d employees, %s revenue\n",
			label, t.Employees, estimate.FormatAmount(t.Revenue))
		return nil
	},
}

func totalsScope(county, zip string) (estimate.Scope, error) {
	switch {
	case county != "" && zip != "":
		return estimate.Scope{}, eris.New("totals: pass --county or --zip, not both")
	case county != "":
		return estimate.CountyScope(county), nil
	case zip != "":
		return estimate.ZipScope(zip), nil
	}
	return estimate.StateScope(), nil
}

func init() {
	totalsCmd.Flags().StringVar(&totalsCounty, "county", "", "county name")
	totalsCmd.Flags().StringVar(&totalsZip, "zip", "", "zip code")
	rootCmd.AddCommand(totalsCmd)
}
