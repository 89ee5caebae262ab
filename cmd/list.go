package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/bizmap/internal/model"
)

var (
	listQuery string
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List businesses, optionally filtered (prefix the query with # to match tags only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initExplorer(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		records := env.Explorer.SetFilter(listQuery)
		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		return writeTable(cmd.OutOrStdout(), records)
	},
}

func writeTable(w io.Writer, records []model.Business) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOUNTY\tZIP\tEMPLOYEES\tREVENUE\tTAGS")
	for _, b := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, b.Name, b.County, b.Zip, b.Employees, b.Revenue, strings.Join(b.Tags, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d records\n", len(records))
	return err
}

func init() {
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "filter by name, NAICS description or tag")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print records as JSON")
	rootCmd.AddCommand(listCmd)
}
