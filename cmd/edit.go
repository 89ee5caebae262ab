package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/model"
)

var (
	editSet       []string
	editAddTag    []string
	editRemoveTag []string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit fields and tags of one business",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]

		env, err := initExplorer(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		b, ok := env.Explorer.Get(id)
		if !ok {
			return eris.Wrapf(explorer.ErrBusinessNotFound, "edit: %s", id)
		}

		if len(editSet) > 0 {
			b, err = env.Explorer.Edit(ctx, id, func(b *model.Business) error {
				for _, kv := range editSet {
					if err := applyField(b, kv); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		for _, t := range editAddTag {
			if b, err = env.Explorer.AddTag(ctx, id, t); err != nil {
				return err
			}
		}
		for _, t := range editRemoveTag {
			if b, err = env.Explorer.RemoveTag(ctx, id, t); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s [%s]\n", b.ID, b.Name, strings.Join(b.Tags, ", "))
		return nil
	},
}

// applyField sets one field from a "name=value" pair. Names match the
// record's JSON keys.
func applyField(b *model.Business, kv string) error {
	name, value, ok := strings.Cut(kv, "=")
	if !ok {
		return eris.Errorf("edit: expected field=value, got %q", kv)
	}
	name = strings.TrimSpace(name)

	switch name {
	case "name":
		b.Name = value
	case "address":
		b.Address = value
	case "city":
		b.City = value
	case "county":
		b.County = value
	case "state":
		b.State = value
	case "zip":
		b.Zip = value
	case "naicsCode":
		b.NAICSCode = value
	case "naicsDescription":
		b.NAICSDescription = value
	case "sicCode":
		b.SICCode = value
	case "revenue":
		b.Revenue = value
	case "phone":
		b.Phone = value
	case "website":
		b.Website = value
	case "contactName":
		b.ContactName = value
	case "contactTitle":
		b.ContactTitle = value
	case "yearEstablished":
		b.YearEstablished = value
	case "sourceUrl":
		b.SourceURL = value
	case "employees":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return eris.Wrapf(err, "edit: employees %q", value)
		}
		if n < 0 {
			return eris.Errorf("edit: employees %d must not be negative", n)
		}
		b.Employees = n
	case "lat", "lng":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return eris.Wrapf(err, "edit: %s %q", name, value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return eris.Errorf("edit: %s %q must be a finite number", name, value)
		}
		if name == "lat" {
			b.Lat = f
		} else {
			b.Lng = f
		}
	default:
		return eris.Errorf("edit: unknown field %q", name)
	}
	return nil
}

func init() {
	editCmd.Flags().StringArrayVar(&editSet, "set", nil, "field=value (repeatable)")
	editCmd.Flags().StringArrayVar(&editAddTag, "add-tag", nil, "tag to add (repeatable)")
	editCmd.Flags().StringArrayVar(&editRemoveTag, "remove-tag", nil, "tag to remove (repeatable)")
	rootCmd.AddCommand(editCmd)
}
