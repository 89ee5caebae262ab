package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/ingest"
)

var (
	importGlob     string
	importMode     string
	importNoLocate bool
)

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import CSV, JSON or XLSX business records into the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode, err := ingest.ParseMode(importMode)
		if err != nil {
			return err
		}

		paths, err := importPaths(args, importGlob)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return eris.New("import: no input files (pass paths or --glob)")
		}

		env, err := initExplorer(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		if !importNoLocate {
			var b geo.Boundaries
			env.loadBoundaries(ctx, &b)
		}

		out := cmd.OutOrStdout()
		for i, p := range paths {
			// Later files in one invocation add to the first.
			m := mode
			if i > 0 {
				m = ingest.ModeAppend
			}
			report, err := importOne(cmd, env.Explorer, p, m)
			switch {
			case explorer.IsPersistError(err):
				fmt.Fprintf(out, "%s: %s\n", p, report.StorageFullMessage())
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "%s: %s\n", p, report.Message())
			}
		}
		fmt.Fprintf(out, "%d records in snapshot\n", env.Explorer.Len())
		return nil
	},
}

func importOne(cmd *cobra.Command, ex *explorer.Explorer, path string, mode ingest.Mode) (ingest.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Report{}, eris.Wrapf(err, "import: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	report, err := ex.Import(cmd.Context(), filepath.Base(path), f, mode)
	if err != nil && !explorer.IsPersistError(err) {
		return report, eris.Wrapf(err, "import: %s", path)
	}
	if err != nil {
		zap.L().Warn("import: snapshot not saved", zap.String("path", path), zap.Error(err))
	}
	return report, err
}

// importPaths returns args followed by the sorted matches of pattern.
func importPaths(args []string, pattern string) ([]string, error) {
	paths := append([]string(nil), args...)
	if pattern == "" {
		return paths, nil
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "import: bad glob %q", pattern)
	}
	sort.Strings(matches)
	return append(paths, matches...), nil
}

func init() {
	importCmd.Flags().StringVar(&importGlob, "glob", "", "glob of files to import, e.g. 'data/**/*.csv'")
	importCmd.Flags().StringVar(&importMode, "mode", "append", "append or replace")
	importCmd.Flags().BoolVar(&importNoLocate, "no-locate", false, "skip loading boundaries for county detection")
	rootCmd.AddCommand(importCmd)
}
