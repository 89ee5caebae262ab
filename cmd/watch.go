package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/ingest"
	"github.com/sells-group/bizmap/internal/watch"
)

var (
	watchDir      string
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import record files as they appear in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if watchDir != "" {
			cfg.Watch.Dir = watchDir
		}

		env, err := initExplorer(ctx, "watch")
		if err != nil {
			return err
		}
		defer env.Close()

		var b geo.Boundaries
		env.loadBoundaries(ctx, &b)

		out := cmd.OutOrStdout()
		w := watch.New(env.Explorer, watch.Options{
			Dir:      cfg.Watch.Dir,
			Pattern:  cfg.Watch.Pattern,
			Mode:     ingest.Mode(cfg.Watch.Mode),
			Existing: watchExisting,
			OnResult: func(r watch.Result) {
				switch {
				case explorer.IsPersistError(r.Err):
					fmt.Fprintf(out, "%s: %s\n", r.Path, r.Report.StorageFullMessage())
				case r.Err != nil:
					fmt.Fprintf(out, "%s: %v\n", r.Path, r.Err)
				default:
					fmt.Fprintf(out, "%s: %s\n", r.Path, r.Report.Message())
				}
			},
		})

		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (default from config)")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "import matching files already in the directory")
	rootCmd.AddCommand(watchCmd)
}
