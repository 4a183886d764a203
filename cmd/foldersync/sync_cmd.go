package main

import (
	"fmt"
	"io"

	"github.com/openmined/foldersync/internal/pairs"
	"github.com/openmined/foldersync/internal/sync"
	"github.com/spf13/cobra"
)

const adhocPairID = "adhoc"

func newSyncCmd(c *cli) *cobra.Command {
	var (
		oneWay bool
		source string
		dest   string
	)

	cmd := &cobra.Command{
		Use:   "sync [pair-id]",
		Short: "Synchronize one configured pair, or every pair",
		Long: `Synchronize one configured pair, or every pair when no id is given.

Two-way passes copy files missing on either side and replace the older copy of a file present
on both sides. One-way passes only copy from the source to the destination. Nothing is ever
deleted.

Every file is synced unless excluded by the "ignore" config patterns or the foldersyncignore
file in the data dir. Set "ignore_defaults" to also skip OS and editor scratch files
(.DS_Store, Thumbs.db, desktop.ini, *.swp, .~lock.*).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := c.cfg.SyncMode()
			if oneWay {
				mode = sync.OneWaySourceToDestination
			}

			return c.withApp(func(a *app) error {
				defer a.flushMetrics()

				out := cmd.OutOrStdout()
				switch {
				case source != "" || dest != "":
					pair := pairs.SyncPairConfig{ID: adhocPairID, SourceRef: source, DestRef: dest}
					result, err := a.manager.Run(cmd.Context(), pair, mode)
					return printPairRun(out, sync.PairRun{Pair: pair, Result: result, Err: err})

				case len(args) == 1:
					pair, err := a.store.Get(args[0])
					if err != nil {
						return err
					}
					result, err := a.manager.Run(cmd.Context(), pair, mode)
					return printPairRun(out, sync.PairRun{Pair: pair, Result: result, Err: err})

				default:
					runs, err := a.manager.RunAll(cmd.Context(), mode)
					if err != nil {
						return err
					}
					if len(runs) == 0 {
						fmt.Fprintln(out, gray.Render("No sync pairs configured. Add one with `foldersync pair add <source> <dest>`."))
						return nil
					}
					for _, run := range runs {
						_ = printPairRun(out, run)
					}
					return printSummary(out, sync.SumRuns(runs))
				}
			})
		},
	}

	cmd.Flags().BoolVar(&oneWay, "one-way", false, "only copy from source to destination")
	cmd.Flags().StringVar(&source, "source", "", "source reference for a one-off sync (path, mem://name or s3://bucket/prefix)")
	cmd.Flags().StringVar(&dest, "dest", "", "destination reference for a one-off sync")
	return cmd
}

// printPairRun prints the status line of one pass and returns an error when it failed.
func printPairRun(w io.Writer, run sync.PairRun) error {
	name := bold.Render(run.Pair.String())

	if run.Err != nil {
		msg := run.Err.Error()
		fmt.Fprintf(w, "%s %s\n  %s\n", red.Render(crossMark), name, red.Render("Sync failed: "+capitalize(msg)))
		return fmt.Errorf("sync %s: %w", run.Pair.ShortID(), run.Err)
	}

	line := sync.StatusLine(run.Result)
	if !run.Result.Success {
		fmt.Fprintf(w, "%s %s\n  %s\n", red.Render(crossMark), name, red.Render(line))
		for _, msg := range run.Result.Errors[1:] {
			fmt.Fprintf(w, "  %s\n", gray.Render(msg))
		}
		return fmt.Errorf("sync %s failed", run.Pair.ShortID())
	}

	fmt.Fprintf(w, "%s %s\n  %s\n", green.Render(checkMark), name, green.Render(line))
	return nil
}

func printSummary(w io.Writer, totals sync.Totals) error {
	if totals.Failed > 0 {
		fmt.Fprintf(w, "\n%s %s\n", red.Render(crossMark), totals.SummaryLine())
		return fmt.Errorf("%d of %d pairs failed", totals.Failed, totals.Pairs)
	}
	fmt.Fprintf(w, "\n%s %s\n", green.Render(checkMark), totals.SummaryLine())
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
