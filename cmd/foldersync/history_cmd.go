package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/openmined/foldersync/internal/sync"
	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [pair-id]",
		Short: "Show recent sync passes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairID := ""
			if len(args) == 1 {
				pairID = args[0]
			}

			return c.withApp(func(a *app) error {
				runs, err := a.manager.History(pairID, limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, gray.Render("No sync passes recorded."))
					return nil
				}
				for _, run := range runs {
					mark := green.Render(checkMark)
					if !run.Result.Success {
						mark = red.Render(crossMark)
					}
					fmt.Fprintf(out, "%s %-14s %-8s %-7s %s %s\n",
						mark,
						humanize.Time(run.StartedAt),
						shortID(run.PairID),
						run.Mode,
						sync.StatusLine(run.Result),
						gray.Render("in "+run.Duration.String()),
					)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of passes to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
