package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/foldersync/internal/pairs"
	"github.com/spf13/cobra"
)

func newPairCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Manage the configured folder pairs",
	}
	cmd.AddCommand(
		newPairAddCmd(c),
		newPairListCmd(c),
		newPairSetCmd(c),
		newPairRemoveCmd(c),
	)
	return cmd
}

func newPairAddCmd(c *cli) *cobra.Command {
	var sourceLabel, destLabel string

	cmd := &cobra.Command{
		Use:   "add <source> <dest>",
		Short: "Add a folder pair",
		Long: `Add a folder pair. References are local paths (optionally file://), mem://<name> for
in-memory trees or s3://<bucket>/<prefix>.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair := pairs.SyncPairConfig{
				SourceRef:   args[0],
				SourceLabel: sourceLabel,
				DestRef:     args[1],
				DestLabel:   destLabel,
			}
			if err := pair.Validate(); err != nil {
				return err
			}

			return c.withApp(func(a *app) error {
				added, err := a.store.Add(pair)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Added pair %s: %s\n", green.Render(checkMark), cyan.Render(added.ShortID()), added)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceLabel, "source-label", "", "display name of the source")
	cmd.Flags().StringVar(&destLabel, "dest-label", "", "display name of the destination")
	return cmd
}

func newPairListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the folder pairs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				list, err := a.store.Load()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, gray.Render("No sync pairs configured."))
					return nil
				}
				for _, p := range list {
					fmt.Fprintf(out, "%s  %s\n", cyan.Render(p.ShortID()), bold.Render(p.String()))
					fmt.Fprintf(out, "          %s %s\n", gray.Render("source"), p.SourceRef)
					fmt.Fprintf(out, "          %s %s\n", gray.Render("dest  "), p.DestRef)
				}
				return nil
			})
		},
	}
}

func newPairSetCmd(c *cli) *cobra.Command {
	var source, sourceLabel, dest, destLabel string

	cmd := &cobra.Command{
		Use:   "set <pair-id>",
		Short: "Change the source or destination of a folder pair",
		Long: `Change the source or destination of a folder pair. Moving a side to a new reference
drops its old label unless a new one is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("source") && !flags.Changed("source-label") &&
				!flags.Changed("dest") && !flags.Changed("dest-label") {
				return errors.New("nothing to change, pass --source, --dest or a label")
			}

			return c.withApp(func(a *app) error {
				pair, err := a.store.Get(args[0])
				if err != nil {
					return err
				}

				if flags.Changed("source") {
					pair.SourceRef = source
					pair.SourceLabel = ""
				}
				if flags.Changed("source-label") {
					pair.SourceLabel = sourceLabel
				}
				if flags.Changed("dest") {
					pair.DestRef = dest
					pair.DestLabel = ""
				}
				if flags.Changed("dest-label") {
					pair.DestLabel = destLabel
				}
				if err := pair.Validate(); err != nil {
					return err
				}

				if err := a.store.Update(pair); err != nil {
					return err
				}
				slog.Info("sync pair updated", "id", pair.ID, "source", pair.SourceRef, "dest", pair.DestRef)
				fmt.Fprintf(cmd.OutOrStdout(), "%s Updated pair %s: %s\n", green.Render(checkMark), cyan.Render(pair.ShortID()), pair)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "new source reference")
	cmd.Flags().StringVar(&sourceLabel, "source-label", "", "display name of the source")
	cmd.Flags().StringVar(&dest, "dest", "", "new destination reference")
	cmd.Flags().StringVar(&destLabel, "dest-label", "", "display name of the destination")
	return cmd
}

func newPairRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <pair-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a folder pair and its history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				removed, err := a.store.Remove(args[0])
				if err != nil {
					return err
				}
				if err := a.journal.DeletePair(removed.ID); err != nil {
					slog.Warn("pair remove", "id", removed.ID, "error", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Removed pair %s: %s\n", green.Render(checkMark), cyan.Render(removed.ShortID()), removed)
				return nil
			})
		},
	}
}
