package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"phototriage/internal/triage"
)

func newKeepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keep <asset>...",
		Short: "Mark assets as kept so they never resurface in triage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				for _, id := range args {
					if err := engine.Keep(cmd.Context(), id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Kept %d assets\n", len(args))
				return nil
			})
		},
	}
}

func newDiscardCommand(ctx *commandContext) *cobra.Command {
	var flushNow bool

	cmd := &cobra.Command{
		Use:   "discard <asset>...",
		Short: "Queue assets for deletion",
		Long: "Queues assets for deletion and hides them immediately. Nothing is deleted " +
			"until the queue is flushed, either automatically when it reaches the " +
			"configured batch size or explicitly with --flush-now or the flush command.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					flushed, err := engine.EnqueueDeletion(cmd.Context(), id)
					if err != nil {
						return err
					}
					if flushed != nil {
						fmt.Fprintf(out, "Batch flushed: %d deleted, %d failed\n",
							len(flushed.Removed), len(flushed.Failed))
					}
				}

				if flushNow {
					result, err := engine.FlushDeletions(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Flushed: %d deleted, %d failed\n",
						len(result.Removed), len(result.Failed))
					return nil
				}

				if pending := engine.PendingDeletions(); len(pending) > 0 {
					fmt.Fprintf(out, "%d assets queued for deletion\n", len(pending))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&flushNow, "flush-now", false, "Flush the deletion queue after queueing")
	return cmd
}

func newFlushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Delete every queued asset now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				result, err := engine.FlushDeletions(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(result.Removed) == 0 && len(result.Failed) == 0 {
					fmt.Fprintln(out, "Deletion queue is empty")
					return nil
				}
				fmt.Fprintf(out, "Flushed: %d deleted, %d failed\n",
					len(result.Removed), len(result.Failed))
				for _, id := range result.Failed {
					fmt.Fprintf(out, "  failed: %s (still queued)\n", id)
				}
				return nil
			})
		},
	}
}

func newClearQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-queue",
		Short: "Empty the deletion queue without deleting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				restored := engine.ClearDeletions()
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d assets to their categories\n", restored)
				return nil
			})
		},
	}
}
