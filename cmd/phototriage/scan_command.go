package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"phototriage/internal/scanner"
	"phototriage/internal/triage"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var restart bool
	var resetFlags bool
	var statusOnly bool
	var stopAfter int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the sensitivity scan over the photo library",
		Long: "Runs the background sensitivity pass in the foreground, printing progress " +
			"until every eligible asset has been classified. An interrupted scan resumes " +
			"where it left off; use --restart to start over and --reset-flags to also " +
			"discard recorded verdicts (required after changing the threshold).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				out := cmd.OutOrStdout()

				if statusOnly {
					progress := engine.ScanProgress()
					fmt.Fprintf(out, "State: %s\n", progress.State)
					if progress.Total > 0 {
						fmt.Fprintf(out, "Progress: %d/%d (%.0f%%), %d flagged\n",
							progress.Processed, progress.Total, progress.Fraction()*100, progress.Flagged)
					}
					fmt.Fprintf(out, "Scan version: %d\n", progress.Version)
					return nil
				}

				runCtx := cmd.Context()
				var err error
				if restart {
					err = engine.RestartScan(runCtx, resetFlags)
				} else {
					err = engine.StartScan(runCtx)
				}
				if err != nil {
					return err
				}

				reportProgress(runCtx, engine, out, stopAfter)
				engine.WaitScan()

				progress := engine.ScanProgress()
				switch progress.State {
				case scanner.StateCompleted:
					fmt.Fprintf(out, "Scan complete: %d assets processed, %d flagged\n",
						progress.Processed, progress.Flagged)
				case scanner.StateInterrupted:
					fmt.Fprintf(out, "Scan interrupted after %d assets; rerun to resume\n",
						progress.Processed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&restart, "restart", false, "Discard scan lifecycle state and start over")
	cmd.Flags().BoolVar(&resetFlags, "reset-flags", false, "Also discard recorded verdicts (implies a full re-evaluation)")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Print scan state without starting a scan")
	cmd.Flags().IntVar(&stopAfter, "stop-after", 0, "Interrupt the scan after N assets (0 scans everything)")
	return cmd
}

// reportProgress prints a progress line roughly once a second while the scan
// runs. Output is line-oriented so it stays readable when redirected. A
// positive stopAfter interrupts the pass once that many assets have been
// processed; the scan resumes from its verdicts on the next run.
func reportProgress(ctx context.Context, engine *triage.Engine, out io.Writer, stopAfter int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for engine.Scanning() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			progress := engine.ScanProgress()
			if progress.Total == 0 {
				continue
			}
			fmt.Fprintf(out, "Scanning: %d/%d (%.0f%%), %d flagged\n",
				progress.Processed, progress.Total, progress.Fraction()*100, progress.Flagged)
			if stopAfter > 0 && progress.Processed >= stopAfter {
				engine.StopScan()
				return
			}
		}
	}
}
