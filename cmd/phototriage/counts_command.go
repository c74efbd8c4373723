package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"phototriage/internal/triage"
)

func newCountsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show per-category asset counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				out := cmd.OutOrStdout()

				if auth := engine.Authorization(); !auth.Readable() {
					fmt.Fprintf(out, "Photo source is not readable (%s); counts are zero\n", auth)
				}

				snap, err := engine.Counts(cmd.Context())
				if err != nil {
					return err
				}

				rows := [][]string{
					{"Flagged", strconv.Itoa(snap.Flagged)},
					{"Photos", strconv.Itoa(snap.Photos)},
					{"Screenshots", strconv.Itoa(snap.Screenshots)},
					{"Videos", strconv.Itoa(snap.Videos)},
					{"Total", strconv.Itoa(snap.Total())},
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Category", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
