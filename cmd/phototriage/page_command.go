package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"phototriage/internal/library"
	"phototriage/internal/triage"
)

func newPageCommand(ctx *commandContext) *cobra.Command {
	var pageIndex int

	cmd := &cobra.Command{
		Use:   "page <category>",
		Short: "List one page of a category (photos, screenshots, videos, flagged)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := library.ParseCategory(args[0])
			if err != nil {
				return err
			}

			return ctx.withEngine(func(engine *triage.Engine) error {
				token := engine.SelectCategory(category)
				page, err := engine.LoadPage(cmd.Context(), token, pageIndex)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(page.Items) == 0 {
					if page.Exhausted {
						fmt.Fprintf(out, "No assets in %s at page %d\n", category, pageIndex)
					} else {
						fmt.Fprintf(out, "No assets delivered for page %d; try page %d\n", pageIndex, pageIndex+1)
					}
					return nil
				}

				rows := make([][]string, 0, len(page.Items))
				for _, item := range page.Items {
					rows = append(rows, []string{
						item.Ref.ID,
						string(item.Ref.Kind),
						item.Ref.CreatedAt.Format(time.DateTime),
						strconv.Itoa(item.Image.Bounds().Dx()) + "x" + strconv.Itoa(item.Image.Bounds().Dy()),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Asset", "Kind", "Created", "Preview"},
					rows,
					nil,
				))
				if !page.Exhausted {
					fmt.Fprintf(out, "More assets available; rerun with --page %d\n", pageIndex+1)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&pageIndex, "page", 0, "Zero-based page index")
	return cmd
}
