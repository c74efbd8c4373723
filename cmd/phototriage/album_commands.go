package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"phototriage/internal/triage"
)

func newAlbumsCommand(ctx *commandContext) *cobra.Command {
	albumsCmd := &cobra.Command{
		Use:   "albums",
		Short: "List albums",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				albums, err := engine.Albums(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(albums) == 0 {
					fmt.Fprintln(out, "No albums")
					return nil
				}
				rows := make([][]string, 0, len(albums))
				for _, album := range albums {
					rows = append(rows, []string{album.ID, album.Title})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Title"}, rows, nil))
				return nil
			})
		},
	}

	albumsCmd.AddCommand(newAlbumCreateCommand(ctx))
	return albumsCmd
}

func newAlbumCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <title>",
		Short: "Create an album",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return ctx.withEngine(func(engine *triage.Engine) error {
				album, err := engine.CreateAlbum(cmd.Context(), title)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created album %s\n", album.ID)
				return nil
			})
		},
	}
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <asset> <album>",
		Short: "File an asset into an album and mark it kept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *triage.Engine) error {
				if err := engine.MoveToAlbum(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s into %s and marked it kept\n", args[0], args[1])
				return nil
			})
		},
	}
}
