package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tidy/internal/client"
)

func newEmptyDirsCommand(ctx *commandContext) *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "empty-dirs <disk>",
		Short: "List empty directories under a disk, optionally deleting them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				dirs, err := cl.EmptyDirs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(dirs) == 0 {
					fmt.Fprintln(out, "No empty directories found")
					return nil
				}
				for _, dir := range dirs {
					fmt.Fprintln(out, dir)
				}
				if !cleanup {
					return nil
				}
				result, err := cl.CleanupEmptyDirs(cmd.Context(), dirs)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d directories\n", result.Deleted)
				for _, msg := range result.Errors {
					fmt.Fprintln(out, msg)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Delete the listed directories")
	return cmd
}
