package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tidy/internal/client"
	"tidy/internal/daemon"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show CLI and daemon versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tidy %s\n", daemon.Version)
			err := ctx.withClient(func(cl *client.Client) error {
				version, err := cl.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tidyd %s\n", version)
				return nil
			})
			if err != nil {
				fmt.Fprintln(out, "tidyd not reachable")
			}
			return nil
		},
	}
}
