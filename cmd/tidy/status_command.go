package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tidy/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and run slot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				status, err := cl.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				version, verr := cl.Version(cmd.Context())
				if verr == nil {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running, version "+version, colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
				}

				switch status.Status {
				case "running":
					msg := fmt.Sprintf("run %d on %s", status.RunID, status.Disk)
					fmt.Fprintln(out, renderStatusLine("Organizer", statusInfo, msg, colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Organizer", statusOK, "idle", colorize))
				}

				if status.LastRunStatus != "" {
					kind := statusOK
					if status.LastRunStatus != "success" {
						kind = statusError
					}
					msg := status.LastRunStatus
					if status.LastRunAt != nil {
						msg = fmt.Sprintf("%s at %s", msg, status.LastRunAt.Local().Format(time.RFC3339))
					}
					fmt.Fprintln(out, renderStatusLine("Last run", kind, msg, colorize))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of formatted text")
	return cmd
}
