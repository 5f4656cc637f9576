package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tidy/internal/api"
	"tidy/internal/client"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sourceDir string
	var dryRun bool
	var follow bool

	cmd := &cobra.Command{
		Use:   "run [disk]",
		Short: "Start an organization run for a disk or an ad-hoc source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.RunRequest{Source: strings.TrimSpace(sourceDir), DryRun: dryRun}
			if len(args) > 0 {
				req.Disk = args[0]
			}
			if req.Disk == "" && req.Source == "" {
				return errors.New("name a disk or pass --source")
			}

			return ctx.withClient(func(cl *client.Client) error {
				started, err := cl.StartRun(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %d started\n", started.RunID)
				if !follow {
					return nil
				}
				return cl.FollowRunLog(cmd.Context(), started.RunID, func(line string) {
					fmt.Fprintln(out, line)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "Organize this directory instead of a configured disk")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report moves without performing them")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream the run log until the run completes")
	return cmd
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List run history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				runs, err := cl.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						strconv.FormatInt(run.ID, 10),
						run.DiskName,
						run.Status,
						yesNo(run.DryRun),
						strconv.Itoa(run.FilesMoved),
						run.StartedAt.Local().Format(time.RFC3339),
					})
				}
				table := renderTable(
					[]string{"ID", "Disk", "Status", "Dry run", "Moved", "Started"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print or follow the log of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return ctx.withClient(func(cl *client.Client) error {
				out := cmd.OutOrStdout()
				if follow {
					return cl.FollowRunLog(cmd.Context(), runID, func(line string) {
						fmt.Fprintln(out, line)
					})
				}
				text, err := cl.RunLog(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Fprint(out, text)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream live output instead of the stored log")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
