package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tidy/internal/api"
	"tidy/internal/client"
)

func newDisksCommand(ctx *commandContext) *cobra.Command {
	disksCmd := &cobra.Command{
		Use:   "disks",
		Short: "Manage configured disks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisksList(cmd, ctx, false)
		},
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List disks with filesystem usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisksList(cmd, ctx, listJSON)
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit JSON instead of a table")

	disksCmd.AddCommand(listCmd)
	disksCmd.AddCommand(newDisksAddCommand(ctx))
	disksCmd.AddCommand(newDisksRemoveCommand(ctx))
	return disksCmd
}

func runDisksList(cmd *cobra.Command, ctx *commandContext, asJSON bool) error {
	return ctx.withClient(func(cl *client.Client) error {
		disks, err := cl.Disks(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, disks)
		}
		if len(disks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No disks configured")
			return nil
		}
		rows := make([][]string, 0, len(disks))
		for _, disk := range disks {
			rows = append(rows, []string{
				disk.Name,
				disk.SourceDir,
				disk.SortedDir,
				disk.Schedule,
				formatUsage(disk.Usage["source"]),
			})
		}
		table := renderTable(
			[]string{"Name", "Source", "Sorted", "Schedule", "Free"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		)
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	})
}

func newDisksAddCommand(ctx *commandContext) *cobra.Command {
	var source string
	var sorted string
	var schedule string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.DiskRequest{
				Name:     args[0],
				Source:   source,
				Sorted:   sorted,
				Schedule: schedule,
			}
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.CreateDisk(cmd.Context(), req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Disk %s saved\n", req.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Directory to organize")
	cmd.Flags().StringVar(&sorted, "sorted", "", "Directory receiving organized files")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression for automatic runs")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("sorted")
	return cmd
}

func newDisksRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.DeleteDisk(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Disk %s removed\n", args[0])
				return nil
			})
		},
	}
}

func formatUsage(usage api.Usage) string {
	if usage.Error != "" {
		return usage.Error
	}
	if usage.Total == 0 {
		return "-"
	}
	return formatBytes(usage.Free)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
