package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var bindFlag string
	var configFlag string

	ctx := newCommandContext(&bindFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "tidy",
		Short:         "Tidy file organizer CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&bindFlag, "bind", "", "Daemon API address (host:port)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newDisksCommand(ctx))
	rootCmd.AddCommand(newKeywordsCommand(ctx))
	rootCmd.AddCommand(newEmptyDirsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand(ctx))

	return rootCmd
}
