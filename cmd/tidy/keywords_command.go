package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tidy/internal/client"
)

func newKeywordsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List keyword categories in matcher order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				categories, err := cl.Keywords(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, categories)
				}
				if len(categories) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No keyword categories configured")
					return nil
				}
				rows := make([][]string, 0, len(categories))
				for _, category := range categories {
					rows = append(rows, []string{
						category.Name,
						strconv.Itoa(category.Priority),
						category.TargetDir,
						strings.Join(category.Keywords, ", "),
					})
				}
				table := renderTable(
					[]string{"Category", "Priority", "Target", "Keywords"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
