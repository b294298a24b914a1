package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"postapi/internal/constants"
	"postapi/internal/outcome"
	"postapi/internal/processor"
)

func outcomesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Query the MongoDB outcome log",
	}
	cmd.AddCommand(outcomesListCmd())
	return cmd
}

func outcomesListCmd() *cobra.Command {
	var (
		filter outcome.Filter
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent outcomes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			rt := NewRuntime(cfg, log)
			defer rt.Close(context.Background())

			if err := rt.InitHistory(ctx); err != nil {
				return err
			}

			filter.Status = processor.Status(status)
			history, err := rt.History.History(ctx, filter)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No outcomes found")
				return nil
			}

			rows := make([][]string, 0, len(history))
			for _, o := range history {
				entity := "-"
				if o.EntityID != 0 {
					entity = strconv.FormatUint(uint64(o.EntityID), 10)
				}
				rows = append(rows, []string{
					formatTime(o.ProcessedAt),
					o.UUID,
					o.Bundle,
					o.ProviderID,
					string(o.Status),
					entity,
					o.Message,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Processed", "UUID", "Bundle", "Provider", "Status", "Entity", "Message"},
				rows, 5,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.UUID, "uuid", "", "Only outcomes for this submission")
	cmd.Flags().StringVar(&filter.ProviderID, "provider", "", "Only outcomes for this provider")
	cmd.Flags().StringVar(&status, "status", "", "Only outcomes with this status (created, updated, skipped-duplicate, error)")
	cmd.Flags().Int64Var(&filter.Limit, "limit", constants.DefaultListLimit, "Maximum rows to show")
	return cmd
}
