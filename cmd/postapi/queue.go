package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"postapi/internal/constants"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the submission queue",
	}
	cmd.AddCommand(queueListCmd(), queueCountCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued submissions in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			rt := NewRuntime(cfg, log)
			defer rt.Close(context.Background())

			if err := rt.InitQueue(ctx); err != nil {
				return err
			}

			items, err := rt.Queue.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				claimed := "-"
				if item.ClaimedAt != nil {
					claimed = formatTime(*item.ClaimedAt)
				}
				rows = append(rows, []string{
					strconv.FormatInt(item.Seq, 10),
					item.UUID,
					item.Bundle,
					item.ProviderID,
					strconv.FormatInt(item.Version, 10),
					formatTime(item.CreatedAt),
					claimed,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Seq", "UUID", "Bundle", "Provider", "Version", "Created", "Claimed"},
				rows, 0, 4,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", constants.DefaultListLimit, "Maximum rows to show")
	return cmd
}

func queueCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of queued submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			rt := NewRuntime(cfg, log)
			defer rt.Close(context.Background())

			if err := rt.InitQueue(ctx); err != nil {
				return err
			}

			n, err := rt.Queue.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
