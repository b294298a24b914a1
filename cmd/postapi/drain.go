package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postapi/internal/drain"
)

func drainCmd() *cobra.Command {
	var (
		limit    int
		bundles  []string
		lockFile string
	)

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Process queued submissions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if lockFile == "" {
				lockFile = cfg.Drain.LockFile
			}
			if len(bundles) == 0 {
				bundles = cfg.Drain.Bundles
			}
			if limit <= 0 {
				limit = cfg.Drain.Limit
			}

			if lockFile != "" {
				lock := drain.NewLock(lockFile)
				if err := lock.TryLock(); err != nil {
					if errors.Is(err, drain.ErrLocked) {
						log.InfowCtx(ctx, "Drain already running, skipping", "lock_file", lock.Path())
						return nil
					}
					return err
				}
				defer lock.Unlock()
			}

			rt := NewRuntime(cfg, log)
			defer rt.Close(context.Background())

			if err := rt.InitPipeline(ctx); err != nil {
				return fmt.Errorf("failed to initialize pipeline: %w", err)
			}

			summary, err := rt.DrainService().Process(ctx, limit, bundles...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d created=%d updated=%d skipped=%d failed=%d\n",
				summary.Processed, summary.Created, summary.Updated, summary.Skipped, summary.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum submissions to process (default drain.limit)")
	cmd.Flags().StringSliceVar(&bundles, "bundle", nil, "Only process these bundles (repeatable)")
	cmd.Flags().StringVar(&lockFile, "lock-file", "", "Lock file guarding concurrent runs (default drain.lock_file)")
	return cmd
}
