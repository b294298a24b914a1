package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"postapi/internal/provider"
	"postapi/pkg/cel"
	"postapi/pkg/models"
)

func providerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage provider definitions",
	}
	cmd.AddCommand(providerHashSecretCmd(), providerSaveCmd(), providerReloadCmd())
	return cmd
}

func providerHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print the bcrypt hash of a provider secret",
		Long:  "Print the bcrypt hash of a provider secret. The secret is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return fmt.Errorf("secret must not be empty")
			}

			hash, err := provider.HashSecret(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func providerSaveCmd() *cobra.Command {
	var (
		p       provider.Provider
		secret  string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or update a provider in PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if p.ID == "" {
				return fmt.Errorf("--id is required")
			}
			if len(p.Rules) > 0 {
				eval, err := cel.NewEvaluator()
				if err != nil {
					return err
				}
				for _, rule := range p.Rules {
					if err := eval.ValidateRule(rule); err != nil {
						return fmt.Errorf("invalid rule %q: %w", rule, err)
					}
				}
			}
			if secret != "" {
				hash, err := provider.HashSecret(secret)
				if err != nil {
					return err
				}
				p.SecretHash = hash
			}

			ctx := cmd.Context()
			rt := NewRuntime(cfg, log)
			defer rt.Close(context.Background())

			db, err := rt.postgres(ctx)
			if err != nil {
				return err
			}
			if err := provider.NewPostgresStore(db).Save(ctx, &p); err != nil {
				return err
			}
			log.InfowCtx(ctx, "Provider saved", "provider_id", p.ID)

			if publish {
				return publishReload(ctx, rt, p.ID, models.ActionUpdate)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&p.ID, "id", "", "Provider id")
	cmd.Flags().StringVar(&p.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&secret, "secret", "", "Plain secret, stored as a bcrypt hash")
	cmd.Flags().StringVar(&p.SecretHash, "secret-hash", "", "Pre-computed bcrypt hash")
	cmd.Flags().StringVar(&p.URLPattern, "url-pattern", "", "Regular expression every submitted URL must match")
	cmd.Flags().IntSliceVar(&p.AllowedSources, "source", nil, "Allowed source id (repeatable)")
	cmd.Flags().StringSliceVar(&p.NotifyEmails, "notify-email", nil, "Address notified about processing failures (repeatable)")
	cmd.Flags().IntVar(&p.UserID, "user-id", 0, "Content owner id for created entities")
	cmd.Flags().StringArrayVar(&p.Rules, "rule", nil, "CEL expression every payload must satisfy (repeatable)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Tell running instances to reload the provider")
	return cmd
}

func providerReloadCmd() *cobra.Command {
	var providerID string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Tell running instances to drop cached providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			rt := NewRuntime(cfg, log)
			defer rt.Close(context.Background())

			return publishReload(cmd.Context(), rt, providerID, models.ActionReload)
		},
	}

	cmd.Flags().StringVar(&providerID, "provider-id", "", "Provider that changed (default all)")
	return cmd
}

func publishReload(ctx context.Context, rt *Runtime, providerID, action string) error {
	topic := rt.Config.Broker.Kafka.ConfigUpdateTopic
	if topic == "" {
		return fmt.Errorf("broker.kafka.config_update_topic is not configured")
	}

	producer, err := rt.EnsureProducer()
	if err != nil {
		return err
	}

	changedBy := os.Getenv("USER")
	if err := provider.NewEventPublisher(producer, topic).PublishReload(ctx, providerID, action, changedBy); err != nil {
		return err
	}
	rt.Logger.InfowCtx(ctx, "Provider reload published", "provider_id", providerID, "topic", topic)
	return nil
}
