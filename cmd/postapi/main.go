package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "postapi/cmd/postapi/docs"
	"postapi/internal/config"
	"postapi/internal/constants"
	"postapi/internal/logger"
	"postapi/pkg/metrics"
)

var (
	configFile string
	logFormat  string
)

// @title           Post API
// @version         2.0
// @description     Intake API for reports, jobs and trainings submitted by external providers.
// @description     Submissions are queued and processed asynchronously.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v2

// @schemes   http https

// @securityDefinitions.apikey  ProviderKey
// @in                          header
// @name                        X-Post-API-Key

func main() {
	rootCmd := &cobra.Command{
		Use:           constants.ServiceName,
		Short:         "Post API submission pipeline",
		Long:          "Accepts provider submissions, queues them and drains the queue into the content store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override logging.format (json, console)")

	rootCmd.AddCommand(
		serveCmd(),
		drainCmd(),
		queueCmd(),
		migrateCmd(),
		providerCmd(),
		outcomesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
// Failures here are printed by main since no logger exists yet.
func setup() (*config.Config, logger.Logger, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile == "" {
		return nil, nil, fmt.Errorf("config file is required: use --config or CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	log, err := logger.New(cfg.Logging.Level, format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if sugared, ok := log.(*logger.SugaredLogger); ok {
		sugared.SetServiceName(constants.ServiceName)
	}

	metrics.Register()
	return cfg, log, nil
}
