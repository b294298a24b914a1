package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"postapi/internal/config"
	"postapi/internal/constants"
	"postapi/internal/drain"
	"postapi/internal/logger"
	"postapi/internal/provider"
	"postapi/pkg/logging"
	"postapi/pkg/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the intake API and the drain scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize", "error", err)
				return errors.Join(err, app.Shutdown(ctx))
			}
			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Serve stopped with error", "error", err)
				return err
			}
			return nil
		},
	}
}

// App is the long-running serve process: the intake API, the periodic drain
// and, with Kafka configured, the provider reload listener.
type App struct {
	*Runtime
	server    *http.Server
	scheduler *drain.Scheduler
	tracer    *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{Runtime: NewRuntime(cfg, log)}
}

func (a *App) Initialize(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Starting Post API", "version", tracing.Version)

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tp

	if a.listensForReloads() {
		if _, err := a.EnsureConsumer(constants.ServiceName); err != nil {
			return err
		}
	}
	if err := a.InitPipeline(ctx); err != nil {
		return err
	}

	interval := a.Config.Drain.Interval()
	if interval <= 0 {
		interval = constants.DefaultDrainIntervalSeconds * time.Second
	}
	a.scheduler = drain.NewScheduler(a.DrainService(), interval, a.Config.Drain.Limit, a.Config.Drain.Bundles, a.Logger)

	a.server = &http.Server{
		Addr:         ":" + strconv.Itoa(a.Config.Server.Port),
		Handler:      a.newRouter(),
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
	return nil
}

func (a *App) listensForReloads() bool {
	return a.BrokerEnabled() && a.Config.Broker.Kafka.ConfigUpdateTopic != ""
}

// Run blocks until ctx is cancelled or a component fails, then stops the
// others and releases every resource.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(stopCtx)
	})
	g.Go(func() error {
		return a.scheduler.Start(gCtx)
	})
	if a.Consumer != nil {
		g.Go(func() error {
			return a.consumeReloads(gCtx)
		})
	}

	return errors.Join(g.Wait(), a.Shutdown(ctx))
}

func (a *App) consumeReloads(ctx context.Context) error {
	topic := a.Config.Broker.Kafka.ConfigUpdateTopic
	handler := provider.NewReloadHandler(a.Providers, a.Logger)

	ctx = logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(ctx, "Listening for provider reload events", "topic", topic)

	err := a.Consumer.Consume(ctx, topic, handler.HandleConfigUpdateEvent)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Shutdown flushes traces and closes the stores and Kafka clients. Run calls
// it once the server and the scheduler have stopped.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	return errors.Join(a.tracer.Shutdown(stopCtx), a.Close(stopCtx))
}
