package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mono-send/send-smartly/pkg/cmd"
	"github.com/mono-send/send-smartly/pkg/log"
	"github.com/mono-send/send-smartly/pkg/otelhelper"
	"github.com/mono-send/send-smartly/pkg/retention"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPort  = 9091
	serviceName  = "sendsmartly-api"
	closeTimeout = 10 * time.Second
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Serve the automation workflow builder API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL: postgres://... or a directory for the file store",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the workflow lock; in-process lock when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (memory, kafka)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "fixtures",
				Usage:   "YAML file with segments, categories, senders and templates to seed",
				Sources: cli.EnvVars("FIXTURES_PATH"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule for pruning old versions",
				Value:   retention.DefaultSchedule,
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "retention-keep",
				Usage:   "Saved versions kept per workflow",
				Value:   retention.DefaultKeep,
				Sources: cli.EnvVars("RETENTION_KEEP"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))
	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing Send Smartly API")

	tracer, err := newTracer(ctx, command.Bool("tracing"))
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	locker, closeLocker, err := cmd.NewLocker(ctx, command.String("redis-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := closeLocker(); err != nil {
			logger.ErrorContext(ctx, "Failed to close lock client", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	if err := logLifecycleEvents(ctx, eventBus, logger); err != nil {
		return fmt.Errorf("failed to subscribe to lifecycle events: %w", err)
	}

	api := NewAPI(logger, persistence,
		WithLocker(locker),
		WithPublisher(eventBus),
		WithTracer(tracer),
	)

	if path := command.String("fixtures"); path != "" {
		if _, err := seedFixtures(ctx, api.Lookups(), path); err != nil {
			return err
		}
	}

	pruner, err := retention.NewPruner(persistence, locker, eventBus, logger, retention.Config{
		Schedule: command.String("retention-schedule"),
		Keep:     command.Int("retention-keep"),
	})
	if err != nil {
		return err
	}

	if err := pruner.Start(ctx); err != nil {
		return err
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()

		if err := pruner.Stop(stopCtx); err != nil {
			logger.ErrorContext(ctx, "Failed to stop version retention", "error", err)
		}
	}()

	if err := api.Start(ctx, command.Int("port")); err != nil {
		logger.ErrorContext(ctx, "API server stopped", "error", err)

		return err
	}

	return nil
}

// nolint:ireturn
func newTracer(ctx context.Context, enabled bool) (trace.Tracer, error) {
	if !enabled {
		return otelhelper.NewNoopTracer(), nil
	}

	tracer, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return tracer, nil
}
