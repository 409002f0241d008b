package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	pkgcmd "github.com/dealrelay/dealrelay/pkg/cmd"
	"github.com/dealrelay/dealrelay/pkg/dispatcher"
	"github.com/dealrelay/dealrelay/pkg/log"
	"github.com/dealrelay/dealrelay/pkg/otelhelper"
)

func main() {
	cmd := &cli.Command{
		Name:                  "dealrelay-dispatcher",
		Usage:                 "Start the dealrelay dispatch worker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dispatcher-id",
				Aliases: []string{"id"},
				Usage:   "Custom dispatcher ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("DISPATCHER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://path or redis://host)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "webhook-base-url",
				Usage:    "Automation engine base URL for webhook calls",
				Required: true,
				Sources:  cli.EnvVars("WEBHOOK_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "webhook-credential",
				Usage:   "Static service credential sent to the automation engine",
				Sources: cli.EnvVars("WEBHOOK_CREDENTIAL"),
			},
			&cli.IntFlag{
				Name:    "per-call-timeout-ms",
				Usage:   "Timeout for each individual webhook call, in milliseconds",
				Value:   5000,
				Sources: cli.EnvVars("PER_CALL_TIMEOUT_MS"),
			},
			&cli.IntFlag{
				Name:    "overall-timeout-ms",
				Usage:   "Deadline for one whole dispatch, in milliseconds",
				Value:   10000,
				Sources: cli.EnvVars("OVERALL_TIMEOUT_MS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "dealrelay-dispatcher")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			dispatcherID := command.String("dispatcher-id")
			if dispatcherID == "" {
				dispatcherID = fmt.Sprintf("dispatcher-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("dealrelay-dispatcher").With("dispatcher_id", dispatcherID)

			logger.Info("Initializing dispatch worker")

			store, err := pkgcmd.NewPersistence(command.String("database-url"))
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			bus, err := pkgcmd.NewEventBus(command.String("event-bus"), "dispatcher", logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := bus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			d := dispatcher.New(dispatcher.Config{
				BaseURL:        command.String("webhook-base-url"),
				Credential:     command.String("webhook-credential"),
				PerCallTimeout: time.Duration(command.Int("per-call-timeout-ms")) * time.Millisecond,
				OverallTimeout: time.Duration(command.Int("overall-timeout-ms")) * time.Millisecond,
			}, store, logger)

			worker := dispatcher.NewWorker(dispatcherID, bus, d, logger)
			if err := worker.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
