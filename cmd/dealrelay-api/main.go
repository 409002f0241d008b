package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dealrelay/dealrelay/pkg/log"
)

func main() {
	cmd := &cli.Command{
		Name:                  "dealrelay-api",
		Usage:                 "Start the dealrelay HTTP API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://path or redis://host)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP listen port",
				Value:   8080,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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
			&cli.StringFlag{
				Name:    "default-plan",
				Usage:   "Plan assumed for users unknown to the billing collaborator",
				Value:   "trial",
				Sources: cli.EnvVars("DEFAULT_PLAN"),
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

			return runAPI(ctx, command)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
