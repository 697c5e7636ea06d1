// Package main provides a command-line editor for Send Smartly automation workflows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mono-send/send-smartly/pkg/client"
	cli "github.com/urfave/cli/v3"
)

const defaultAPIURL = "http://localhost:9091"

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "sendsmartly",
		Usage:                 "Build and activate automation workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the Send Smartly API",
				Value:   defaultAPIURL,
				Sources: cli.EnvVars("SENDSMARTLY_API_URL"),
			},
			&cli.FloatFlag{
				Name:    "rate",
				Usage:   "Maximum requests per second",
				Value:   float64(client.DefaultRate),
				Sources: cli.EnvVars("SENDSMARTLY_RATE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			listCommand(),
			showCommand(),
			createCommand(),
			lookupsCommand(),
			addEmailCommand(),
			updateEmailCommand(),
			deleteEmailCommand(),
			setSegmentCommand(),
			addConditionCommand(),
			removeConditionCommand(),
			removeBranchEmailCommand(),
			reorderCommand(),
			saveCommand(),
			activateCommand(),
			versionsCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
