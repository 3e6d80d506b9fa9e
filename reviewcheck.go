package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/reviewcheck/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "reviewcheck",
		Usage:   "Show the GitLab discussions you need to respond to",
		Version: version,
		Description: "Lists the open discussions on merge requests where you are the author,\n" +
			"someone replied to your comment and you haven't answered, or someone\n" +
			"mentioned your @username.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"REVIEWCHECK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log `LEVEL` (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"REVIEWCHECK_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to `FILE` instead of stderr",
			},
		}, cmd.CheckFlags()...),
		Action: cmd.RunCheck,
		Commands: []*cli.Command{
			cmd.CheckCommand(),
			cmd.ConfigureCommand(),
			cmd.ConfigCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}
