package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/reviewcheck/internal/config"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a commented sample configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path, defaults to the config location",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration file and the GitLab token",
				Action: runConfigValidate,
			},
		},
	}
}

// ConfigureCommand returns the interactive configure command
func ConfigureCommand() *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "Interactively set up the configuration file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Replace an existing configuration file",
			},
		},
		Action: runConfigure,
	}
}

func runConfigure(c *cli.Context) error {
	_, err := config.Setup(os.Stdin, c.App.Writer, configPath(c), c.Bool("force"))
	return err
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")
	if outputPath == "" {
		outputPath = configPath(c)
	}

	if err := config.InitConfig(outputPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Created configuration file at %s\n", outputPath)
	return nil
}

func runConfigValidate(c *cli.Context) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(configPath(c))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	closeLog, err := startLogging(c, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	if err := resolveUser(c.Context, provider, cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	username, err := provider.CurrentUsername(c.Context)
	if err != nil {
		return fmt.Errorf("token check failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Configuration is valid, token belongs to %s\n", username)
	if username != cfg.User {
		fmt.Fprintf(c.App.Writer, "Note: reviewing as %s, not as the token owner\n", cfg.User)
	}
	return nil
}
