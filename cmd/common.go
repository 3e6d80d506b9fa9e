package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/reviewcheck/internal/config"
	"github.com/reviewcheck/internal/logging"
	"github.com/reviewcheck/internal/providers/gitlab"
)

func configPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	return config.DefaultPath()
}

// startLogging configures zerolog from the global flags, falling back to the
// configured level when --log-level wasn't given.
func startLogging(c *cli.Context, configured string) (func() error, error) {
	level := c.String("log-level")
	if !c.IsSet("log-level") && configured != "" {
		level = configured
	}
	return logging.Setup(logging.Options{Level: level, File: c.String("log-file")}, c.App.ErrWriter)
}

// loadConfig reads the configuration, running the interactive setup first
// when there is no file yet and stdin is a terminal.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := configPath(c)
	if err := config.LoadDotenv(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(path)
	if errors.Is(err, config.ErrNotConfigured) && term.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintf(c.App.Writer, "No configuration file found at %s, please provide some information to populate it:\n", path)
		if _, err := config.Setup(os.Stdin, c.App.Writer, path, false); err != nil {
			return nil, err
		}
		cfg, err = config.LoadConfig(path)
	}
	if errors.Is(err, config.ErrNotConfigured) {
		return nil, fmt.Errorf("%w, run `reviewcheck configure` first", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

type userLookup interface {
	CurrentUsername(ctx context.Context) (string, error)
}

// resolveUser reviews as the token owner when no user is configured.
func resolveUser(ctx context.Context, users userLookup, cfg *config.Config) error {
	if cfg.User != "" || cfg.SecretToken == "" {
		return nil
	}
	username, err := users.CurrentUsername(ctx)
	if err != nil {
		return fmt.Errorf("no user configured and token lookup failed: %w", err)
	}
	cfg.User = cfg.EffectiveUser(username)
	log.Info().Str("user", cfg.User).Msg("using the token owner as user")
	return nil
}

func newProvider(cfg *config.Config) (*gitlab.GitLabProvider, error) {
	provider, err := gitlab.New(gitlab.GitLabConfig{
		URL:               cfg.APIURL,
		Token:             cfg.SecretToken,
		PoolSize:          cfg.PoolSize,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		RetryBackoff:      cfg.RetryBackoff,
		RetryMaxDelay:     cfg.RetryMaxDelay,
		RetryJitter:       cfg.RetryJitter,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.HTTPTimeout,
	}, gitlab.WithFastMode(cfg.FastModeWeeks))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	log.Debug().Str("api_url", cfg.APIURL).Int("pool_size", cfg.PoolSize).Msg("created GitLab provider")
	return provider, nil
}
