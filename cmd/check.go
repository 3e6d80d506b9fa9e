package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/reviewcheck/internal/batch"
	"github.com/reviewcheck/internal/config"
	"github.com/reviewcheck/internal/notify"
	"github.com/reviewcheck/internal/render"
	"github.com/reviewcheck/internal/review"
	"github.com/reviewcheck/internal/seen"
)

// CheckFlags are accepted both by the check command and at the top level,
// so a bare `reviewcheck -a` works.
func CheckFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "Show all threads, even when you don't need to reply",
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Username whose reviews you want to analyze",
		},
		&cli.StringSliceFlag{
			Name:    "ignore",
			Aliases: []string{"i"},
			Usage:   "Merge request `IID` to ignore, may be repeated",
		},
		&cli.IntFlag{
			Name:    "refresh",
			Aliases: []string{"r"},
			Usage:   "Refresh the report every `MINUTES`",
		},
		&cli.BoolFlag{
			Name:    "minimal",
			Aliases: []string{"m"},
			Usage:   "Only show discussions where a reply is needed",
		},
		&cli.IntFlag{
			Name:    "width",
			Aliases: []string{"w"},
			Usage:   "Terminal display `WIDTH`",
		},
		&cli.IntFlag{
			Name:  "fast",
			Usage: "Only list merge requests created in the last `WEEKS`",
		},
		&cli.BoolFlag{
			Name:  "no-notify",
			Usage: "Don't send desktop notifications",
		},
	}
}

// CheckCommand returns the check command
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Show the discussions waiting for your reply",
		Flags:  CheckFlags(),
		Action: RunCheck,
	}
}

// checkOptions are the command line overrides of a check run.
type checkOptions struct {
	User     string
	Ignore   []string
	All      bool
	Minimal  bool
	Width    int
	Refresh  int
	Fast     int
	NoNotify bool
}

func checkOptionsFrom(c *cli.Context) (checkOptions, error) {
	opts := checkOptions{
		User:     c.String("user"),
		Ignore:   c.StringSlice("ignore"),
		All:      c.Bool("all"),
		Minimal:  c.Bool("minimal"),
		Width:    c.Int("width"),
		Refresh:  c.Int("refresh"),
		Fast:     c.Int("fast"),
		NoNotify: c.Bool("no-notify"),
	}
	for _, name := range []string{"refresh", "width", "fast"} {
		if c.IsSet(name) && c.Int(name) <= 0 {
			return checkOptions{}, fmt.Errorf("--%s must be a positive integer", name)
		}
	}
	return opts, nil
}

// apply folds the overrides into cfg. Switches only ever turn a setting
// on and ignored merge requests are added to the configured ones.
func (o checkOptions) apply(cfg *config.Config) {
	cfg.User = cfg.EffectiveUser(o.User)
	for _, iid := range o.Ignore {
		if !slices.Contains(cfg.IgnoredMRs, iid) {
			cfg.IgnoredMRs = append(cfg.IgnoredMRs, iid)
		}
	}
	cfg.ShowAllDiscussions = cfg.ShowAllDiscussions || o.All
	cfg.HideRepliedDiscussions = cfg.HideRepliedDiscussions || o.Minimal
	if o.Width > 0 {
		cfg.OutputWidth = o.Width
	}
	if o.Fast > 0 {
		cfg.FastModeWeeks = o.Fast
	}
	if o.NoNotify {
		cfg.Notify = false
	}
}

func (o checkOptions) refreshInterval() time.Duration {
	return time.Duration(o.Refresh) * time.Minute
}

// RunCheck prints the report once, or every --refresh minutes until
// interrupted.
func RunCheck(c *cli.Context) error {
	opts, err := checkOptionsFrom(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	closeLog, err := startLogging(c, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	opts.apply(cfg)

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

	tracker := seen.NewTracker(cfg.SeenPath)
	log.Debug().Str("path", tracker.Path()).Msg("tracking seen notes")

	svc := review.NewService(
		provider,
		notify.NewDesktop(cfg.NotifyCommand),
		tracker,
		batch.ConfigurePool(batch.Config{MaxWorkers: cfg.PoolSize}),
		review.Config{
			User:                   cfg.User,
			ProjectIDs:             cfg.ProjectIDs,
			IgnoredMRs:             cfg.IgnoredMRs,
			ShowAllDiscussions:     cfg.ShowAllDiscussions,
			HideRepliedDiscussions: cfg.HideRepliedDiscussions,
			Notify:                 cfg.Notify,
			RefreshInterval:        opts.refreshInterval(),
		},
	)
	renderer := render.New(os.Stdout, render.Options{Width: cfg.OutputWidth, JiraURL: cfg.JiraURL})

	err = svc.Run(c.Context, renderer)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.App.Writer, "\nBye bye!")
		return nil
	}
	return err
}
