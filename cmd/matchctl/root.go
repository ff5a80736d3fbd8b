package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/onnwee/freelamatch/internal/app"
	"github.com/onnwee/freelamatch/internal/config"
	"github.com/onnwee/freelamatch/internal/ratelimit"
	"github.com/onnwee/freelamatch/internal/shortlist"
	"github.com/onnwee/freelamatch/internal/trigger"
)

const appName = "matchctl"

// shortlistService is the part of the pipeline the CLI drives.
type shortlistService interface {
	Generate(ctx context.Context, jobID string) (*shortlist.Result, error)
	Get(ctx context.Context, jobID string) (*shortlist.Result, error)
}

// components are what the subcommands operate on.
type components struct {
	shortlists shortlistService
	counters   ratelimit.CounterStore
	queue      trigger.Queue
	close      func()
}

// connectFunc builds components from an optional config file path.
type connectFunc func(ctx context.Context, configPath string, logger *slog.Logger) (*components, error)

// connectFromConfig loads configuration and connects the real backends.
func connectFromConfig(ctx context.Context, configPath string, logger *slog.Logger) (*components, error) {
	cfg, errs := config.Load(configPath)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	b, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &components{
		shortlists: app.NewPipeline(cfg, b, logger, nil),
		counters:   b.Counters,
		queue:      b.Queue,
		close:      b.Close,
	}, nil
}

// opener lazily connects on first use by a subcommand.
type opener func(cmd *cobra.Command) (*components, error)

func newRootCmd(connect connectFunc) *cobra.Command {
	var (
		cfgFile string
		debug   bool
	)

	root := &cobra.Command{
		Use:          appName,
		Short:        appName + " inspects and drives the freelancer matching service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "an optional YAML config file; environment variables take precedence")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")

	open := func(cmd *cobra.Command) (*components, error) {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		return connect(cmd.Context(), cfgFile, logger)
	}

	root.AddCommand(
		newShortlistCmd(open),
		newRateLimitCmd(open),
		newQueueCmd(open),
		newVersionCmd(),
	)
	return root
}

// printJSON writes v indented to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withComponents opens the components, runs fn and closes them.
func withComponents(cmd *cobra.Command, open opener, fn func(*components) error) error {
	c, err := open(cmd)
	if err != nil {
		return err
	}
	if c.close != nil {
		defer c.close()
	}
	return fn(c)
}
