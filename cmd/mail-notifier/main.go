// Package main is the entry point for mail-notifier.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/mail-notifier/internal/config"
	"github.com/shineum/mail-notifier/internal/notifier"
)

type options struct {
	configPath string
	dryRun     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand(out, logOut io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mail-notifier",
		Short: "Send one notification email described by environment variables",
		Long: `mail-notifier composes a plain text and HTML email with optional
attachments and delivers it through an SMTP server. Settings are read from
the environment (USERNAME, PASSWORD, FROM, TO, HOST, SUBJECT, ...), layered
over an optional YAML or .env file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, out, logOut)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML or .env settings file (optional)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the composed message instead of sending it")

	return cmd
}

func run(ctx context.Context, opts *options, out, logOut io.Writer) error {
	settings, err := config.Load(opts.configPath)
	if err != nil {
		logger := setupLogger(logOut, "", "")
		logger.Error("failed to load configuration", "error", err)
		return err
	}

	// The logger comes from raw settings so that configuration errors are
	// logged in the requested format too.
	logger := setupLogger(logOut, settings["LOG_LEVEL"], settings["LOG_FORMAT"])

	n := notifier.New(notifier.Options{
		Logger: logger,
		DryRun: opts.dryRun,
		Output: out,
	})
	if err := n.Run(ctx, settings); err != nil {
		logger.Error("notification failed", "error", err)
		return err
	}
	return nil
}

// setupLogger builds a JSON (default) or text logger at the given level.
func setupLogger(w io.Writer, level, format string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
