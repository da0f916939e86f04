// Package cli implements notifyctl, a terminal client for the notification API.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/anonto42/findmate/backend/internal/notifyclient"
	"github.com/anonto42/findmate/backend/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Token   string
	Format  string // "json" | "text"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const defaultServer = "http://localhost:8080"

// NewRootCommand creates the notifyctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "notifyctl",
		Short: "Inspect and acknowledge FindMate notifications",
		Long: `notifyctl talks to the FindMate notification API as one user.

It lists notifications and unread counts, marks them as read and can
follow the live event stream, reconnecting when it drops.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if strings.TrimSpace(opts.Server) == "" {
				return NewExitError(ExitCommandError, "--server is required")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("NOTIFY_SERVER", defaultServer), "API base URL (env NOTIFY_SERVER)")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("NOTIFY_TOKEN"), "bearer token (env NOTIFY_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log connection activity to stderr")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCountsCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewReadAllCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLogger logs at debug to stderr when verbose and discards otherwise.
func newLogger(opts *RootOptions) *zap.Logger {
	if !opts.Verbose {
		return zap.NewNop()
	}
	l, err := logger.New("development", "debug")
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func newClient(opts *RootOptions, extra notifyclient.Options) *notifyclient.Client {
	extra.BaseURL = opts.Server
	extra.Token = opts.Token
	if extra.Logger == nil {
		extra.Logger = newLogger(opts)
	}
	return notifyclient.New(extra)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}
