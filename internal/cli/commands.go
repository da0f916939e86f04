package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/notifyclient"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(rootOpts, notifyclient.Options{Limit: limit})
			if err := c.Sync(cmd.Context()); err != nil {
				return apiError("listing notifications", err)
			}
			return newFormatter(rootOpts, cmd).List(c.Notifications(), c.Counts())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of notifications to fetch (server caps at 50)")
	return cmd
}

// NewCountsCommand creates the counts command.
func NewCountsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show unread counts per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(rootOpts, notifyclient.Options{})
			if err := c.RefreshCounts(cmd.Context()); err != nil {
				return apiError("fetching counts", err)
			}
			return newFormatter(rootOpts, cmd).Counts(c.Counts())
		},
	}
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark one notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := models.Kind(kind)
			if !k.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --kind %q", kind))
			}
			c := newClient(rootOpts, notifyclient.Options{})
			if err := c.MarkAsRead(cmd.Context(), args[0], k); err != nil {
				return apiError("marking notification as read", err)
			}
			return newFormatter(rootOpts, cmd).Done("marked "+args[0]+" as read", map[string]string{"id": args[0]})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "notification type (post|message|connection)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

// NewReadAllCommand creates the read-all command.
func NewReadAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(rootOpts, notifyclient.Options{})
			if err := c.MarkAllAsRead(cmd.Context()); err != nil {
				return apiError("marking all notifications as read", err)
			}
			return newFormatter(rootOpts, cmd).Done("all notifications marked as read", nil)
		},
	}
}

// WatchOptions configure the watch command.
type WatchOptions struct {
	Backoff  string // "fixed" | "exponential"
	Delay    time.Duration
	MaxDelay time.Duration
	Resync   bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live notification stream",
		Long: `Follow the live notification stream and print every new notification.

The stream is reopened after any failure. With --backoff fixed the wait is
always --delay; with --backoff exponential it starts at --delay and doubles
up to --max-delay, resetting after each successful handshake.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Backoff, "backoff", "fixed", "reconnect policy (fixed|exponential)")
	cmd.Flags().DurationVar(&opts.Delay, "delay", notifyclient.DefaultReconnectDelay, "reconnect delay, or the initial delay for exponential backoff")
	cmd.Flags().DurationVar(&opts.MaxDelay, "max-delay", time.Minute, "upper bound for exponential backoff")
	cmd.Flags().BoolVar(&opts.Resync, "resync", true, "refetch the list and counts before every reconnect")
	return cmd
}

func runWatch(ctx context.Context, rootOpts *RootOptions, opts *WatchOptions, cmd *cobra.Command) error {
	var policy notifyclient.Backoff
	switch opts.Backoff {
	case "fixed":
		policy = notifyclient.FixedBackoff{Delay: opts.Delay}
	case "exponential":
		if opts.MaxDelay < opts.Delay {
			return NewExitError(ExitCommandError, "--max-delay must not be below --delay")
		}
		policy = notifyclient.ExponentialBackoff(opts.Delay, opts.MaxDelay)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --backoff %q: must be fixed or exponential", opts.Backoff))
	}

	out := newFormatter(rootOpts, cmd)
	c := newClient(rootOpts, notifyclient.Options{
		Backoff:           policy,
		ResyncOnReconnect: opts.Resync,
		OnNotification:    out.Notification,
		OnStateChange:     func(s notifyclient.State) { out.Status("stream %s", s) },
	})

	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func apiError(action string, err error) error {
	if notifyclient.IsNotFound(err) {
		return WrapExitError(ExitFailure, action+": not found", err)
	}
	return WrapExitError(ExitFailure, action, err)
}
