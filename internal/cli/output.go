package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/anonto42/findmate/backend/internal/models"
)

// Exit codes for notifyctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the API rejected the request or the server is unreachable
	ExitCommandError = 2 // bad flags or arguments
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err; plain errors map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or as JSON lines.
// It is safe for concurrent use; watch writes from the client's stream goroutine.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer

	mu sync.Mutex
}

// CLIResponse is the JSON envelope for one-shot commands.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

type listResult struct {
	Notifications []models.Notification    `json:"notifications"`
	Counts        models.NotificationCounts `json:"counts"`
}

func (f *OutputFormatter) writeJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.NewEncoder(f.Writer).Encode(v)
}

func (f *OutputFormatter) printf(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.Writer, format, args...)
}

// List prints notifications newest first followed by the unread summary.
func (f *OutputFormatter) List(ns []models.Notification, counts models.NotificationCounts) error {
	if f.Format == "json" {
		if ns == nil {
			ns = []models.Notification{}
		}
		return f.writeJSON(CLIResponse{Status: "ok", Data: listResult{Notifications: ns, Counts: counts}})
	}
	if len(ns) == 0 {
		f.printf("no notifications\n")
	}
	for _, n := range ns {
		f.printf("%s\n", notificationLine(n))
	}
	f.printf("\n%d unread (post %d, message %d, connection %d)\n", counts.Total, counts.Post, counts.Message, counts.Connection)
	return nil
}

// Counts prints the unread counters.
func (f *OutputFormatter) Counts(counts models.NotificationCounts) error {
	if f.Format == "json" {
		return f.writeJSON(CLIResponse{Status: "ok", Data: counts})
	}
	for _, row := range []struct {
		label string
		n     int64
	}{
		{"post", counts.Post},
		{"message", counts.Message},
		{"connection", counts.Connection},
		{"total", counts.Total},
	} {
		f.printf("%-10s  %d\n", row.label, row.n)
	}
	return nil
}

// Done prints a one-line confirmation.
func (f *OutputFormatter) Done(message string, data interface{}) error {
	if f.Format == "json" {
		return f.writeJSON(CLIResponse{Status: "ok", Data: data})
	}
	f.printf("%s\n", message)
	return nil
}

// Notification prints one live notification. JSON output is one object per line.
func (f *OutputFormatter) Notification(n models.Notification) {
	if f.Format == "json" {
		_ = f.writeJSON(n)
		return
	}
	f.printf("%s\n", notificationLine(n))
}

// Status writes connection changes to the diagnostic stream.
func (f *OutputFormatter) Status(format string, args ...interface{}) {
	w := f.ErrWriter
	if w == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(w, format+"\n", args...)
}

func notificationLine(n models.Notification) string {
	mark := "new"
	if n.Read {
		mark = "read"
	}
	return fmt.Sprintf("%s  %-10s  %-4s  %s  %s",
		n.ID.Hex(), n.Kind, mark, n.CreatedAt.UTC().Format("2006-01-02 15:04"), n.Text)
}
