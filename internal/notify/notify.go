// Package notify delivers proximity notifications.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Notifier issues and cancels user-visible notifications.
type Notifier interface {
	// Issue shows a notification and returns a handle for cancelling it.
	// The handle may be empty. A refused notification permission is
	// reported as an error wrapping core.ErrPermissionDenied.
	Issue(ctx context.Context, title, body string) (string, error)
	// Cancel withdraws a notification. Unknown or already dismissed
	// handles are ignored.
	Cancel(ctx context.Context, handle string) error
}

// LogNotifier writes notifications to the structured log and, when set, a
// plain-text writer such as the terminal.
type LogNotifier struct {
	out    io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	seq    int
	active map[string]string // handle -> title
	now    func() time.Time
}

// NewLogNotifier creates a LogNotifier. out may be nil.
func NewLogNotifier(out io.Writer, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{
		out:    out,
		logger: logger,
		active: make(map[string]string),
		now:    time.Now,
	}
}

// Issue records the notification and returns a sequential handle.
func (n *LogNotifier) Issue(ctx context.Context, title, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n.mu.Lock()
	n.seq++
	handle := "n" + strconv.Itoa(n.seq)
	n.active[handle] = title
	n.mu.Unlock()

	n.logger.Info("Notification issued", "handle", handle, "title", title, "body", body)
	if n.out != nil {
		if _, err := fmt.Fprintf(n.out, "%s [notify %s] %s: %s\n", n.now().UTC().Format(time.RFC3339), handle, title, body); err != nil {
			return handle, fmt.Errorf("writing notification: %w", err)
		}
	}
	return handle, nil
}

// Cancel withdraws an active notification.
func (n *LogNotifier) Cancel(ctx context.Context, handle string) error {
	n.mu.Lock()
	_, ok := n.active[handle]
	delete(n.active, handle)
	n.mu.Unlock()
	if !ok {
		return nil
	}

	n.logger.Info("Notification cancelled", "handle", handle)
	if n.out != nil {
		if _, err := fmt.Fprintf(n.out, "%s [cancel %s]\n", n.now().UTC().Format(time.RFC3339), handle); err != nil {
			return fmt.Errorf("writing cancellation: %w", err)
		}
	}
	return nil
}

// Active returns the number of notifications not yet cancelled.
func (n *LogNotifier) Active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.active)
}
