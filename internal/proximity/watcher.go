package proximity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/geomemo/geomemo/internal/location"
	"github.com/geomemo/geomemo/internal/notify"
	"github.com/geomemo/geomemo/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MarkerSource supplies the current marker list for each sample.
type MarkerSource interface {
	Markers() []core.Marker
}

// Sink observes every transition after it has been acted on.
type Sink interface {
	RecordTransition(ctx context.Context, e Event, pos core.Position)
}

// Options configure a Watcher.
type Options struct {
	ThresholdKm float64
	Title       string
	Logger      *slog.Logger
	Sink        Sink
}

// Watcher drives Evaluate from a location stream and performs the
// notification side effects.
type Watcher struct {
	markers  MarkerSource
	notifier notify.Notifier
	opts     Options

	mu             sync.Mutex
	state          State
	notifyDisabled bool

	// OTEL metrics
	issued    metric.Int64Counter
	cancelled metric.Int64Counter
	evaluated metric.Int64Counter
}

// NewWatcher creates a Watcher.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewWatcher(markers MarkerSource, notifier notify.Notifier, opts Options) (*Watcher, error) {
	if opts.ThresholdKm <= 0 {
		opts.ThresholdKm = DefaultThresholdKm
	}
	if opts.Title == "" {
		opts.Title = "Nearby marker"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w := &Watcher{
		markers:  markers,
		notifier: notifier,
		opts:     opts,
		state:    NewState(),
	}

	m := meter()
	var err error

	w.issued, err = m.Int64Counter(
		"proximity.notifications.issued",
		metric.WithDescription("Total proximity notifications issued"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating issued counter: %w", err)
	}

	w.cancelled, err = m.Int64Counter(
		"proximity.notifications.cancelled",
		metric.WithDescription("Total proximity notifications cancelled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cancelled counter: %w", err)
	}

	w.evaluated, err = m.Int64Counter(
		"proximity.samples.evaluated",
		metric.WithDescription("Total position samples evaluated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating evaluated counter: %w", err)
	}

	return w, nil
}

// Observe evaluates one position sample. Notification failures do not stop
// tracking: the marker stays near so it is not re-notified on the next
// sample. The returned error joins any notifier failures.
func (w *Watcher) Observe(ctx context.Context, pos core.Position) ([]Event, error) {
	markers := w.markers.Markers()

	w.mu.Lock()
	defer w.mu.Unlock()

	next, events := Evaluate(w.state, &pos, markers, w.opts.ThresholdKm)
	w.evaluated.Add(ctx, 1)

	var errs []error
	for i, e := range events {
		switch e.Kind {
		case Enter:
			handle, err := w.issue(ctx, e)
			if err != nil {
				errs = append(errs, err)
			}
			next = next.WithHandle(e.MarkerID, handle)
			events[i].Handle = handle
		case Exit:
			if err := w.cancel(ctx, e); err != nil {
				errs = append(errs, err)
			}
		}
		if w.opts.Sink != nil {
			w.opts.Sink.RecordTransition(ctx, events[i], pos)
		}
	}
	w.state = next
	return events, errors.Join(errs...)
}

// issue must be called with w.mu held.
func (w *Watcher) issue(ctx context.Context, e Event) (string, error) {
	log := w.opts.Logger.With("marker", e.MarkerID, "distance_m", int(e.DistanceKm*1000))
	if w.notifyDisabled {
		log.Debug("Entered marker vicinity, notifications disabled")
		return "", nil
	}

	body := fmt.Sprintf("You are %.0f m from marker %s.", e.DistanceKm*1000, e.MarkerID)
	handle, err := w.notifier.Issue(ctx, w.opts.Title, body)
	if err != nil {
		if errors.Is(err, core.ErrPermissionDenied) {
			w.notifyDisabled = true
			log.Warn("Notification permission denied, notifications disabled", "error", err)
		} else {
			log.Error("Failed to issue notification", "error", err)
		}
		return "", core.NewOpError("issue notification", err)
	}

	w.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("marker", e.MarkerID)))
	log.Info("Entered marker vicinity", "handle", handle)
	return handle, nil
}

// cancel must be called with w.mu held.
func (w *Watcher) cancel(ctx context.Context, e Event) error {
	log := w.opts.Logger.With("marker", e.MarkerID, "removed", e.Removed)
	if e.Handle == "" {
		log.Info("Left marker vicinity")
		return nil
	}
	if err := w.notifier.Cancel(ctx, e.Handle); err != nil {
		log.Error("Failed to cancel notification", "handle", e.Handle, "error", err)
		return core.NewOpError("cancel notification", err)
	}
	w.cancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("marker", e.MarkerID)))
	log.Info("Left marker vicinity", "handle", e.Handle)
	return nil
}

// Run subscribes to src and observes every sample until the stream ends or
// ctx is done. The subscription is always released before Run returns. A
// refused location permission is returned as is; the watcher stays inactive.
func (w *Watcher) Run(ctx context.Context, src location.Source, opts location.Options) error {
	sub, err := src.Subscribe(ctx, opts)
	if err != nil {
		if errors.Is(err, core.ErrPermissionDenied) {
			w.opts.Logger.Warn("Location permission denied, proximity tracking inactive", "error", err)
		}
		return fmt.Errorf("subscribing to location: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			w.opts.Logger.Error("Failed to release location subscription", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case pos, ok := <-sub.Positions():
			if !ok {
				return sub.Err()
			}
			if _, err := w.Observe(ctx, pos); err != nil {
				w.opts.Logger.Debug("Sample processed with notification errors", "error", err)
			}
		}
	}
}

// Snapshot returns the current state.
func (w *Watcher) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// NotificationsDisabled reports whether a permission denial switched off
// notification issuing.
func (w *Watcher) NotificationsDisabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notifyDisabled
}
