// Package location provides position streams for the proximity watcher.
package location

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/geomemo/geomemo/pkg/core"
)

// Accuracy is the requested fix quality. Sources that cannot choose simply
// ignore it.
type Accuracy string

const (
	AccuracyLow      Accuracy = "low"
	AccuracyBalanced Accuracy = "balanced"
	AccuracyHigh     Accuracy = "high"
)

// ParseAccuracy converts a config string into an Accuracy.
func ParseAccuracy(s string) (Accuracy, error) {
	switch a := Accuracy(strings.ToLower(strings.TrimSpace(s))); a {
	case AccuracyLow, AccuracyBalanced, AccuracyHigh:
		return a, nil
	case "":
		return AccuracyHigh, nil
	default:
		return "", fmt.Errorf("unknown accuracy %q", s)
	}
}

// Options configure a subscription. Zero MinInterval or MinDistanceM
// disables that filter.
type Options struct {
	Accuracy     Accuracy
	MinInterval  time.Duration
	MinDistanceM float64
}

// Source produces position subscriptions.
type Source interface {
	// Subscribe starts a stream. A refused location permission is reported
	// as an error wrapping core.ErrPermissionDenied.
	Subscribe(ctx context.Context, opts Options) (Subscription, error)
}

// Subscription is a live position stream. Positions is closed when the
// stream ends; Err then reports why, or nil for a clean end. Close releases
// the subscription and may be called more than once.
type Subscription interface {
	Positions() <-chan core.Position
	Err() error
	Close() error
}
