package location

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/pkg/core"
)

// ErrAlreadySubscribed is returned when a single-use source is subscribed twice.
var ErrAlreadySubscribed = errors.New("source already subscribed")

// ReaderSource replays "lat,lon[,RFC3339]" lines from a reader, such as a
// recorded GPS track or stdin. Blank lines and lines starting with '#' are
// ignored; malformed lines are logged and skipped.
type ReaderSource struct {
	r      io.Reader
	logger *slog.Logger

	mu   sync.Mutex
	used bool
}

// NewReaderSource creates a source over r. If r is an io.Closer it is closed
// when the subscription is released.
func NewReaderSource(r io.Reader, logger *slog.Logger) *ReaderSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaderSource{r: r, logger: logger}
}

// Subscribe starts reading. The reader can only be consumed once.
func (s *ReaderSource) Subscribe(ctx context.Context, opts Options) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return nil, ErrAlreadySubscribed
	}
	s.used = true

	ctx, cancel := context.WithCancel(ctx)
	sub := &readerSubscription{
		positions: make(chan core.Position),
		cancel:    cancel,
		closer:    asCloser(s.r),
	}
	go sub.run(ctx, s.r, &filter{opts: opts}, s.logger)
	return sub, nil
}

func asCloser(r io.Reader) io.Closer {
	if c, ok := r.(io.Closer); ok {
		return c
	}
	return nil
}

type readerSubscription struct {
	positions chan core.Position
	cancel    context.CancelFunc
	closer    io.Closer

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	closeErr  error
}

func (s *readerSubscription) run(ctx context.Context, r io.Reader, f *filter, logger *slog.Logger) {
	defer close(s.positions)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pos, err := geo.PositionFromString(line)
		if err != nil {
			logger.Warn("Skipping malformed position", "line", lineNo, "input", line, "error", err)
			continue
		}
		if !f.accept(pos) {
			continue
		}
		select {
		case s.positions <- pos:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

func (s *readerSubscription) Positions() <-chan core.Position {
	return s.positions
}

func (s *readerSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *readerSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}
