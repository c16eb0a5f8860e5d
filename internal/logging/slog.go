package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options select the sinks for SlogManager.Setup. Console is used only when
// File is nil so interactive commands keep stdout clean.
type Options struct {
	Level   string
	Console io.Writer
	File    io.Writer
	Graylog io.Writer
	Context ContextProvider
}

// SlogManager manages slog-based logging.
type SlogManager struct {
	logger  *slog.Logger
	closers []io.Closer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup builds the logger. Text goes to the file or console; Graylog
// receives one JSON document per record.
func (m *SlogManager) Setup(opts Options) {
	hopts := handlerOptions(ParseLevel(opts.Level))

	var handlers []slog.Handler
	switch {
	case opts.File != nil:
		handlers = append(handlers, slog.NewTextHandler(opts.File, hopts))
	case opts.Console != nil:
		handlers = append(handlers, slog.NewTextHandler(opts.Console, hopts))
	default:
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, hopts))
	}
	if opts.Graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.Graylog, hopts))
		if c, ok := opts.Graylog.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}

	m.logger = slog.New(h)
	m.logger.Debug("Logging initialized", "level", strings.ToLower(opts.Level))
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Close releases network sinks registered by Setup.
func (m *SlogManager) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	m.closers = nil
	return errors.Join(errs...)
}
