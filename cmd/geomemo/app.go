package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/geomemo/geomemo/internal/cache"
	"github.com/geomemo/geomemo/internal/config"
	"github.com/geomemo/geomemo/internal/dispatcher"
	"github.com/geomemo/geomemo/internal/influx"
	"github.com/geomemo/geomemo/internal/logging"
	"github.com/geomemo/geomemo/internal/markers"
	"github.com/geomemo/geomemo/internal/notify"
	"github.com/geomemo/geomemo/internal/proximity"
	"github.com/geomemo/geomemo/internal/storage"
	"github.com/geomemo/geomemo/internal/worker"
	"github.com/geomemo/geomemo/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the wiring shared by all commands for one invocation.
type app struct {
	sessionStart time.Time
	logs         *logging.SlogManager
	logger       *slog.Logger
	logFile      *os.File
	level        string

	backend     storage.Backend
	markers     *markers.Service
	markerCache *cache.MarkerCache

	closers []func() error
}

// openApp loads settings, sets up logging and opens the store. The caller
// must Close the returned app.
func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	a := &app{sessionStart: time.Now(), logs: logging.NewSlogManager()}

	configErr := config.Load(opts.configDir)
	opts.apply(cmd)
	a.level = viper.GetString("logLevel")

	a.setupLogging(cmd.ErrOrStderr())
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults", "error", configErr)
	}

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, a.zerolog("database"), a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = backend

	ids, err := markers.NewIDGeneratorFormat(config.GetString("ids.format"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.markers = markers.NewService(markers.Dependencies{
		Backend: backend,
		Cache:   a.markerCache,
		Logger:  a.logger,
		IDs:     ids,
	})
	if err := a.markers.Initialize(cmd.Context()); err != nil {
		a.Close()
		return nil, userError(err)
	}
	a.logger.Debug("Store ready", "storage", storageCfg.Type, "markers", a.markerCache.Len())
	return a, nil
}

func (a *app) setupLogging(console io.Writer) {
	a.markerCache = cache.NewMarkerCache()

	f, err := logging.OpenLogFile(logging.LogFilePath(viper.GetString("logsDir"), appName, a.sessionStart))
	if err != nil {
		fmt.Fprintf(console, "warning: %v, logging to console\n", err)
	} else {
		a.logFile = f
		a.closers = append(a.closers, f.Close)
	}

	opts := logging.Options{
		Level:   a.level,
		Console: console,
		Context: func() []slog.Attr {
			return []slog.Attr{slog.Int("markers", a.markerCache.Len())}
		},
	}
	if a.logFile != nil {
		opts.File = a.logFile
	}

	var graylogErr error
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.DialGraylog(gl.Address)
		if err != nil {
			graylogErr = err
		} else {
			opts.Graylog = w
		}
	}

	a.logs.Setup(opts)
	a.logger = a.logs.Logger()
	if graylogErr != nil {
		a.logger.Warn("Graylog sink disabled", "error", graylogErr)
	}
}

// zerolog returns a component logger writing to the session log file.
func (a *app) zerolog(component string) zerolog.Logger {
	var w io.Writer = io.Discard
	if a.logFile != nil {
		w = a.logFile
	}
	return logging.NewZerolog(w, a.level, component)
}

// transitionRecorder returns the InfluxDB recorder when recording is
// enabled, or nil.
func (a *app) transitionRecorder(ctx context.Context) proximity.Sink {
	ic := config.GetInfluxConfig()
	if !ic.Enabled {
		return nil
	}
	backupPath := logging.LogFilePath(viper.GetString("logsDir"), "transitions", a.sessionStart) + ".lp.gz"
	mgr := influx.NewManager(ic, a.zerolog("influx"), backupPath)
	if err := mgr.Connect(ctx); err != nil {
		a.logger.Warn("Transition recording disabled", "error", err)
		return nil
	}
	a.closers = append(a.closers, mgr.Close)
	return influx.NewRecorder(mgr, a.zerolog("influx"))
}

// watchRuntime is a watcher together with the dispatcher that serves it.
type watchRuntime struct {
	watcher    *proximity.Watcher
	dispatcher *dispatcher.Dispatcher
}

// Close drains queued transitions. It must run before the app closes the
// recorder.
func (r *watchRuntime) Close() {
	r.dispatcher.Close()
}

// newWatchRuntime builds a watcher notifying to out and a dispatcher with
// every command registered. When transition recording is enabled the
// watcher hands transitions to the dispatcher queue, which feeds the
// recorder in the background.
func (a *app) newWatchRuntime(ctx context.Context, out io.Writer) (*watchRuntime, error) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zerolog("dispatcher")))
	if err != nil {
		return nil, err
	}

	pc := config.GetProximityConfig()
	wopts := proximity.Options{
		ThresholdKm: pc.ThresholdKm,
		Title:       pc.Title,
		Logger:      a.logger,
	}
	recorder := a.transitionRecorder(ctx)
	if recorder != nil {
		wopts.Sink = worker.NewQueuedSink(d, a.logger)
	}

	w, err := proximity.NewWatcher(a.markers, notify.NewLogNotifier(out, a.logger), wopts)
	if err != nil {
		d.Close()
		return nil, err
	}

	worker.NewManager(worker.Dependencies{
		Markers:  a.markers,
		Watcher:  w,
		Recorder: recorder,
		Logger:   a.logger,
	}).RegisterHandlers(d)

	return &watchRuntime{watcher: w, dispatcher: d}, nil
}

// Close releases the store, recorder and log sinks in reverse order.
func (a *app) Close() error {
	var errs []error
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("Failed to close store", "error", err)
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.logs.Close())
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// userError replaces an operation error with its human-readable message.
func userError(err error) error {
	var opErr *core.OpError
	if errors.As(err, &opErr) {
		return errors.New(opErr.Message())
	}
	return err
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) (err error) {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return fn(a)
}
