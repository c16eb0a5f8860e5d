package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/geomemo/geomemo/internal/config"
	"github.com/geomemo/geomemo/internal/dispatcher"
	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/internal/location"
	"github.com/geomemo/geomemo/internal/proximity"
	"github.com/geomemo/geomemo/internal/worker"
	"github.com/geomemo/geomemo/pkg/core"
	"github.com/spf13/cobra"
)

func locationOptions() (location.Options, error) {
	lc := config.GetLocationConfig()
	acc, err := location.ParseAccuracy(lc.Accuracy)
	if err != nil {
		return location.Options{}, err
	}
	return location.Options{
		Accuracy:     acc,
		MinInterval:  lc.MinInterval,
		MinDistanceM: lc.MinDistanceM,
	}, nil
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var trackPath string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the proximity watcher over a position track",
		Long: `Reads "lat,lon[,RFC3339]" lines from a file or stdin and prints a
notification whenever a marker comes within reach, and a cancellation when
it is left again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				lopts, err := locationOptions()
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()

				rt, err := a.newWatchRuntime(ctx, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				defer rt.Close()
				w := rt.watcher

				in, err := openTrack(trackPath, cmd.InOrStdin())
				if err != nil {
					return err
				}
				defer in.Close()

				a.logger.Info("Watching", "markers", len(a.markers.Markers()), "track", trackPath)
				if err := w.Run(ctx, location.NewReaderSource(in, a.logger), lopts); err != nil {
					return userError(err)
				}
				a.logger.Info("Watch finished", "near", w.Snapshot().Near())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&trackPath, "file", "f", "", "Track file (stdin when empty)")
	return cmd
}

func newShellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive command loop",
		Long: `Reads one command per line. Mutations and position samples are applied in
order on a single timeline. Type "help" for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				rt, err := a.newWatchRuntime(cmd.Context(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
				defer rt.Close()

				return runShell(cmd.Context(), rt.dispatcher, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

// runShell feeds lines from in to d until EOF, "quit" or ctx is done.
// Command failures are printed and the loop continues.
func runShell(ctx context.Context, d *dispatcher.Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		e, ok := dispatcher.ParseLine(scanner.Text(), time.Now())
		if !ok {
			continue
		}
		switch strings.ToLower(e.Command) {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(out, strings.Join(d.Commands(), "\n"))
			continue
		}

		e.Command = worker.Resolve(e.Command)
		result, err := d.Dispatch(ctx, e)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", userError(err))
			continue
		}
		printResult(out, result)
	}
	return scanner.Err()
}

func printResult(out io.Writer, result any) {
	switch r := result.(type) {
	case nil:
		fmt.Fprintln(out, "ok")
	case core.Marker:
		printMarker(out, r)
	case core.Image:
		fmt.Fprintf(out, "%s\t%s\t%s\n", r.ID, r.MarkerID, r.URI)
	case []core.Marker:
		for _, m := range r {
			printMarker(out, m)
		}
	case []geo.Hit:
		printHits(out, r)
	case []proximity.Event:
		for _, e := range r {
			fmt.Fprintf(out, "%s %s %.0f m\n", e.Kind, e.MarkerID, e.DistanceKm*1000)
		}
	default:
		fmt.Fprintf(out, "%v\n", r)
	}
}

// openTrack opens the track file, or wraps stdin when path is empty or "-".
// Closing the result is safe more than once; the subscription closes it too.
func openTrack(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening track: %w", err)
	}
	return &onceCloser{File: f}, nil
}

type onceCloser struct {
	*os.File
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() { c.err = c.File.Close() })
	return c.err
}
