package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/pkg/core"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				fmt.Fprintf(cmd.OutOrStdout(), "store ready, %d markers\n", len(a.markers.Markers()))
				return nil
			})
		},
	}
}

func parseCoords(latStr, lonStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", lonStr)
	}
	return lat, lon, nil
}

func printMarker(w io.Writer, m core.Marker) {
	fmt.Fprintf(w, "%s\t%.6f,%.6f\t%d images\t%s\n",
		m.ID, m.Latitude, m.Longitude, len(m.Images), m.CreatedAt.Format(time.RFC3339))
}

func printMarkerDetail(w io.Writer, m core.Marker) {
	printMarker(w, m)
	for _, img := range m.Images {
		fmt.Fprintf(w, "  %s\t%s\n", img.ID, img.URI)
	}
}

func printHits(w io.Writer, hits []geo.Hit) {
	for _, h := range hits {
		fmt.Fprintf(w, "%s\t%.0f m\n", h.Marker.ID, h.DistanceKm*1000)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMarkerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker",
		Short: "Manage markers",
	}

	var addID string
	addCmd := &cobra.Command{
		Use:   "add <lat> <lon>",
		Short: "Drop a marker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parseCoords(args[0], args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				id := addID
				if id == "" {
					id = a.markers.NewMarkerID()
				}
				if err := a.markers.AddMarker(cmd.Context(), id, lat, lon); err != nil {
					return userError(err)
				}
				m, _ := a.markers.Marker(id)
				printMarker(cmd.OutOrStdout(), m)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&addID, "id", "", "Marker ID (generated when empty)")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a marker and its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return userError(a.markers.RemoveMarker(cmd.Context(), args[0]))
			})
		},
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List markers in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				list := a.markers.Markers()
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				for _, m := range list {
					printMarker(cmd.OutOrStdout(), m)
				}
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a marker with its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				m, ok := a.markers.Marker(args[0])
				if !ok {
					return fmt.Errorf("marker %q not found", args[0])
				}
				printMarkerDetail(cmd.OutOrStdout(), m)
				return nil
			})
		},
	}

	var radiusKm float64
	nearCmd := &cobra.Command{
		Use:   "near <lat> <lon>",
		Short: "List markers within a radius, nearest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parseCoords(args[0], args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				hits, err := a.markers.Near(lat, lon, radiusKm)
				if err != nil {
					return err
				}
				printHits(cmd.OutOrStdout(), hits)
				return nil
			})
		},
	}
	nearCmd.Flags().Float64VarP(&radiusKm, "radius", "r", 1.0, "Search radius in km")

	cmd.AddCommand(addCmd, rmCmd, listCmd, showCmd, nearCmd)
	return cmd
}

func newImageCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage marker images",
	}

	var addID string
	addCmd := &cobra.Command{
		Use:   "add <markerID> <uri>",
		Short: "Attach an image URI to a marker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				id := addID
				if id == "" {
					id = a.markers.NewImageID()
				}
				if err := a.markers.AddImageToMarker(cmd.Context(), args[0], id, args[1]); err != nil {
					return userError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&addID, "id", "", "Image ID (generated when empty)")

	rmCmd := &cobra.Command{
		Use:   "rm <imageID>",
		Short: "Detach an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return userError(a.markers.RemoveImageFromMarker(cmd.Context(), args[0]))
			})
		},
	}

	cmd.AddCommand(addCmd, rmCmd)
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		crs     int
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export markers as a GeoJSON FeatureCollection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				data, err := geo.MarshalFeatureCollection(a.markers.Markers(), crs)
				if err != nil {
					return err
				}
				if outPath == "" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				if err := os.WriteFile(outPath, data, 0644); err != nil {
					return fmt.Errorf("writing export: %w", err)
				}
				a.logger.Info("Exported markers", "path", outPath, "crs", crs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&crs, "crs", geo.SRID4326, "Output CRS (4326 or 3857)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")
	return cmd
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <path>",
		Short: "Write a snapshot of the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if err := a.markers.Backup(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.logger.Info("Backup written", "path", args[0])
				return nil
			})
		},
	}
}
