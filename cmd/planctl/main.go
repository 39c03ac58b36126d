package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dronenav/internal/buildinfo"
	"dronenav/internal/fleet"
	"dronenav/internal/geo"
	"dronenav/internal/geojson"
	"dronenav/internal/logging"
	"dronenav/internal/model"
	"dronenav/internal/pathfind"
	"dronenav/internal/planner"
)

var (
	snapshotFile  string
	endpoint      string
	keyMode       string
	maxExpansions int
	verbose       bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "planctl",
		Short: "Plan drone deliveries offline",
		Long: `planctl runs the delivery planner and the path finder against a fleet
snapshot file or a live inventory service, without starting the API.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&snapshotFile, "fleet", "f", "", "Fleet snapshot file (.json or .yaml)")
	root.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "Inventory service endpoint, used when --fleet is empty")
	root.PersistentFlags().StringVar(&keyMode, "keys", "exact", "Search state keys: exact or grid")
	root.PersistentFlags().IntVar(&maxExpansions, "max-expansions", pathfind.DefaultMaxExpansions, "Cap on expanded nodes per path search, negative for none")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(newPlanCmd(), newPathCmd(), newSnapshotCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newPlanCmd() *cobra.Command {
	var asGeoJSON, sequential bool
	cmd := &cobra.Command{
		Use:   "plan ORDERS.json",
		Short: "Batch orders onto drone flights",
		Long:  `Read a JSON array of orders ("-" for stdin) and print the flight response.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := readOrders(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			src, err := source()
			if err != nil {
				return err
			}
			opts, err := pathOptions()
			if err != nil {
				return err
			}
			log := cliLogger(cmd)
			ctx := cmd.Context()
			svc, err := fleet.NewService(src, log).Freeze(ctx)
			if err != nil {
				return fmt.Errorf("read fleet: %w", err)
			}

			start := time.Now()
			res, err := planner.New(svc, planner.Options{Path: opts, Sequential: sequential, Logger: log}).Run(ctx, orders)
			if err != nil {
				return err
			}
			log.Info("planned", "orders", len(orders), "delivered", len(res.Delivered),
				"flights", len(res.Response.DronePaths), "took", time.Since(start),
				"cacheHits", res.CacheHits, "cacheMisses", res.CacheMisses)

			if asGeoJSON {
				return writeJSON(cmd.OutOrStdout(), geojson.FromFlightResponse(res.Response))
			}
			return writeJSON(cmd.OutOrStdout(), res.Response)
		},
	}
	cmd.Flags().BoolVar(&asGeoJSON, "geojson", false, "Print the flights as a GeoJSON FeatureCollection")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Plan date groups one at a time")
	return cmd
}

func newPathCmd() *cobra.Command {
	var from, to []float64
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Find a flight path between two positions",
		Long:  `Run the path finder from --from to --to around the snapshot's restricted areas.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(from) != 2 || len(to) != 2 {
				return fmt.Errorf("--from and --to take lng,lat")
			}
			src, err := source()
			if err != nil {
				return err
			}
			areas, err := src.RestrictedAreas(cmd.Context())
			if err != nil {
				return fmt.Errorf("read restricted areas: %w", err)
			}
			opts, err := pathOptions()
			if err != nil {
				return err
			}
			opts.Logger = cliLogger(cmd)
			f, err := pathfind.NewFinder(areas, opts)
			if err != nil {
				return err
			}
			path, st := f.FindPathStats(geo.Position{Lng: from[0], Lat: from[1]}, geo.Position{Lng: to[0], Lat: to[1]})
			if !st.Found {
				return fmt.Errorf("no path found after %d expansions", st.Expanded)
			}
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "expanded %d nodes, %d moves\n", st.Expanded, pathfind.Moves(path))
			}
			return writeJSON(cmd.OutOrStdout(), path)
		},
	}
	cmd.Flags().Float64SliceVar(&from, "from", nil, "Start position as lng,lat")
	cmd.Flags().Float64SliceVar(&to, "to", nil, "End position as lng,lat")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Dump the fleet inventory as one JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source()
			if err != nil {
				return err
			}
			snap, err := fleet.Take(cmd.Context(), src)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), buildinfo.Info())
		},
	}
}

func source() (fleet.Source, error) {
	switch {
	case snapshotFile != "":
		snap, err := fleet.LoadSnapshot(snapshotFile)
		if err != nil {
			return nil, err
		}
		return fleet.StaticSource{Snap: snap}, nil
	case endpoint != "":
		return fleet.NewHTTPSource(endpoint), nil
	}
	return nil, fmt.Errorf("one of --fleet or --endpoint is required")
}

func pathOptions() (pathfind.Options, error) {
	keys, err := pathfind.ParseKeyMode(keyMode)
	if err != nil {
		return pathfind.Options{}, err
	}
	return pathfind.Options{Keys: keys, MaxExpansions: maxExpansions}, nil
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log, _ := logging.New(logging.Options{Level: level, Writer: cmd.ErrOrStderr()})
	return log
}

func readOrders(stdin io.Reader, name string) ([]model.Order, error) {
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var orders []model.Order
	if err := json.NewDecoder(r).Decode(&orders); err != nil {
		return nil, fmt.Errorf("orders %s: %w", name, err)
	}
	return orders, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
