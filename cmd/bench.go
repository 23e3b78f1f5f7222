package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/app"
	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/store"
)

var (
	benchRaster   rasterFlags
	benchFrames   int
	benchBackends []string
	benchSave     bool
	benchTrace    bool
	benchDataDir  string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time redraws per backend and check them against scalar",
	Long: `Times --frames redraws of each backend on the same raster and prints the
minimum, median and mean frame time. Every backend's output is compared
with the scalar reference. With --save the results are stored as a report
under --data-dir, and --trace also records every frame time.`,
	RunE: runBench,
}

func init() {
	benchRaster.register(benchCmd, 800, 600)
	benchCmd.Flags().IntVar(&benchFrames, "frames", 10, "Frames timed per backend")
	benchCmd.Flags().StringSliceVar(&benchBackends, "backends", defaultBackends(), "Backends to time")
	benchCmd.Flags().BoolVar(&benchSave, "save", false, "Save the results as a report")
	benchCmd.Flags().BoolVar(&benchTrace, "trace", false, "Record every frame time with the report (implies --save)")
	benchCmd.Flags().StringVar(&benchDataDir, "data-dir", "./data", "Base directory for report storage")
	rootCmd.AddCommand(benchCmd)
}

func defaultBackends() []string {
	names := make([]string, 0, len(kernel.SupportedBackends()))
	for _, b := range kernel.SupportedBackends() {
		names = append(names, string(b))
	}
	return names
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd.Context())
	defer stop()

	appCtx, err := app.New(app.Config{
		Width:    benchRaster.width,
		Height:   benchRaster.height,
		Workers:  benchRaster.workers,
		RowBatch: benchRaster.rowBatch,
	})
	if err != nil {
		return err
	}
	defer appCtx.Close()

	opts := app.BenchOptions{Backends: benchBackends, Frames: benchFrames}
	config := appCtx.BenchConfig(opts)
	report := store.NewReport(config, store.CurrentHost(kernel.DetectCPUFeatures().Map()), nil)

	var reports *store.FSStore
	if benchSave || benchTrace {
		reports, err = store.NewFSStore(benchDataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
	}

	var trace *store.TraceWriter
	if benchTrace {
		trace, err = store.NewTraceWriter(reports.BaseDir(), report.ID, false)
		if err != nil {
			return err
		}
		defer trace.Close()
		opts.Trace = func(e store.FrameEntry) {
			if err := trace.Write(e); err != nil {
				slog.Warn("Failed to write frame trace", "error", err)
			}
		}
	}

	slog.Info("Starting bench", "width", config.Width, "height", config.Height,
		"frames", config.Frames, "backends", config.Backends, "workers", config.Workers)

	results, err := appCtx.Bench(ctx, opts)
	if err != nil {
		if trace != nil {
			trace.Close()
			if derr := store.DeleteTrace(reports.BaseDir(), report.ID); derr != nil {
				slog.Warn("Failed to delete frame trace", "error", derr)
			}
		}
		return err
	}
	report.Results = results

	printResults(cmd.OutOrStdout(), report)

	if reports != nil {
		if err := reports.SaveReport(report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nSaved report %s\n", report.ID)
		if trace != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Frame trace: %s\n", trace.Path())
		}
	}

	if mismatched := mismatches(results); len(mismatched) > 0 {
		return fmt.Errorf("backends disagree with scalar: %v", mismatched)
	}
	return nil
}

// printResults writes a result table for a report.
func printResults(out io.Writer, report *store.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tLANES\tFRAMES\tMIN\tMEDIAN\tMEAN\tMPIX/S\tMATCH")
	fmt.Fprintln(w, "-------\t-----\t------\t---\t------\t----\t------\t-----")

	for _, res := range report.Results {
		if res.Error != "" {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t%s\n", res.Backend, res.Error)
			continue
		}
		lanes := res.LanePath
		if lanes == "" {
			lanes = "-"
		}
		match := "yes"
		if !res.Matches {
			match = "no"
			if m := res.Mismatch; m != nil {
				match = fmt.Sprintf("no: (%d,%d) want %d got %d", m.X, m.Y, m.Want, m.Got)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%.1f\t%s\n",
			res.Backend, lanes, res.Frames, res.Min, res.Median, res.Mean, res.MPixelsPerSec, match)
	}
	w.Flush()

	if best := report.Fastest(); best != nil {
		fmt.Fprintf(out, "\nFastest: %s (%s median)\n", best.Backend, best.Median)
	}
}

// mismatches lists the backends that ran but disagreed with scalar.
func mismatches(results []store.BackendResult) []string {
	var names []string
	for _, res := range results {
		if res.Error == "" && !res.Matches {
			names = append(names, res.Backend)
		}
	}
	return names
}

// interruptible returns a context cancelled by Ctrl-C.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}
