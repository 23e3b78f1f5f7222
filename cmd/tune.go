package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/tune"
)

var (
	tuneWidth       int
	tuneHeight      int
	tuneBackend     string
	tuneFrames      int
	tuneMaxWorkers  int
	tuneMaxRowBatch int
	tuneIters       int
	tunePop         int
	tuneSeed        int64
	tuneTop         int
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search worker count and row batch for the fastest frames",
	Long: `Uses the Mayfly optimizer to search worker count and row batch size for
the lowest median frame time of one backend. Each distinct setting is
measured once.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().IntVar(&tuneWidth, "width", 800, "Raster width in pixels")
	tuneCmd.Flags().IntVar(&tuneHeight, "height", 600, "Raster height in pixels")
	tuneCmd.Flags().StringVar(&tuneBackend, "backend", "oct", "Kernel backend to tune")
	tuneCmd.Flags().IntVar(&tuneFrames, "frames", 3, "Frames timed per setting")
	tuneCmd.Flags().IntVar(&tuneMaxWorkers, "max-workers", 0, "Largest worker count tried (0 = GOMAXPROCS)")
	tuneCmd.Flags().IntVar(&tuneMaxRowBatch, "max-row-batch", 16, "Largest row batch tried")
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 10, "Optimizer iterations")
	tuneCmd.Flags().IntVar(&tunePop, "pop", 20, "Optimizer population size (at least 20)")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 42, "Random seed")
	tuneCmd.Flags().IntVar(&tuneTop, "top", 5, "Settings to list")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd.Context())
	defer stop()

	tuner := tune.New(tune.Config{
		Width:       tuneWidth,
		Height:      tuneHeight,
		Backend:     tuneBackend,
		Frames:      tuneFrames,
		MaxWorkers:  tuneMaxWorkers,
		MaxRowBatch: tuneMaxRowBatch,
		Iterations:  tuneIters,
		Population:  tunePop,
		Seed:        tuneSeed,
	})

	result, err := tuner.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKERS\tROW BATCH\tMEDIAN")
	fmt.Fprintln(w, "-------\t---------\t------")
	for i, trial := range result.Trials {
		if i >= tuneTop {
			break
		}
		median := trial.Median.String()
		if trial.Error != "" {
			median = "failed: " + trial.Error
		}
		fmt.Fprintf(w, "%d\t%d\t%s\n", trial.Workers, trial.RowBatch, median)
	}
	w.Flush()

	fmt.Fprintf(out, "\nBest for %s: --workers %d --row-batch %d (%s median, %d settings measured)\n",
		tuneBackend, result.Best.Workers, result.Best.RowBatch, result.Median, len(result.Trials))
	return nil
}
