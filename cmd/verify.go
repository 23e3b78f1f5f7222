package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/app"
)

var (
	verifyRaster   rasterFlags
	verifyBackends []string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every backend matches the scalar reference",
	Long: `Runs each backend on the same raster concurrently, each into its own
buffer, and compares every pixel with the scalar reference. Exits non-zero
if any backend that ran disagrees. Unavailable backends are reported and
skipped.`,
	RunE: runVerify,
}

func init() {
	verifyRaster.register(verifyCmd, 1000, 600)
	verifyCmd.Flags().StringSliceVar(&verifyBackends, "backends", defaultBackends(), "Backends to verify")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd.Context())
	defer stop()

	appCtx, err := app.New(app.Config{
		Width:    verifyRaster.width,
		Height:   verifyRaster.height,
		Workers:  verifyRaster.workers,
		RowBatch: verifyRaster.rowBatch,
	})
	if err != nil {
		return err
	}
	defer appCtx.Close()

	comparisons, err := appCtx.Compare(ctx, verifyBackends)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tLANES\tTIME\tRESULT")
	fmt.Fprintln(w, "-------\t-----\t----\t------")

	var failed []string
	for _, c := range comparisons {
		lanes := app.LanePath(c.Backend)
		if lanes == "" {
			lanes = "-"
		}
		switch {
		case c.Err != nil:
			fmt.Fprintf(w, "%s\t%s\t-\tskipped: %v\n", c.Backend, lanes, c.Err)
			slog.Warn("Backend skipped", "backend", c.Backend, "error", c.Err)
		case c.Matches():
			fmt.Fprintf(w, "%s\t%s\t%s\tidentical\n", c.Backend, lanes, c.Elapsed)
		default:
			m := c.Mismatch
			fmt.Fprintf(w, "%s\t%s\t%s\tMISMATCH at (%d,%d): want %d, got %d\n",
				c.Backend, lanes, c.Elapsed, m.X, m.Y, m.Want, m.Got)
			failed = append(failed, string(c.Backend))
		}
	}
	w.Flush()

	if len(failed) > 0 {
		return fmt.Errorf("backends disagree with scalar: %v", failed)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nAll backends that ran agree with scalar on %dx%d.\n",
		verifyRaster.width, verifyRaster.height)
	return nil
}
