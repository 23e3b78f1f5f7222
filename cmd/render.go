package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/app"
	"github.com/cwbudde/mandelsimd/internal/raster"
)

var (
	renderRaster  rasterFlags
	renderBackend string
	renderOut     string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one frame to an image file",
	Long: `Computes one frame with the selected backend and writes the shaded image.
The format follows the output extension: .png, .bmp, .tif or .tiff.`,
	RunE: runRender,
}

func init() {
	renderRaster.register(renderCmd, 800, 600)
	renderCmd.Flags().StringVar(&renderBackend, "backend", "oct", "Kernel backend (scalar, quad, oct, gpu)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "mandelbrot.png", "Output image path")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	// Fail on a bad extension before spending time on the frame
	if _, err := raster.FormatFromPath(renderOut); err != nil {
		return err
	}

	appCtx, err := app.New(app.Config{
		Width:    renderRaster.width,
		Height:   renderRaster.height,
		Backend:  renderBackend,
		Workers:  renderRaster.workers,
		RowBatch: renderRaster.rowBatch,
	})
	if err != nil {
		return fmt.Errorf("failed to set up %s backend: %w", renderBackend, err)
	}
	defer appCtx.Close()

	stats, err := appCtx.Redraw()
	if err != nil {
		return err
	}

	img, err := appCtx.Image()
	if err != nil {
		return err
	}
	if err := raster.WriteFile(renderOut, img); err != nil {
		return err
	}

	slog.Info("Frame rendered",
		"backend", stats.Backend,
		"lane_path", app.LanePath(stats.Backend),
		"width", stats.Width,
		"height", stats.Height,
		"elapsed", stats.Elapsed,
		"out", renderOut,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d, %s, %s)\n",
		renderOut, stats.Width, stats.Height, stats.Backend, stats.Elapsed)
	return nil
}
