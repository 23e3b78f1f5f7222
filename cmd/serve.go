package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/app"
	"github.com/cwbudde/mandelsimd/internal/server"
	"github.com/cwbudde/mandelsimd/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveRaster  rasterFlags
	serveBackend string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP live view",
	Long: `Serves the live view: the current frame, backend selection, background
bench jobs and a server-sent event stream of frame timings. Bench reports
are stored under --data-dir.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for report storage")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "scalar", "Initial kernel backend")
	serveRaster.register(serveCmd, 640, 480)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	reports, err := store.NewFSStore(serveDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	appCtx, err := app.New(app.Config{
		Width:    serveRaster.width,
		Height:   serveRaster.height,
		Backend:  serveBackend,
		Workers:  serveRaster.workers,
		RowBatch: serveRaster.rowBatch,
	})
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// First frame so the page has something to show
	if _, err := appCtx.Redraw(); err != nil {
		return err
	}

	srv := server.NewServer(serveAddr, appCtx, reports)

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	errC := make(chan error, 1)
	go func() {
		errC <- srv.Start()
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
