package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/mandelsimd/internal/app"
	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/store"
)

// traceDir is implemented by stores that keep per-report files on disk.
type traceDir interface {
	BaseDir() string
}

// runBench executes a bench job in the background on its own context and
// worker pool, so the live view keeps redrawing. If reports is not nil
// the results are saved as a report with the job's ID, and a frame trace
// is written when the store lives on disk.
func runBench(ctx context.Context, jm *JobManager, reports store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *BenchJob) {
		j.State = StateRunning
	}); err != nil {
		return err
	}
	broadcastJob(jm, jobID, "")

	slog.Info("Starting bench job", "job_id", jobID,
		"width", job.Config.Width, "height", job.Config.Height,
		"frames", job.Config.Frames, "backends", job.Config.Backends)

	benchCtx, err := app.New(app.Config{
		Width:    job.Config.Width,
		Height:   job.Config.Height,
		Workers:  job.Config.Workers,
		RowBatch: job.Config.RowBatch,
	})
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to create bench context: %w", err))
		return err
	}
	defer benchCtx.Close()

	var trace *store.TraceWriter
	discardTrace := func() {}
	if fs, ok := reports.(traceDir); ok {
		trace, err = store.NewTraceWriter(fs.BaseDir(), jobID, false)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer trace.Close()
		slog.Debug("Recording bench trace", "job_id", jobID, "path", trace.Path())

		// ListReports skips directories without a report
		discardTrace = func() {
			trace.Close()
			if err := store.DeleteTrace(fs.BaseDir(), jobID); err != nil {
				slog.Warn("Failed to delete bench trace", "job_id", jobID, "error", err)
			}
		}
	}

	// One goroutine times frames, the other records them, so trace I/O
	// stays out of the measured loop.
	entries := make(chan store.FrameEntry, 64)
	var results []store.BackendResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(entries)
		var err error
		results, err = benchCtx.Bench(gctx, app.BenchOptions{
			Backends: job.Config.Backends,
			Frames:   job.Config.Frames,
			Trace: func(e store.FrameEntry) {
				select {
				case entries <- e:
				case <-gctx.Done():
				}
			},
		})
		return err
	})
	g.Go(func() error {
		lastBroadcast := time.Time{}
		for e := range entries {
			if trace != nil {
				if err := trace.Write(e); err != nil {
					return err
				}
			}
			jm.UpdateJob(jobID, func(j *BenchJob) {
				j.FramesDone++
			})
			// Throttle to 10 updates per second
			if time.Since(lastBroadcast) >= 100*time.Millisecond {
				if trace != nil {
					if err := trace.Flush(); err != nil {
						return err
					}
				}
				broadcastJob(jm, jobID, e.Backend)
				lastBroadcast = time.Now()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		discardTrace()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			markJobCancelled(jm, jobID)
			return err
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	saved := false
	if reports != nil {
		report := store.NewReport(job.Config, store.CurrentHost(kernel.DetectCPUFeatures().Map()), results)
		report.ID = jobID
		if err := reports.SaveReport(report); err != nil {
			slog.Warn("Failed to save bench report", "job_id", jobID, "error", err)
		} else {
			saved = true
		}
	}

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *BenchJob) {
		j.State = StateCompleted
		j.Results = results
		j.Saved = saved
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	slog.Info("Bench job completed", "job_id", jobID, "elapsed", endTime.Sub(job.StartTime), "saved", saved)
	broadcastJob(jm, jobID, "")
	return nil
}

// broadcastJob publishes the current state of a job.
func broadcastJob(jm *JobManager, jobID, backend string) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	progress := &BenchProgress{
		JobID:       job.ID,
		State:       job.State,
		Backend:     backend,
		FramesDone:  job.FramesDone,
		TotalFrames: job.TotalFrames(),
	}
	if len(job.Results) > 0 {
		report := store.Report{Results: job.Results}
		if best := report.Fastest(); best != nil {
			progress.Fastest = best.Backend
		}
	}
	jm.broadcaster.Broadcast(Event{Type: EventBench, Bench: progress})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *BenchJob) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Bench job failed", "job_id", jobID, "error", err)
	broadcastJob(jm, jobID, "")
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *BenchJob) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Bench job cancelled", "job_id", jobID)
	broadcastJob(jm, jobID, "")
}
