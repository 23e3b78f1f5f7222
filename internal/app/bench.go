package app

import (
	"context"
	"slices"
	"time"

	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/store"
)

// BenchOptions configures Bench.
type BenchOptions struct {
	Backends []string
	Frames   int

	// Trace, if set, receives every timed frame.
	Trace func(store.FrameEntry)
}

// Summarize returns the minimum, median and mean of d.
func Summarize(d []time.Duration) (minD, median, mean time.Duration) {
	if len(d) == 0 {
		return 0, 0, 0
	}
	sorted := slices.Clone(d)
	slices.Sort(sorted)

	var total time.Duration
	for _, v := range sorted {
		total += v
	}

	mid := len(sorted) / 2
	median = sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[0], median, total / time.Duration(len(sorted))
}

// LanePath names the lane implementation a backend runs on.
func LanePath(b kernel.Backend) string {
	switch b {
	case kernel.BackendQuad:
		return kernel.ActiveQuadBackend.String()
	case kernel.BackendOct:
		return kernel.ActiveOctBackend.String()
	default:
		return ""
	}
}

// Bench times Frames redraws per backend, one backend at a time, on the
// current raster shape. The displayed frame is left untouched. Each
// backend's last frame is checked against the scalar reference.
func (c *Context) Bench(ctx context.Context, opts BenchOptions) ([]store.BackendResult, error) {
	if opts.Frames <= 0 {
		opts.Frames = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stride, width, height := c.raster.Stride(), c.raster.Width(), c.raster.Height()
	pixels := float64(stride * height)

	ref, err := c.kernelFor(kernel.BackendScalar)
	if err != nil {
		return nil, err
	}
	want := make([]int32, stride*height)
	if err := ref.Compute(want, stride, height); err != nil {
		return nil, err
	}

	buf := make([]int32, stride*height)
	results := make([]store.BackendResult, 0, len(opts.Backends))
	for _, name := range opts.Backends {
		b := kernel.NormalizeBackend(name)
		res := store.BackendResult{Backend: string(b), LanePath: LanePath(b)}

		k, err := c.kernelFor(b)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		durations := make([]time.Duration, 0, opts.Frames)
		for frame := 0; frame < opts.Frames; frame++ {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			start := time.Now()
			if err := k.Compute(buf, stride, height); err != nil {
				res.Error = err.Error()
				break
			}
			elapsed := time.Since(start)
			durations = append(durations, elapsed)

			if opts.Trace != nil {
				opts.Trace(store.FrameEntry{
					Frame:     frame,
					Backend:   string(b),
					Width:     width,
					Height:    height,
					Elapsed:   elapsed,
					Timestamp: start,
				})
			}
		}

		res.Frames = len(durations)
		res.Min, res.Median, res.Mean = Summarize(durations)
		if res.Median > 0 {
			res.MPixelsPerSec = pixels / res.Median.Seconds() / 1e6
		}
		if res.Error == "" {
			res.Mismatch = FirstMismatch(want, buf, stride)
			res.Matches = res.Mismatch == nil
		}
		results = append(results, res)
	}
	return results, nil
}

// BenchConfig describes the current context for a stored report.
func (c *Context) BenchConfig(opts BenchOptions) store.BenchConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	backends := make([]string, len(opts.Backends))
	for i, name := range opts.Backends {
		backends[i] = string(kernel.NormalizeBackend(name))
	}
	return store.BenchConfig{
		Width:    c.raster.Width(),
		Height:   c.raster.Height(),
		Frames:   opts.Frames,
		Workers:  c.pool.NumWorkers(),
		RowBatch: c.batch,
		Backends: backends,
	}
}
