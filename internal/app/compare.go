package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/store"
)

// Comparison is the outcome of running one backend against the scalar
// reference on the current raster shape.
type Comparison struct {
	Backend  kernel.Backend  `json:"backend"`
	Elapsed  time.Duration   `json:"elapsedNs"`
	Mismatch *store.Mismatch `json:"mismatch,omitempty"`
	Err      error           `json:"-"`
}

// Matches reports whether the backend ran and agreed with the reference.
func (c Comparison) Matches() bool {
	return c.Err == nil && c.Mismatch == nil
}

// FirstMismatch returns the first cell where got differs from want, in
// (column, row) coordinates of a buffer with the given stride.
func FirstMismatch(want, got []int32, stride int) *store.Mismatch {
	for idx := range want {
		if idx >= len(got) || want[idx] != got[idx] {
			m := &store.Mismatch{X: idx % stride, Y: idx / stride, Want: want[idx]}
			if idx < len(got) {
				m.Got = got[idx]
			}
			return m
		}
	}
	return nil
}

// Compare runs every backend concurrently on its own buffer and checks it
// against the scalar kernel. Backends that cannot be built are reported
// through Comparison.Err; the returned error is for the reference run or
// cancellation only.
func (c *Context) Compare(ctx context.Context, backends []string) ([]Comparison, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stride, height := c.raster.Stride(), c.raster.Height()

	ref, err := c.kernelFor(kernel.BackendScalar)
	if err != nil {
		return nil, err
	}

	results := make([]Comparison, len(backends))
	kernels := make([]kernel.Kernel, len(backends))
	for i, name := range backends {
		results[i].Backend = kernel.NormalizeBackend(name)
		kernels[i], results[i].Err = c.kernelFor(results[i].Backend)
	}

	want := make([]int32, stride*height)
	bufs := make([][]int32, len(backends))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ref.Compute(want, stride, height); err != nil {
			return fmt.Errorf("failed to compute scalar reference: %w", err)
		}
		return nil
	})
	for i, k := range kernels {
		if k == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bufs[i] = make([]int32, stride*height)
			start := time.Now()
			results[i].Err = k.Compute(bufs[i], stride, height)
			results[i].Elapsed = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].Err == nil && bufs[i] != nil {
			results[i].Mismatch = FirstMismatch(want, bufs[i], stride)
		}
	}
	return results, nil
}
