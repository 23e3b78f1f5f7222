// Package kernel computes Mandelbrot escape-time iteration counts into a
// caller-owned buffer.
//
// Four interchangeable kernels implement the same contract:
//
//   - Scalar: one pixel at a time (reference implementation)
//   - Quad:   4 pixels per step using 4-lane vectors
//   - Oct:    8 pixels per step using 8-lane vectors
//   - OpenCL: one GPU work item per pixel (built with -tags gpu)
//
// All kernels map pixels to the complex plane with the same float32
// arithmetic and stop at MaxIterations, so their outputs are identical
// pixel for pixel.
package kernel

import (
	"errors"
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// DefaultRowBatch is the number of rows a worker claims per grab when no
// WithRowBatch option is given.
const DefaultRowBatch = 1

// MaxIterations bounds the work per pixel. A pixel that never escapes is
// written as MaxIterations.
const MaxIterations = 1000

var (
	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("invalid raster dimensions")
	// ErrBufferTooSmall is returned when the buffer cannot hold width*height counts.
	ErrBufferTooSmall = errors.New("iteration buffer too small")
	// ErrLaneMisaligned is returned when width is not a multiple of the kernel's lane count.
	ErrLaneMisaligned = errors.New("width is not a multiple of the kernel lane count")
	// ErrInvalidRowRange is returned by ComputeRows for an empty or out-of-range span.
	ErrInvalidRowRange = errors.New("invalid row range")
)

// Kernel fills an iteration buffer for a width x height raster.
type Kernel interface {
	// Name returns the backend identifier.
	Name() Backend

	// Lanes returns the multiple the raster width must satisfy.
	Lanes() int

	// Compute writes buf[j*width+i] for every pixel. It either fills the
	// whole raster or returns an error without writing.
	Compute(buf []int32, width, height int) error
}

// Validate checks the kernel preconditions for a buffer and raster.
func Validate(buf []int32, width, height, lanes int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if lanes > 1 && width%lanes != 0 {
		return fmt.Errorf("%w: width %d, lanes %d", ErrLaneMisaligned, width, lanes)
	}
	if len(buf) < width*height {
		return fmt.Errorf("%w: have %d, need %d", ErrBufferTooSmall, len(buf), width*height)
	}
	return nil
}

func validateRows(buf []int32, width, height, lanes, rowStart, rowEnd int) error {
	if err := Validate(buf, width, height, lanes); err != nil {
		return err
	}
	if rowStart < 0 || rowEnd > height || rowStart >= rowEnd {
		return fmt.Errorf("%w: [%d, %d) of %d rows", ErrInvalidRowRange, rowStart, rowEnd, height)
	}
	return nil
}

// Option configures a CPU kernel.
type Option func(*cpuKernel)

// WithRowBatch sets how many rows a worker claims at a time.
func WithRowBatch(rows int) Option {
	return func(k *cpuKernel) {
		if rows > 0 {
			k.rowBatch = rows
		}
	}
}

// cpuKernel holds the scheduling state shared by the CPU kernels.
type cpuKernel struct {
	pool     *workerpool.Pool
	rowBatch int
}

func newCPUKernel(pool *workerpool.Pool, opts []Option) cpuKernel {
	k := cpuKernel{pool: pool, rowBatch: DefaultRowBatch}
	for _, opt := range opts {
		opt(&k)
	}
	return k
}

// rows runs fn for every row in [rowStart, rowEnd). Workers claim batches
// of rowBatch rows with an atomic counter; a nil pool runs inline.
func (k *cpuKernel) rows(rowStart, rowEnd int, fn func(j int)) {
	if k.pool == nil {
		for j := rowStart; j < rowEnd; j++ {
			fn(j)
		}
		return
	}
	k.pool.ParallelForAtomicBatched(rowEnd-rowStart, k.rowBatch, func(start, end int) {
		for j := rowStart + start; j < rowStart+end; j++ {
			fn(j)
		}
	})
}
