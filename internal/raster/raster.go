// Package raster owns the iteration buffer a kernel writes into and turns
// finished frames into images.
package raster

import (
	"fmt"

	"github.com/cwbudde/mandelsimd/internal/kernel"
)

// Align is the width multiple of the iteration buffer. It satisfies the
// lane count of every kernel.
const Align = 8

// PaddedWidth rounds width up to a multiple of Align.
func PaddedWidth(width int) int {
	return (width + Align - 1) &^ (Align - 1)
}

// Raster is a growable iteration buffer. Its stride is the visible width
// padded to Align; the padding columns are computed but never shown.
//
// Row 0 of the buffer is the bottom edge of the image (imaginary -1.12).
type Raster struct {
	width  int
	height int
	stride int
	iters  []int32
}

// New returns a raster for a visible width x height frame.
func New(width, height int) (*Raster, error) {
	r := &Raster{}
	if err := r.Resize(width, height); err != nil {
		return nil, err
	}
	return r, nil
}

// Resize changes the visible dimensions. The backing storage only grows.
// The contents are undefined until the next Compute.
func (r *Raster) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", kernel.ErrInvalidDimensions, width, height)
	}

	stride := PaddedWidth(width)
	n := stride * height
	if cap(r.iters) < n {
		r.iters = make([]int32, n)
	}
	r.iters = r.iters[:n]
	r.width, r.height, r.stride = width, height, stride
	return nil
}

// Width returns the visible width.
func (r *Raster) Width() int { return r.width }

// Height returns the number of rows.
func (r *Raster) Height() int { return r.height }

// Stride returns the padded width the kernels compute.
func (r *Raster) Stride() int { return r.stride }

// Iterations returns the buffer, stride*height counts in row-major order.
func (r *Raster) Iterations() []int32 { return r.iters }

// Compute fills the raster with k.
func (r *Raster) Compute(k kernel.Kernel) error {
	return k.Compute(r.iters, r.stride, r.height)
}
