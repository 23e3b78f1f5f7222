package raster

import (
	"image"

	"github.com/cwbudde/mandelsimd/internal/kernel"
)

// shades maps an iteration count to a gray level, from 255 for points
// that escape at once down to 25 for points that never escape.
var shades [kernel.MaxIterations + 1]uint8

func init() {
	for n := range shades {
		shades[n] = shade(int32(n))
	}
}

func shade(n int32) uint8 {
	t := float32(n) / float32(kernel.MaxIterations)
	return uint8(float32((1-t)*255) + float32(t*25))
}

// Shade returns the gray level for an iteration count. Counts outside
// [0, MaxIterations] are clamped.
func Shade(n int32) uint8 {
	switch {
	case n < 0:
		n = 0
	case n > kernel.MaxIterations:
		n = kernel.MaxIterations
	}
	return shades[n]
}

// Image colorizes the visible part of the raster. The image is top-down,
// so buffer row 0 becomes the last image row.
func (r *Raster) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	r.ImageInto(img)
	return img
}

// ImageInto colorizes into img, which must be at least Width x Height.
func (r *Raster) ImageInto(img *image.NRGBA) {
	for j := 0; j < r.height; j++ {
		src := r.iters[j*r.stride : j*r.stride+r.width]
		y := r.height - 1 - j
		dst := img.Pix[y*img.Stride : y*img.Stride+r.width*4]
		for i, n := range src {
			g := Shade(n)
			p := dst[i*4 : i*4+4 : i*4+4]
			p[0], p[1], p[2], p[3] = g, g, g, 0xFF
		}
	}
}
