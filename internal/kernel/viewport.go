package kernel

// The fixed viewport of the complex plane.
const (
	RealMin = -2.00
	RealMax = 0.47
	ImagMin = -1.12
	ImagMax = 1.12
)

const (
	// escapeRadiusSq is |z|^2 at which a point has escaped (2.0 squared).
	escapeRadiusSq = 4.0

	realOffset float32 = -RealMin
	imagOffset float32 = -ImagMin
)

// Steps returns the plane distance between neighbouring pixels along the
// real (h) and imaginary (v) axes.
func Steps(width, height int) (h, v float32) {
	h = float32(RealMax-RealMin) / float32(width)
	v = float32(ImagMax-ImagMin) / float32(height)
	return h, v
}

// Map returns the plane point for pixel (i, j) of a width x height raster.
func Map(i, j, width, height int) (x0, y0 float32) {
	h, v := Steps(width, height)
	return planeX(h, i), planeY(v, j)
}

// The product is rounded before the subtraction so no target fuses the two.
func planeX(h float32, i int) float32 {
	return float32(h*float32(i)) - realOffset
}

func planeY(v float32, j int) float32 {
	return float32(v*float32(j)) - imagOffset
}

// EscapeTime iterates z = z^2 + c from z = 0 and returns the number of
// steps taken while |z|^2 <= 4, capped at MaxIterations.
func EscapeTime(x0, y0 float32) int32 {
	var x, y float32
	var n int32
	for n < MaxIterations {
		xx := float32(x * x)
		yy := float32(y * y)
		if !(float32(xx+yy) <= escapeRadiusSq) {
			break
		}
		xy := float32(x * y)
		x = float32(xx-yy) + x0
		y = float32(xy+xy) + y0
		n++
	}
	return n
}
