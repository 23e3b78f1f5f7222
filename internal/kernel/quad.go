package kernel

import (
	"log/slog"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/mandelsimd/internal/lanes"
)

// Quad computes four horizontally adjacent pixels per step. Width must be
// a multiple of 4.
type Quad struct {
	cpuKernel
}

// NewQuad returns a 4-lane kernel that schedules rows on pool.
func NewQuad(pool *workerpool.Pool, opts ...Option) *Quad {
	slog.Debug("Quad kernel initialized", "lanes", ActiveQuadBackend.String())
	return &Quad{cpuKernel: newCPUKernel(pool, opts)}
}

func (k *Quad) Name() Backend { return BackendQuad }

func (k *Quad) Lanes() int { return 4 }

func (k *Quad) Compute(buf []int32, width, height int) error {
	return k.ComputeRows(buf, width, height, 0, height)
}

func (k *Quad) ComputeRows(buf []int32, width, height, rowStart, rowEnd int) error {
	if err := validateRows(buf, width, height, 4, rowStart, rowEnd); err != nil {
		return err
	}

	h, v := Steps(width, height)
	group := quadGroup
	k.rows(rowStart, rowEnd, func(j int) {
		row := buf[j*width : (j+1)*width]
		y0 := planeY(v, j)
		for i := 0; i < width; i += 4 {
			group(row[i:i+4], i, h, y0)
		}
	})
	return nil
}

// escapeQuadPortable iterates pixels i..i+3 of one row in lock step.
//
// A lane leaves the active set the first time |z|^2 > 4 (or is NaN) and
// never rejoins it, even if a later step would bring it back inside.
func escapeQuadPortable(dst []int32, i int, h, y0 float32) {
	x0 := lanes.IotaF32x4(i).Mul(lanes.SplatF32x4(h)).Sub(lanes.SplatF32x4(realOffset))
	cy := lanes.SplatF32x4(y0)
	radius := lanes.SplatF32x4(escapeRadiusSq)
	one := lanes.SplatI32x4(1)
	limit := lanes.SplatI32x4(MaxIterations)

	var x, y lanes.F32x4
	var iters lanes.I32x4
	active := lanes.AllM32x4()
	for {
		xx, yy := x.Mul(x), y.Mul(y)
		escaped := xx.Add(yy).LessEqual(radius).Not()
		active = active.AndNot(escaped)
		if !active.Any() {
			break
		}

		xy := x.Mul(y)
		x = xx.Sub(yy).Add(x0)
		y = xy.Add(xy).Add(cy)

		iters = iters.Add(one).Blend(iters, active)
		active = active.And(iters.Less(limit))
		if !active.Any() {
			break
		}
	}
	iters.Store(dst)
}
