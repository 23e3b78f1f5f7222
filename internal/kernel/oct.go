package kernel

import (
	"log/slog"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/mandelsimd/internal/lanes"
)

// Oct computes eight horizontally adjacent pixels per step. Width must be
// a multiple of 8.
type Oct struct {
	cpuKernel
}

// NewOct returns an 8-lane kernel that schedules rows on pool.
func NewOct(pool *workerpool.Pool, opts ...Option) *Oct {
	slog.Debug("Oct kernel initialized", "lanes", ActiveOctBackend.String())
	return &Oct{cpuKernel: newCPUKernel(pool, opts)}
}

func (k *Oct) Name() Backend { return BackendOct }

func (k *Oct) Lanes() int { return 8 }

func (k *Oct) Compute(buf []int32, width, height int) error {
	return k.ComputeRows(buf, width, height, 0, height)
}

func (k *Oct) ComputeRows(buf []int32, width, height, rowStart, rowEnd int) error {
	if err := validateRows(buf, width, height, 8, rowStart, rowEnd); err != nil {
		return err
	}

	h, v := Steps(width, height)
	group := octGroup
	k.rows(rowStart, rowEnd, func(j int) {
		row := buf[j*width : (j+1)*width]
		y0 := planeY(v, j)
		for i := 0; i < width; i += 8 {
			group(row[i:i+8], i, h, y0)
		}
	})
	return nil
}

// escapeOctPortable is the 8-lane form of escapeQuadPortable.
func escapeOctPortable(dst []int32, i int, h, y0 float32) {
	x0 := lanes.IotaF32x8(i).Mul(lanes.SplatF32x8(h)).Sub(lanes.SplatF32x8(realOffset))
	cy := lanes.SplatF32x8(y0)
	radius := lanes.SplatF32x8(escapeRadiusSq)
	one := lanes.SplatI32x8(1)
	limit := lanes.SplatI32x8(MaxIterations)

	var x, y lanes.F32x8
	var iters lanes.I32x8
	active := lanes.AllM32x8()
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
