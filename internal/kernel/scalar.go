package kernel

import (
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// Scalar computes one pixel at a time. It accepts any positive width.
type Scalar struct {
	cpuKernel
}

// NewScalar returns a scalar kernel that schedules rows on pool.
// A nil pool runs on the calling goroutine.
func NewScalar(pool *workerpool.Pool, opts ...Option) *Scalar {
	return &Scalar{cpuKernel: newCPUKernel(pool, opts)}
}

func (k *Scalar) Name() Backend { return BackendScalar }

func (k *Scalar) Lanes() int { return 1 }

func (k *Scalar) Compute(buf []int32, width, height int) error {
	return k.ComputeRows(buf, width, height, 0, height)
}

func (k *Scalar) ComputeRows(buf []int32, width, height, rowStart, rowEnd int) error {
	if err := validateRows(buf, width, height, 1, rowStart, rowEnd); err != nil {
		return err
	}

	h, v := Steps(width, height)
	k.rows(rowStart, rowEnd, func(j int) {
		row := buf[j*width : (j+1)*width]
		y0 := planeY(v, j)
		for i := range row {
			row[i] = EscapeTime(planeX(h, i), y0)
		}
	})
	return nil
}
