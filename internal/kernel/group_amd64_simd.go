//go:build amd64 && goexperiment.simd

package kernel

import (
	"simd/archsimd"

	"github.com/cwbudde/mandelsimd/internal/lanes"
)

var (
	archQuadGroup groupFunc = escapeQuadArchSIMD
	archOctGroup  groupFunc = escapeOctArchSIMD
)

// escapeQuadArchSIMD is escapeQuadPortable on 128-bit registers.
//
// Every lane still active after n steps has iterated exactly n times, so
// the cap is checked on the step counter instead of the lane counts.
func escapeQuadArchSIMD(dst []int32, i int, h, y0 float32) {
	col := lanes.IotaF32x4(i)
	x0 := archsimd.LoadFloat32x4Slice(col[:]).
		Mul(archsimd.BroadcastFloat32x4(h)).
		Sub(archsimd.BroadcastFloat32x4(realOffset))
	cy := archsimd.BroadcastFloat32x4(y0)
	radius := archsimd.BroadcastFloat32x4(escapeRadiusSq)
	one := archsimd.BroadcastInt32x4(1)

	x := archsimd.BroadcastFloat32x4(0)
	y := x
	iters := archsimd.BroadcastInt32x4(0)
	active := archsimd.Mask32x4FromBits(0xF)
	for n := 0; n < MaxIterations; n++ {
		xx, yy := x.Mul(x), y.Mul(y)
		sq := xx.Add(yy)
		active = active.And(sq.Less(radius).Or(sq.Equal(radius)))
		if active.ToBits() == 0 {
			break
		}

		xy := x.Mul(y)
		x = xx.Sub(yy).Add(x0)
		y = xy.Add(xy).Add(cy)
		iters = iters.Add(one).Merge(iters, active)
	}
	iters.StoreSlice(dst)
}

func escapeOctArchSIMD(dst []int32, i int, h, y0 float32) {
	col := lanes.IotaF32x8(i)
	x0 := archsimd.LoadFloat32x8Slice(col[:]).
		Mul(archsimd.BroadcastFloat32x8(h)).
		Sub(archsimd.BroadcastFloat32x8(realOffset))
	cy := archsimd.BroadcastFloat32x8(y0)
	radius := archsimd.BroadcastFloat32x8(escapeRadiusSq)
	one := archsimd.BroadcastInt32x8(1)

	x := archsimd.BroadcastFloat32x8(0)
	y := x
	iters := archsimd.BroadcastInt32x8(0)
	active := archsimd.Mask32x8FromBits(0xFF)
	for n := 0; n < MaxIterations; n++ {
		xx, yy := x.Mul(x), y.Mul(y)
		sq := xx.Add(yy)
		active = active.And(sq.Less(radius).Or(sq.Equal(radius)))
		if active.ToBits() == 0 {
			break
		}

		xy := x.Mul(y)
		x = xx.Sub(yy).Add(x0)
		y = xy.Add(xy).Add(cy)
		iters = iters.Add(one).Merge(iters, active)
	}
	iters.StoreSlice(dst)
}
