// Package lanes provides fixed-width vector types for lane-parallel kernels.
//
// The types are plain arrays (F32x4, F32x8, I32x4, I32x8) with value-receiver
// operations written as simple loops so the compiler can keep them in
// registers. Comparisons produce masks (M32x4, M32x8) whose lanes are either
// all ones (-1) or zero, matching the layout of hardware compare results.
//
// Selection between two integer vectors is done with bit logic rather than
// branches:
//
//	result = (a & mask) | (b &^ mask)
//
// Every operation rounds its float32 result explicitly, so a sequence of
// lane operations produces the same bits as the equivalent scalar code.
package lanes
