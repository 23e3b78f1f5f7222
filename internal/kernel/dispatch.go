package kernel

import (
	"log/slog"
	"os"

	"golang.org/x/sys/cpu"
)

// LaneBackend indicates which implementation runs a vector kernel's lanes.
type LaneBackend int

const (
	LaneBackendPortable LaneBackend = iota // Fixed-size Go arrays
	LaneBackendAVX                         // archsimd, 128-bit
	LaneBackendAVX2                        // archsimd, 256-bit
)

func (b LaneBackend) String() string {
	switch b {
	case LaneBackendPortable:
		return "portable"
	case LaneBackendAVX:
		return "AVX"
	case LaneBackendAVX2:
		return "AVX2"
	default:
		return "unknown"
	}
}

// NoSIMDEnv disables the archsimd lane paths when set to a non-empty value.
const NoSIMDEnv = "MANDELSIMD_NO_SIMD"

// groupFunc computes the lanes of one pixel group starting at column i of
// a row whose imaginary coordinate is y0. len(dst) equals the lane count.
type groupFunc func(dst []int32, i int, h, y0 float32)

var (
	// ActiveQuadBackend reports which lane path Quad selected at initialization.
	ActiveQuadBackend LaneBackend
	// ActiveOctBackend reports which lane path Oct selected at initialization.
	ActiveOctBackend LaneBackend
)

var (
	quadGroup groupFunc = escapeQuadPortable
	octGroup  groupFunc = escapeOctPortable
)

func init() {
	if os.Getenv(NoSIMDEnv) != "" {
		slog.Debug("Lane kernels initialized", "backend", "portable", "reason", NoSIMDEnv)
		return
	}

	if archQuadGroup != nil && cpu.X86.HasAVX {
		quadGroup = archQuadGroup
		ActiveQuadBackend = LaneBackendAVX
	}
	if archOctGroup != nil && cpu.X86.HasAVX2 {
		octGroup = archOctGroup
		ActiveOctBackend = LaneBackendAVX2
	}
	slog.Debug("Lane kernels initialized", "quad", ActiveQuadBackend.String(), "oct", ActiveOctBackend.String())
}

// CPUFeatures describes the host features relevant to kernel selection.
type CPUFeatures struct {
	AVX      bool `json:"avx"`
	AVX2     bool `json:"avx2"`
	FMA      bool `json:"fma"`
	SSE41    bool `json:"sse41"`
	ASIMD    bool `json:"asimd"`
	ArchSIMD bool `json:"archsimd"`
}

// DetectCPUFeatures reports the host features and whether the binary was
// built with the archsimd lane paths.
func DetectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		AVX:      cpu.X86.HasAVX,
		AVX2:     cpu.X86.HasAVX2,
		FMA:      cpu.X86.HasFMA,
		SSE41:    cpu.X86.HasSSE41,
		ASIMD:    cpu.ARM64.HasASIMD,
		ArchSIMD: archQuadGroup != nil,
	}
}

// Map flattens the features by name.
func (f CPUFeatures) Map() map[string]bool {
	return map[string]bool{
		"avx":      f.AVX,
		"avx2":     f.AVX2,
		"fma":      f.FMA,
		"sse41":    f.SSE41,
		"asimd":    f.ASIMD,
		"archsimd": f.ArchSIMD,
	}
}
