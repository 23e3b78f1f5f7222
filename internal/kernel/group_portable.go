//go:build !(amd64 && goexperiment.simd)

package kernel

// Without GOEXPERIMENT=simd only the portable lane paths exist.
var (
	archQuadGroup groupFunc
	archOctGroup  groupFunc
)
