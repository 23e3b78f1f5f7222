package kernel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// Backend identifies a kernel implementation.
type Backend string

const (
	BackendScalar Backend = "scalar"
	BackendQuad   Backend = "quad"
	BackendOct    Backend = "oct"
	BackendGPU    Backend = "gpu"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown kernel backend")
	// ErrBackendUnavailable indicates the backend is not available in this build or on this host.
	ErrBackendUnavailable = errors.New("kernel backend unavailable")
)

var noopCleanup = func() {}

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "scalar", "1", "cpu":
		return BackendScalar
	case "quad", "4", "4-wide", "sse":
		return BackendQuad
	case "oct", "8", "8-wide", "avx":
		return BackendOct
	case "gpu", "opencl", "cl":
		return BackendGPU
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Backend {
	return []Backend{BackendScalar, BackendQuad, BackendOct, BackendGPU}
}

// LanesFor returns the width multiple a backend requires, or 0 for an
// unknown backend.
func LanesFor(b Backend) int {
	switch b {
	case BackendScalar, BackendGPU:
		return 1
	case BackendQuad:
		return 4
	case BackendOct:
		return 8
	default:
		return 0
	}
}

// NewKernelForBackend constructs the requested kernel and returns a cleanup
// hook that releases any device resources. CPU kernels share pool.
func NewKernelForBackend(name string, pool *workerpool.Pool, opts ...Option) (Kernel, func(), error) {
	backend := NormalizeBackend(name)

	switch backend {
	case BackendScalar:
		return NewScalar(pool, opts...), noopCleanup, nil
	case BackendQuad:
		return NewQuad(pool, opts...), noopCleanup, nil
	case BackendOct:
		return NewOct(pool, opts...), noopCleanup, nil
	case BackendGPU:
		return newOpenCLKernel()
	default:
		return nil, noopCleanup, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
