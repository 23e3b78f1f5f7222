//go:build !gpu

package kernel

import "fmt"

func newOpenCLKernel() (Kernel, func(), error) {
	return nil, noopCleanup, fmt.Errorf("%w: build without GPU tag", ErrBackendUnavailable)
}
