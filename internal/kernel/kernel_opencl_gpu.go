//go:build gpu

package kernel

import (
	"fmt"
	"sync"

	"github.com/cwbudde/mandelsimd/internal/kernel/gpu"
)

// OpenCL computes one pixel per work item on an OpenCL device.
type OpenCL struct {
	mu      sync.Mutex
	program *gpu.EscapeTime
	Device  gpu.DeviceInfo
}

func newOpenCLKernel() (Kernel, func(), error) {
	rt, err := gpu.InitOpenCL()
	if err != nil {
		return nil, noopCleanup, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	program, err := gpu.NewEscapeTime(rt)
	if err != nil {
		rt.Close()
		return nil, noopCleanup, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	cleanup := func() {
		program.Close()
		rt.Close()
	}

	return &OpenCL{program: program, Device: rt.Device}, cleanup, nil
}

func (k *OpenCL) Name() Backend { return BackendGPU }

func (k *OpenCL) Lanes() int { return 1 }

func (k *OpenCL) Compute(buf []int32, width, height int) error {
	if err := Validate(buf, width, height, 1); err != nil {
		return err
	}

	h, v := Steps(width, height)

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.program.Run(buf, width, height, h, v, MaxIterations); err != nil {
		return fmt.Errorf("failed to run OpenCL kernel: %w", err)
	}
	return nil
}
