//go:build !gpu

package gpu

import "errors"

// ErrNotBuilt indicates the binary was built without GPU support.
var ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")

// Runtime is a placeholder when GPU support is not compiled.
type Runtime struct {
	Platform PlatformInfo
	Device   DeviceInfo
}

// InitOpenCL returns an error when GPU support is not compiled in.
func InitOpenCL() (*Runtime, error) {
	return nil, ErrNotBuilt
}

// Close is a no-op without GPU support.
func (r *Runtime) Close() {}

// EscapeTime is a placeholder when GPU support is not compiled.
type EscapeTime struct{}

// NewEscapeTime returns an error when GPU support is not compiled in.
func NewEscapeTime(*Runtime) (*EscapeTime, error) {
	return nil, ErrNotBuilt
}

// Run returns an error when GPU support is not compiled in.
func (e *EscapeTime) Run([]int32, int, int, float32, float32, int) error {
	return ErrNotBuilt
}

// Close is a no-op without GPU support.
func (e *EscapeTime) Close() {}

// EnumeratePlatforms returns an error when GPU support is not compiled in.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	return nil, ErrNotBuilt
}
