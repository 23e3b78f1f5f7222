package gpu

import (
	"strings"
	"testing"
)

func TestPickDevicePrefersGPU(t *testing.T) {
	platforms := []PlatformInfo{
		{Name: "cpu-only", Devices: []DeviceInfo{{Name: "cpu0", Type: DeviceTypeCPU}}},
		{Name: "mixed", Devices: []DeviceInfo{
			{Name: "acc0", Type: DeviceTypeAccelerator},
			{Name: "gpu0", Type: DeviceTypeGPU},
		}},
	}

	p, d, ok := pickDevice(platforms)
	if !ok {
		t.Fatal("Expected a device to be picked")
	}
	if got := platforms[p].Devices[d].Name; got != "gpu0" {
		t.Errorf("Expected gpu0, got %s", got)
	}
}

func TestPickDeviceFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		platforms []PlatformInfo
		want      string
		ok        bool
	}{
		{
			name: "cpu before accelerator",
			platforms: []PlatformInfo{
				{Devices: []DeviceInfo{{Name: "acc0", Type: DeviceTypeAccelerator}}},
				{Devices: []DeviceInfo{{Name: "cpu0", Type: DeviceTypeCPU}}},
			},
			want: "cpu0",
			ok:   true,
		},
		{
			name: "first device of any class",
			platforms: []PlatformInfo{
				{Name: "empty"},
				{Devices: []DeviceInfo{{Name: "acc0", Type: DeviceTypeAccelerator}}},
			},
			want: "acc0",
			ok:   true,
		},
		{
			name:      "no devices",
			platforms: []PlatformInfo{{Name: "empty"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, d, ok := pickDevice(tt.platforms)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && tt.platforms[p].Devices[d].Name != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, tt.platforms[p].Devices[d].Name)
			}
		})
	}
}

func TestEscapeTimeSource(t *testing.T) {
	for _, want := range []string{
		"#pragma OPENCL FP_CONTRACT OFF",
		"__kernel void " + KernelName + "(",
		"2.00f",
		"1.12f",
		"!(xx + yy <= 4.0f)",
	} {
		if !strings.Contains(EscapeTimeSource, want) {
			t.Errorf("Expected kernel source to contain %q", want)
		}
	}
	if strings.Contains(BuildOptions, "fast-relaxed-math") || strings.Contains(BuildOptions, "mad-enable") {
		t.Errorf("Build options must not relax float rounding: %q", BuildOptions)
	}
}
