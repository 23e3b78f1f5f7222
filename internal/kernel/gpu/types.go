package gpu

// DeviceType describes the class of an OpenCL device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// DeviceInfo captures metadata about an OpenCL device.
type DeviceInfo struct {
	Name            string     `json:"name"`
	Vendor          string     `json:"vendor"`
	Version         string     `json:"version"`
	Type            DeviceType `json:"type"`
	MaxComputeUnits uint32     `json:"max_compute_units"`
}

// PlatformInfo captures metadata about an OpenCL platform and its devices.
type PlatformInfo struct {
	Name    string       `json:"name"`
	Vendor  string       `json:"vendor"`
	Version string       `json:"version"`
	Devices []DeviceInfo `json:"devices"`
}

// devicePreference is the order in which device classes are chosen.
var devicePreference = []DeviceType{DeviceTypeGPU, DeviceTypeCPU}

// pickDevice returns the platform and device index to use, preferring the
// classes in devicePreference and then the first device of any class.
func pickDevice(platforms []PlatformInfo) (platform, device int, ok bool) {
	for _, want := range devicePreference {
		for p, info := range platforms {
			for d, dev := range info.Devices {
				if dev.Type == want {
					return p, d, true
				}
			}
		}
	}
	for p, info := range platforms {
		if len(info.Devices) > 0 {
			return p, 0, true
		}
	}
	return 0, 0, false
}
