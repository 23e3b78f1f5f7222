//go:build gpu

package gpu

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <stdlib.h>
#include <CL/cl.h>

static const char* mandel_cl_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BUILD_OPTIONS: return "CL_INVALID_BUILD_OPTIONS";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_WORK_ITEM_SIZE: return "CL_INVALID_WORK_ITEM_SIZE";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	default: return "CL_UNKNOWN_ERROR";
	}
}

static cl_program mandel_create_program(cl_context ctx, const char *src, cl_int *status) {
	return clCreateProgramWithSource(ctx, 1, &src, NULL, status);
}

static cl_int mandel_set_arg_mem(cl_kernel k, cl_uint idx, cl_mem mem) {
	return clSetKernelArg(k, idx, sizeof(cl_mem), &mem);
}

static cl_int mandel_set_arg_int(cl_kernel k, cl_uint idx, cl_int v) {
	return clSetKernelArg(k, idx, sizeof(cl_int), &v);
}

static cl_int mandel_set_arg_float(cl_kernel k, cl_uint idx, cl_float v) {
	return clSetKernelArg(k, idx, sizeof(cl_float), &v);
}

static cl_int mandel_enqueue_2d(cl_command_queue q, cl_kernel k, size_t w, size_t h) {
	const size_t global[2] = {w, h};
	return clEnqueueNDRangeKernel(q, k, 2, NULL, global, NULL, 0, NULL, NULL);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"
)

// Runtime owns the OpenCL context and command queue for one device.
type Runtime struct {
	deviceID C.cl_device_id
	context  C.cl_context
	queue    C.cl_command_queue
	Platform PlatformInfo
	Device   DeviceInfo
}

// ErrNoDevices indicates that no usable OpenCL devices were found.
var ErrNoDevices = errors.New("no OpenCL devices found")

// InitOpenCL selects a device (GPU preferred, then CPU) and creates a context.
func InitOpenCL() (*Runtime, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	infos := make([]PlatformInfo, len(records))
	for i, rec := range records {
		infos[i] = rec.info
	}
	p, d, ok := pickDevice(infos)
	if !ok {
		return nil, ErrNoDevices
	}
	platform, device := records[p], records[p].devices[d]

	var status C.cl_int
	context := C.clCreateContext(nil, 1, &device.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}

	queue := C.clCreateCommandQueue(context, device.id, 0, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseContext(context)
		return nil, statusError("clCreateCommandQueue", status)
	}

	slog.Debug("OpenCL device selected",
		"platform", platform.info.Name,
		"device", device.info.Name,
		"type", device.info.Type,
		"compute_units", device.info.MaxComputeUnits)

	return &Runtime{
		deviceID: device.id,
		context:  context,
		queue:    queue,
		Platform: platform.info,
		Device:   device.info,
	}, nil
}

// Close releases OpenCL resources.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.queue != nil {
		C.clReleaseCommandQueue(r.queue)
		r.queue = nil
	}
	if r.context != nil {
		C.clReleaseContext(r.context)
		r.context = nil
	}
}

// EscapeTime is the compiled escape-time program on a Runtime's device.
type EscapeTime struct {
	rt      *Runtime
	program C.cl_program
	kernel  C.cl_kernel
}

// NewEscapeTime compiles EscapeTimeSource for the runtime's device.
func NewEscapeTime(rt *Runtime) (*EscapeTime, error) {
	src := C.CString(EscapeTimeSource)
	defer C.free(unsafe.Pointer(src))

	var status C.cl_int
	program := C.mandel_create_program(rt.context, src, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}

	opts := C.CString(BuildOptions)
	defer C.free(unsafe.Pointer(opts))

	status = C.clBuildProgram(program, 1, &rt.deviceID, opts, nil, nil)
	if status != C.CL_SUCCESS {
		buildLog := programBuildLog(program, rt.deviceID)
		C.clReleaseProgram(program)
		return nil, fmt.Errorf("%w: %s", statusError("clBuildProgram", status), buildLog)
	}

	name := C.CString(KernelName)
	defer C.free(unsafe.Pointer(name))

	kernel := C.clCreateKernel(program, name, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseProgram(program)
		return nil, statusError("clCreateKernel", status)
	}

	return &EscapeTime{rt: rt, program: program, kernel: kernel}, nil
}

// Run computes width*height iteration counts into dst. The device buffer
// lives only for the duration of the call. Run is not safe for
// concurrent use.
func (e *EscapeTime) Run(dst []int32, width, height int, h, v float32, maxIterations int) error {
	n := width * height
	if len(dst) < n {
		return fmt.Errorf("destination holds %d counts, need %d", len(dst), n)
	}
	size := C.size_t(n * 4)

	var status C.cl_int
	mem := C.clCreateBuffer(e.rt.context, C.CL_MEM_WRITE_ONLY, size, nil, &status)
	if status != C.CL_SUCCESS {
		return statusError("clCreateBuffer", status)
	}
	defer C.clReleaseMemObject(mem)

	args := []struct {
		name   string
		status C.cl_int
	}{
		{"iters", C.mandel_set_arg_mem(e.kernel, 0, mem)},
		{"width", C.mandel_set_arg_int(e.kernel, 1, C.cl_int(width))},
		{"height", C.mandel_set_arg_int(e.kernel, 2, C.cl_int(height))},
		{"h", C.mandel_set_arg_float(e.kernel, 3, C.cl_float(h))},
		{"v", C.mandel_set_arg_float(e.kernel, 4, C.cl_float(v))},
		{"max_iterations", C.mandel_set_arg_int(e.kernel, 5, C.cl_int(maxIterations))},
	}
	for _, arg := range args {
		if arg.status != C.CL_SUCCESS {
			return statusError("clSetKernelArg("+arg.name+")", arg.status)
		}
	}

	status = C.mandel_enqueue_2d(e.rt.queue, e.kernel, C.size_t(width), C.size_t(height))
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueNDRangeKernel", status)
	}

	status = C.clEnqueueReadBuffer(e.rt.queue, mem, C.CL_TRUE, 0, size, unsafe.Pointer(&dst[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", status)
	}
	return nil
}

// Close releases the program and kernel objects.
func (e *EscapeTime) Close() {
	if e == nil {
		return
	}
	if e.kernel != nil {
		C.clReleaseKernel(e.kernel)
		e.kernel = nil
	}
	if e.program != nil {
		C.clReleaseProgram(e.program)
		e.program = nil
	}
}

func programBuildLog(program C.cl_program, device C.cl_device_id) string {
	var size C.size_t
	if C.clGetProgramBuildInfo(program, device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, int(size))
	if C.clGetProgramBuildInfo(program, device, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil) != C.CL_SUCCESS {
		return ""
	}
	return trimNull(buf)
}

// EnumeratePlatforms returns discovered platforms with their devices.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, len(records))
	for i, rec := range records {
		out[i] = rec.info
	}
	return out, nil
}

type platformRecord struct {
	id      C.cl_platform_id
	info    PlatformInfo
	devices []deviceRecord
}

type deviceRecord struct {
	id   C.cl_device_id
	info DeviceInfo
}

func enumeratePlatformRecords() ([]platformRecord, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	platformIDs := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &platformIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	records := make([]platformRecord, 0, int(count))
	for _, pid := range platformIDs {
		rec := platformRecord{id: pid}
		for _, field := range []struct {
			param C.cl_platform_info
			dst   *string
		}{
			{C.CL_PLATFORM_NAME, &rec.info.Name},
			{C.CL_PLATFORM_VENDOR, &rec.info.Vendor},
			{C.CL_PLATFORM_VERSION, &rec.info.Version},
		} {
			value, err := getPlatformString(pid, field.param)
			if err != nil {
				return nil, err
			}
			*field.dst = value
		}

		devices, err := enumerateDevices(pid)
		if err != nil && !errors.Is(err, ErrNoDevices) {
			return nil, err
		}
		rec.devices = devices
		rec.info.Devices = make([]DeviceInfo, len(devices))
		for i, device := range devices {
			rec.info.Devices[i] = device.info
		}

		records = append(records, rec)
	}

	return records, nil
}

func enumerateDevices(platform C.cl_platform_id) ([]deviceRecord, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || (status == C.CL_SUCCESS && count == 0) {
		return nil, ErrNoDevices
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}

	deviceIDs := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, count, &deviceIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]deviceRecord, 0, int(count))
	for _, id := range deviceIDs {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, deviceRecord{id: id, info: info})
	}

	return devices, nil
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	var info DeviceInfo
	for _, field := range []struct {
		param C.cl_device_info
		dst   *string
	}{
		{C.CL_DEVICE_NAME, &info.Name},
		{C.CL_DEVICE_VENDOR, &info.Vendor},
		{C.CL_DEVICE_VERSION, &info.Version},
	} {
		value, err := getDeviceString(id, field.param)
		if err != nil {
			return DeviceInfo{}, err
		}
		*field.dst = value
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(type)", status)
	}
	info.Type = mapDeviceType(rawType)

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(computeUnits)", status)
	}
	info.MaxComputeUnits = uint32(computeUnits)

	return info, nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}
	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}
	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(prefix string, status C.cl_int) error {
	return fmt.Errorf("%s: %s (%d)", prefix, C.GoString(C.mandel_cl_error_string(status)), int(status))
}
