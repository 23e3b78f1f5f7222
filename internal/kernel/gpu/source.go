package gpu

// KernelName is the entry point in EscapeTimeSource.
const KernelName = "escape_time"

// EscapeTimeSource computes one pixel per work item over a 2D range of
// (width, height). The pixel steps h and v come from the host so that the
// device maps pixels with the same float32 values as the CPU kernels.
// Contraction is disabled so mul+add pairs are rounded separately.
const EscapeTimeSource = `
#pragma OPENCL FP_CONTRACT OFF

__kernel void escape_time(__global int *iters,
                          const int width,
                          const int height,
                          const float h,
                          const float v,
                          const int max_iterations)
{
    const int i = get_global_id(0);
    const int j = get_global_id(1);
    if (i >= width || j >= height) {
        return;
    }

    const float x0 = h * (float)i - 2.00f;
    const float y0 = v * (float)j - 1.12f;

    float x = 0.0f;
    float y = 0.0f;
    int n = 0;
    while (n < max_iterations) {
        const float xx = x * x;
        const float yy = y * y;
        if (!(xx + yy <= 4.0f)) {
            break;
        }
        const float xy = x * y;
        x = (xx - yy) + x0;
        y = (xy + xy) + y0;
        n++;
    }
    iters[j * width + i] = n;
}
`

// BuildOptions are passed to clBuildProgram. No fast-math options are set,
// so single-precision add and multiply stay correctly rounded.
const BuildOptions = "-cl-std=CL1.2"
