package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/kernel/gpu"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show CPU features, lane paths and GPU devices",
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(infoCmd)
}

// hostInfo is everything info reports.
type hostInfo struct {
	GOOS      string             `json:"goos"`
	GOARCH    string             `json:"goarch"`
	CPUs      int                `json:"cpus"`
	Features  kernel.CPUFeatures `json:"features"`
	QuadLanes string             `json:"quadLanes"`
	OctLanes  string             `json:"octLanes"`
	NoSIMD    bool               `json:"noSimd"`
	Platforms []gpu.PlatformInfo `json:"platforms,omitempty"`
	GPUError  string             `json:"gpuError,omitempty"`
}

func collectHostInfo() hostInfo {
	info := hostInfo{
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		Features:  kernel.DetectCPUFeatures(),
		QuadLanes: kernel.ActiveQuadBackend.String(),
		OctLanes:  kernel.ActiveOctBackend.String(),
		NoSIMD:    os.Getenv(kernel.NoSIMDEnv) != "",
	}
	platforms, err := gpu.EnumeratePlatforms()
	if err != nil {
		info.GPUError = err.Error()
	}
	info.Platforms = platforms
	return info
}

func runInfo(cmd *cobra.Command, args []string) error {
	info := collectHostInfo()
	out := cmd.OutOrStdout()

	if infoJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	printHostInfo(out, info)
	return nil
}

func printHostInfo(out io.Writer, info hostInfo) {
	f := info.Features
	fmt.Fprintf(out, "Host:     %s/%s, %d CPUs\n", info.GOOS, info.GOARCH, info.CPUs)
	fmt.Fprintf(out, "Features: avx=%t avx2=%t fma=%t sse4.1=%t asimd=%t\n", f.AVX, f.AVX2, f.FMA, f.SSE41, f.ASIMD)
	fmt.Fprintf(out, "archsimd: %t\n", f.ArchSIMD)
	fmt.Fprintf(out, "Lanes:    quad=%s oct=%s\n", info.QuadLanes, info.OctLanes)
	if info.NoSIMD {
		fmt.Fprintf(out, "          (%s is set, hardware lane paths disabled)\n", kernel.NoSIMDEnv)
	}

	if info.GPUError != "" {
		fmt.Fprintf(out, "GPU:      %s\n", info.GPUError)
		return
	}
	if len(info.Platforms) == 0 {
		fmt.Fprintln(out, "GPU:      no OpenCL platforms")
		return
	}
	for _, p := range info.Platforms {
		fmt.Fprintf(out, "Platform: %s (%s, %s)\n", p.Name, p.Vendor, p.Version)
		for _, d := range p.Devices {
			fmt.Fprintf(out, "  %s device: %s (%s), %d compute units\n", d.Type, d.Name, d.Version, d.MaxComputeUnits)
		}
	}
}
