//go:build amd64 && goexperiment.simd

package kernel

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/cpu"
)

func TestArchSIMDSelected(t *testing.T) {
	if os.Getenv(NoSIMDEnv) != "" {
		t.Skipf("%s is set", NoSIMDEnv)
	}
	if cpu.X86.HasAVX && ActiveQuadBackend != LaneBackendAVX {
		t.Errorf("Expected quad lanes %s, got %s", LaneBackendAVX, ActiveQuadBackend)
	}
	if cpu.X86.HasAVX2 && ActiveOctBackend != LaneBackendAVX2 {
		t.Errorf("Expected oct lanes %s, got %s", LaneBackendAVX2, ActiveOctBackend)
	}
	if !DetectCPUFeatures().ArchSIMD {
		t.Error("Expected archsimd to be reported as built in")
	}
}

func TestArchSIMDGroupsMatchPortable(t *testing.T) {
	const width, height = 96, 54
	h, v := Steps(width, height)

	for j := 0; j < height; j++ {
		y0 := planeY(v, j)
		for i := 0; i < width; i += 8 {
			if cpu.X86.HasAVX {
				want := make([]int32, 4)
				got := make([]int32, 4)
				escapeQuadPortable(want, i, h, y0)
				escapeQuadArchSIMD(got, i, h, y0)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("quad group at (%d,%d) mismatch (-portable +archsimd):\n%s", i, j, diff)
				}
			}
			if cpu.X86.HasAVX2 {
				want := make([]int32, 8)
				got := make([]int32, 8)
				escapeOctPortable(want, i, h, y0)
				escapeOctArchSIMD(got, i, h, y0)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("oct group at (%d,%d) mismatch (-portable +archsimd):\n%s", i, j, diff)
				}
			}
		}
	}
}
