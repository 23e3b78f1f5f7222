package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/store"
)

func newTestContext(t *testing.T, width, height int, backend string) *Context {
	t.Helper()
	c, err := New(Config{Width: width, Height: height, Backend: backend, Workers: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewDefaults(t *testing.T) {
	c := newTestContext(t, 17, 9, "")

	if c.Backend() != kernel.BackendScalar {
		t.Errorf("Expected scalar default, got %s", c.Backend())
	}
	if w, h := c.Size(); w != 17 || h != 9 {
		t.Errorf("Expected 17x9, got %dx%d", w, h)
	}
	if c.Workers() != 2 {
		t.Errorf("Expected 2 workers, got %d", c.Workers())
	}
	if _, ok := c.LastFrame(); ok {
		t.Error("Expected no frame before the first redraw")
	}
	if _, err := c.Image(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame, got %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Width: 0, Height: 10}); !errors.Is(err, kernel.ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions, got %v", err)
	}
	if _, err := New(Config{Width: 8, Height: 8, Backend: "cuda"}); !errors.Is(err, kernel.ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}

func TestRedrawAnyWidth(t *testing.T) {
	// The padded stride lets the vector kernels run on odd widths.
	c := newTestContext(t, 17, 5, "oct")

	stats, err := c.Redraw()
	if err != nil {
		t.Fatalf("Redraw failed: %v", err)
	}
	if stats.Backend != kernel.BackendOct || stats.Stride != 24 || stats.Width != 17 || stats.Frame != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	img, err := c.Image()
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	if img.Bounds().Dx() != 17 || img.Bounds().Dy() != 5 {
		t.Errorf("Expected 17x5 image, got %v", img.Bounds())
	}
}

func TestSetBackendKeepsSelectionOnError(t *testing.T) {
	c := newTestContext(t, 8, 8, "quad")

	if err := c.SetBackend("bogus"); !errors.Is(err, kernel.ErrUnknownBackend) {
		t.Fatalf("Expected ErrUnknownBackend, got %v", err)
	}
	if c.Backend() != kernel.BackendQuad {
		t.Errorf("Expected quad to stay selected, got %s", c.Backend())
	}

	if err := c.SetBackend("AVX"); err != nil {
		t.Fatalf("SetBackend failed: %v", err)
	}
	if c.Backend() != kernel.BackendOct {
		t.Errorf("Expected oct, got %s", c.Backend())
	}
}

func TestResizeDiscardsFrame(t *testing.T) {
	c := newTestContext(t, 8, 8, "scalar")
	if _, err := c.Redraw(); err != nil {
		t.Fatal(err)
	}

	if err := c.Resize(8, 8); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.LastFrame(); !ok {
		t.Error("Same-size resize should keep the frame")
	}

	if err := c.Resize(32, 16); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Image(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame after resize, got %v", err)
	}
	if err := c.Resize(-1, 16); !errors.Is(err, kernel.ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions, got %v", err)
	}
}

func TestRenderUsesRequestedBackendOnce(t *testing.T) {
	c := newTestContext(t, 8, 8, "scalar")

	img, stats, err := c.Render(40, 24, "quad")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if stats.Backend != kernel.BackendQuad {
		t.Errorf("Expected quad frame, got %s", stats.Backend)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 24 {
		t.Errorf("Expected 40x24 image, got %v", img.Bounds())
	}
	if c.Backend() != kernel.BackendScalar {
		t.Errorf("Render must not change the selection, got %s", c.Backend())
	}

	if _, _, err := c.Render(40, 24, "bogus"); !errors.Is(err, kernel.ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
	if last, _ := c.LastFrame(); last.Backend != kernel.BackendQuad {
		t.Errorf("Failed render should keep the previous frame, got %+v", last)
	}
}

func TestOnFrame(t *testing.T) {
	c := newTestContext(t, 8, 8, "oct")

	var calls atomic.Int32
	c.OnFrame(func(stats FrameStats) {
		if stats.Backend == kernel.BackendOct {
			calls.Add(1)
		}
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Redraw(); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 notifications, got %d", calls.Load())
	}
}

func TestCompare(t *testing.T) {
	c := newTestContext(t, 61, 37, "scalar")

	results, err := c.Compare(context.Background(), []string{"scalar", "quad", "oct", "bogus"})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for _, res := range results[:3] {
		if !res.Matches() {
			t.Errorf("%s: expected match, got mismatch %+v err %v", res.Backend, res.Mismatch, res.Err)
		}
	}
	if !errors.Is(results[3].Err, kernel.ErrUnknownBackend) || results[3].Matches() {
		t.Errorf("Expected unknown backend error, got %v", results[3].Err)
	}
}

func TestCompareCancelled(t *testing.T) {
	c := newTestContext(t, 8, 8, "scalar")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Compare(ctx, []string{"quad"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFirstMismatch(t *testing.T) {
	want := []int32{1, 2, 3, 4, 5, 6}
	if m := FirstMismatch(want, []int32{1, 2, 3, 4, 5, 6}, 3); m != nil {
		t.Errorf("Expected no mismatch, got %+v", m)
	}

	m := FirstMismatch(want, []int32{1, 2, 3, 4, 9, 6}, 3)
	if m == nil || m.X != 1 || m.Y != 1 || m.Want != 5 || m.Got != 9 {
		t.Errorf("Unexpected mismatch %+v", m)
	}

	m = FirstMismatch(want, []int32{1, 2}, 3)
	if m == nil || m.X != 2 || m.Y != 0 {
		t.Errorf("Expected short buffer mismatch at (2,0), got %+v", m)
	}
}

func TestSummarize(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name              string
		in                []time.Duration
		min, median, mean time.Duration
	}{
		{"empty", nil, 0, 0, 0},
		{"odd", []time.Duration{5 * ms, 1 * ms, 3 * ms}, 1 * ms, 3 * ms, 3 * ms},
		{"even", []time.Duration{4 * ms, 1 * ms, 2 * ms, 9 * ms}, 1 * ms, 3 * ms, 4 * ms},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minD, median, mean := Summarize(tt.in)
			if minD != tt.min || median != tt.median || mean != tt.mean {
				t.Errorf("Summarize = %v/%v/%v, want %v/%v/%v", minD, median, mean, tt.min, tt.median, tt.mean)
			}
		})
	}
}

func TestBench(t *testing.T) {
	c := newTestContext(t, 24, 16, "scalar")
	if _, err := c.Redraw(); err != nil {
		t.Fatal(err)
	}
	before, _ := c.LastFrame()

	var traced []store.FrameEntry
	opts := BenchOptions{
		Backends: []string{"scalar", "sse", "avx", "bogus"},
		Frames:   3,
		Trace:    func(e store.FrameEntry) { traced = append(traced, e) },
	}
	results, err := c.Bench(context.Background(), opts)
	if err != nil {
		t.Fatalf("Bench failed: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for _, res := range results[:3] {
		if res.Frames != 3 || !res.Matches || res.Error != "" {
			t.Errorf("%s: unexpected result %+v", res.Backend, res)
		}
		if res.Min > res.Median {
			t.Errorf("%s: min %v above median %v", res.Backend, res.Min, res.Median)
		}
	}
	if results[1].Backend != "quad" || results[1].LanePath == "" {
		t.Errorf("Expected normalized quad with lane path, got %+v", results[1])
	}
	if results[3].Error == "" || results[3].Frames != 0 {
		t.Errorf("Expected error for bogus backend, got %+v", results[3])
	}
	if len(traced) != 9 {
		t.Errorf("Expected 9 traced frames, got %d", len(traced))
	}

	after, _ := c.LastFrame()
	if after != before {
		t.Error("Bench must not replace the displayed frame")
	}

	cfg := c.BenchConfig(opts)
	if cfg.Width != 24 || cfg.Workers != 2 || cfg.RowBatch != 1 || cfg.Backends[2] != "oct" {
		t.Errorf("Unexpected bench config %+v", cfg)
	}
}

func TestBenchCancelled(t *testing.T) {
	c := newTestContext(t, 8, 8, "scalar")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Bench(ctx, BenchOptions{Backends: []string{"scalar"}, Frames: 5})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestAvailable(t *testing.T) {
	c := newTestContext(t, 8, 8, "")

	for _, name := range []string{"scalar", "4", "avx"} {
		if err := c.Available(name); err != nil {
			t.Errorf("Expected %s to be available, got %v", name, err)
		}
	}
	if err := c.Available("bogus"); !errors.Is(err, kernel.ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}
