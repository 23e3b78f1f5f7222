// Package app holds the application state shared by the CLI and the HTTP
// server: the raster, the selected backend and the kernels built so far.
package app

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/raster"
)

// ErrNoFrame is returned when an image is requested before the first redraw.
var ErrNoFrame = errors.New("no frame rendered yet")

// Config configures a Context.
type Config struct {
	Width    int
	Height   int
	Backend  string
	Workers  int // 0 uses GOMAXPROCS
	RowBatch int // 0 uses kernel.DefaultRowBatch
}

// FrameStats describes one redraw.
type FrameStats struct {
	Frame   uint64         `json:"frame"`
	Backend kernel.Backend `json:"backend"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Stride  int            `json:"stride"`
	Elapsed time.Duration  `json:"elapsedNs"`
	At      time.Time      `json:"at"`
}

type cachedKernel struct {
	kernel  kernel.Kernel
	cleanup func()
}

// Context serialises redraws. All methods are safe for concurrent use.
type Context struct {
	mu       sync.Mutex
	pool     *workerpool.Pool
	opts     []kernel.Option
	batch    int
	raster   *raster.Raster
	backend  kernel.Backend
	kernels  map[kernel.Backend]cachedKernel
	frames   uint64
	last     FrameStats
	hasFrame bool

	listenersMu sync.RWMutex
	listeners   []func(FrameStats)
}

// New creates a context with its own worker pool.
func New(cfg Config) (*Context, error) {
	r, err := raster.New(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}

	batch := cfg.RowBatch
	if batch <= 0 {
		batch = kernel.DefaultRowBatch
	}

	c := &Context{
		pool:    workerpool.New(cfg.Workers),
		opts:    []kernel.Option{kernel.WithRowBatch(batch)},
		batch:   batch,
		raster:  r,
		kernels: make(map[kernel.Backend]cachedKernel),
	}
	if err := c.SetBackend(cfg.Backend); err != nil {
		c.Close()
		return nil, err
	}

	slog.Debug("Application context created",
		"width", cfg.Width, "height", cfg.Height,
		"backend", c.backend, "workers", c.pool.NumWorkers())
	return c, nil
}

// kernelFor returns a cached kernel, building it on first use. c.mu must be held.
func (c *Context) kernelFor(b kernel.Backend) (kernel.Kernel, error) {
	if ck, ok := c.kernels[b]; ok {
		return ck.kernel, nil
	}
	k, cleanup, err := kernel.NewKernelForBackend(string(b), c.pool, c.opts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	c.kernels[b] = cachedKernel{kernel: k, cleanup: cleanup}
	return k, nil
}

// SetBackend selects the kernel used by Redraw. The previous selection is
// kept if the backend is unknown or unavailable.
func (c *Context) SetBackend(name string) error {
	b := kernel.NormalizeBackend(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.kernelFor(b); err != nil {
		return err
	}
	if c.backend != b {
		slog.Info("Backend selected", "backend", b, "previous", c.backend)
	}
	c.backend = b
	return nil
}

// Available reports whether a backend can be built on this host. A
// successful check leaves the kernel cached for later use.
func (c *Context) Available(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.kernelFor(kernel.NormalizeBackend(name))
	return err
}

// Backend returns the current selection.
func (c *Context) Backend() kernel.Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// Workers returns the size of the worker pool.
func (c *Context) Workers() int {
	return c.pool.NumWorkers()
}

// Resize changes the raster dimensions. The current frame is discarded.
func (c *Context) Resize(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if width == c.raster.Width() && height == c.raster.Height() {
		return nil
	}
	if err := c.raster.Resize(width, height); err != nil {
		return err
	}
	c.hasFrame = false
	return nil
}

// Size returns the visible raster dimensions.
func (c *Context) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raster.Width(), c.raster.Height()
}

// Redraw recomputes the frame with the selected backend. On error the
// previous frame, if any, is kept.
func (c *Context) Redraw() (FrameStats, error) {
	c.mu.Lock()
	stats, err := c.redrawLocked()
	c.mu.Unlock()

	if err != nil {
		return FrameStats{}, err
	}
	c.notify(stats)
	return stats, nil
}

func (c *Context) redrawLocked() (FrameStats, error) {
	k, err := c.kernelFor(c.backend)
	if err != nil {
		return FrameStats{}, err
	}

	start := time.Now()
	if err := c.raster.Compute(k); err != nil {
		return FrameStats{}, fmt.Errorf("failed to compute frame with %s: %w", c.backend, err)
	}
	elapsed := time.Since(start)

	c.frames++
	c.last = FrameStats{
		Frame:   c.frames,
		Backend: c.backend,
		Width:   c.raster.Width(),
		Height:  c.raster.Height(),
		Stride:  c.raster.Stride(),
		Elapsed: elapsed,
		At:      start,
	}
	c.hasFrame = true

	slog.Debug("Frame computed", "backend", c.backend, "frame", c.frames, "elapsed", elapsed)
	return c.last, nil
}

// LastFrame returns the stats of the most recent redraw.
func (c *Context) LastFrame() (FrameStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasFrame
}

// Image colorizes the most recent frame.
func (c *Context) Image() (*image.NRGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasFrame {
		return nil, ErrNoFrame
	}
	return c.raster.Image(), nil
}

// Render resizes, selects the backend and redraws under one lock, then
// returns the image. Empty backend keeps the current selection.
func (c *Context) Render(width, height int, backend string) (*image.NRGBA, FrameStats, error) {
	c.mu.Lock()
	stats, img, err := c.renderLocked(width, height, backend)
	c.mu.Unlock()

	if err != nil {
		return nil, FrameStats{}, err
	}
	c.notify(stats)
	return img, stats, nil
}

func (c *Context) renderLocked(width, height int, backend string) (FrameStats, *image.NRGBA, error) {
	b := c.backend
	if backend != "" {
		b = kernel.NormalizeBackend(backend)
		if _, err := c.kernelFor(b); err != nil {
			return FrameStats{}, nil, err
		}
	}
	if width != c.raster.Width() || height != c.raster.Height() {
		if err := c.raster.Resize(width, height); err != nil {
			return FrameStats{}, nil, err
		}
		c.hasFrame = false
	}

	prev := c.backend
	c.backend = b
	stats, err := c.redrawLocked()
	c.backend = prev
	if err != nil {
		return FrameStats{}, nil, err
	}
	return stats, c.raster.Image(), nil
}

// OnFrame registers fn to be called after every successful redraw.
// fn runs on the redrawing goroutine and must not block.
func (c *Context) OnFrame(fn func(FrameStats)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Context) notify(stats FrameStats) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, fn := range c.listeners {
		fn(stats)
	}
}

// Close releases every cached kernel and stops the worker pool.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for b, ck := range c.kernels {
		ck.cleanup()
		delete(c.kernels, b)
	}
	c.pool.Close()
}
