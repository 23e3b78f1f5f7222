package store

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
)

// BenchConfig describes how a benchmark was run.
type BenchConfig struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Frames   int      `json:"frames"`
	Workers  int      `json:"workers"`
	RowBatch int      `json:"rowBatch"`
	Backends []string `json:"backends"`
}

// Mismatch locates the first pixel where a backend disagreed with the
// scalar reference.
type Mismatch struct {
	X    int   `json:"x"`
	Y    int   `json:"y"`
	Want int32 `json:"want"`
	Got  int32 `json:"got"`
}

// BackendResult holds the timing summary for one backend.
type BackendResult struct {
	Backend string `json:"backend"`

	// LanePath is the lane implementation used by vector kernels.
	LanePath string `json:"lanePath,omitempty"`

	Frames int           `json:"frames"`
	Min    time.Duration `json:"minNs"`
	Median time.Duration `json:"medianNs"`
	Mean   time.Duration `json:"meanNs"`

	// MPixelsPerSec is computed from the median frame time.
	MPixelsPerSec float64 `json:"mpixelsPerSec"`

	// Matches reports whether the last frame equalled the scalar reference.
	Matches  bool      `json:"matches"`
	Mismatch *Mismatch `json:"mismatch,omitempty"`

	// Error is set when the backend could not run.
	Error string `json:"error,omitempty"`
}

// HostInfo records where a report was produced.
type HostInfo struct {
	GOOS     string          `json:"goos"`
	GOARCH   string          `json:"goarch"`
	CPUs     int             `json:"cpus"`
	Features map[string]bool `json:"features,omitempty"`
}

// CurrentHost describes the running process.
func CurrentHost(features map[string]bool) HostInfo {
	return HostInfo{
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
		CPUs:     runtime.NumCPU(),
		Features: features,
	}
}

// Report is a persisted benchmark run.
type Report struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Host      HostInfo        `json:"host"`
	Config    BenchConfig     `json:"config"`
	Results   []BackendResult `json:"results"`
}

// ReportInfo contains report metadata without the per-backend results.
type ReportInfo struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Frames    int       `json:"frames"`
	Backends  []string  `json:"backends"`
	Fastest   string    `json:"fastest,omitempty"`
}

// NewReport creates a report with a fresh ID.
func NewReport(config BenchConfig, host HostInfo, results []BackendResult) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Host:      host,
		Config:    config,
		Results:   results,
	}
}

// Fastest returns the successful result with the lowest median, or nil.
func (r *Report) Fastest() *BackendResult {
	var best *BackendResult
	for i := range r.Results {
		res := &r.Results[i]
		if res.Error != "" || res.Frames == 0 {
			continue
		}
		if best == nil || res.Median < best.Median {
			best = res
		}
	}
	return best
}

// ToInfo converts a full Report to ReportInfo (metadata only).
func (r *Report) ToInfo() ReportInfo {
	info := ReportInfo{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Width:     r.Config.Width,
		Height:    r.Config.Height,
		Frames:    r.Config.Frames,
		Backends:  make([]string, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		info.Backends = append(info.Backends, res.Backend)
	}
	if best := r.Fastest(); best != nil {
		info.Fastest = best.Backend
	}
	return info
}

// Validate checks if the report has valid data.
func (r *Report) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Width <= 0 || r.Config.Height <= 0 {
		return &ValidationError{Field: "Config", Reason: fmt.Sprintf("invalid raster %dx%d", r.Config.Width, r.Config.Height)}
	}
	if r.Config.Frames <= 0 {
		return &ValidationError{Field: "Config.Frames", Reason: "must be positive"}
	}
	if len(r.Results) == 0 {
		return &ValidationError{Field: "Results", Reason: "cannot be empty"}
	}
	for i, res := range r.Results {
		if res.Backend == "" {
			return &ValidationError{Field: fmt.Sprintf("Results[%d].Backend", i), Reason: "cannot be empty"}
		}
		if res.Min < 0 || res.Median < res.Min {
			return &ValidationError{Field: fmt.Sprintf("Results[%d]", i), Reason: "timings out of order"}
		}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsComparable checks whether two reports measured the same workload.
func (r *Report) IsComparable(other *Report) error {
	if r.Config.Width != other.Config.Width || r.Config.Height != other.Config.Height {
		return &CompatibilityError{
			Field:    "Raster",
			Expected: fmt.Sprintf("%dx%d", r.Config.Width, r.Config.Height),
			Actual:   fmt.Sprintf("%dx%d", other.Config.Width, other.Config.Height),
		}
	}
	if r.Host.GOARCH != other.Host.GOARCH {
		return &CompatibilityError{Field: "GOARCH", Expected: r.Host.GOARCH, Actual: other.Host.GOARCH}
	}
	return nil
}

// CompatibilityError represents a report comparison mismatch.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

// SortInfos orders report metadata oldest first.
func SortInfos(infos []ReportInfo) {
	slices.SortFunc(infos, func(a, b ReportInfo) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
