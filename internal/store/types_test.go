package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestReport_JSONField(t *testing.T) {
	report := createTestReport("report-1")

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	results := raw["results"].([]any)
	first := results[0].(map[string]any)
	if first["medianNs"] != float64(100*time.Millisecond) {
		t.Errorf("Expected medianNs in nanoseconds, got %v", first["medianNs"])
	}
	if _, ok := first["error"]; ok {
		t.Error("Expected empty error to be omitted")
	}
}

func TestReport_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Report)
		field  string
	}{
		{"valid", func(*Report) {}, ""},
		{"empty id", func(r *Report) { r.ID = "" }, "ID"},
		{"zero timestamp", func(r *Report) { r.Timestamp = time.Time{} }, "Timestamp"},
		{"zero width", func(r *Report) { r.Config.Width = 0 }, "Config"},
		{"no frames", func(r *Report) { r.Config.Frames = 0 }, "Config.Frames"},
		{"no results", func(r *Report) { r.Results = nil }, "Results"},
		{"unnamed backend", func(r *Report) { r.Results[0].Backend = "" }, "Results[0].Backend"},
		{"median below min", func(r *Report) { r.Results[1].Median = time.Millisecond }, "Results[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := createTestReport("report-1")
			tt.mutate(report)

			err := report.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid report, got %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestReport_Fastest(t *testing.T) {
	report := createTestReport("report-1")
	report.Results = append(report.Results, BackendResult{Backend: "gpu", Error: "unavailable"})

	best := report.Fastest()
	if best == nil || best.Backend != "oct" {
		t.Fatalf("Expected oct to be fastest, got %+v", best)
	}

	report.Results = []BackendResult{{Backend: "gpu", Error: "unavailable"}}
	if report.Fastest() != nil {
		t.Error("Expected no fastest backend when all failed")
	}
}

func TestReport_ToInfo(t *testing.T) {
	report := createTestReport("report-1")

	want := ReportInfo{
		ID:        "report-1",
		Timestamp: report.Timestamp,
		Width:     960,
		Height:    540,
		Frames:    10,
		Backends:  []string{"scalar", "oct"},
		Fastest:   "oct",
	}
	if diff := cmp.Diff(want, report.ToInfo()); diff != "" {
		t.Errorf("ToInfo mismatch (-want +got):\n%s", diff)
	}
}

func TestReport_IsComparable(t *testing.T) {
	a := createTestReport("a")
	b := createTestReport("b")
	if err := a.IsComparable(b); err != nil {
		t.Errorf("Expected comparable reports, got %v", err)
	}

	b.Config.Height = 100
	var cerr *CompatibilityError
	if err := a.IsComparable(b); !errors.As(err, &cerr) || cerr.Field != "Raster" {
		t.Errorf("Expected raster CompatibilityError, got %v", err)
	}

	b = createTestReport("b")
	b.Host.GOARCH = "arm64"
	if err := a.IsComparable(b); !errors.As(err, &cerr) || cerr.Field != "GOARCH" {
		t.Errorf("Expected GOARCH CompatibilityError, got %v", err)
	}
}

func TestNewReport(t *testing.T) {
	before := time.Now()
	report := NewReport(BenchConfig{Width: 8, Height: 8, Frames: 1}, CurrentHost(map[string]bool{"avx2": true}), nil)

	if _, err := uuid.Parse(report.ID); err != nil {
		t.Errorf("Expected a UUID id, got %q", report.ID)
	}
	if report.Timestamp.Before(before) {
		t.Error("Timestamp should be set to now")
	}
	if report.Host.CPUs <= 0 || report.Host.GOOS == "" {
		t.Errorf("Host info incomplete: %+v", report.Host)
	}
	if !report.Host.Features["avx2"] {
		t.Error("Expected features to be recorded")
	}
}
