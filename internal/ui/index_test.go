package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestIndexRendersBackendsAndJobs(t *testing.T) {
	data := IndexData{
		Width:  320,
		Height: 200,
		Backends: []BackendOption{
			{Name: "scalar", Lanes: 1},
			{Name: "oct", Lanes: 8, LanePath: "AVX2", Selected: true},
		},
		LastFrame: 1500 * time.Microsecond,
		HasFrame:  true,
		Jobs: []JobListItem{
			{ID: "0123456789abcdef", State: "completed", Backends: []string{"scalar", "oct"}, Fastest: "oct"},
		},
	}

	var buf bytes.Buffer
	if err := Index(data).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<h1>Mandelbrot 320x200</h1>",
		`<option value="oct" selected>oct (AVX2)</option>`,
		"1.500 ms",
		`href="/api/v1/bench/0123456789abcdef">01234567</a>`,
		"EventSource('/api/v1/events')",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}
}

func TestIndexEscapes(t *testing.T) {
	data := IndexData{
		Width: 8, Height: 8,
		Jobs: []JobListItem{{ID: "<script>", State: "failed"}},
	}

	var buf bytes.Buffer
	if err := Index(data).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(buf.String(), "<td><a href=\"/api/v1/bench/<script>") {
		t.Error("Job ID was not escaped")
	}
	if !strings.Contains(buf.String(), "no frame yet") {
		t.Error("Expected placeholder timing without a frame")
	}
}

func TestJobList(t *testing.T) {
	tests := []struct {
		name string
		jobs []JobListItem
		want []string
	}{
		{
			name: "empty",
			want: []string{`<p class="empty">No bench jobs yet.</p>`},
		},
		{
			name: "failed job",
			jobs: []JobListItem{{
				ID:        "abc",
				State:     "failed",
				Backends:  []string{"scalar", "quad"},
				StartTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				Error:     "boom",
			}},
			want: []string{
				`<tr data-state="failed" title="boom">`,
				`<td>scalar, quad</td>`,
				`<td>2026-01-02T03:04:05Z</td>`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := JobList(tt.jobs).Render(context.Background(), &buf); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("Expected %q in %q", want, buf.String())
				}
			}
		})
	}
}

func TestIndexFrameImage(t *testing.T) {
	var buf bytes.Buffer
	if err := Index(IndexData{Width: 64, Height: 48}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := `src="/api/v1/frame.png?width=64&amp;height=48" width="64" height="48"`
	if !strings.Contains(buf.String(), want) {
		t.Errorf("Expected %q in page", want)
	}
}
