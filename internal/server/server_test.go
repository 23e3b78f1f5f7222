package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/cwbudde/mandelsimd/internal/app"
	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/store"
)

func newTestServer(t *testing.T, reports store.Store) *Server {
	t.Helper()
	appCtx, err := app.New(app.Config{Width: 24, Height: 16, Workers: 2})
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	s := NewServer(":0", appCtx, reports)
	t.Cleanup(func() {
		s.Shutdown(context.Background())
		appCtx.Close()
	})
	return s
}

func TestServer_Backends(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/backends", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Current  string        `json:"current"`
		Backends []BackendInfo `json:"backends"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Current != "scalar" {
		t.Errorf("Expected current backend scalar, got %s", resp.Current)
	}
	if len(resp.Backends) != len(kernel.SupportedBackends()) {
		t.Fatalf("Expected %d backends, got %d", len(kernel.SupportedBackends()), len(resp.Backends))
	}
	for _, b := range resp.Backends {
		if b.Name == kernel.BackendGPU {
			if !b.Available && b.Error == "" {
				t.Error("Unavailable GPU should report why")
			}
			continue
		}
		if !b.Available {
			t.Errorf("Expected %s to be available: %s", b.Name, b.Error)
		}
		if b.Selected != (b.Name == kernel.BackendScalar) {
			t.Errorf("Unexpected selection flag on %s", b.Name)
		}
	}
}

func TestServer_SelectBackend(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantAfter  kernel.Backend
	}{
		{"alias", `{"backend":"8-wide"}`, http.StatusOK, kernel.BackendOct},
		{"unknown", `{"backend":"bogus"}`, http.StatusBadRequest, kernel.BackendOct},
		{"bad json", `{`, http.StatusBadRequest, kernel.BackendOct},
		{"quad", `{"backend":"quad"}`, http.StatusOK, kernel.BackendQuad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/backend", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			s.handleSelectBackend(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if s.appCtx.Backend() != tt.wantAfter {
				t.Errorf("Expected backend %s, got %s", tt.wantAfter, s.appCtx.Backend())
			}
		})
	}
}

func TestServer_SelectBackend_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/backend", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_FramePNG(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/frame.png?width=17&height=9&backend=quad", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	if got := w.Header().Get("X-Frame-Backend"); got != "quad" {
		t.Errorf("Expected frame backend quad, got %s", got)
	}

	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 17 || b.Dy() != 9 {
		t.Errorf("Expected 17x9 image, got %dx%d", b.Dx(), b.Dy())
	}

	// The per-request backend does not change the selection
	if s.appCtx.Backend() != kernel.BackendScalar {
		t.Errorf("Expected selection to stay scalar, got %s", s.appCtx.Backend())
	}
	if w, h := s.appCtx.Size(); w != 17 || h != 9 {
		t.Errorf("Expected live raster resized to 17x9, got %dx%d", w, h)
	}
}

func TestServer_FrameFormats(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/frame?format=bmp", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/bmp" {
		t.Errorf("Expected image/bmp, got %s", ct)
	}
	img, err := bmp.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("Failed to decode BMP: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 16 {
		t.Errorf("Expected current size 24x16, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestServer_FrameErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"zero width", "width=0", http.StatusUnprocessableEntity},
		{"negative height", "height=-3", http.StatusUnprocessableEntity},
		{"non-numeric", "width=abc", http.StatusBadRequest},
		{"too large", "width=100000", http.StatusBadRequest},
		{"unknown backend", "backend=bogus", http.StatusBadRequest},
		{"unknown format", "format=gif", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/frame.png?"+tt.query, nil)
			w := httptest.NewRecorder()
			s.handleFrame(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	if _, ok := s.appCtx.LastFrame(); ok {
		t.Error("Rejected requests should not produce a frame")
	}
}

func TestServer_FrameStatus(t *testing.T) {
	s := newTestServer(t, nil)

	get := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/frame/status", nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp map[string]any
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp
	}

	resp := get()
	if _, ok := resp["lastFrame"]; ok {
		t.Error("Expected no lastFrame before the first redraw")
	}
	if resp["width"] != float64(24) || resp["workers"] != float64(2) || resp["benching"] != float64(0) {
		t.Errorf("Unexpected status: %v", resp)
	}

	if _, err := s.appCtx.Redraw(); err != nil {
		t.Fatalf("Redraw failed: %v", err)
	}
	resp = get()
	last, ok := resp["lastFrame"].(map[string]any)
	if !ok {
		t.Fatalf("Expected lastFrame after a redraw, got %v", resp)
	}
	if last["stride"] != float64(24) || last["backend"] != "scalar" {
		t.Errorf("Unexpected last frame: %v", last)
	}
}

func TestServer_CreateBench(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"width":16,"height":8,"frames":2,"backends":["1","4-wide"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bench", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job BenchJob
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if got := strings.Join(job.Config.Backends, ","); got != "scalar,quad" {
		t.Errorf("Expected normalized backends scalar,quad, got %s", got)
	}
	if job.Config.Workers != 2 {
		t.Errorf("Expected workers to default to the live pool size, got %d", job.Config.Workers)
	}

	final := waitForJob(t, s, job.ID)
	if final.State != StateCompleted {
		t.Errorf("Expected completed job, got %s: %s", final.State, final.Error)
	}
	if len(final.Results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(final.Results))
	}
}

func TestServer_CreateBench_Defaults(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bench", nil)
	w := httptest.NewRecorder()
	s.handleBench(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job BenchJob
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.Config.Width != 24 || job.Config.Height != 16 {
		t.Errorf("Expected live raster size, got %dx%d", job.Config.Width, job.Config.Height)
	}
	if job.Config.Frames != defaultBenchFrames {
		t.Errorf("Expected %d frames, got %d", defaultBenchFrames, job.Config.Frames)
	}
	if len(job.Config.Backends) != len(kernel.SupportedBackends()) {
		t.Errorf("Expected every backend, got %v", job.Config.Backends)
	}

	waitForJob(t, s, job.ID)
}

func TestServer_CreateBench_ValidationErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"bad json", `{"width":`, http.StatusBadRequest},
		{"negative width", `{"width":-1,"height":8}`, http.StatusUnprocessableEntity},
		{"too many frames", `{"frames":5000}`, http.StatusBadRequest},
		{"unknown backend", `{"backends":["scalar","bogus"]}`, http.StatusBadRequest},
		{"too large", `{"width":9000,"height":8}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bench", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			s.handleCreateBench(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	if len(s.jobManager.ListJobs()) != 0 {
		t.Error("Rejected requests should not create jobs")
	}
}

func TestServer_ListBench(t *testing.T) {
	s := newTestServer(t, nil)
	s.jobManager.CreateJob(testBenchConfig())
	s.jobManager.CreateJob(testBenchConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bench", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var jobs []BenchJob
	if err := json.NewDecoder(w.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_GetBench_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bench/nonexistent", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_GetBench_FromStore(t *testing.T) {
	fs, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	report := store.NewReport(testBenchConfig(), store.CurrentHost(nil), []store.BackendResult{
		{Backend: "scalar", Frames: 2, Median: time.Millisecond, Matches: true},
	})
	if err := fs.SaveReport(report); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	s := newTestServer(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bench/"+report.ID, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var loaded store.Report
	if err := json.NewDecoder(w.Body).Decode(&loaded); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if loaded.ID != report.ID {
		t.Errorf("Expected report %s, got %s", report.ID, loaded.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bench/missing", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for a missing report, got %d", w.Code)
	}
}

func TestServer_CancelBench(t *testing.T) {
	s := newTestServer(t, nil)
	job := s.jobManager.CreateJob(testBenchConfig())

	// Pending with no running worker: nothing to cancel
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bench/"+job.ID+"/cancel", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.setCancel(job.ID, cancel)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/bench/"+job.ID+"/cancel", nil))
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}
	if ctx.Err() == nil {
		t.Error("Expected job context to be cancelled")
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/bench/nonexistent/cancel", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Index(t *testing.T) {
	s := newTestServer(t, nil)
	s.jobManager.CreateJob(testBenchConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML, got %s", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"Mandelbrot 24x16", `value="scalar" selected`, "pending"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bench", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestServer_Events_SSE(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("Expected connected comment, got %q (%v)", line, err)
	}

	if _, err := s.appCtx.Redraw(); err != nil {
		t.Fatalf("Redraw failed: %v", err)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("Stream ended before a frame event: %v", err)
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.Fatalf("Failed to parse event %q: %v", data, err)
		}
		if event.Type != EventFrame || event.Frame == nil {
			t.Fatalf("Expected frame event, got %+v", event)
		}
		if event.Frame.Width != 24 || event.Frame.Backend != kernel.BackendScalar {
			t.Errorf("Unexpected frame stats: %+v", event.Frame)
		}
		return
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe()
	defer eb.Unsubscribe(ch)

	eb.Broadcast(Event{
		Type:  EventBench,
		Bench: &BenchProgress{JobID: "job1", State: StateRunning, FramesDone: 10},
	})

	select {
	case received := <-ch:
		if received.Bench == nil || received.Bench.JobID != "job1" {
			t.Errorf("Expected bench event for job1, got %+v", received)
		}
		if received.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}
}

func TestEventBroadcaster_ReplaysLastEvent(t *testing.T) {
	eb := NewEventBroadcaster()
	eb.Broadcast(Event{Type: EventFrame, Frame: &app.FrameStats{Frame: 7}})

	ch := eb.Subscribe()
	select {
	case received := <-ch:
		if received.Frame == nil || received.Frame.Frame != 7 {
			t.Errorf("Expected replay of frame 7, got %+v", received)
		}
	default:
		t.Error("Expected last event to be replayed")
	}

	eb.Close()
	if _, ok := <-ch; ok {
		t.Error("Expected channel closed")
	}
	eb.Unsubscribe(ch)
	if eb.Clients() != 0 {
		t.Errorf("Expected no clients, got %d", eb.Clients())
	}
}

func TestEventBroadcaster_SkipsFullClients(t *testing.T) {
	eb := NewEventBroadcaster()
	ch := eb.Subscribe()
	defer eb.Unsubscribe(ch)

	for i := 0; i < 50; i++ {
		eb.Broadcast(Event{Type: EventFrame, Frame: &app.FrameStats{Frame: uint64(i)}})
	}
	if len(ch) != cap(ch) {
		t.Errorf("Expected full channel, got %d of %d", len(ch), cap(ch))
	}
}

func TestEventBroadcaster_SubscribeAfterClose(t *testing.T) {
	eb := NewEventBroadcaster()
	eb.Close()

	ch := eb.Subscribe()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Expected a closed channel after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Subscribe after Close returned an open channel")
	}
	if eb.Clients() != 0 {
		t.Errorf("Expected 0 clients, got %d", eb.Clients())
	}
	eb.Unsubscribe(ch)
}

func TestServer_ShutdownCancelsJobs(t *testing.T) {
	s := newTestServer(t, nil)
	job := s.jobManager.CreateJob(testBenchConfig())
	s.jobManager.UpdateJob(job.ID, func(j *BenchJob) { j.State = StateRunning })

	running, cancel := context.WithCancel(context.Background())
	s.jobManager.setCancel(job.ID, cancel)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if running.Err() == nil {
		t.Error("Expected running job to be cancelled")
	}

	late, lateCancel := context.WithCancel(context.Background())
	s.jobManager.setCancel("late", lateCancel)
	if late.Err() == nil {
		t.Error("Expected a job started after Shutdown to be cancelled")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{kernel.ErrLaneMisaligned, http.StatusUnprocessableEntity},
		{kernel.ErrBufferTooSmall, http.StatusUnprocessableEntity},
		{kernel.ErrInvalidRowRange, http.StatusUnprocessableEntity},
		{kernel.ErrUnknownBackend, http.StatusBadRequest},
		{kernel.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{&store.NotFoundError{ID: "x"}, http.StatusNotFound},
		{app.ErrNoFrame, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// waitForJob polls until the job reaches a terminal state.
func waitForJob(t *testing.T, s *Server, id string) BenchJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := s.jobManager.GetJob(id)
		if job.Done() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish", id)
	return BenchJob{}
}
