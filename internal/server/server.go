// Package server exposes the live Mandelbrot view over HTTP: frames in any
// supported image format, backend selection, background bench jobs and a
// server-sent event stream of frame timings.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/mandelsimd/internal/app"
	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/raster"
	"github.com/cwbudde/mandelsimd/internal/store"
)

const (
	defaultBenchFrames = 5
	maxBenchFrames     = 1000

	// maxDimension bounds requested rasters so one request cannot exhaust memory.
	maxDimension = 8192
)

// Server represents the HTTP server
type Server struct {
	appCtx     *app.Context
	reports    store.Store
	jobManager *JobManager
	addr       string
	server     *http.Server

	pingInterval time.Duration
}

// NewServer creates a server around an application context. reports may be
// nil, in which case bench results are kept in memory only.
func NewServer(addr string, appCtx *app.Context, reports store.Store) *Server {
	s := &Server{
		appCtx:       appCtx,
		reports:      reports,
		jobManager:   NewJobManager(),
		addr:         addr,
		pingInterval: 30 * time.Second,
	}

	appCtx.OnFrame(func(stats app.FrameStats) {
		s.jobManager.broadcaster.Broadcast(Event{Type: EventFrame, Frame: &stats})
	})
	return s
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// UI routes
	mux.HandleFunc("/", s.handleIndex)

	// API routes
	mux.HandleFunc("/api/v1/backends", s.handleBackends)
	mux.HandleFunc("/api/v1/backend", s.handleSelectBackend)
	mux.HandleFunc("/api/v1/frame.png", s.handleFrame)
	mux.HandleFunc("/api/v1/frame", s.handleFrame)
	mux.HandleFunc("/api/v1/frame/status", s.handleFrameStatus)
	mux.HandleFunc("/api/v1/bench", s.handleBench)
	mux.HandleFunc("/api/v1/bench/", s.handleBenchWithID)
	mux.HandleFunc("/api/v1/events", s.handleEvents)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running bench jobs, disconnects event streams and
// gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server",
		"running_jobs", len(s.jobManager.GetRunningJobs()),
		"event_clients", s.jobManager.broadcaster.Clients())
	s.jobManager.CancelAll()
	s.jobManager.broadcaster.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// BackendInfo describes one backend for GET /api/v1/backends.
type BackendInfo struct {
	Name      kernel.Backend `json:"name"`
	Lanes     int            `json:"lanes"`
	LanePath  string         `json:"lanePath,omitempty"`
	Available bool           `json:"available"`
	Error     string         `json:"error,omitempty"`
	Selected  bool           `json:"selected"`
}

func (s *Server) backendInfos() []BackendInfo {
	current := s.appCtx.Backend()
	infos := make([]BackendInfo, 0, len(kernel.SupportedBackends()))
	for _, b := range kernel.SupportedBackends() {
		info := BackendInfo{
			Name:     b,
			Lanes:    kernel.LanesFor(b),
			LanePath: app.LanePath(b),
			Selected: b == current,
		}
		if err := s.appCtx.Available(string(b)); err != nil {
			info.Error = err.Error()
		} else {
			info.Available = true
		}
		infos = append(infos, info)
	}
	return infos
}

// handleBackends handles GET /api/v1/backends
func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current":  s.appCtx.Backend(),
		"backends": s.backendInfos(),
		"cpu":      kernel.DetectCPUFeatures(),
	})
}

// handleSelectBackend handles POST /api/v1/backend
func (s *Server) handleSelectBackend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Backend string `json:"backend"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.appCtx.SetBackend(req.Backend); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"backend": s.appCtx.Backend()})
}

// handleFrame handles GET /api/v1/frame.png?width&height&backend&format.
// Missing dimensions keep the current raster size; a backend given here
// applies to this frame only.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	width, height := s.appCtx.Size()

	var err error
	if width, err = intParam(q.Get("width"), width); err != nil {
		http.Error(w, fmt.Sprintf("Invalid width: %v", err), http.StatusBadRequest)
		return
	}
	if height, err = intParam(q.Get("height"), height); err != nil {
		http.Error(w, fmt.Sprintf("Invalid height: %v", err), http.StatusBadRequest)
		return
	}

	if err := checkSize(width, height); err != nil {
		writeError(w, err)
		return
	}

	format, err := raster.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	img, stats, err := s.appCtx.Render(width, height, q.Get("backend"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := raster.Encode(&buf, img, format); err != nil {
		slog.Error("Failed to encode frame", "format", format, "error", err)
		http.Error(w, "Failed to encode frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Frame-Backend", string(stats.Backend))
	w.Header().Set("X-Frame-Elapsed-Ns", strconv.FormatInt(stats.Elapsed.Nanoseconds(), 10))
	w.Write(buf.Bytes())
}

// handleFrameStatus handles GET /api/v1/frame/status
func (s *Server) handleFrameStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	width, height := s.appCtx.Size()
	response := map[string]any{
		"backend":  s.appCtx.Backend(),
		"lanePath": app.LanePath(s.appCtx.Backend()),
		"width":    width,
		"height":   height,
		"workers":  s.appCtx.Workers(),
		"benching": len(s.jobManager.GetRunningJobs()),
	}
	if last, ok := s.appCtx.LastFrame(); ok {
		response["lastFrame"] = last
	}

	writeJSON(w, http.StatusOK, response)
}

// handleBench handles /api/v1/bench
func (s *Server) handleBench(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBench(w, r)
	case http.MethodGet:
		s.handleListBench(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBenchWithID handles /api/v1/bench/:id and /api/v1/bench/:id/cancel
func (s *Server) handleBenchWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/bench/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetBench(w, r, jobID)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		s.handleCancelBench(w, r, jobID)
	case len(parts) > 2 || (len(parts) == 2 && parts[1] != "cancel"):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreateBench handles POST /api/v1/bench
func (s *Server) handleCreateBench(w http.ResponseWriter, r *http.Request) {
	// An empty body benches every backend on the live raster
	var config store.BenchConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.normalizeBenchConfig(&config); err != nil {
		writeError(w, err)
		return
	}

	job := s.jobManager.CreateJob(config)

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.setCancel(job.ID, cancel)
	go func() {
		defer cancel()
		defer s.jobManager.clearCancel(job.ID)
		runBench(ctx, s.jobManager, s.reports, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// normalizeBenchConfig fills defaults from the live view and rejects
// configurations no kernel could run.
func (s *Server) normalizeBenchConfig(config *store.BenchConfig) error {
	if config.Width == 0 && config.Height == 0 {
		config.Width, config.Height = s.appCtx.Size()
	}
	if config.Width <= 0 || config.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", kernel.ErrInvalidDimensions, config.Width, config.Height)
	}
	if err := checkSize(config.Width, config.Height); err != nil {
		return err
	}
	if config.Frames <= 0 {
		config.Frames = defaultBenchFrames
	}
	if config.Frames > maxBenchFrames {
		return &requestError{msg: fmt.Sprintf("frames must be at most %d", maxBenchFrames)}
	}
	if config.Workers <= 0 {
		config.Workers = s.appCtx.Workers()
	}

	if len(config.Backends) == 0 {
		for _, b := range kernel.SupportedBackends() {
			config.Backends = append(config.Backends, string(b))
		}
	}
	for i, name := range config.Backends {
		b := kernel.NormalizeBackend(name)
		if kernel.LanesFor(b) == 0 {
			return fmt.Errorf("%w: %s", kernel.ErrUnknownBackend, name)
		}
		config.Backends[i] = string(b)
	}
	return nil
}

// handleListBench handles GET /api/v1/bench
func (s *Server) handleListBench(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetBench handles GET /api/v1/bench/:id. Jobs from earlier runs of
// the server are served from the report store.
func (s *Server) handleGetBench(w http.ResponseWriter, r *http.Request, jobID string) {
	if job, exists := s.jobManager.GetJob(jobID); exists {
		writeJSON(w, http.StatusOK, job)
		return
	}

	// Report IDs are job IDs, so anything else cannot name a file
	if _, err := uuid.Parse(jobID); err != nil || s.reports == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	report, err := s.reports.LoadReport(jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleCancelBench handles POST /api/v1/bench/:id/cancel
func (s *Server) handleCancelBench(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if job.Done() || !s.jobManager.CancelJob(jobID) {
		http.Error(w, fmt.Sprintf("Job already %s", job.State), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
