package server

import (
	"net/http"

	"github.com/cwbudde/mandelsimd/internal/store"
	"github.com/cwbudde/mandelsimd/internal/ui"
)

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	width, height := s.appCtx.Size()
	data := ui.IndexData{Width: width, Height: height}

	for _, b := range s.backendInfos() {
		if !b.Available {
			continue
		}
		data.Backends = append(data.Backends, ui.BackendOption{
			Name:     string(b.Name),
			Lanes:    b.Lanes,
			LanePath: b.LanePath,
			Selected: b.Selected,
		})
	}

	if last, ok := s.appCtx.LastFrame(); ok {
		data.LastFrame = last.Elapsed
		data.HasFrame = true
	}

	for _, job := range s.jobManager.ListJobs() {
		item := ui.JobListItem{
			ID:        job.ID,
			State:     string(job.State),
			Backends:  job.Config.Backends,
			StartTime: job.StartTime,
			Error:     job.Error,
		}
		report := store.Report{Results: job.Results}
		if best := report.Fastest(); best != nil {
			item.Fastest = best.Backend
		}
		data.Jobs = append(data.Jobs, item)
	}

	if err := ui.Index(data).Render(r.Context(), w); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}
