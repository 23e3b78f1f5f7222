// Package ui renders the HTML pages of the live view. Components are
// authored in .templ files; run `templ generate` after editing them.
package ui

import (
	"fmt"
	"net/url"
	"time"

	"github.com/a-h/templ"
)

// BackendOption is one entry of the backend selector.
type BackendOption struct {
	Name     string
	Lanes    int
	LanePath string
	Selected bool
}

// IndexData is everything the index page shows.
type IndexData struct {
	Width     int
	Height    int
	Backends  []BackendOption
	LastFrame time.Duration
	HasFrame  bool
	Jobs      []JobListItem
}

// JobListItem summarises a bench job.
type JobListItem struct {
	ID        string
	State     string
	Backends  []string
	Fastest   string
	StartTime time.Time
	Error     string
}

func pageTitle(data IndexData) string {
	return fmt.Sprintf("Mandelbrot %dx%d", data.Width, data.Height)
}

func backendLabel(b BackendOption) string {
	if b.LanePath == "" {
		return b.Name
	}
	return b.Name + " (" + b.LanePath + ")"
}

func frameTiming(data IndexData) string {
	if !data.HasFrame {
		return "no frame yet"
	}
	return fmt.Sprintf("%.3f ms", float64(data.LastFrame.Microseconds())/1000)
}

func frameURL(data IndexData) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/api/v1/frame.png?width=%d&height=%d", data.Width, data.Height))
}

func jobURL(id string) templ.SafeURL {
	return templ.SafeURL("/api/v1/bench/" + url.PathEscape(id))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
