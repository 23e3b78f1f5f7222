package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwbudde/mandelsimd/internal/app"
)

// Event types sent on /api/v1/events.
const (
	EventFrame = "frame"
	EventBench = "bench"
)

// BenchProgress summarises a bench job for event subscribers.
type BenchProgress struct {
	JobID       string   `json:"jobId"`
	State       JobState `json:"state"`
	Backend     string   `json:"backend,omitempty"`
	FramesDone  int      `json:"framesDone"`
	TotalFrames int      `json:"totalFrames"`
	Fastest     string   `json:"fastest,omitempty"`
}

// Event is one server-sent event.
type Event struct {
	Type      string          `json:"type"`
	Frame     *app.FrameStats `json:"frame,omitempty"`
	Bench     *BenchProgress  `json:"bench,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventBroadcaster fans events out to SSE connections
type EventBroadcaster struct {
	mu        sync.RWMutex
	clients   map[chan Event]bool
	lastEvent map[string]Event // event type -> last event for new clients
	closed    bool
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[chan Event]bool),
		lastEvent: make(map[string]Event),
	}
}

// Subscribe adds a client. The last event of each type is replayed.
// After Close the returned channel is already closed.
func (eb *EventBroadcaster) Subscribe() chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 10) // Buffered to prevent blocking
	if eb.closed {
		close(ch)
		return ch
	}
	eb.clients[ch] = true

	for _, typ := range []string{EventFrame, EventBench} {
		if last, ok := eb.lastEvent[typ]; ok {
			select {
			case ch <- last:
			default:
			}
		}
	}

	slog.Debug("SSE client subscribed", "total_clients", len(eb.clients))
	return ch
}

// Unsubscribe removes a client and closes its channel
func (eb *EventBroadcaster) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.clients[ch] {
		delete(eb.clients, ch)
		close(ch)
	}

	slog.Debug("SSE client unsubscribed", "total_clients", len(eb.clients))
}

// Broadcast sends an event to every subscribed client
func (eb *EventBroadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.lastEvent[event.Type] = event

	for ch := range eb.clients {
		select {
		case ch <- event:
		default:
			// Slow client, drop rather than stall the redraw
			slog.Warn("SSE channel full, skipping event", "type", event.Type)
		}
	}
}

// Clients returns the number of subscribed clients.
func (eb *EventBroadcaster) Clients() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.clients)
}

// Close disconnects every client.
func (eb *EventBroadcaster) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.closed = true
	for ch := range eb.clients {
		close(ch)
	}
	clear(eb.clients)
}

// handleEvents handles GET /api/v1/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.jobManager.broadcaster.Subscribe()
	defer s.jobManager.broadcaster.Unsubscribe(events)

	// Comment line so clients see the stream open before the first event
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("SSE client disconnected")
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-pingTicker.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format
func writeSSEEvent(w http.ResponseWriter, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
