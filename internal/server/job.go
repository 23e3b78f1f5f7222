package server

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cwbudde/mandelsimd/internal/store"
	"github.com/google/uuid"
)

// JobState represents the current state of a bench job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// BenchJob is a benchmark running in the background.
type BenchJob struct {
	ID         string                `json:"id"`
	State      JobState              `json:"state"`
	Config     store.BenchConfig     `json:"config"`
	FramesDone int                   `json:"framesDone"`
	Results    []store.BackendResult `json:"results,omitempty"`
	Saved      bool                  `json:"saved"`
	StartTime  time.Time             `json:"startTime"`
	EndTime    *time.Time            `json:"endTime,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// TotalFrames is the number of frames the job will time.
func (j *BenchJob) TotalFrames() int {
	return j.Config.Frames * len(j.Config.Backends)
}

// Done reports whether the job reached a terminal state.
func (j *BenchJob) Done() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// JobManager manages the lifecycle of bench jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*BenchJob
	cancels     map[string]context.CancelFunc
	stopped     bool
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*BenchJob),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job with the given configuration
func (jm *JobManager) CreateJob(config store.BenchConfig) BenchJob {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &BenchJob{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a snapshot of a job
func (jm *JobManager) GetJob(id string) (BenchJob, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return BenchJob{}, false
	}
	return *job, true
}

// ListJobs returns snapshots of all jobs, newest first
func (jm *JobManager) ListJobs() []BenchJob {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]BenchJob, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	slices.SortFunc(jobs, func(a, b BenchJob) int {
		return b.StartTime.Compare(a.StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*BenchJob)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []BenchJob {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]BenchJob, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, *job)
		}
	}
	return running
}

// setCancel records how to stop a job. The hook is dropped once the job ends.
// After CancelAll the job is cancelled immediately.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if jm.stopped {
		cancel()
		return
	}
	jm.cancels[id] = cancel
}

func (jm *JobManager) clearCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob stops a running job. It returns false if the job is unknown or
// already finished.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.RLock()
	cancel, ok := jm.cancels[id]
	jm.mu.RUnlock()

	if !ok {
		return false
	}
	cancel()
	return true
}

// CancelAll stops every running job and every job started afterwards.
func (jm *JobManager) CancelAll() {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.stopped = true
	for _, cancel := range jm.cancels {
		cancel()
	}
}
