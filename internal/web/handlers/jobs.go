package handlers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/me-in-moments/internal/constants"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
	"github.com/kozaktomas/me-in-moments/internal/matcher"
	"github.com/kozaktomas/me-in-moments/internal/workspace"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// MatchJob is one matching run started through the API.
type MatchJob struct {
	EventBroadcaster

	ID              string
	Reference       string
	Status          JobStatus
	Progress        int
	TotalImages     int
	ProcessedImages int
	Error           string
	ErrorKind       string
	StartedAt       time.Time
	CompletedAt     *time.Time

	workspace *workspace.Workspace
	targets   []matcher.Target
	refPath   string
	result    *matcher.Result
	err       error
}

// GetStatus returns the current job status (implements SSEJob).
func (j *MatchJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// JobView is the JSON representation of a job.
type JobView struct {
	ID              string     `json:"id"`
	Reference       string     `json:"reference"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	TotalImages     int        `json:"total_images"`
	ProcessedImages int        `json:"processed_images"`
	Error           string     `json:"error,omitempty"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Snapshot returns a consistent copy of the job state.
func (j *MatchJob) Snapshot() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobView{
		ID:              j.ID,
		Reference:       j.Reference,
		Status:          j.Status,
		Progress:        j.Progress,
		TotalImages:     j.TotalImages,
		ProcessedImages: j.ProcessedImages,
		Error:           j.Error,
		ErrorKind:       j.ErrorKind,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

// Result returns the finished run, or the error that ended it.
func (j *MatchJob) Result() (*matcher.Result, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.err
}

// Cancel cancels the match job.
func (j *MatchJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.mu.Lock()
	if j.Status == JobStatusPending || j.Status == JobStatusRunning {
		j.Status = JobStatusCancelled
		j.finish()
	}
	j.mu.Unlock()
}

// setProgress records a finished target. Callers must not hold j.mu.
func (j *MatchJob) setProgress(info matcher.ProgressInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ProcessedImages = info.Current
	if info.Total > 0 {
		j.Progress = info.Current * 100 / info.Total
	}
}

func (j *MatchJob) complete(result *matcher.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = result
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.finish()
}

func (j *MatchJob) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
	j.Error = err.Error()
	if kind := facematch.Kind(err); kind != nil {
		j.ErrorKind = kind.Error()
	}
	j.Status = JobStatusFailed
	j.finish()
}

// finish stamps the completion time. Callers must hold j.mu.
func (j *MatchJob) finish() {
	if j.CompletedAt == nil {
		now := time.Now()
		j.CompletedAt = &now
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.Index(b.listeners, ch); i >= 0 {
		b.listeners = slices.Delete(b.listeners, i, i+1)
		close(ch)
	}
}

// SendEvent sends an event to all listeners. Slow listeners miss events
// instead of blocking the run.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs and the workspaces they own.
type JobManager struct {
	jobs        map[string]*MatchJob
	mu          sync.RWMutex
	maxFinished int
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*MatchJob),
		maxFinished: constants.MaxFinishedJobs,
	}
}

// CreateJob registers a pending job. Finished jobs beyond the retention
// limit are dropped, oldest first, together with their workspaces.
func (m *JobManager) CreateJob(
	id string, ws *workspace.Workspace, refPath, refName string, targets []matcher.Target, cancel context.CancelFunc,
) *MatchJob {
	job := &MatchJob{
		EventBroadcaster: EventBroadcaster{cancel: cancel},
		ID:               id,
		Reference:        refName,
		Status:           JobStatusPending,
		TotalImages:      len(targets),
		StartedAt:        time.Now(),
		workspace:        ws,
		targets:          targets,
		refPath:          refPath,
	}

	m.mu.Lock()
	m.jobs[id] = job
	evicted := m.evictLocked()
	m.mu.Unlock()

	for _, old := range evicted {
		removeWorkspace(old)
	}
	return job
}

func (m *JobManager) evictLocked() []*MatchJob {
	var finished []*MatchJob
	for _, job := range m.jobs {
		if isJobTerminal(job.GetStatus()) {
			finished = append(finished, job)
		}
	}
	if len(finished) <= m.maxFinished {
		return nil
	}
	slices.SortFunc(finished, func(a, b *MatchJob) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	evicted := finished[:len(finished)-m.maxFinished]
	for _, job := range evicted {
		delete(m.jobs, job.ID)
	}
	return evicted
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *MatchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob cancels a job if it is still running, removes it and deletes its
// workspace. It reports whether the job existed.
func (m *JobManager) DeleteJob(id string) bool {
	m.mu.Lock()
	job, ok := m.jobs[id]
	delete(m.jobs, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	if !isJobTerminal(job.GetStatus()) {
		job.Cancel()
	}
	removeWorkspace(job)
	return true
}

// ListJobs returns all jobs, oldest first.
func (m *JobManager) ListJobs() []*MatchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*MatchJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *MatchJob) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return jobs
}

// Shutdown cancels every running job and removes all workspaces.
func (m *JobManager) Shutdown() {
	m.mu.Lock()
	jobs := make([]*MatchJob, 0, len(m.jobs))
	for id, job := range m.jobs {
		jobs = append(jobs, job)
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	for _, job := range jobs {
		if !isJobTerminal(job.GetStatus()) {
			job.Cancel()
		}
		removeWorkspace(job)
	}
}
