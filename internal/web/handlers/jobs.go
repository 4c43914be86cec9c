package handlers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/facematch"
	"github.com/kozaktomas/photo-finder/internal/scan"
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

// ScanJobInfo is the externally visible state of a scan job.
type ScanJobInfo struct {
	ID               string        `json:"id"`
	Source           string        `json:"source"`
	Album            string        `json:"album"`
	Model            string        `json:"model"`
	Tolerance        float64       `json:"tolerance"`
	Status           JobStatus     `json:"status"`
	Progress         int           `json:"progress"`
	TotalPhotos      int           `json:"total_photos"`
	ProcessedPhotos  int           `json:"processed_photos"`
	FacesInReference int           `json:"faces_in_reference"`
	Error            string        `json:"error,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	Summary          *scan.Summary `json:"summary,omitempty"`
}

// ScanJob is a scan running in the background. The scanner keeps the
// results and the reference for the lifetime of the job.
type ScanJob struct {
	EventBroadcaster

	info    ScanJobInfo
	scanner *scan.Scanner
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info.Status
}

// Info returns a copy of the job state.
func (j *ScanJob) Info() ScanJobInfo {
	j.mu.RLock()
	defer j.mu.RUnlock()
	info := j.info
	if info.Summary != nil {
		s := *info.Summary
		info.Summary = &s
	}
	return info
}

// Results returns the matches found so far in album order.
func (j *ScanJob) Results() []facematch.MatchResult {
	if j.scanner == nil {
		return nil
	}
	return j.scanner.Results()
}

// Cancel asks a running job to stop. It returns false when the job has
// already finished. In-flight photos are completed before the job reports
// cancelled.
func (j *ScanJob) Cancel() bool {
	if isJobTerminal(j.GetStatus()) {
		return false
	}
	j.EventBroadcaster.Cancel()
	return true
}

func (j *ScanJob) setRunning() {
	j.mu.Lock()
	j.info.Status = JobStatusRunning
	j.mu.Unlock()
}

func (j *ScanJob) setProgress(p scan.Progress) {
	j.mu.Lock()
	j.info.ProcessedPhotos = p.Processed
	j.info.TotalPhotos = p.Total
	j.info.Progress = int(p.Fraction() * 100)
	j.mu.Unlock()
}

// finish records the outcome and queues event in the same critical section,
// so a listener that sees the terminal status also has the final event.
func (j *ScanJob) finish(status JobStatus, summary scan.Summary, message string, event JobEvent) {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	j.info.Status = status
	j.info.Summary = &summary
	j.info.Error = message
	j.info.CompletedAt = &now
	j.info.ProcessedPhotos = summary.Scanned
	j.info.TotalPhotos = summary.Total
	if status == JobStatusCompleted {
		j.info.Progress = 100
	}
	j.sendLocked(event)
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
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.sendLocked(event)
}

// sendLocked delivers event without blocking. The caller holds b.mu.
func (b *EventBroadcaster) sendLocked(event JobEvent) {
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and tells listeners about it.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancel_requested", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*ScanJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ScanJob),
	}
}

// CreateJob registers a pending scan job. cancel stops the job's context.
func (m *JobManager) CreateJob(info ScanJobInfo, scanner *scan.Scanner, cancel context.CancelFunc) *ScanJob {
	info.Status = JobStatusPending
	info.StartedAt = time.Now()
	job := &ScanJob{
		EventBroadcaster: EventBroadcaster{cancel: cancel},
		info:             info,
		scanner:          scanner,
	}

	m.mu.Lock()
	m.jobs[info.ID] = job
	m.mu.Unlock()

	m.evictFinished()
	return job
}

// evictFinished drops the oldest finished jobs so at most
// constants.MaxFinishedJobs keep their result bytes in memory.
func (m *JobManager) evictFinished() {
	kept := 0
	for _, job := range m.ListJobs() {
		if !isJobTerminal(job.GetStatus()) {
			continue
		}
		if kept++; kept > constants.MaxFinishedJobs {
			m.DeleteJob(job.info.ID)
		}
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs, newest first.
func (m *JobManager) ListJobs() []*ScanJob {
	m.mu.RLock()
	jobs := make([]*ScanJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b *ScanJob) int {
		return b.info.StartedAt.Compare(a.info.StartedAt)
	})
	return jobs
}

// CancelAll stops every running job, used on server shutdown.
func (m *JobManager) CancelAll() {
	for _, job := range m.ListJobs() {
		job.Cancel()
	}
}
