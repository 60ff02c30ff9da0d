package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mysql-dbdriver/internal/exporter"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// ExportJob is one SELECT exported to storage. Its state is written by the
// worker that runs it and read through Info.
type ExportJob struct {
	// ID is the unique UUID v4 for the job.
	ID    string
	Query string
	// Format is the requested output format (csv, json, excel, pdf).
	Format string

	// Ctx bounds the job; Cancel aborts it.
	Ctx    context.Context
	Cancel context.CancelFunc

	mu        sync.RWMutex
	submitted time.Time
	started   time.Time
	finished  time.Time
	status    JobStatus
	err       error
	stats     *exporter.ExportResult
	key       string
	url       string
}

// JobInfo is a point-in-time copy of a job's state.
type JobInfo struct {
	ID        string        `json:"id"`
	Status    JobStatus     `json:"status"`
	Format    string        `json:"format"`
	Submitted time.Time     `json:"submitted"`
	Started   *time.Time    `json:"started,omitempty"`
	Finished  *time.Time    `json:"finished,omitempty"`
	Rows      int64         `json:"rows"`
	Duration  time.Duration `json:"duration_ns"`
	Key       string        `json:"key,omitempty"`
	URL       string        `json:"url,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func NewExportJob(query, format string, timeout time.Duration) *ExportJob {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if format == "" {
		format = "csv"
	}
	return &ExportJob{
		ID:        uuid.New().String(),
		Query:     query,
		Format:    format,
		Ctx:       ctx,
		Cancel:    cancel,
		submitted: time.Now(),
		status:    StatusPending,
	}
}

// Status returns the current status.
func (j *ExportJob) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Err returns why the job failed.
func (j *ExportJob) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

func (j *ExportJob) Info() JobInfo {
	j.mu.RLock()
	defer j.mu.RUnlock()

	info := JobInfo{
		ID:        j.ID,
		Status:    j.status,
		Format:    j.Format,
		Submitted: j.submitted,
		Key:       j.key,
		URL:       j.url,
	}
	if !j.started.IsZero() {
		t := j.started
		info.Started = &t
	}
	if !j.finished.IsZero() {
		t := j.finished
		info.Finished = &t
	}
	if j.stats != nil {
		info.Rows = j.stats.RowsProcessed
		info.Duration = j.stats.Duration
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	return info
}

func (j *ExportJob) start() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = time.Now()
	j.status = StatusProcessing
	return j.started.Sub(j.submitted)
}

func (j *ExportJob) complete(stats *exporter.ExportResult, key, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = time.Now()
	j.status = StatusCompleted
	j.stats = stats
	j.key = key
	j.url = url
}

func (j *ExportJob) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = time.Now()
	j.status = StatusFailed
	j.err = err
}
