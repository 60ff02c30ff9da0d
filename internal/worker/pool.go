// Package worker runs export jobs on a fixed set of workers. Each worker
// owns one database handle for its whole life, so a handle is never used
// by two goroutines at once.
package worker

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mysql-dbdriver/internal/driver"
	"mysql-dbdriver/internal/exporter"
	"mysql-dbdriver/internal/native"
	"mysql-dbdriver/internal/storage"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Notifier is told about every job state change.
type Notifier interface {
	Publish(info JobInfo)
}

// Options configure a Pool.
type Options struct {
	Workers int
	// MaxDBConcurrency limits how many workers run a query at once.
	MaxDBConcurrency int64
	// QueueSize bounds the number of jobs waiting for a worker.
	QueueSize int

	// Datasource and credentials every worker handle opens with.
	Datasource string
	User       string
	Password   string
	Verbose    bool

	// Gzip compresses export files.
	Gzip bool

	Notifier Notifier
	Logger   *slog.Logger
}

// Pool manages concurrent export jobs and limits database load.
type Pool struct {
	d       *driver.Driver
	storage storage.Provider
	opts    Options
	logger  *slog.Logger

	jobQueue chan *ExportJob
	// dbSem restricts the number of concurrent queries to the database.
	dbSem *semaphore.Weighted
	wg    sync.WaitGroup
	quit  chan struct{}
	once  sync.Once

	handles []*driver.Handle

	mu      sync.RWMutex
	jobs    map[string]*ExportJob
	stopped bool
}

// NewPool initializes a worker pool. It does not open any handle; call
// Start to connect and begin processing.
func NewPool(d *driver.Driver, store storage.Provider, opts Options) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxDBConcurrency < 1 {
		opts.MaxDBConcurrency = int64(opts.Workers)
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		d:        d,
		storage:  store,
		opts:     opts,
		logger:   logger,
		jobQueue: make(chan *ExportJob, opts.QueueSize),
		dbSem:    semaphore.NewWeighted(opts.MaxDBConcurrency),
		quit:     make(chan struct{}),
		jobs:     make(map[string]*ExportJob),
	}
}

// Start opens one handle per worker and starts the workers. If any handle
// fails to open, the ones already opened are closed and nothing starts.
func (p *Pool) Start(ctx context.Context) error {
	handles := make([]*driver.Handle, p.opts.Workers)
	for i := range handles {
		h := p.d.NewHandle(p.opts.Datasource, p.opts.User, p.opts.Password)
		h.Verbose = p.opts.Verbose
		if err := p.d.Open(ctx, h); err != nil {
			for _, opened := range handles[:i] {
				p.d.Close(opened)
			}
			return fmt.Errorf("worker %d: open handle: %w", i, err)
		}
		handles[i] = h
	}
	p.handles = handles

	for i, h := range handles {
		p.wg.Add(1)
		go p.workerLoop(i, h)
	}
	p.logger.Info("Worker pool started", "workers", p.opts.Workers, "driver", p.d.Name())
	return nil
}

// Submit queues job without blocking.
func (p *Pool) Submit(job *ExportJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}

	// Submit is the only sender and holds mu, so a free slot stays free.
	if len(p.jobQueue) == cap(p.jobQueue) {
		job.Cancel()
		return ErrQueueFull
	}
	p.jobs[job.ID] = job
	p.notify(job)
	p.jobQueue <- job
	return nil
}

// Job returns a submitted job by id.
func (p *Pool) Job(id string) (*ExportJob, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	j, ok := p.jobs[id]
	return j, ok
}

// Stop lets running jobs finish, then closes every handle. Queued jobs that
// no worker picked up are failed.
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.quit)
		p.wg.Wait()

		for {
			select {
			case job := <-p.jobQueue:
				job.Cancel()
				p.failJob(job, ErrPoolStopped)
			default:
				p.logger.Info("Worker pool stopped")
				return
			}
		}
	})
}

func (p *Pool) workerLoop(id int, h *driver.Handle) {
	defer p.wg.Done()
	defer p.d.Close(h)
	p.logger.Debug("Worker started", "worker_id", id)

	for {
		select {
		case <-p.quit:
			return
		default:
		}

		select {
		case job := <-p.jobQueue:
			p.processJob(id, h, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) processJob(workerID int, h *driver.Handle, job *ExportJob) {
	defer job.Cancel()
	p.logger.Info("Processing job", "worker_id", workerID, "job_id", job.ID)

	waitTime := job.start()
	p.notify(job)

	if err := p.dbSem.Acquire(job.Ctx, 1); err != nil {
		p.failJob(job, fmt.Errorf("failed to acquire db slot: %w", err))
		return
	}
	stats, key, err := p.executeExport(h, job)
	// no rows may outlive the job, whatever happened
	p.d.Flush(h)
	p.dbSem.Release(1)

	if err != nil {
		p.dropLostConnection(workerID, h, err)
		p.failJob(job, err)
		return
	}

	url := p.storage.GetDownloadURL(key)
	job.complete(stats, key, url)
	p.notify(job)
	p.logger.Info("Job completed",
		"job_id", job.ID,
		"rows", stats.RowsProcessed,
		"wait", waitTime,
		"query_duration", stats.Duration,
		"key", key,
	)
}

// dropLostConnection closes h after errors that leave its connection
// unusable; the next job reopens it.
func (p *Pool) dropLostConnection(workerID int, h *driver.Handle, err error) {
	var nerr *driver.NativeError
	if errors.As(err, &nerr) && native.ConnectionLost(nerr.Code) {
		p.logger.Warn("Closing handle after lost connection", "worker_id", workerID, "code", nerr.Code)
		p.d.Close(h)
	}
}

// aborter is implemented by writers that can fail the object they feed,
// such as the S3 upload pipe.
type aborter interface {
	CloseWithError(err error) error
}

func (p *Pool) executeExport(h *driver.Handle, job *ExportJob) (*exporter.ExportResult, string, error) {
	if !h.Connected() {
		if err := p.d.Open(job.Ctx, h); err != nil {
			return nil, "", fmt.Errorf("reconnect failed: %w", err)
		}
	}

	key := fmt.Sprintf("exports/%s.%s", job.ID, exporter.Extension(job.Format))
	if p.opts.Gzip {
		key += ".gz"
	}

	rows, err := p.d.Query(job.Ctx, h, job.Query)
	if err != nil {
		return nil, "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	storageWriter, errChan := p.storage.StreamToFile(job.Ctx, key)
	if storageWriter == nil {
		return nil, "", fmt.Errorf("storage open failed: %w", <-errChan)
	}

	var out io.Writer = storageWriter
	var gz *gzip.Writer
	if p.opts.Gzip {
		gz = gzip.NewWriter(storageWriter)
		out = gz
	}

	encoder := exporter.NewEncoder(job.Format, out)

	// DB -> Encoder -> [Gzip] -> Storage
	stats, exportErr := exporter.Export(job.Ctx, rows, encoder)

	encoderCloseErr := encoder.Close()
	var gzipCloseErr error
	if gz != nil {
		gzipCloseErr = gz.Close()
	}

	var storageCloseErr error
	if a, ok := storageWriter.(aborter); ok && exportErr != nil {
		storageCloseErr = a.CloseWithError(exportErr)
	} else {
		storageCloseErr = storageWriter.Close()
	}
	uploadErr := <-errChan

	if exportErr != nil {
		return nil, "", fmt.Errorf("export failed: %w", exportErr)
	}
	if encoderCloseErr != nil {
		return nil, "", fmt.Errorf("encoder close failed: %w", encoderCloseErr)
	}
	if gzipCloseErr != nil {
		return nil, "", fmt.Errorf("gzip close failed: %w", gzipCloseErr)
	}
	if storageCloseErr != nil {
		return nil, "", fmt.Errorf("storage close failed: %w", storageCloseErr)
	}
	if uploadErr != nil {
		return nil, "", fmt.Errorf("upload failed: %w", uploadErr)
	}
	return stats, key, nil
}

func (p *Pool) failJob(job *ExportJob, err error) {
	job.fail(err)
	p.notify(job)
	p.logger.Error("Job failed", "job_id", job.ID, "error", err)
}

func (p *Pool) notify(job *ExportJob) {
	if p.opts.Notifier != nil {
		p.opts.Notifier.Publish(job.Info())
	}
}

// Wait blocks until job finishes or ctx is done.
func Wait(ctx context.Context, job *ExportJob) (JobStatus, error) {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		switch s := job.Status(); s {
		case StatusCompleted, StatusFailed:
			return s, nil
		}
		select {
		case <-ctx.Done():
			return job.Status(), ctx.Err()
		case <-t.C:
		}
	}
}
