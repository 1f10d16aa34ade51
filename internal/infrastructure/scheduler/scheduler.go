// Package scheduler runs owner backlog syncs in the background: a sweep
// finds owners with unsynced products on an interval and a small worker
// pool syncs each owner's backlog.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a backlog job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job syncs one owner's backlog
type Job struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	TenantDomain string // empty selects the base tenant
	Status       JobStatus
	Error        string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	RetryCount   int
	MaxRetries   int
}

// NewJob creates a pending job for ownerID
func NewJob(ownerID uuid.UUID, tenantDomain string, maxRetries int) *Job {
	return &Job{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		TenantDomain: tenantDomain,
		Status:       JobStatusPending,
		MaxRetries:   maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// JobExecutor runs a backlog job
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// Config holds worker pool configuration
type Config struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns default worker pool configuration
func DefaultConfig() Config {
	return Config{
		Workers:       2,
		QueueSize:     100,
		JobTimeout:    10 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    time.Minute,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
}

// Scheduler runs backlog jobs on a fixed pool of workers. An owner has at
// most one job queued or running at a time.
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  map[uuid.UUID]struct{}
	retries   map[uuid.UUID]*time.Timer
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	config.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
		inFlight: make(map[uuid.UUID]struct{}),
		retries:  make(map[uuid.UUID]*time.Timer),
	}
}

// Start starts the workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Backlog scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for id, timer := range s.retries {
		timer.Stop()
		delete(s.retries, id)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.drain()
		s.logger.Info("Backlog scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Backlog scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob queues job for execution
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if _, busy := s.inFlight[job.OwnerID]; busy {
		return ErrJobInFlight
	}

	select {
	case s.jobs <- job:
		s.inFlight[job.OwnerID] = struct{}{}
		s.logger.Debug("Backlog job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("owner_id", job.OwnerID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// InFlight returns the number of owners with a queued, running or
// retry-pending job
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	job.Start()
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("owner_id", job.OwnerID.String()),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.executor.Execute(jobCtx, job)
	cancel()

	if err == nil {
		job.Complete()
		log.Info("Backlog job completed")
		s.release(job)
		return
	}

	job.Fail(err.Error())
	log.Error("Backlog job failed", zap.Int("retry_count", job.RetryCount), zap.Error(err))
	if ctx.Err() == nil && job.ShouldRetry() {
		s.scheduleRetry(job)
		return
	}
	s.release(job)
}

// scheduleRetry requeues job after the retry delay. The owner stays in
// flight until the retry finishes.
func (s *Scheduler) scheduleRetry(job *Job) {
	job.RetryCount++
	job.Status = JobStatusPending

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		delete(s.inFlight, job.OwnerID)
		return
	}
	s.retries[job.ID] = time.AfterFunc(s.config.RetryDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.retries, job.ID)
		if !s.isRunning {
			delete(s.inFlight, job.OwnerID)
			return
		}
		select {
		case s.jobs <- job:
		default:
			s.logger.Warn("Failed to requeue backlog job", zap.String("job_id", job.ID.String()))
			delete(s.inFlight, job.OwnerID)
		}
	})
}

// drain drops jobs that were queued but never started
func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case job := <-s.jobs:
			delete(s.inFlight, job.OwnerID)
		default:
			return
		}
	}
}

func (s *Scheduler) release(job *Job) {
	s.mu.Lock()
	delete(s.inFlight, job.OwnerID)
	s.mu.Unlock()
}
