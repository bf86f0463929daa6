package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/pkg/errors"
)

const (
	jobRetention    = time.Hour
	janitorInterval = 10 * time.Minute
)

type jobEntry struct {
	job    domain.Job
	cancel context.CancelFunc
	done   time.Time
}

// JobStore is the in-memory job registry. Completed jobs are retained for
// one hour so clients can fetch results, then swept by a janitor goroutine.
type JobStore struct {
	mu      sync.RWMutex
	entries map[string]*jobEntry
	stop    chan struct{}
	once    sync.Once
}

// NewJobStore creates a job store and starts its janitor
func NewJobStore() *JobStore {
	s := &JobStore{
		entries: make(map[string]*jobEntry),
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Create registers a new processing job and returns it with the cancel
// function bound to its lifetime
func (s *JobStore) Create(totalFiles int, cancel context.CancelFunc) domain.Job {
	job := domain.Job{
		ID:         uuid.New().String(),
		Status:     domain.StatusProcessing,
		TotalFiles: totalFiles,
		StartedAt:  time.Now(),
	}

	s.mu.Lock()
	s.entries[job.ID] = &jobEntry{job: job, cancel: cancel}
	s.mu.Unlock()

	return job
}

// Get returns a snapshot of the job
func (s *JobStore) Get(jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[jobID]
	if !ok {
		return nil, errors.NotFound("job not found")
	}
	job := entry.job
	return &job, nil
}

// Update applies fn to the job under the store lock
func (s *JobStore) Update(jobID string, fn func(*domain.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jobID]
	if !ok {
		return
	}
	fn(&entry.job)
}

// Finish marks the job terminal and records its duration
func (s *JobStore) Finish(jobID string, status domain.JobStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jobID]
	if !ok {
		return
	}
	entry.job.Status = status
	entry.job.Error = errMsg
	entry.job.CurrentFile = ""
	entry.job.Duration = time.Since(entry.job.StartedAt)
	entry.done = time.Now()
	entry.cancel = nil
}

// Cancel requests cancellation of a processing job. The running batch
// observes it at the next file boundary.
func (s *JobStore) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jobID]
	if !ok {
		return errors.NotFound("job not found")
	}
	if entry.job.Status != domain.StatusProcessing {
		return errors.BadRequest("job is not processing")
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	return nil
}

// Close stops the janitor
func (s *JobStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *JobStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *JobStore) sweep() {
	cutoff := time.Now().Add(-jobRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		if entry.job.Status != domain.StatusProcessing && entry.done.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}
