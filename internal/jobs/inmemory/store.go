package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dhruvbajaj/finsentry/internal/jobs"
)

// Store is an in-memory implementation of JobStore.
// Data is lost on restart; a persistent deployment needs a database-backed
// store behind the same interface.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.AnalyzeBatchJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.AnalyzeBatchJob),
	}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.AnalyzeBatchJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid external modification of stored state.
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.AnalyzeBatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface. Results are ordered by
// creation time, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.AnalyzeBatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.AnalyzeBatchJob

	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.AnalyzeBatchJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus implements the JobStore interface.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	return nil
}

var _ jobs.JobStore = (*Store)(nil)
