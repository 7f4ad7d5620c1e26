// Package registry implements the Job Registry (spec §4.11): a
// thread-safe map of Job id to Job, with clone-on-access semantics so no
// caller can mutate a Job out from under its owning worker.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/iago/latex-orchestrator/internal/domain"
)

var (
	ErrNotFound      = errors.New("registry: job not found")
	ErrAlreadyExists = errors.New("registry: job already exists")
)

// ListFilter restricts List to a subset of jobs.
type ListFilter struct {
	Status *domain.Status
}

// JobRegistry abstracts Job storage. Mutating operations take whatever
// lock is sufficient to keep the admission-count/directory-state
// invariant consistent with the Orchestrator's view; see MemoryRegistry.
type JobRegistry interface {
	Insert(ctx context.Context, job *domain.Job) error
	Update(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Job, error)
	Remove(ctx context.Context, id string) error
	// CountActive returns the number of jobs in pending or running status.
	CountActive() int
}

// MemoryRegistry is the in-memory JobRegistry (spec §1: persistence is
// explicitly out of scope; this is the only implementation the
// architecture needs). Grounded directly on the teacher's
// MemoryJobsRepository: one RWMutex, clone-on-read/write.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]*domain.Job)}
}

func (r *MemoryRegistry) Insert(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return ErrAlreadyExists
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryRegistry) Update(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; !exists {
		return ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryRegistry) List(_ context.Context, filter ListFilter) ([]domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		out = append(out, *cloneJob(job))
	}
	return out, nil
}

func (r *MemoryRegistry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

// CountActive counts jobs in pending or running status, guarded by the
// same lock used for Insert/Update so admission decisions never race
// against a concurrent mutation.
func (r *MemoryRegistry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, job := range r.jobs {
		if job.Status == domain.StatusPending || job.Status == domain.StatusRunning {
			count++
		}
	}
	return count
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Stages = append([]domain.Stage(nil), job.Stages...)
	for i := range clone.Stages {
		if job.Stages[i].Diagnostics != nil {
			clone.Stages[i].Diagnostics = make(map[string]string, len(job.Stages[i].Diagnostics))
			for k, v := range job.Stages[i].Diagnostics {
				clone.Stages[i].Diagnostics[k] = v
			}
		}
	}
	return &clone
}
