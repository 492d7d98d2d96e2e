// Package memory provides in-process implementations of the lifecycle store
// and assignment oracle, used by tests and `serve --in-memory`.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inakat/lifecycle-service/internal/lifecycle"
)

// Store is a mutex-guarded map of applications keyed by id.
type Store struct {
	mu          sync.Mutex
	apps        map[string]lifecycle.Application
	assignments map[string]lifecycle.JobAssignment
	now         func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		apps:        make(map[string]lifecycle.Application),
		assignments: make(map[string]lifecycle.JobAssignment),
		now:         time.Now,
	}
}

// Put stores app as-is, bypassing the engine. Intended for seeding.
func (s *Store) Put(app lifecycle.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = clone(app)
}

// SetAssignment records the staffing state of a job.
func (s *Store) SetAssignment(a lifecycle.JobAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.JobID] = a
}

// Get implements lifecycle.Store.
func (s *Store) Get(_ context.Context, id string) (lifecycle.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return lifecycle.Application{}, lifecycle.ErrNotFound
	}
	return clone(app), nil
}

// CompareAndSwapStatus implements lifecycle.Store.
func (s *Store) CompareAndSwapStatus(_ context.Context, id string, expected, next lifecycle.Status, m lifecycle.Mutation) (lifecycle.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return lifecycle.Application{}, lifecycle.ErrNotFound
	}
	if app.Status != expected {
		return lifecycle.Application{}, lifecycle.ErrConcurrentModification
	}

	app.Status = next
	if m.Notes != nil {
		n := *m.Notes
		app.Notes = &n
	}
	if m.AppendNote != nil {
		app.Evaluations = append(slices.Clone(app.Evaluations), *m.AppendNote)
	}
	if m.AppendHistory != nil {
		app.History = append(slices.Clone(app.History), *m.AppendHistory)
	}
	if m.ReviewedAt != nil && app.ReviewedAt == nil {
		t := *m.ReviewedAt
		app.ReviewedAt = &t
	}
	app.UpdatedAt = m.UpdatedAt
	s.apps[id] = app
	return clone(app), nil
}

// FindDuplicateOpen implements lifecycle.Store.
func (s *Store) FindDuplicateOpen(_ context.Context, jobID, email string) (*lifecycle.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.apps {
		if app.JobID == jobID && strings.EqualFold(app.Candidate.Email, email) && lifecycle.IsOpen(app.Status) {
			c := clone(app)
			return &c, nil
		}
	}
	return nil, nil
}

// Create implements lifecycle.Store. Like the Postgres unique index, any
// existing application for the pair blocks a new one, open or closed.
func (s *Store) Create(_ context.Context, app lifecycle.Application) (lifecycle.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.apps {
		if existing.JobID == app.JobID && strings.EqualFold(existing.Candidate.Email, app.Candidate.Email) {
			return lifecycle.Application{}, lifecycle.ErrDuplicateApplication
		}
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := s.now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	s.apps[app.ID] = clone(app)
	return clone(app), nil
}

// Assignment implements lifecycle.AssignmentOracle.
func (s *Store) Assignment(_ context.Context, jobID string) (lifecycle.JobAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assignments[jobID]; ok {
		return a, nil
	}
	return lifecycle.JobAssignment{JobID: jobID}, nil
}

func clone(app lifecycle.Application) lifecycle.Application {
	if app.Notes != nil {
		n := *app.Notes
		app.Notes = &n
	}
	if app.ReviewedAt != nil {
		t := *app.ReviewedAt
		app.ReviewedAt = &t
	}
	app.Evaluations = slices.Clone(app.Evaluations)
	app.History = slices.Clone(app.History)
	return app
}
