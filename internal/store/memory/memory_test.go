package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inakat/lifecycle-service/internal/lifecycle"
	"inakat/lifecycle-service/internal/store/memory"
)

func newApp(jobID, email string) lifecycle.Application {
	return lifecycle.Application{
		JobID:     jobID,
		Candidate: lifecycle.Candidate{Name: "Ana", Email: email},
		Status:    lifecycle.StatusPending,
	}
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	s := memory.New()
	app, err := s.Create(context.Background(), newApp("job-1", "ana@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.False(t, app.CreatedAt.IsZero())
	assert.Equal(t, app.CreatedAt, app.UpdatedAt)

	got, err := s.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, app, got)
}

func TestCreate_DuplicatePairIsCaseInsensitive(t *testing.T) {
	s := memory.New()
	_, err := s.Create(context.Background(), newApp("job-1", "ana@example.com"))
	require.NoError(t, err)

	_, err = s.Create(context.Background(), newApp("job-1", "ANA@Example.com"))
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateApplication)

	_, err = s.Create(context.Background(), newApp("job-2", "ana@example.com"))
	assert.NoError(t, err)
}

func TestFindDuplicateOpen_IgnoresTerminal(t *testing.T) {
	s := memory.New()
	app := newApp("job-1", "ana@example.com")
	app.ID = "app-1"
	app.Status = lifecycle.StatusRejected
	s.Put(app)

	dup, err := s.FindDuplicateOpen(context.Background(), "job-1", "Ana@example.com")
	require.NoError(t, err)
	assert.Nil(t, dup)

	app.Status = lifecycle.StatusEvaluating
	s.Put(app)
	dup, err = s.FindDuplicateOpen(context.Background(), "job-1", "Ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, "app-1", dup.ID)
}

func TestCompareAndSwapStatus(t *testing.T) {
	s := memory.New()
	app, err := s.Create(context.Background(), newApp("job-1", "ana@example.com"))
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	notes := "first contact done"
	updated, err := s.CompareAndSwapStatus(context.Background(), app.ID, lifecycle.StatusPending, lifecycle.StatusReviewing, lifecycle.Mutation{
		Notes:         &notes,
		AppendNote:    &lifecycle.EvaluationNote{AuthorID: "rec-1", Body: "ok"},
		AppendHistory: &lifecycle.HistoryEntry{From: lifecycle.StatusPending, To: lifecycle.StatusReviewing},
		ReviewedAt:    &now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusReviewing, updated.Status)
	assert.Equal(t, notes, *updated.Notes)
	assert.Len(t, updated.Evaluations, 1)
	assert.Len(t, updated.History, 1)
	assert.Equal(t, now, *updated.ReviewedAt)
	assert.Equal(t, now, updated.UpdatedAt)

	// Stale expectation.
	_, err = s.CompareAndSwapStatus(context.Background(), app.ID, lifecycle.StatusPending, lifecycle.StatusDiscarded, lifecycle.Mutation{UpdatedAt: now})
	assert.ErrorIs(t, err, lifecycle.ErrConcurrentModification)

	// reviewedAt is write-once.
	later := now.Add(time.Hour)
	updated, err = s.CompareAndSwapStatus(context.Background(), app.ID, lifecycle.StatusReviewing, lifecycle.StatusArchived, lifecycle.Mutation{ReviewedAt: &later, UpdatedAt: later})
	require.NoError(t, err)
	assert.Equal(t, now, *updated.ReviewedAt)

	_, err = s.CompareAndSwapStatus(context.Background(), "missing", lifecycle.StatusPending, lifecycle.StatusReviewing, lifecycle.Mutation{})
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestGet_ReturnsCopies(t *testing.T) {
	s := memory.New()
	app, err := s.Create(context.Background(), newApp("job-1", "ana@example.com"))
	require.NoError(t, err)

	got, _ := s.Get(context.Background(), app.ID)
	got.Status = lifecycle.StatusAccepted
	got.Evaluations = append(got.Evaluations, lifecycle.EvaluationNote{Body: "sneaky"})

	again, _ := s.Get(context.Background(), app.ID)
	assert.Equal(t, lifecycle.StatusPending, again.Status)
	assert.Empty(t, again.Evaluations)
}

func TestAssignment_DefaultsToUnstaffed(t *testing.T) {
	s := memory.New()
	a, err := s.Assignment(context.Background(), "job-9")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.JobAssignment{JobID: "job-9"}, a)

	s.SetAssignment(lifecycle.JobAssignment{JobID: "job-9", SpecialistID: "spec-1"})
	a, _ = s.Assignment(context.Background(), "job-9")
	assert.True(t, a.SpecialistLinked())
}
