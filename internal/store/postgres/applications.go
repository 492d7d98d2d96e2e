// Package postgres implements the lifecycle store and assignment oracle on
// PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"inakat/lifecycle-service/internal/lifecycle"
)

const uniqueViolation = "23505"

// Store is a pgxpool-backed lifecycle.Store and lifecycle.AssignmentOracle.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store on pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const applicationColumns = `
	id::text, job_id, COALESCE(candidate_id, ''),
	candidate_name, candidate_email, COALESCE(candidate_phone, ''),
	status, notes, evaluations, history_log,
	COALESCE(cv_reference, ''), COALESCE(cover_letter, ''),
	created_at, updated_at, reviewed_at`

func scanApplication(row pgx.Row) (lifecycle.Application, error) {
	var (
		a                    lifecycle.Application
		status               string
		evaluations, history []byte
	)
	err := row.Scan(
		&a.ID, &a.JobID, &a.CandidateID,
		&a.Candidate.Name, &a.Candidate.Email, &a.Candidate.Phone,
		&status, &a.Notes, &evaluations, &history,
		&a.CVReference, &a.CoverLetter,
		&a.CreatedAt, &a.UpdatedAt, &a.ReviewedAt,
	)
	if err != nil {
		return lifecycle.Application{}, err
	}
	// The engine validates the status; pass the raw value through.
	a.Status = lifecycle.Status(status)
	if err := json.Unmarshal(evaluations, &a.Evaluations); err != nil {
		return lifecycle.Application{}, fmt.Errorf("decode evaluations: %w", err)
	}
	if err := json.Unmarshal(history, &a.History); err != nil {
		return lifecycle.Application{}, fmt.Errorf("decode history_log: %w", err)
	}
	return a, nil
}

// Get implements lifecycle.Store.
func (s *Store) Get(ctx context.Context, id string) (lifecycle.Application, error) {
	if !validID(id) {
		return lifecycle.Application{}, lifecycle.ErrNotFound
	}
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.Application{}, lifecycle.ErrNotFound
	}
	if err != nil {
		return lifecycle.Application{}, fmt.Errorf("getApplication: %w", err)
	}
	return app, nil
}

// CompareAndSwapStatus implements lifecycle.Store. The WHERE clause on the
// prior status linearizes concurrent transitions.
func (s *Store) CompareAndSwapStatus(ctx context.Context, id string, expected, next lifecycle.Status, m lifecycle.Mutation) (lifecycle.Application, error) {
	if !validID(id) {
		return lifecycle.Application{}, lifecycle.ErrNotFound
	}
	evals, err := jsonArray(m.AppendNote)
	if err != nil {
		return lifecycle.Application{}, err
	}
	history, err := jsonArray(m.AppendHistory)
	if err != nil {
		return lifecycle.Application{}, err
	}

	app, err := scanApplication(s.pool.QueryRow(ctx,
		`UPDATE applications
		 SET status      = $3,
		     notes       = COALESCE($4::text, notes),
		     evaluations = evaluations || $5::jsonb,
		     history_log = history_log || $6::jsonb,
		     reviewed_at = COALESCE(reviewed_at, $7::timestamptz),
		     updated_at  = $8
		 WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		 RETURNING `+applicationColumns,
		id, string(expected), string(next), m.Notes, evals, history, m.ReviewedAt, m.UpdatedAt,
	))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.Application{}, fmt.Errorf("compareAndSwapStatus: %w", err)
	}

	// No row matched: either the id is gone or the status moved underneath us.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1 AND deleted_at IS NULL)`, id,
	).Scan(&exists); err != nil {
		return lifecycle.Application{}, fmt.Errorf("compareAndSwapStatus exists: %w", err)
	}
	if !exists {
		return lifecycle.Application{}, lifecycle.ErrNotFound
	}
	return lifecycle.Application{}, lifecycle.ErrConcurrentModification
}

// FindDuplicateOpen implements lifecycle.Store.
func (s *Store) FindDuplicateOpen(ctx context.Context, jobID, email string) (*lifecycle.Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE job_id = $1
		   AND lower(candidate_email) = lower($2)
		   AND deleted_at IS NULL
		   AND status <> ALL($3)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		jobID, email, terminalStatuses(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("findDuplicateOpen: %w", err)
	}
	return &app, nil
}

// Create implements lifecycle.Store.
func (s *Store) Create(ctx context.Context, a lifecycle.Application) (lifecycle.Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`INSERT INTO applications
		   (job_id, candidate_id, candidate_name, candidate_email, candidate_phone,
		    status, cv_reference, cover_letter)
		 VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''))
		 RETURNING `+applicationColumns,
		a.JobID, a.CandidateID, a.Candidate.Name, a.Candidate.Email, a.Candidate.Phone,
		string(a.Status), a.CVReference, a.CoverLetter,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return lifecycle.Application{}, lifecycle.ErrDuplicateApplication
	}
	if err != nil {
		return lifecycle.Application{}, fmt.Errorf("createApplication: %w", err)
	}
	return app, nil
}

// Assignment implements lifecycle.AssignmentOracle.
func (s *Store) Assignment(ctx context.Context, jobID string) (lifecycle.JobAssignment, error) {
	a := lifecycle.JobAssignment{JobID: jobID}
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(company_id, ''), COALESCE(recruiter_id, ''), COALESCE(specialist_id, '')
		 FROM job_assignments
		 WHERE job_id = $1`,
		jobID,
	).Scan(&a.CompanyID, &a.RecruiterID, &a.SpecialistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return lifecycle.JobAssignment{}, fmt.Errorf("assignment: %w", err)
	}
	return a, nil
}

// jsonArray renders v as a one-element JSON array, or "[]" when v is nil,
// ready to be appended to a jsonb column.
func jsonArray[T any](v *T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]T{*v})
	if err != nil {
		return "", fmt.Errorf("encode jsonb entry: %w", err)
	}
	return string(b), nil
}

// validID rejects ids that could never match the uuid primary key.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func terminalStatuses() []string {
	var out []string
	for _, st := range lifecycle.AllStatuses() {
		if lifecycle.IsTerminal(st) {
			out = append(out, string(st))
		}
	}
	return out
}
