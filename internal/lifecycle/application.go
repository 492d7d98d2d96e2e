package lifecycle

import (
	"context"
	"time"
)

// Candidate identifies the applicant. Email is the de-duplication key.
type Candidate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// EvaluationNote is an authored assessment. Only public notes reach companies.
type EvaluationNote struct {
	AuthorID   string    `json:"authorId"`
	AuthorRole Role      `json:"authorRole"`
	Body       string    `json:"body"`
	Public     bool      `json:"public"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryEntry records one committed transition.
type HistoryEntry struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Role   Role      `json:"role"`
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

// Application is the stored record. It is only mutated through Executor.
type Application struct {
	ID          string
	JobID       string
	CandidateID string // empty for admin-sourced candidates without an account
	Candidate   Candidate
	Status      Status
	Notes       *string
	Evaluations []EvaluationNote
	History     []HistoryEntry
	CVReference string
	CoverLetter string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ReviewedAt  *time.Time
}

// FieldUpdates are the optional field changes a caller may send with a
// transition request.
type FieldUpdates struct {
	Notes      *string         `json:"notes,omitempty" validate:"omitempty,max=10000"`
	Evaluation *EvaluationDraft `json:"evaluation,omitempty" validate:"omitempty"`
}

// Empty reports whether no field is set.
func (f FieldUpdates) Empty() bool { return f.Notes == nil && f.Evaluation == nil }

// EvaluationDraft is an evaluation note as submitted by its author.
type EvaluationDraft struct {
	Body   string `json:"body" validate:"required,max=5000"`
	Public bool   `json:"public"`
}

// Mutation is what the executor asks the store to apply atomically alongside
// the status swap.
type Mutation struct {
	Notes         *string
	AppendNote    *EvaluationNote
	AppendHistory *HistoryEntry
	ReviewedAt    *time.Time
	UpdatedAt     time.Time
}

// JobAssignment is the read-only staffing state of a job.
type JobAssignment struct {
	JobID        string
	CompanyID    string
	RecruiterID  string
	SpecialistID string
}

// SpecialistLinked reports whether a specialist is assigned to the job.
func (a JobAssignment) SpecialistLinked() bool { return a.SpecialistID != "" }

// ─── Ports ───────────────────────────────────────────────────────────────────

// Store is the application store the engine runs against.
type Store interface {
	// Get returns ErrNotFound when id does not exist.
	Get(ctx context.Context, id string) (Application, error)
	// CompareAndSwapStatus applies next and m only if the stored status still
	// equals expected; otherwise it returns ErrConcurrentModification.
	CompareAndSwapStatus(ctx context.Context, id string, expected, next Status, m Mutation) (Application, error)
	// FindDuplicateOpen returns the open application for (jobID, lower(email)),
	// or nil when there is none.
	FindDuplicateOpen(ctx context.Context, jobID, email string) (*Application, error)
	// Create inserts app, returning ErrDuplicateApplication when the
	// (job, email) pair is already taken.
	Create(ctx context.Context, app Application) (Application, error)
}

// AssignmentOracle reports staffing state for jobs.
type AssignmentOracle interface {
	// Assignment returns the zero value (with JobID set) for unknown jobs.
	Assignment(ctx context.Context, jobID string) (JobAssignment, error)
}

// Viewer is the authenticated party reading or acting on an application.
type Viewer struct {
	Role   Role
	UserID string
}
