package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// ─── Executor ────────────────────────────────────────────────────────────────

// TransitionOutcome is the result of a successful Execute call.
type TransitionOutcome struct {
	Application Application
	// View is the actor's projection of the updated record; nil when the
	// actor can no longer see it (ownership moved on).
	View            *ProjectedApplication
	Intents         []SideEffectIntent
	Warnings        []Warning
	NoOp            bool
	NeedsAssignment bool
}

// Executor validates and commits transitions. It holds no mutable state and
// is safe to share between goroutines.
type Executor struct {
	store     Store
	oracle    AssignmentOracle
	table     *TransitionTable
	projector *Projector
	now       func() time.Time
	log       *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.log = l } }

// NewExecutor returns an Executor over store and oracle enforcing table.
func NewExecutor(store Store, oracle AssignmentOracle, table *TransitionTable, opts ...Option) *Executor {
	e := &Executor{
		store:     store,
		oracle:    oracle,
		table:     table,
		projector: NewProjector(table),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Table returns the transition table the executor enforces.
func (e *Executor) Table() *TransitionTable { return e.table }

// View loads the application and projects it for viewer.
func (e *Executor) View(ctx context.Context, id string, viewer Viewer) (ProjectedApplication, error) {
	app, err := e.load(ctx, id)
	if err != nil {
		return ProjectedApplication{}, err
	}
	if viewer.Role != RoleAdmin && viewer.Role != RoleCandidate {
		a, err := e.assignment(ctx, app.JobID)
		if err != nil {
			return ProjectedApplication{}, err
		}
		if !inScope(viewer, app, a) {
			return ProjectedApplication{}, ErrNotFound
		}
	} else if !inScope(viewer, app, JobAssignment{}) {
		return ProjectedApplication{}, ErrNotFound
	}
	return e.projector.Project(app, viewer.Role)
}

// Execute moves application id to target on behalf of actor, applying fields
// in the same atomic write. Requesting the current status is an idempotent
// no-op for any role that can see the application.
func (e *Executor) Execute(ctx context.Context, id string, actor Viewer, target Status, fields FieldUpdates) (TransitionOutcome, error) {
	if _, err := DefinitionOf(target); err != nil {
		return TransitionOutcome{}, &ValidationError{Msg: err.Error()}
	}

	app, err := e.load(ctx, id)
	if err != nil {
		return TransitionOutcome{}, err
	}
	a, err := e.assignment(ctx, app.JobID)
	if err != nil {
		return TransitionOutcome{}, err
	}
	if !inScope(actor, app, a) {
		return TransitionOutcome{}, ErrNotFound
	}

	def, _ := DefinitionOf(app.Status)
	visible := def.Visible(actor.Role)
	if actor.Role == RoleCompany && !visible {
		return TransitionOutcome{}, ErrNotFound
	}

	if target == app.Status && visible {
		return e.noop(ctx, app, actor, fields)
	}

	warnings, err := e.table.CanTransition(actor.Role, app.Status, target, TransitionContext{
		JobID:            app.JobID,
		SpecialistLinked: a.SpecialistLinked(),
	})
	if err != nil {
		return TransitionOutcome{}, err
	}
	if err := checkFieldRights(actor.Role, fields); err != nil {
		return TransitionOutcome{}, err
	}

	now := e.now().UTC()
	m := e.mutation(app, actor, fields, now)
	m.AppendHistory = &HistoryEntry{From: app.Status, To: target, Role: actor.Role, UserID: actor.UserID, At: now}
	if stampsReview(target) && app.ReviewedAt == nil {
		m.ReviewedAt = &now
	}

	updated, err := e.store.CompareAndSwapStatus(ctx, app.ID, app.Status, target, m)
	if err != nil {
		return TransitionOutcome{}, err
	}

	out := TransitionOutcome{
		Application: updated,
		Intents:     intentsFor(updated, app.Status, actor, a),
		Warnings:    warnings,
	}
	out.NeedsAssignment = slices.ContainsFunc(warnings, func(w Warning) bool { return w.Code == WarningNeedsAssignment })
	out.View = e.viewAfter(updated, actor.Role)

	e.log.Info("application transitioned",
		"applicationId", updated.ID, "from", app.Status, "to", updated.Status,
		"role", actor.Role, "userId", actor.UserID, "warnings", len(warnings))
	return out, nil
}

func (e *Executor) noop(ctx context.Context, app Application, actor Viewer, fields FieldUpdates) (TransitionOutcome, error) {
	if fields.Empty() {
		return TransitionOutcome{Application: app, View: e.viewAfter(app, actor.Role), NoOp: true, Intents: []SideEffectIntent{}}, nil
	}
	if err := checkFieldRights(actor.Role, fields); err != nil {
		return TransitionOutcome{}, err
	}
	if IsTerminal(app.Status) {
		return TransitionOutcome{}, &TransitionDeniedError{Reason: TerminalState, Role: actor.Role, From: app.Status, To: app.Status}
	}
	m := e.mutation(app, actor, fields, e.now().UTC())
	updated, err := e.store.CompareAndSwapStatus(ctx, app.ID, app.Status, app.Status, m)
	if err != nil {
		return TransitionOutcome{}, err
	}
	return TransitionOutcome{Application: updated, View: e.viewAfter(updated, actor.Role), NoOp: true, Intents: []SideEffectIntent{}}, nil
}

func (e *Executor) mutation(app Application, actor Viewer, fields FieldUpdates, now time.Time) Mutation {
	m := Mutation{Notes: fields.Notes, UpdatedAt: now}
	if fields.Evaluation != nil {
		m.AppendNote = &EvaluationNote{
			AuthorID:   actor.UserID,
			AuthorRole: actor.Role,
			Body:       strings.TrimSpace(fields.Evaluation.Body),
			Public:     fields.Evaluation.Public,
			CreatedAt:  now,
		}
	}
	return m
}

func (e *Executor) viewAfter(app Application, role Role) *ProjectedApplication {
	v, err := e.projector.Project(app, role)
	if err != nil {
		return nil
	}
	return &v
}

// load fetches the snapshot and rejects values outside the catalog.
func (e *Executor) load(ctx context.Context, id string) (Application, error) {
	app, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("load application %s: %w", id, err)
	}
	if _, err := DefinitionOf(app.Status); err != nil {
		e.log.Error("application holds a status outside the catalog",
			"applicationId", app.ID, "status", string(app.Status))
		return Application{}, err
	}
	return app, nil
}

func (e *Executor) assignment(ctx context.Context, jobID string) (JobAssignment, error) {
	a, err := e.oracle.Assignment(ctx, jobID)
	if err != nil {
		return JobAssignment{}, fmt.Errorf("load assignment for job %s: %w", jobID, err)
	}
	return a, nil
}

// inScope reports whether viewer is a party to app. Unassigned slots are
// open to any holder of the role.
func inScope(v Viewer, app Application, a JobAssignment) bool {
	switch v.Role {
	case RoleAdmin:
		return true
	case RoleCandidate:
		return app.CandidateID != "" && app.CandidateID == v.UserID
	case RoleCompany:
		return a.CompanyID == "" || a.CompanyID == v.UserID
	case RoleRecruiter:
		return a.RecruiterID == "" || a.RecruiterID == v.UserID
	case RoleSpecialist:
		return a.SpecialistID == "" || a.SpecialistID == v.UserID
	}
	return false
}

var (
	notesWriters      = []Role{RoleRecruiter, RoleSpecialist, RoleAdmin}
	evaluationWriters = []Role{RoleRecruiter, RoleSpecialist, RoleCompany, RoleAdmin}
)

func checkFieldRights(role Role, f FieldUpdates) error {
	if f.Notes != nil && !slices.Contains(notesWriters, role) {
		return &ValidationError{Msg: fmt.Sprintf("role %s may not edit internal notes", role)}
	}
	if f.Evaluation != nil {
		if !slices.Contains(evaluationWriters, role) {
			return &ValidationError{Msg: fmt.Sprintf("role %s may not add evaluations", role)}
		}
		if strings.TrimSpace(f.Evaluation.Body) == "" {
			return &ValidationError{Msg: "evaluation body must not be empty"}
		}
	}
	return nil
}
