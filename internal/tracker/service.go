// Package tracker contains the caller-facing operations of the lifecycle
// service. It is transport-agnostic: used by the HTTP handler in this package
// and by the gRPC server (grpcserver package).
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"inakat/lifecycle-service/internal/lifecycle"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Dispatcher hands committed intents to delivery without blocking the caller.
type Dispatcher interface {
	DispatchAsync(ctx context.Context, intents []lifecycle.SideEffectIntent) <-chan struct{}
}

// Service binds the lifecycle engine to the application store and the
// side-effect dispatcher.
type Service struct {
	exec       *lifecycle.Executor
	store      lifecycle.Store
	dispatcher Dispatcher
	validate   *validator.Validate
}

// NewService returns a configured Service.
func NewService(exec *lifecycle.Executor, store lifecycle.Store, dispatcher Dispatcher) *Service {
	return &Service{
		exec:       exec,
		store:      store,
		dispatcher: dispatcher,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Submission is a new candidate entering a job's pipeline.
type Submission struct {
	JobID       string `json:"jobId" validate:"required,max=200"`
	CandidateID string `json:"candidateId,omitempty" validate:"max=200"`
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=320"`
	Phone       string `json:"phone,omitempty" validate:"max=50"`
	CVReference string `json:"cvReference,omitempty" validate:"max=1000"`
	CoverLetter string `json:"coverLetter,omitempty" validate:"max=20000"`
}

// TransitionResult is what a transition caller gets back.
type TransitionResult struct {
	View            *lifecycle.ProjectedApplication `json:"application"`
	Warnings        []lifecycle.Warning             `json:"warnings"`
	NeedsAssignment bool                            `json:"needsAssignment"`
	NoOp            bool                            `json:"noop"`

	// Dispatched closes once side effects have been handed off. Transports
	// do not wait on it.
	Dispatched <-chan struct{} `json:"-"`
}

// ─── Business logic ───────────────────────────────────────────────────────────

// GetApplicationView returns the viewer's projection of an application.
func (s *Service) GetApplicationView(ctx context.Context, id string, viewer lifecycle.Viewer) (lifecycle.ProjectedApplication, error) {
	return s.exec.View(ctx, id, viewer)
}

// RequestTransition moves an application to targetStatus. Side effects are
// dispatched after the commit and never influence the returned error.
func (s *Service) RequestTransition(ctx context.Context, id string, viewer lifecycle.Viewer, targetStatus string, fields lifecycle.FieldUpdates) (TransitionResult, error) {
	if err := s.validate.Struct(fields); err != nil {
		return TransitionResult{}, validationError(err)
	}
	target, err := lifecycle.ParseStatus(targetStatus)
	if err != nil {
		return TransitionResult{}, &lifecycle.ValidationError{Msg: err.Error()}
	}

	out, err := s.exec.Execute(ctx, id, viewer, target, fields)
	if err != nil {
		return TransitionResult{}, err
	}

	warnings := out.Warnings
	if warnings == nil {
		warnings = []lifecycle.Warning{}
	}
	return TransitionResult{
		View:            out.View,
		Warnings:        warnings,
		NeedsAssignment: out.NeedsAssignment,
		NoOp:            out.NoOp,
		Dispatched:      s.dispatcher.DispatchAsync(ctx, out.Intents),
	}, nil
}

// Submit creates an application. Candidates apply for themselves and land in
// pending; admins inject candidates, who land in injected_by_admin.
func (s *Service) Submit(ctx context.Context, viewer lifecycle.Viewer, sub Submission) (lifecycle.ProjectedApplication, error) {
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Name = strings.TrimSpace(sub.Name)
	if err := s.validate.Struct(sub); err != nil {
		return lifecycle.ProjectedApplication{}, validationError(err)
	}

	app := lifecycle.Application{
		JobID:       sub.JobID,
		Candidate:   lifecycle.Candidate{Name: sub.Name, Email: sub.Email, Phone: sub.Phone},
		CVReference: sub.CVReference,
		CoverLetter: sub.CoverLetter,
	}
	switch viewer.Role {
	case lifecycle.RoleCandidate:
		app.Status = lifecycle.StatusPending
		app.CandidateID = viewer.UserID
	case lifecycle.RoleAdmin:
		app.Status = lifecycle.StatusInjectedByAdmin
		app.CandidateID = sub.CandidateID
	default:
		return lifecycle.ProjectedApplication{}, &lifecycle.ValidationError{
			Msg: fmt.Sprintf("role %s may not submit applications", viewer.Role),
		}
	}

	dup, err := s.store.FindDuplicateOpen(ctx, app.JobID, app.Candidate.Email)
	if err != nil {
		return lifecycle.ProjectedApplication{}, fmt.Errorf("submit: %w", err)
	}
	if dup != nil {
		return lifecycle.ProjectedApplication{}, lifecycle.ErrDuplicateApplication
	}

	created, err := s.store.Create(ctx, app)
	if err != nil {
		if errors.Is(err, lifecycle.ErrDuplicateApplication) {
			// A closed application holds the slot; it is never reopened.
			return lifecycle.ProjectedApplication{}, err
		}
		return lifecycle.ProjectedApplication{}, fmt.Errorf("submit: %w", err)
	}
	return lifecycle.NewProjector(s.exec.Table()).Project(created, viewer.Role)
}

// AllowedTargets exposes the transition table for a role and status.
func (s *Service) AllowedTargets(role lifecycle.Role, from lifecycle.Status) []lifecycle.Status {
	return s.exec.Table().AllowedTargets(role, from)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &lifecycle.ValidationError{Msg: fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag())}
	}
	return &lifecycle.ValidationError{Msg: err.Error()}
}
