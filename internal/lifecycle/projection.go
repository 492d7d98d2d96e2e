package lifecycle

import (
	"slices"
	"time"
)

// ProjectedApplication is what a single role is allowed to see.
type ProjectedApplication struct {
	ID                 string           `json:"id"`
	JobID              string           `json:"jobId"`
	Candidate          Candidate        `json:"candidate"`
	Status             string           `json:"status"`
	Notes              *string          `json:"notes"`
	Evaluations        []EvaluationNote `json:"evaluations"`
	History            []HistoryEntry   `json:"history,omitempty"`
	CVReference        string           `json:"cvReference,omitempty"`
	CoverLetter        string           `json:"coverLetter,omitempty"`
	AllowedTransitions []Status         `json:"allowedTransitions"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	ReviewedAt         *time.Time       `json:"reviewedAt,omitempty"`
}

// Projector renders role-specific views. It never mutates the record.
type Projector struct {
	table *TransitionTable
}

// NewProjector returns a Projector that fills AllowedTransitions from table.
func NewProjector(table *TransitionTable) *Projector {
	return &Projector{table: table}
}

// Project returns the view of app for role, or ErrNotFound when role may not
// see the application in its current status.
func (p *Projector) Project(app Application, role Role) (ProjectedApplication, error) {
	def, err := DefinitionOf(app.Status)
	if err != nil {
		return ProjectedApplication{}, err
	}
	if !def.Visible(role) {
		return ProjectedApplication{}, ErrNotFound
	}

	label, err := LabelFor(app.Status, role)
	if err != nil {
		return ProjectedApplication{}, err
	}

	view := ProjectedApplication{
		ID:                 app.ID,
		JobID:              app.JobID,
		Candidate:          app.Candidate,
		Status:             label,
		CVReference:        app.CVReference,
		CoverLetter:        app.CoverLetter,
		AllowedTransitions: p.table.AllowedTargets(role, app.Status),
		CreatedAt:          app.CreatedAt,
		UpdatedAt:          app.UpdatedAt,
		ReviewedAt:         cloneTime(app.ReviewedAt),
		Evaluations:        []EvaluationNote{},
	}

	switch role {
	case RoleAdmin:
		view.Notes = cloneString(app.Notes)
		view.Evaluations = slices.Clone(app.Evaluations)
		view.History = slices.Clone(app.History)
	case RoleRecruiter, RoleSpecialist:
		view.Notes = cloneString(app.Notes)
		view.Evaluations = slices.Clone(app.Evaluations)
	case RoleCompany:
		for _, n := range app.Evaluations {
			if n.Public {
				view.Evaluations = append(view.Evaluations, n)
			}
		}
	case RoleCandidate:
		// Reviewing timestamps would reveal internal queue movement.
		view.ReviewedAt = nil
	}
	if view.Evaluations == nil {
		view.Evaluations = []EvaluationNote{}
	}
	return view, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
