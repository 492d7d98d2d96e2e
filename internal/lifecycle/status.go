// Package lifecycle defines the application lifecycle engine: the closed status
// catalog, the role-scoped transition table, per-role projections and the
// executor that commits transitions through the application store.
//
// Pipeline (happy path):
//
//	pending ──► reviewing ──► sent_to_specialist ──► evaluating ──► sent_to_company
//	   ▲                                                                  │
//	injected_by_admin                                                     ▼
//	                     accepted ◄── interviewed ◄── company_interested ◄┘
//
// accepted, rejected, discarded and archived are terminal.
package lifecycle

import (
	"fmt"
	"slices"
)

// Status values mirror the applications.status column.
type Status string

const (
	StatusPending           Status = "pending"
	StatusReviewing         Status = "reviewing"
	StatusEvaluating        Status = "evaluating"
	StatusSentToSpecialist  Status = "sent_to_specialist"
	StatusSentToCompany     Status = "sent_to_company"
	StatusCompanyInterested Status = "company_interested"
	StatusInterviewed       Status = "interviewed"
	StatusRejected          Status = "rejected"
	StatusAccepted          Status = "accepted"
	StatusInjectedByAdmin   Status = "injected_by_admin"
	StatusDiscarded         Status = "discarded"
	StatusArchived          Status = "archived"
)

// Role is the capability class of whoever is reading or acting.
type Role string

const (
	RoleRecruiter  Role = "recruiter"
	RoleSpecialist Role = "specialist"
	RoleCompany    Role = "company"
	RoleAdmin      Role = "admin"
	RoleCandidate  Role = "candidate"

	// RoleNone marks statuses that sit in nobody's queue.
	RoleNone Role = ""
)

// Roles lists every acting role.
var Roles = []Role{RoleRecruiter, RoleSpecialist, RoleCompany, RoleAdmin, RoleCandidate}

// ParseRole converts a raw string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if slices.Contains(Roles, r) {
		return r, nil
	}
	return "", &ValidationError{Msg: fmt.Sprintf("unknown role %q", s)}
}

// Candidate-facing labels.
const (
	LabelInReview    = "En revisión"
	LabelInProcess   = "En proceso"
	LabelInterviewed = "Entrevistado"
	LabelAccepted    = "Aceptado"
	LabelNotSelected = "No seleccionado"
	LabelArchived    = "Archivado"
)

// StatusDefinition is the static metadata attached to a status.
type StatusDefinition struct {
	Name           Status
	IsTerminal     bool
	OwnerRole      Role
	VisibleTo      []Role
	CandidateLabel string
}

// Visible reports whether role may see an application holding this status.
func (d StatusDefinition) Visible(role Role) bool {
	return slices.Contains(d.VisibleTo, role)
}

var catalog = map[Status]StatusDefinition{
	StatusPending: {
		Name: StatusPending, OwnerRole: RoleRecruiter,
		VisibleTo:      []Role{RoleRecruiter, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInReview,
	},
	StatusInjectedByAdmin: {
		Name: StatusInjectedByAdmin, OwnerRole: RoleRecruiter,
		VisibleTo:      []Role{RoleRecruiter, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInReview,
	},
	StatusReviewing: {
		Name: StatusReviewing, OwnerRole: RoleRecruiter,
		VisibleTo:      []Role{RoleRecruiter, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInReview,
	},
	StatusSentToSpecialist: {
		Name: StatusSentToSpecialist, OwnerRole: RoleSpecialist,
		VisibleTo:      []Role{RoleSpecialist, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInProcess,
	},
	StatusEvaluating: {
		Name: StatusEvaluating, OwnerRole: RoleSpecialist,
		VisibleTo:      []Role{RoleSpecialist, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInProcess,
	},
	// Specialists keep read access once they hand the candidate over.
	StatusSentToCompany: {
		Name: StatusSentToCompany, OwnerRole: RoleCompany,
		VisibleTo:      []Role{RoleCompany, RoleSpecialist, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInProcess,
	},
	StatusCompanyInterested: {
		Name: StatusCompanyInterested, OwnerRole: RoleCompany,
		VisibleTo:      []Role{RoleCompany, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInProcess,
	},
	StatusInterviewed: {
		Name: StatusInterviewed, OwnerRole: RoleCompany,
		VisibleTo:      []Role{RoleCompany, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelInterviewed,
	},
	StatusAccepted: {
		Name: StatusAccepted, IsTerminal: true, OwnerRole: RoleNone,
		VisibleTo:      []Role{RoleCompany, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelAccepted,
	},
	StatusRejected: {
		Name: StatusRejected, IsTerminal: true, OwnerRole: RoleNone,
		VisibleTo:      []Role{RoleCompany, RoleAdmin, RoleCandidate},
		CandidateLabel: LabelNotSelected,
	},
	StatusDiscarded: {
		Name: StatusDiscarded, IsTerminal: true, OwnerRole: RoleNone,
		VisibleTo:      []Role{RoleAdmin, RoleCandidate},
		CandidateLabel: LabelNotSelected,
	},
	StatusArchived: {
		Name: StatusArchived, IsTerminal: true, OwnerRole: RoleNone,
		VisibleTo:      []Role{RoleAdmin, RoleCandidate},
		CandidateLabel: LabelArchived,
	},
}

// AllStatuses returns the catalog in pipeline order.
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusInjectedByAdmin, StatusReviewing,
		StatusSentToSpecialist, StatusEvaluating, StatusSentToCompany,
		StatusCompanyInterested, StatusInterviewed,
		StatusAccepted, StatusRejected, StatusDiscarded, StatusArchived,
	}
}

// DefinitionOf returns the metadata for status, or an *UnknownStatusError.
func DefinitionOf(status Status) (StatusDefinition, error) {
	def, ok := catalog[status]
	if !ok {
		return StatusDefinition{}, &UnknownStatusError{Value: string(status)}
	}
	return def, nil
}

// ParseStatus converts a raw string to a Status. Matching is exact.
func ParseStatus(s string) (Status, error) {
	def, err := DefinitionOf(Status(s))
	if err != nil {
		return "", err
	}
	return def.Name, nil
}

// IsTerminal returns true when status has no outbound edges for any role.
// Unknown statuses are not terminal.
func IsTerminal(status Status) bool {
	return catalog[status].IsTerminal
}

// LabelFor returns the label viewer should see for status. Candidates get the
// coarse label; every internal role sees the raw status name.
func LabelFor(status Status, viewer Role) (string, error) {
	def, err := DefinitionOf(status)
	if err != nil {
		return "", err
	}
	if viewer == RoleCandidate {
		return def.CandidateLabel, nil
	}
	return string(def.Name), nil
}

// IsOpen reports whether an application in status still counts for duplicate
// detection at intake.
func IsOpen(status Status) bool {
	def, err := DefinitionOf(status)
	return err == nil && !def.IsTerminal
}

// stampsReview lists the statuses that set reviewedAt on first entry.
func stampsReview(status Status) bool {
	switch status {
	case StatusReviewing, StatusRejected, StatusAccepted:
		return true
	}
	return false
}
