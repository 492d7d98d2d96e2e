package lifecycle

import "fmt"

// TransitionContext carries external state consulted by preconditions.
type TransitionContext struct {
	JobID            string
	SpecialistLinked bool
}

// Precondition gates an edge on external state. A soft precondition only
// produces a warning when unmet; a hard one denies the transition.
type Precondition struct {
	Code    string
	Message string
	Check   func(TransitionContext) bool
	Soft    bool
}

// Edge is one allowed (from → to) move and the roles that may take it.
type Edge struct {
	From         Status
	To           Status
	Roles        []Role
	Precondition *Precondition
}

// Warning accompanies a successful transition whose soft precondition failed.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WarningNeedsAssignment is raised when an application is sent to a specialist
// while none is linked to the job.
const WarningNeedsAssignment = "needs_assignment"

// AssignmentPolicy decides how the specialist-linked precondition behaves.
type AssignmentPolicy string

const (
	AssignmentWarn  AssignmentPolicy = "warn"
	AssignmentBlock AssignmentPolicy = "block"
)

// ParseAssignmentPolicy converts a raw config value.
func ParseAssignmentPolicy(s string) (AssignmentPolicy, error) {
	switch p := AssignmentPolicy(s); p {
	case AssignmentWarn, AssignmentBlock:
		return p, nil
	}
	return "", fmt.Errorf("assignment policy must be %q or %q, got %q", AssignmentWarn, AssignmentBlock, s)
}

// specialistLinked builds the precondition on recruiter hand-off.
func specialistLinked(policy AssignmentPolicy) *Precondition {
	return &Precondition{
		Code:    WarningNeedsAssignment,
		Message: "no specialist is linked to this job yet",
		Check:   func(tc TransitionContext) bool { return tc.SpecialistLinked },
		Soft:    policy != AssignmentBlock,
	}
}

// adminTargets are the override moves an admin may make from any open status.
var adminTargets = []Status{StatusReviewing, StatusDiscarded, StatusArchived}

// DefaultEdges returns the marketplace pipeline for the given policy.
func DefaultEdges(policy AssignmentPolicy) []Edge {
	recruiter := []Role{RoleRecruiter}
	specialist := []Role{RoleSpecialist}
	company := []Role{RoleCompany}

	edges := []Edge{
		{From: StatusPending, To: StatusReviewing, Roles: recruiter},
		{From: StatusPending, To: StatusDiscarded, Roles: recruiter},
		{From: StatusInjectedByAdmin, To: StatusReviewing, Roles: recruiter},
		{From: StatusInjectedByAdmin, To: StatusDiscarded, Roles: recruiter},
		{From: StatusReviewing, To: StatusSentToSpecialist, Roles: recruiter, Precondition: specialistLinked(policy)},
		{From: StatusReviewing, To: StatusDiscarded, Roles: recruiter},

		{From: StatusSentToSpecialist, To: StatusEvaluating, Roles: specialist},
		{From: StatusSentToSpecialist, To: StatusSentToCompany, Roles: specialist},
		{From: StatusSentToSpecialist, To: StatusDiscarded, Roles: specialist},
		{From: StatusEvaluating, To: StatusSentToCompany, Roles: specialist},
		{From: StatusEvaluating, To: StatusDiscarded, Roles: specialist},

		{From: StatusSentToCompany, To: StatusCompanyInterested, Roles: company},
		{From: StatusSentToCompany, To: StatusInterviewed, Roles: company},
		{From: StatusSentToCompany, To: StatusRejected, Roles: company},
		{From: StatusCompanyInterested, To: StatusInterviewed, Roles: company},
		{From: StatusCompanyInterested, To: StatusAccepted, Roles: company},
		{From: StatusCompanyInterested, To: StatusRejected, Roles: company},
		{From: StatusInterviewed, To: StatusAccepted, Roles: company},
		{From: StatusInterviewed, To: StatusRejected, Roles: company},
	}

	for _, from := range AllStatuses() {
		if IsTerminal(from) {
			continue
		}
		for _, to := range adminTargets {
			if to != from {
				edges = append(edges, Edge{From: from, To: to, Roles: []Role{RoleAdmin}})
			}
		}
	}
	return edges
}

type edgeKey struct {
	role Role
	from Status
	to   Status
}

// TransitionTable answers which moves a role may make. It is immutable after
// construction and safe for concurrent use.
type TransitionTable struct {
	edges map[edgeKey]Edge
}

// NewTransitionTable indexes edges, rejecting any that reference an unknown
// status or originate from a terminal one.
func NewTransitionTable(edges []Edge) (*TransitionTable, error) {
	t := &TransitionTable{edges: make(map[edgeKey]Edge, len(edges))}
	for _, e := range edges {
		if _, err := DefinitionOf(e.From); err != nil {
			return nil, fmt.Errorf("edge %s → %s: %w", e.From, e.To, err)
		}
		if _, err := DefinitionOf(e.To); err != nil {
			return nil, fmt.Errorf("edge %s → %s: %w", e.From, e.To, err)
		}
		if IsTerminal(e.From) {
			return nil, fmt.Errorf("edge %s → %s originates from a terminal status", e.From, e.To)
		}
		if e.From == e.To {
			return nil, fmt.Errorf("edge %s → %s is a self-loop", e.From, e.To)
		}
		for _, r := range e.Roles {
			t.edges[edgeKey{role: r, from: e.From, to: e.To}] = e
		}
	}
	return t, nil
}

// DefaultTable builds the table for DefaultEdges.
func DefaultTable(policy AssignmentPolicy) *TransitionTable {
	t, err := NewTransitionTable(DefaultEdges(policy))
	if err != nil {
		panic(err) // static configuration
	}
	return t
}

// AllowedTargets returns the statuses role may move to from from, in catalog
// order. Terminal statuses always yield an empty set.
func (t *TransitionTable) AllowedTargets(role Role, from Status) []Status {
	out := []Status{}
	if IsTerminal(from) {
		return out
	}
	for _, to := range AllStatuses() {
		if _, ok := t.edges[edgeKey{role: role, from: from, to: to}]; ok {
			out = append(out, to)
		}
	}
	return out
}

// CanTransition checks whether role may move from → to. Soft preconditions
// that fail are returned as warnings; everything else is a
// *TransitionDeniedError.
func (t *TransitionTable) CanTransition(role Role, from, to Status, tc TransitionContext) ([]Warning, error) {
	if _, err := DefinitionOf(from); err != nil {
		return nil, err
	}
	if _, err := DefinitionOf(to); err != nil {
		return nil, err
	}
	if IsTerminal(from) {
		return nil, &TransitionDeniedError{Reason: TerminalState, Role: role, From: from, To: to}
	}

	edge, ok := t.edges[edgeKey{role: role, from: from, to: to}]
	if !ok {
		return nil, &TransitionDeniedError{Reason: NotAnAllowedEdge, Role: role, From: from, To: to}
	}

	pre := edge.Precondition
	if pre == nil || pre.Check(tc) {
		return nil, nil
	}
	if pre.Soft {
		return []Warning{{Code: pre.Code, Message: pre.Message}}, nil
	}
	return nil, &TransitionDeniedError{
		Reason: PreconditionFailed, Role: role, From: from, To: to, Detail: pre.Message,
	}
}

// NeedsContext reports whether the edge role takes from → to carries a
// precondition, so callers only consult external state when required.
func (t *TransitionTable) NeedsContext(role Role, from, to Status) bool {
	e, ok := t.edges[edgeKey{role: role, from: from, to: to}]
	return ok && e.Precondition != nil
}

// Edges returns every (role, from, to) triple in a stable order.
func (t *TransitionTable) Edges() []Edge {
	var out []Edge
	for _, role := range Roles {
		for _, from := range AllStatuses() {
			for _, to := range t.AllowedTargets(role, from) {
				e := t.edges[edgeKey{role: role, from: from, to: to}]
				out = append(out, Edge{From: from, To: to, Roles: []Role{role}, Precondition: e.Precondition})
			}
		}
	}
	return out
}
