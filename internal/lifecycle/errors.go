package lifecycle

import (
	"errors"
	"fmt"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when an application is missing or not visible to
// the viewer. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("application not found")

// ErrConcurrentModification is returned when another transition committed
// between the read and the compare-and-swap. Callers should re-read and retry.
var ErrConcurrentModification = errors.New("application was modified concurrently, try again")

// ErrDuplicateApplication is returned by intake when the candidate already
// has an application for the job.
var ErrDuplicateApplication = errors.New("candidate already applied to this job")

// ErrUnknownStatus matches any *UnknownStatusError via errors.Is.
var ErrUnknownStatus = errors.New("unknown application status")

// UnknownStatusError reports a value outside the closed catalog.
type UnknownStatusError struct{ Value string }

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown application status %q", e.Value)
}

func (e *UnknownStatusError) Is(target error) bool { return target == ErrUnknownStatus }

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ─── Transition denials ──────────────────────────────────────────────────────

// DenialReason classifies why a transition was refused.
type DenialReason string

const (
	// NotAnAllowedEdge: the role has no edge from the current status to the target.
	NotAnAllowedEdge DenialReason = "not_an_allowed_edge"
	// PreconditionFailed: the edge exists but external state does not allow it yet.
	PreconditionFailed DenialReason = "precondition_failed"
	// TerminalState: the application is closed.
	TerminalState DenialReason = "terminal_state"
)

// TransitionDeniedError is returned when the transition table refuses a move.
type TransitionDeniedError struct {
	Reason DenialReason
	Role   Role
	From   Status
	To     Status
	// Detail is set for PreconditionFailed.
	Detail string
}

func (e *TransitionDeniedError) Error() string {
	switch e.Reason {
	case TerminalState:
		return fmt.Sprintf("application is already closed (%s)", e.From)
	case PreconditionFailed:
		return fmt.Sprintf("transition %s → %s is not possible right now: %s", e.From, e.To, e.Detail)
	default:
		return fmt.Sprintf("role %s is not allowed to move an application from %s to %s", e.Role, e.From, e.To)
	}
}

// DenialOf extracts the denial reason from err, if any.
func DenialOf(err error) (DenialReason, bool) {
	var de *TransitionDeniedError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}
