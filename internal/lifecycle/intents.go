package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IntentKind names a side effect to perform after a transition commits.
type IntentKind string

const (
	IntentAudit                    IntentKind = "audit_entry"
	IntentNotifyCandidate          IntentKind = "notify_candidate_status_change"
	IntentNotifyCompany            IntentKind = "notify_company_new_candidate"
	IntentNotifySpecialist         IntentKind = "notify_specialist_new_candidate"
	IntentCheckAssignmentReadiness IntentKind = "check_assignment_readiness"
	IntentRecordPlacement          IntentKind = "record_placement"
)

// intentNamespace seeds deterministic intent ids.
var intentNamespace = uuid.MustParse("6f1c9a52-3d0e-4b7a-9c61-2f8e5d4b1a07")

// SideEffectIntent describes work to do once a transition is durable. It is
// plain data; delivery belongs to the dispatcher.
type SideEffectIntent struct {
	ID             uuid.UUID  `json:"id"`
	Kind           IntentKind `json:"kind"`
	ApplicationID  string     `json:"applicationId"`
	JobID          string     `json:"jobId"`
	From           Status     `json:"from"`
	To             Status     `json:"to"`
	ActorRole      Role       `json:"actorRole"`
	ActorID        string     `json:"actorId"`
	CandidateEmail string     `json:"candidateEmail,omitempty"`
	CandidateLabel string     `json:"candidateLabel,omitempty"`
	RecipientID    string     `json:"recipientId,omitempty"`
	OccurredAt     time.Time  `json:"occurredAt"`
}

// intentsFor derives the side effects of the committed move from → app.Status.
func intentsFor(app Application, from Status, actor Viewer, assignment JobAssignment) []SideEffectIntent {
	to := app.Status
	base := SideEffectIntent{
		ApplicationID: app.ID,
		JobID:         app.JobID,
		From:          from,
		To:            to,
		ActorRole:     actor.Role,
		ActorID:       actor.UserID,
		OccurredAt:    app.UpdatedAt,
	}
	emit := func(kind IntentKind, fill func(*SideEffectIntent)) SideEffectIntent {
		in := base
		in.Kind = kind
		in.ID = uuid.NewSHA1(intentNamespace, []byte(fmt.Sprintf("%s|%s|%s|%s|%d",
			app.ID, from, to, kind, app.UpdatedAt.UnixNano())))
		if fill != nil {
			fill(&in)
		}
		return in
	}

	out := []SideEffectIntent{emit(IntentAudit, nil)}

	fromLabel, _ := LabelFor(from, RoleCandidate)
	toLabel, _ := LabelFor(to, RoleCandidate)
	if fromLabel != toLabel && app.Candidate.Email != "" {
		out = append(out, emit(IntentNotifyCandidate, func(in *SideEffectIntent) {
			in.CandidateEmail = app.Candidate.Email
			in.CandidateLabel = toLabel
			in.RecipientID = app.CandidateID
		}))
	}

	switch to {
	case StatusSentToSpecialist:
		if assignment.SpecialistLinked() {
			out = append(out, emit(IntentNotifySpecialist, func(in *SideEffectIntent) {
				in.RecipientID = assignment.SpecialistID
			}))
		} else {
			out = append(out, emit(IntentCheckAssignmentReadiness, nil))
		}
	case StatusSentToCompany:
		out = append(out, emit(IntentNotifyCompany, func(in *SideEffectIntent) {
			in.RecipientID = assignment.CompanyID
		}))
	case StatusAccepted:
		out = append(out, emit(IntentRecordPlacement, func(in *SideEffectIntent) {
			in.RecipientID = assignment.CompanyID
		}))
	}
	return out
}
