package lifecycle_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inakat/lifecycle-service/internal/lifecycle"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range lifecycle.AllStatuses() {
		got, err := lifecycle.ParseStatus(string(s))
		require.NoError(t, err, "ParseStatus(%q)", s)
		assert.Equal(t, s, got)
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, raw := range []string{"", "UNKNOWN", "Pending", "hired", " pending"} {
		_, err := lifecycle.ParseStatus(raw)
		require.Error(t, err, "ParseStatus(%q)", raw)
		assert.True(t, errors.Is(err, lifecycle.ErrUnknownStatus))

		var use *lifecycle.UnknownStatusError
		require.ErrorAs(t, err, &use)
		assert.Equal(t, raw, use.Value)
	}
}

// ── Catalog ────────────────────────────────────────────────────────────────

func TestCatalog_HasTwelveStatuses(t *testing.T) {
	all := lifecycle.AllStatuses()
	assert.Len(t, all, 12)

	seen := map[lifecycle.Status]bool{}
	for _, s := range all {
		assert.False(t, seen[s], "duplicate status %s", s)
		seen[s] = true
		def, err := lifecycle.DefinitionOf(s)
		require.NoError(t, err)
		assert.Equal(t, s, def.Name)
		assert.NotEmpty(t, def.CandidateLabel, "%s has no candidate label", s)
	}
}

func TestCatalog_TerminalStatuses(t *testing.T) {
	terminal := map[lifecycle.Status]bool{
		lifecycle.StatusAccepted:  true,
		lifecycle.StatusRejected:  true,
		lifecycle.StatusDiscarded: true,
		lifecycle.StatusArchived:  true,
	}
	for _, s := range lifecycle.AllStatuses() {
		assert.Equal(t, terminal[s], lifecycle.IsTerminal(s), "IsTerminal(%s)", s)
		assert.Equal(t, !terminal[s], lifecycle.IsOpen(s), "IsOpen(%s)", s)
	}
	assert.False(t, lifecycle.IsTerminal("bogus"))
	assert.False(t, lifecycle.IsOpen("bogus"))
}

func TestCatalog_CandidateSeesEveryStatus(t *testing.T) {
	for _, s := range lifecycle.AllStatuses() {
		def, _ := lifecycle.DefinitionOf(s)
		assert.True(t, def.Visible(lifecycle.RoleCandidate), "candidate cannot see %s", s)
		assert.True(t, def.Visible(lifecycle.RoleAdmin), "admin cannot see %s", s)
	}
}

func TestCatalog_CompanyNeverSeesEarlyStages(t *testing.T) {
	for _, s := range []lifecycle.Status{
		lifecycle.StatusPending,
		lifecycle.StatusInjectedByAdmin,
		lifecycle.StatusReviewing,
		lifecycle.StatusSentToSpecialist,
		lifecycle.StatusEvaluating,
		lifecycle.StatusDiscarded,
		lifecycle.StatusArchived,
	} {
		def, _ := lifecycle.DefinitionOf(s)
		assert.False(t, def.Visible(lifecycle.RoleCompany), "company can see %s", s)
	}
}

// ── LabelFor ───────────────────────────────────────────────────────────────

func TestLabelFor_Candidate(t *testing.T) {
	cases := map[lifecycle.Status]string{
		lifecycle.StatusPending:           lifecycle.LabelInReview,
		lifecycle.StatusInjectedByAdmin:   lifecycle.LabelInReview,
		lifecycle.StatusReviewing:         lifecycle.LabelInReview,
		lifecycle.StatusSentToSpecialist:  lifecycle.LabelInProcess,
		lifecycle.StatusEvaluating:        lifecycle.LabelInProcess,
		lifecycle.StatusSentToCompany:     lifecycle.LabelInProcess,
		lifecycle.StatusCompanyInterested: lifecycle.LabelInProcess,
		lifecycle.StatusInterviewed:       lifecycle.LabelInterviewed,
		lifecycle.StatusAccepted:          lifecycle.LabelAccepted,
		lifecycle.StatusRejected:          lifecycle.LabelNotSelected,
		lifecycle.StatusDiscarded:         lifecycle.LabelNotSelected,
		lifecycle.StatusArchived:          lifecycle.LabelArchived,
	}
	for s, want := range cases {
		got, err := lifecycle.LabelFor(s, lifecycle.RoleCandidate)
		require.NoError(t, err)
		assert.Equal(t, want, got, "LabelFor(%s, candidate)", s)
	}
}

func TestLabelFor_InternalRolesSeeRawName(t *testing.T) {
	got, err := lifecycle.LabelFor(lifecycle.StatusEvaluating, lifecycle.RoleSpecialist)
	require.NoError(t, err)
	assert.Equal(t, "evaluating", got)

	_, err = lifecycle.LabelFor("bogus", lifecycle.RoleAdmin)
	assert.ErrorIs(t, err, lifecycle.ErrUnknownStatus)
}

// ── ParseRole ──────────────────────────────────────────────────────────────

func TestParseRole(t *testing.T) {
	for _, r := range lifecycle.Roles {
		got, err := lifecycle.ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := lifecycle.ParseRole("superuser")
	var ve *lifecycle.ValidationError
	assert.ErrorAs(t, err, &ve)
}
