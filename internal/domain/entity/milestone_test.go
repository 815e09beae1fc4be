package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

var msNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestMilestone(t *testing.T) *Milestone {
	t.Helper()
	w := NewWorksite(uuid.New(), uuid.New(), uuid.New())
	m, err := w.AddMilestone("pose du carrelage", valueobject.MustMoney(50000), 1)
	require.NoError(t, err)
	return m
}

func validProof(t *testing.T) ProofOfDelivery {
	t.Helper()
	loc, err := valueobject.NewGeoPoint(14.6928, -17.4467, 8)
	require.NoError(t, err)
	return ProofOfDelivery{
		PhotoURL:   "https://media.baticonnect.example/proofs/abc123.jpg",
		Location:   loc,
		CapturedAt: msNow.Add(-time.Hour),
	}
}

func TestMilestone_SubmitProof_SetsDeadline(t *testing.T) {
	m := newTestMilestone(t)

	err := m.SubmitProof(validProof(t), msNow)
	require.NoError(t, err)

	assert.Equal(t, valueobject.MilestoneStatusSubmitted, m.Status)
	require.NotNil(t, m.SubmittedAt)
	require.NotNil(t, m.AutoValidationDeadline)
	assert.Equal(t, m.SubmittedAt.Add(48*time.Hour), *m.AutoValidationDeadline)
}

func TestMilestone_SubmitProof_WrongState(t *testing.T) {
	m := newTestMilestone(t)
	require.NoError(t, m.SubmitProof(validProof(t), msNow))

	err := m.SubmitProof(validProof(t), msNow)
	assert.True(t, apperror.IsWrongState(err))
}

func TestMilestone_SubmitProof_RejectsBadProof(t *testing.T) {
	loc, _ := valueobject.NewGeoPoint(14.6928, -17.4467, 8)

	cases := []struct {
		name  string
		proof ProofOfDelivery
	}{
		{"malformed url", ProofOfDelivery{PhotoURL: "not a url", Location: loc, CapturedAt: msNow}},
		{"non-http scheme", ProofOfDelivery{PhotoURL: "ftp://host/x.jpg", Location: loc, CapturedAt: msNow}},
		{"no host", ProofOfDelivery{PhotoURL: "https://", Location: loc, CapturedAt: msNow}},
		{"future capture", ProofOfDelivery{PhotoURL: "https://h/x.jpg", Location: loc, CapturedAt: msNow.Add(time.Minute)}},
		{"stale capture", ProofOfDelivery{PhotoURL: "https://h/x.jpg", Location: loc, CapturedAt: msNow.Add(-31 * 24 * time.Hour)}},
		{"invalid geo", ProofOfDelivery{PhotoURL: "https://h/x.jpg", Location: valueobject.GeoPoint{Latitude: 95}, CapturedAt: msNow}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMilestone(t)
			err := m.SubmitProof(tc.proof, msNow)
			assert.Error(t, err)
			assert.Equal(t, valueobject.MilestoneStatusPending, m.Status)
		})
	}
}

func TestMilestone_Validate(t *testing.T) {
	m := newTestMilestone(t)
	require.NoError(t, m.SubmitProof(validProof(t), msNow))

	validatedAt := msNow.Add(2 * time.Hour)
	event, err := m.Validate(validatedAt)
	require.NoError(t, err)

	assert.Equal(t, valueobject.MilestoneStatusValidated, m.Status)
	assert.Nil(t, m.AutoValidationDeadline)
	assert.False(t, m.AutoValidated)
	assert.Equal(t, m.ID, event.MilestoneID)
	assert.Equal(t, m.LaborAmount, event.LaborAmount)
	assert.False(t, event.AutoValidated)
	assert.Equal(t, validatedAt, *m.ValidatedAt)
}

func TestMilestone_Validate_WrongState(t *testing.T) {
	m := newTestMilestone(t)

	_, err := m.Validate(msNow)
	assert.True(t, apperror.IsWrongState(err))
}

func TestMilestone_AutoValidate_DeadlineGate(t *testing.T) {
	m := newTestMilestone(t)
	require.NoError(t, m.SubmitProof(validProof(t), msNow))
	deadline := *m.AutoValidationDeadline

	// One second before the deadline: refused.
	_, err := m.AutoValidate(deadline.Add(-time.Second))
	assert.True(t, apperror.IsWrongState(err))
	assert.Equal(t, valueobject.MilestoneStatusSubmitted, m.Status)

	// One second after: validated, flagged as automatic.
	event, err := m.AutoValidate(deadline.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, event.AutoValidated)
	assert.True(t, m.AutoValidated)
	assert.Equal(t, valueobject.MilestoneStatusValidated, m.Status)
	assert.Nil(t, m.AutoValidationDeadline)
}

func TestMilestone_AutoValidate_ExactlyAtDeadline(t *testing.T) {
	m := newTestMilestone(t)
	require.NoError(t, m.SubmitProof(validProof(t), msNow))

	_, err := m.AutoValidate(*m.AutoValidationDeadline)
	assert.NoError(t, err)
}

func TestMilestone_Contest(t *testing.T) {
	m := newTestMilestone(t)
	require.NoError(t, m.SubmitProof(validProof(t), msNow))

	err := m.Contest("tiles are cracked", msNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, valueobject.MilestoneStatusContested, m.Status)
	assert.Nil(t, m.AutoValidationDeadline)
	require.NotNil(t, m.ContestReason)
	assert.Equal(t, "tiles are cracked", *m.ContestReason)

	// Contested is terminal for the milestone.
	_, err = m.Validate(msNow)
	assert.True(t, apperror.IsWrongState(err))
}

func TestMilestone_Contest_RequiresReason(t *testing.T) {
	m := newTestMilestone(t)
	require.NoError(t, m.SubmitProof(validProof(t), msNow))

	err := m.Contest("", msNow)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, valueobject.MilestoneStatusSubmitted, m.Status)
	assert.NotNil(t, m.AutoValidationDeadline)
}

func TestMilestone_Contest_WrongState(t *testing.T) {
	m := newTestMilestone(t)
	err := m.Contest("reason", msNow)
	assert.True(t, apperror.IsWrongState(err))
}
