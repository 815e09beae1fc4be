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

var dspNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestDispute(t *testing.T) *Dispute {
	t.Helper()
	d, err := OpenDispute(uuid.New(), uuid.New(), uuid.New(), DisputeTypeQuality,
		"work does not match the quote", nil, nil, dspNow)
	require.NoError(t, err)
	return d
}

func TestOpenDispute_ReportingWindow(t *testing.T) {
	lastValidated := dspNow.Add(-7 * 24 * time.Hour)

	// Exactly at the boundary instant: allowed (inclusive).
	_, err := OpenDispute(uuid.New(), uuid.New(), uuid.New(), DisputeTypeQuality,
		"desc", nil, &lastValidated, dspNow)
	assert.NoError(t, err)

	// One second inside the window: allowed.
	_, err = OpenDispute(uuid.New(), uuid.New(), uuid.New(), DisputeTypeQuality,
		"desc", nil, &lastValidated, dspNow.Add(-time.Second))
	assert.NoError(t, err)

	// One second past: refused.
	_, err = OpenDispute(uuid.New(), uuid.New(), uuid.New(), DisputeTypeQuality,
		"desc", nil, &lastValidated, dspNow.Add(time.Second))
	assert.True(t, apperror.IsWrongState(err))
}

func TestOpenDispute_NoValidatedMilestoneMeansNoWindow(t *testing.T) {
	_, err := OpenDispute(uuid.New(), uuid.New(), uuid.New(), DisputeTypePayment,
		"desc", nil, nil, dspNow)
	assert.NoError(t, err)
}

func TestOpenDispute_Validation(t *testing.T) {
	same := uuid.New()

	_, err := OpenDispute(uuid.New(), same, same, DisputeTypeQuality, "desc", nil, nil, dspNow)
	assert.True(t, apperror.IsValidation(err))

	_, err = OpenDispute(uuid.New(), uuid.New(), uuid.New(), "bogus", "desc", nil, nil, dspNow)
	assert.True(t, apperror.IsValidation(err))

	_, err = OpenDispute(uuid.New(), uuid.New(), uuid.New(), DisputeTypeQuality, "", nil, nil, dspNow)
	assert.True(t, apperror.IsValidation(err))
}

func TestDispute_MediationLifecycle(t *testing.T) {
	d := newTestDispute(t)
	mediator := uuid.New()

	require.NoError(t, d.StartMediation(mediator, dspNow))
	assert.Equal(t, valueobject.DisputeStatusInMediation, d.Status)
	require.NotNil(t, d.Mediation)
	assert.True(t, d.Mediation.Active)

	// Starting twice fails; the mediation is never replaced.
	err := d.StartMediation(uuid.New(), dspNow)
	assert.True(t, apperror.IsWrongState(err))
	assert.Equal(t, mediator, d.Mediation.MediatorID)
}

func TestDispute_AddCommunication(t *testing.T) {
	d := newTestDispute(t)
	mediator := uuid.New()
	require.NoError(t, d.StartMediation(mediator, dspNow))

	require.NoError(t, d.AddCommunication(d.ReporterID, "the wall is crooked", dspNow))
	require.NoError(t, d.AddCommunication(mediator, "please send photos", dspNow.Add(time.Minute)))
	assert.Len(t, d.Mediation.Communications, 2)

	// Outsiders cannot write to the log.
	err := d.AddCommunication(uuid.New(), "hello", dspNow)
	assert.True(t, apperror.IsForbidden(err))

	err = d.AddCommunication(d.ReporterID, "", dspNow)
	assert.True(t, apperror.IsValidation(err))
}

func TestDispute_ResolveFromMediation(t *testing.T) {
	d := newTestDispute(t)
	require.NoError(t, d.StartMediation(uuid.New(), dspNow))

	resolvedAt := dspNow.Add(time.Hour)
	require.NoError(t, d.ResolveFromMediation("parties agreed on a rework", resolvedAt))

	assert.Equal(t, valueobject.DisputeStatusResolved, d.Status)
	assert.False(t, d.Mediation.Active)
	require.NotNil(t, d.Resolution)
	assert.Nil(t, d.Resolution.Decision)
	assert.Equal(t, resolvedAt, *d.ResolvedAt)
}

func TestDispute_EscalateRetainsMediationLog(t *testing.T) {
	d := newTestDispute(t)
	mediator := uuid.New()
	require.NoError(t, d.StartMediation(mediator, dspNow))
	require.NoError(t, d.AddCommunication(d.ReporterID, "still unresolved", dspNow))

	arbitrator := uuid.New()
	require.NoError(t, d.EscalateToArbitration(arbitrator, dspNow.Add(time.Hour)))

	assert.Equal(t, valueobject.DisputeStatusInArbitration, d.Status)
	require.NotNil(t, d.Mediation)
	assert.False(t, d.Mediation.Active)
	assert.Len(t, d.Mediation.Communications, 1)
	require.NotNil(t, d.Arbitration)
	assert.Equal(t, arbitrator, d.Arbitration.ArbitratorID)

	// The log is frozen once mediation ended.
	err := d.AddCommunication(d.ReporterID, "more", dspNow)
	assert.True(t, apperror.IsWrongState(err))
}

func TestDispute_EscalateFromOpenFails(t *testing.T) {
	d := newTestDispute(t)
	err := d.EscalateToArbitration(uuid.New(), dspNow)
	assert.True(t, apperror.IsWrongState(err))
}

func TestDispute_RenderArbitrationDecision(t *testing.T) {
	d := newTestDispute(t)
	require.NoError(t, d.StartMediation(uuid.New(), dspNow))
	require.NoError(t, d.EscalateToArbitration(uuid.New(), dspNow))

	amount := valueobject.MustMoney(40000)
	decidedAt := dspNow.Add(2 * time.Hour)

	event, err := d.RenderArbitrationDecision(PartialRefundDecision(amount), "both sides at fault", decidedAt)
	require.NoError(t, err)

	assert.Equal(t, valueobject.DisputeStatusResolved, d.Status)
	assert.Equal(t, DecisionPartialRefund, event.Decision.Kind)
	assert.Equal(t, d.JobID, event.JobID)
	require.NotNil(t, d.Arbitration.Decision)
	assert.Equal(t, decidedAt, *d.Arbitration.DecidedAt)
	require.NotNil(t, d.Resolution)
	assert.Equal(t, d.Arbitration.Decision, d.Resolution.Decision)

	// Then close.
	require.NoError(t, d.Close())
	assert.Equal(t, valueobject.DisputeStatusClosed, d.Status)
}

func TestDispute_RenderDecision_WrongState(t *testing.T) {
	d := newTestDispute(t)
	_, err := d.RenderArbitrationDecision(FreezeFundsDecision(), "j", dspNow)
	assert.True(t, apperror.IsWrongState(err))
}

func TestDispute_Close_WrongState(t *testing.T) {
	d := newTestDispute(t)
	assert.True(t, apperror.IsWrongState(d.Close()))
}

func TestDecision_Validate(t *testing.T) {
	amount := valueobject.MustMoney(1000)
	zero := valueobject.MustMoney(0)

	assert.NoError(t, RefundClientDecision(nil).Validate())
	assert.NoError(t, RefundClientDecision(&amount).Validate())
	assert.NoError(t, PayArtisanDecision(nil).Validate())
	assert.NoError(t, PartialRefundDecision(amount).Validate())
	assert.NoError(t, FreezeFundsDecision().Validate())

	assert.Error(t, PartialRefundDecision(zero).Validate())
	assert.Error(t, Decision{Kind: DecisionPartialRefund}.Validate())
	assert.Error(t, Decision{Kind: DecisionFreezeFunds, Amount: &amount}.Validate())
	assert.Error(t, Decision{Kind: "split_the_baby"}.Validate())
}
