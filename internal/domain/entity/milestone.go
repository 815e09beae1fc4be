package entity

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

const (
	// AutoValidationDelay is the grace period after proof submission; if
	// the client neither validates nor contests within it, the milestone
	// validates automatically.
	AutoValidationDelay = 48 * time.Hour

	// MaxProofAge bounds how old a proof photo may be at submission time.
	MaxProofAge = 30 * 24 * time.Hour
)

// ProofOfDelivery is the artifact an artisan submits to show a milestone is
// done. The photo is uploaded elsewhere; the milestone only keeps the
// reference.
type ProofOfDelivery struct {
	PhotoURL   string                `db:"photo_url" json:"photo_url"`
	Location   valueobject.GeoPoint  `json:"location"`
	CapturedAt time.Time             `db:"captured_at" json:"captured_at"`
}

func (p ProofOfDelivery) Validate(now time.Time) error {
	u, err := url.Parse(p.PhotoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.New(apperror.ErrCodeValidation, "proof photo URL is malformed")
	}
	if err := p.Location.Validate(); err != nil {
		return err
	}
	if p.CapturedAt.After(now) {
		return apperror.New(apperror.ErrCodeValidation, "proof capture time is in the future")
	}
	if now.Sub(p.CapturedAt) > MaxProofAge {
		return apperror.New(apperror.ErrCodeValidation, "proof photo is older than 30 days")
	}
	return nil
}

// Milestone is a single deliverable within a worksite. Its labor amount is
// released from escrow once the milestone is validated (by the client or by
// the deadline sweep).
type Milestone struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WorksiteID  uuid.UUID `db:"worksite_id" json:"worksite_id"`
	Description string    `db:"description" json:"description"`

	LaborAmount    valueobject.Money `json:"labor_amount"`
	SequenceNumber int               `db:"sequence_number" json:"sequence_number"`

	Status valueobject.MilestoneStatus `db:"status" json:"status"`
	Proof  *ProofOfDelivery            `json:"proof,omitempty"`

	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ValidatedAt *time.Time `db:"validated_at" json:"validated_at,omitempty"`

	// AutoValidationDeadline is set only while Submitted and cleared on
	// every transition out of Submitted.
	AutoValidationDeadline *time.Time `db:"auto_validation_deadline" json:"auto_validation_deadline,omitempty"`

	ContestReason *string `db:"contest_reason" json:"contest_reason,omitempty"`
	AutoValidated bool    `db:"auto_validated" json:"auto_validated"`

	Version int `db:"version" json:"-"`
}

// SubmitProof moves a Pending milestone to Submitted and arms the
// auto-validation deadline.
func (m *Milestone) SubmitProof(proof ProofOfDelivery, now time.Time) error {
	if m.Status != valueobject.MilestoneStatusPending {
		return apperror.Newf(apperror.ErrCodeWrongState, "cannot submit proof for a %s milestone", m.Status)
	}
	if err := proof.Validate(now); err != nil {
		return err
	}

	deadline := now.Add(AutoValidationDelay)
	m.Proof = &proof
	m.SubmittedAt = &now
	m.AutoValidationDeadline = &deadline
	m.Status = valueobject.MilestoneStatusSubmitted
	return nil
}

// Validate records the client's acceptance of the submitted proof and emits
// the labor-release effect the worksite orchestration consumes.
func (m *Milestone) Validate(now time.Time) (MilestoneValidated, error) {
	return m.validate(now, false)
}

// AutoValidate validates a submitted milestone whose deadline has passed.
// It is invoked by the deadline sweep, never by a user.
func (m *Milestone) AutoValidate(now time.Time) (MilestoneValidated, error) {
	if m.Status == valueobject.MilestoneStatusSubmitted && m.AutoValidationDeadline != nil &&
		now.Before(*m.AutoValidationDeadline) {
		return MilestoneValidated{}, apperror.New(apperror.ErrCodeWrongState,
			"auto-validation deadline has not passed yet")
	}
	return m.validate(now, true)
}

func (m *Milestone) validate(now time.Time, auto bool) (MilestoneValidated, error) {
	if m.Status != valueobject.MilestoneStatusSubmitted {
		return MilestoneValidated{}, apperror.Newf(apperror.ErrCodeWrongState,
			"cannot validate a %s milestone", m.Status)
	}

	m.ValidatedAt = &now
	m.AutoValidationDeadline = nil
	m.AutoValidated = auto
	m.Status = valueobject.MilestoneStatusValidated

	return MilestoneValidated{
		MilestoneID:   m.ID,
		WorksiteID:    m.WorksiteID,
		LaborAmount:   m.LaborAmount,
		AutoValidated: auto,
		ValidatedAt:   now,
	}, nil
}

// Contest records the client's rejection of the submitted proof. A
// contested milestone is terminal for this instance; the disagreement is
// resolved through a dispute, not by further milestone transitions.
func (m *Milestone) Contest(reason string, now time.Time) error {
	if m.Status != valueobject.MilestoneStatusSubmitted {
		return apperror.Newf(apperror.ErrCodeWrongState, "cannot contest a %s milestone", m.Status)
	}
	if reason == "" {
		return apperror.New(apperror.ErrCodeValidation, "contest reason is required")
	}

	m.ContestReason = &reason
	m.AutoValidationDeadline = nil
	m.Status = valueobject.MilestoneStatusContested
	return nil
}
