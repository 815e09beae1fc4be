package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// Worksite is the ordered collection of milestones for one job.
type Worksite struct {
	ID      uuid.UUID `db:"id" json:"id"`
	JobID   uuid.UUID `db:"job_id" json:"job_id"`
	PayerID uuid.UUID `db:"payer_id" json:"payer_id"`
	PayeeID uuid.UUID `db:"payee_id" json:"payee_id"`

	Milestones []*Milestone `json:"milestones"`

	Status    valueobject.WorksiteStatus `db:"status" json:"status"`
	CreatedAt time.Time                  `db:"created_at" json:"created_at"`

	Version int `db:"version" json:"-"`
}

func NewWorksite(jobID, payerID, payeeID uuid.UUID) *Worksite {
	return &Worksite{
		ID:        uuid.New(),
		JobID:     jobID,
		PayerID:   payerID,
		PayeeID:   payeeID,
		Status:    valueobject.WorksiteStatusInProgress,
		CreatedAt: time.Now().UTC(),
	}
}

// AddMilestone appends a deliverable. Sequence numbers are unique within
// the worksite; nothing can be added once the worksite completed.
func (w *Worksite) AddMilestone(description string, laborAmount valueobject.Money, sequenceNumber int) (*Milestone, error) {
	if w.Status == valueobject.WorksiteStatusCompleted {
		return nil, apperror.New(apperror.ErrCodeWrongState, "worksite is already completed")
	}
	if description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "milestone description is required")
	}
	if !laborAmount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "milestone labor amount must be positive")
	}
	for _, m := range w.Milestones {
		if m.SequenceNumber == sequenceNumber {
			return nil, apperror.Newf(apperror.ErrCodeValidation,
				"sequence number %d already used", sequenceNumber)
		}
	}

	milestone := &Milestone{
		ID:             uuid.New(),
		WorksiteID:     w.ID,
		Description:    description,
		LaborAmount:    laborAmount,
		SequenceNumber: sequenceNumber,
		Status:         valueobject.MilestoneStatusPending,
	}
	w.Milestones = append(w.Milestones, milestone)
	return milestone, nil
}

func (w *Worksite) MilestoneByID(id uuid.UUID) (*Milestone, error) {
	for _, m := range w.Milestones {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperror.ErrMilestoneNotFound
}

// Complete marks the worksite done. It requires a non-empty milestone set
// with every milestone validated.
func (w *Worksite) Complete(now time.Time) (WorksiteCompleted, error) {
	if w.Status == valueobject.WorksiteStatusCompleted {
		return WorksiteCompleted{}, apperror.New(apperror.ErrCodeWrongState, "worksite is already completed")
	}
	if len(w.Milestones) == 0 {
		return WorksiteCompleted{}, apperror.New(apperror.ErrCodeWrongState, "worksite has no milestones")
	}
	for _, m := range w.Milestones {
		if m.Status != valueobject.MilestoneStatusValidated {
			return WorksiteCompleted{}, apperror.Newf(apperror.ErrCodeWrongState,
				"milestone %d is %s, not validated", m.SequenceNumber, m.Status)
		}
	}

	w.Status = valueobject.WorksiteStatusCompleted
	return WorksiteCompleted{WorksiteID: w.ID, JobID: w.JobID, CompletedAt: now}, nil
}

// MarkDisputed flags the worksite while a dispute over its job is live.
func (w *Worksite) MarkDisputed() error {
	if w.Status == valueobject.WorksiteStatusCompleted {
		// A completed worksite can still be disputed within the reporting
		// window; the flag is informational and does not undo completion.
		return nil
	}
	w.Status = valueobject.WorksiteStatusDisputed
	return nil
}

// ResumeFromDispute lifts the disputed flag once the dispute over the job
// has been resolved. Anything other than a disputed worksite is left alone.
func (w *Worksite) ResumeFromDispute() {
	if w.Status == valueobject.WorksiteStatusDisputed {
		w.Status = valueobject.WorksiteStatusInProgress
	}
}

// ProgressPercentage is validated milestones over total, as a percentage.
// An empty worksite is 0 percent, not an error.
func (w *Worksite) ProgressPercentage() float64 {
	if len(w.Milestones) == 0 {
		return 0
	}
	validated := 0
	for _, m := range w.Milestones {
		if m.Status == valueobject.MilestoneStatusValidated {
			validated++
		}
	}
	return float64(validated) / float64(len(w.Milestones)) * 100
}

// LastValidatedAt returns the most recent milestone validation timestamp,
// or nil when nothing has validated yet. The dispute reporting window is
// anchored on it.
func (w *Worksite) LastValidatedAt() *time.Time {
	var last *time.Time
	for _, m := range w.Milestones {
		if m.ValidatedAt == nil {
			continue
		}
		if last == nil || m.ValidatedAt.After(*last) {
			last = m.ValidatedAt
		}
	}
	return last
}
