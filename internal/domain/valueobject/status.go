package valueobject

import "github.com/baticonnect/artisan-backend/internal/pkg/apperror"

type EscrowStatus string

const (
	EscrowStatusBlocked  EscrowStatus = "blocked"
	EscrowStatusPartial  EscrowStatus = "partial"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

func (s EscrowStatus) IsValid() bool {
	switch s {
	case EscrowStatusBlocked, EscrowStatusPartial, EscrowStatusReleased, EscrowStatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further release or refund may touch the
// account.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusRefunded
}

type TokenStatus string

const (
	TokenStatusActive        TokenStatus = "active"
	TokenStatusPartiallyUsed TokenStatus = "partially_used"
	TokenStatusFullyUsed     TokenStatus = "fully_used"
	TokenStatusExpired       TokenStatus = "expired"
)

func (s TokenStatus) IsValid() bool {
	switch s {
	case TokenStatusActive, TokenStatusPartiallyUsed, TokenStatusFullyUsed, TokenStatusExpired:
		return true
	}
	return false
}

func (s TokenStatus) IsTerminal() bool {
	return s == TokenStatusFullyUsed || s == TokenStatusExpired
}

type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusSubmitted MilestoneStatus = "submitted"
	MilestoneStatusValidated MilestoneStatus = "validated"
	MilestoneStatusContested MilestoneStatus = "contested"
)

func (s MilestoneStatus) IsValid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusSubmitted, MilestoneStatusValidated, MilestoneStatusContested:
		return true
	}
	return false
}

func (s MilestoneStatus) CanTransitionTo(next MilestoneStatus) bool {
	transitions := map[MilestoneStatus][]MilestoneStatus{
		MilestoneStatusPending:   {MilestoneStatusSubmitted},
		MilestoneStatusSubmitted: {MilestoneStatusValidated, MilestoneStatusContested},
		MilestoneStatusValidated: {},
		MilestoneStatusContested: {},
	}

	for _, status := range transitions[s] {
		if status == next {
			return true
		}
	}
	return false
}

type WorksiteStatus string

const (
	WorksiteStatusInProgress WorksiteStatus = "in_progress"
	WorksiteStatusCompleted  WorksiteStatus = "completed"
	WorksiteStatusDisputed   WorksiteStatus = "disputed"
)

func (s WorksiteStatus) IsValid() bool {
	switch s {
	case WorksiteStatusInProgress, WorksiteStatusCompleted, WorksiteStatusDisputed:
		return true
	}
	return false
}

type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "open"
	DisputeStatusInMediation   DisputeStatus = "in_mediation"
	DisputeStatusInArbitration DisputeStatus = "in_arbitration"
	DisputeStatusResolved      DisputeStatus = "resolved"
	DisputeStatusClosed        DisputeStatus = "closed"
)

func (s DisputeStatus) IsValid() bool {
	switch s {
	case DisputeStatusOpen, DisputeStatusInMediation, DisputeStatusInArbitration,
		DisputeStatusResolved, DisputeStatusClosed:
		return true
	}
	return false
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	transitions := map[DisputeStatus][]DisputeStatus{
		DisputeStatusOpen:          {DisputeStatusInMediation},
		DisputeStatusInMediation:   {DisputeStatusInArbitration, DisputeStatusResolved},
		DisputeStatusInArbitration: {DisputeStatusResolved},
		DisputeStatusResolved:      {DisputeStatusClosed},
		DisputeStatusClosed:        {},
	}

	for _, status := range transitions[s] {
		if status == next {
			return true
		}
	}
	return false
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "invalid dispute status")
	}
	return s, nil
}
