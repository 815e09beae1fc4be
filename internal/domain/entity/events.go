package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
)

// Domain events are returned from the mutating call rather than published
// through a process-wide dispatcher. The use-case layer consumes them and
// applies cross-aggregate effects (escrow releases, notifications) in the
// order "decide, then apply, then record".

// MilestoneValidated says a milestone's labor amount is now releasable from
// the job's escrow. AutoValidated distinguishes a client validation from a
// deadline-sweep validation for notification and audit purposes only; the
// escrow math is identical.
type MilestoneValidated struct {
	MilestoneID   uuid.UUID
	WorksiteID    uuid.UUID
	LaborAmount   valueobject.Money
	AutoValidated bool
	ValidatedAt   time.Time
}

// WorksiteCompleted says every milestone of the worksite has validated.
type WorksiteCompleted struct {
	WorksiteID  uuid.UUID
	JobID       uuid.UUID
	CompletedAt time.Time
}

// TokenExpired says a material token passed its expiry with an unspent
// remainder; the remainder is again issuable against the escrow's
// materials share. Emitted at most once per token.
type TokenExpired struct {
	TokenID   uuid.UUID
	EscrowID  uuid.UUID
	Remainder valueobject.Money
	ExpiredAt time.Time
}

// DecisionRendered says an arbitrator ruled on a dispute; the decision
// still has to be executed against the job's escrow.
type DecisionRendered struct {
	DisputeID  uuid.UUID
	JobID      uuid.UUID
	Decision   Decision
	RenderedAt time.Time
}
