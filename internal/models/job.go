package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
)

// Job statuses.
const (
	JobStatusPosted     = "posted"
	JobStatusQuoted     = "quoted"
	JobStatusAccepted   = "accepted"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusDisputed   = "disputed"
	JobStatusCancelled  = "cancelled"
)

// Job is a client's posted piece of work. Acceptance of a quote opens the
// escrow account and the worksite; from then on the job is mostly a parent
// reference for the financial aggregates.
type Job struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClientID    uuid.UUID  `db:"client_id" json:"client_id"`
	ArtisanID   *uuid.UUID `db:"artisan_id" json:"artisan_id,omitempty"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`

	QuoteAmount *valueobject.Money `json:"quote_amount,omitempty"`

	Status     string     `db:"status" json:"status"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Quote is an artisan's bounded offer on a posted job.
type Quote struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	JobID     uuid.UUID         `db:"job_id" json:"job_id"`
	ArtisanID uuid.UUID         `db:"artisan_id" json:"artisan_id"`
	Amount    valueobject.Money `json:"amount"`
	Message   *string           `db:"message" json:"message,omitempty"`
	Status    string            `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// Quote statuses.
const (
	QuoteStatusPending  = "pending"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
)
