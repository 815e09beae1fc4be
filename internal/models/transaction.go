package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
)

// Transaction types.
const (
	TransactionTypeBlock            = "block"
	TransactionTypeReleaseMaterials = "release_materials"
	TransactionTypeReleaseLabor     = "release_labor"
	TransactionTypeRefund           = "refund"
)

// Transaction statuses. A transaction starts Pending when the gateway call
// is attempted and is reconciled to a terminal status by the gateway
// webhook or by polling.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

// Transaction is the stable "amount moved" fact for one off-platform money
// movement. Rows are never deleted and the amount never changes; only the
// reconciliation status does. The Reference is the idempotency key handed
// to the gateway, so a retry never re-derives the amount.
type Transaction struct {
	ID       uuid.UUID `db:"id" json:"id"`
	EscrowID uuid.UUID `db:"escrow_id" json:"escrow_id"`
	Type     string    `db:"type" json:"type"`

	Amount valueobject.Money `json:"amount"`

	Reference    string  `db:"reference" json:"reference"`
	ProviderTxID *string `db:"provider_tx_id" json:"provider_tx_id,omitempty"`

	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
