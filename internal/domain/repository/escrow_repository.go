package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/models"
)

// Aggregate repositories expose find-by-id and find-by-parent lookups plus
// save. Save is guarded by the aggregate's version: a concurrent writer
// makes it fail with apperror.ErrCodeConflict and the caller retries from a
// fresh read.

type EscrowRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.EscrowAccount, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.EscrowAccount, error)
	Create(ctx context.Context, account *entity.EscrowAccount) error
	Save(ctx context.Context, account *entity.EscrowAccount) error
	// SaveWithTransaction commits the account counters and the movement
	// record in one database transaction, so a movement is never recorded
	// without its counters or vice versa.
	SaveWithTransaction(ctx context.Context, account *entity.EscrowAccount, tx *models.Transaction) error
}

type TransactionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// GetByReference returns apperror with ErrCodeNotFound when no movement
	// carries the reference. References double as gateway idempotency keys.
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*models.Transaction, error)
	Create(ctx context.Context, tx *models.Transaction) error
	// UpdateStatus reconciles a pending movement to a terminal status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, providerTxID *string, completedAt *time.Time) error
}

type TokenRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.MaterialToken, error)
	GetByCode(ctx context.Context, code string) (*entity.MaterialToken, error)
	ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*entity.MaterialToken, error)
	// ListExpiredLive returns Active/PartiallyUsed tokens whose expiry has
	// passed, for the deadline sweep.
	ListExpiredLive(ctx context.Context, now time.Time) ([]*entity.MaterialToken, error)
	Create(ctx context.Context, token *entity.MaterialToken) error
	Save(ctx context.Context, token *entity.MaterialToken) error
}

type WorksiteRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Worksite, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Worksite, error)
	Create(ctx context.Context, worksite *entity.Worksite) error
	// Save persists the worksite and all of its milestones.
	Save(ctx context.Context, worksite *entity.Worksite) error
	// ListSubmittedPastDeadline returns worksites holding at least one
	// submitted milestone whose auto-validation deadline has passed.
	ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Worksite, error)
}

type DisputeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Dispute, error)
	ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Dispute, error)
	Create(ctx context.Context, dispute *entity.Dispute) error
	// Save persists the dispute; mediation communications are append-only
	// and are only ever inserted, never rewritten.
	Save(ctx context.Context, dispute *entity.Dispute) error
}
