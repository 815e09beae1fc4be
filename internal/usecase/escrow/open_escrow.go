package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/service"
)

type OpenEscrowInput struct {
	JobID   uuid.UUID
	PayerID uuid.UUID
	PayeeID uuid.UUID
	Total   valueobject.Money
}

// OpenEscrowUseCase blocks the client's funds at the gateway and opens the
// escrow account for a job. The block reference is derived from the job ID,
// so a retried call reuses the same idempotency key.
type OpenEscrowUseCase struct {
	escrowRepo repository.EscrowRepository
	txRepo     repository.TransactionRepository
	gateway    service.MoneyGateway
}

func NewOpenEscrowUseCase(
	escrowRepo repository.EscrowRepository,
	txRepo repository.TransactionRepository,
	gateway service.MoneyGateway,
) *OpenEscrowUseCase {
	return &OpenEscrowUseCase{escrowRepo: escrowRepo, txRepo: txRepo, gateway: gateway}
}

func (uc *OpenEscrowUseCase) Execute(ctx context.Context, input OpenEscrowInput) (*entity.EscrowAccount, error) {
	existing, err := uc.escrowRepo.GetByJobID(ctx, input.JobID)
	if err == nil && existing != nil {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "job %s already has an escrow account", input.JobID)
	}
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	account, err := entity.OpenEscrow(input.JobID, input.PayerID, input.PayeeID, input.Total)
	if err != nil {
		return nil, err
	}

	reference := service.BlockReference(input.JobID)
	result, err := uc.gateway.BlockFunds(ctx, input.PayerID, input.Total, reference)
	if err != nil {
		return nil, err
	}

	if err := uc.escrowRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:           uuid.New(),
		EscrowID:     account.ID,
		Type:         models.TransactionTypeBlock,
		Amount:       input.Total,
		Reference:    reference,
		ProviderTxID: &result.ProviderTxID,
		Status:       models.TransactionStatusPending,
		CreatedAt:    account.CreatedAt,
	}
	if err := uc.txRepo.Create(ctx, tx); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "record block transaction")
	}

	return account, nil
}
