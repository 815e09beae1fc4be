package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
	"github.com/baticonnect/artisan-backend/internal/service"
)

type RefundInput struct {
	EscrowID uuid.UUID
	JobID    uuid.UUID

	Amount    valueobject.Money
	Reference string
}

// RefundEscrowUseCase returns blocked funds to the payer and closes the
// account as Refunded. Same ordering as a release: validate, gateway,
// commit, with the reference as the idempotency key throughout.
type RefundEscrowUseCase struct {
	escrowRepo repository.EscrowRepository
	txRepo     repository.TransactionRepository
	gateway    service.MoneyGateway
}

func NewRefundEscrowUseCase(
	escrowRepo repository.EscrowRepository,
	txRepo repository.TransactionRepository,
	gateway service.MoneyGateway,
) *RefundEscrowUseCase {
	return &RefundEscrowUseCase{escrowRepo: escrowRepo, txRepo: txRepo, gateway: gateway}
}

func (uc *RefundEscrowUseCase) Execute(ctx context.Context, input RefundInput) (*models.Transaction, error) {
	if input.Reference == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "refund reference is required")
	}

	existing, err := uc.txRepo.GetByReference(ctx, input.Reference)
	if err == nil {
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	account, err := uc.resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	probe := *account
	if err := probe.Refund(input.Amount); err != nil {
		return nil, err
	}

	result, err := uc.gateway.RefundFunds(ctx, account.PayerID, input.Amount, input.Reference)
	if err != nil {
		return nil, err
	}

	var tx *models.Transaction
	err = occ.Retry(ctx, func(ctx context.Context) error {
		fresh, err := uc.escrowRepo.GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		if err := fresh.Refund(input.Amount); err != nil {
			return err
		}
		tx = &models.Transaction{
			ID:           uuid.New(),
			EscrowID:     fresh.ID,
			Type:         models.TransactionTypeRefund,
			Amount:       input.Amount,
			Reference:    input.Reference,
			ProviderTxID: &result.ProviderTxID,
			Status:       models.TransactionStatusPending,
			CreatedAt:    time.Now().UTC(),
		}
		return uc.escrowRepo.SaveWithTransaction(ctx, fresh, tx)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (uc *RefundEscrowUseCase) resolve(ctx context.Context, input RefundInput) (*entity.EscrowAccount, error) {
	if input.EscrowID != uuid.Nil {
		return uc.escrowRepo.GetByID(ctx, input.EscrowID)
	}
	return uc.escrowRepo.GetByJobID(ctx, input.JobID)
}
