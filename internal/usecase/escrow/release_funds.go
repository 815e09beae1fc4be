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

// Share names the escrow sub-balance a release draws from.
type Share string

const (
	ShareMaterials Share = "materials"
	ShareLabor     Share = "labor"
)

type ReleaseInput struct {
	// EscrowID addresses the account directly; when zero the account is
	// resolved through JobID instead.
	EscrowID uuid.UUID
	JobID    uuid.UUID

	Share     Share
	Amount    valueobject.Money
	Reference string
}

// ReleaseFundsUseCase moves part of a share to the payee. The sequence is
// validate, then gateway transfer, then counter commit: funds never leave
// the gateway for a movement the account cannot absorb, and a crash after
// the transfer is healed by retrying with the same reference.
type ReleaseFundsUseCase struct {
	escrowRepo repository.EscrowRepository
	txRepo     repository.TransactionRepository
	gateway    service.MoneyGateway
}

func NewReleaseFundsUseCase(
	escrowRepo repository.EscrowRepository,
	txRepo repository.TransactionRepository,
	gateway service.MoneyGateway,
) *ReleaseFundsUseCase {
	return &ReleaseFundsUseCase{escrowRepo: escrowRepo, txRepo: txRepo, gateway: gateway}
}

func (uc *ReleaseFundsUseCase) Execute(ctx context.Context, input ReleaseInput) (*models.Transaction, error) {
	if input.Reference == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "release reference is required")
	}
	if input.Share != ShareMaterials && input.Share != ShareLabor {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "unknown share %q", input.Share)
	}

	// A reference that already produced a movement means this release was
	// fully applied; counters and the record commit atomically.
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

	// Dry run against a copy so an impossible release is rejected before
	// the gateway is asked to move money.
	probe := *account
	if err := applyRelease(&probe, input.Share, input.Amount); err != nil {
		return nil, err
	}

	result, err := uc.gateway.TransferFunds(ctx, account.PayerID, account.PayeeID, input.Amount, input.Reference)
	if err != nil {
		return nil, err
	}

	var tx *models.Transaction
	err = occ.Retry(ctx, func(ctx context.Context) error {
		fresh, err := uc.escrowRepo.GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		if err := applyRelease(fresh, input.Share, input.Amount); err != nil {
			return err
		}
		tx = &models.Transaction{
			ID:           uuid.New(),
			EscrowID:     fresh.ID,
			Type:         transactionType(input.Share),
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

func (uc *ReleaseFundsUseCase) resolve(ctx context.Context, input ReleaseInput) (*entity.EscrowAccount, error) {
	if input.EscrowID != uuid.Nil {
		return uc.escrowRepo.GetByID(ctx, input.EscrowID)
	}
	return uc.escrowRepo.GetByJobID(ctx, input.JobID)
}

func applyRelease(account *entity.EscrowAccount, share Share, amount valueobject.Money) error {
	if share == ShareMaterials {
		return account.ReleaseMaterials(amount)
	}
	return account.ReleaseLabor(amount)
}

func transactionType(share Share) string {
	if share == ShareMaterials {
		return models.TransactionTypeReleaseMaterials
	}
	return models.TransactionTypeReleaseLabor
}
