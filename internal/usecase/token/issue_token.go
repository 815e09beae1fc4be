package token

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

type IssueTokenInput struct {
	EscrowID         uuid.UUID
	RequesterID      uuid.UUID
	Amount           valueobject.Money
	AllowedRedeemers []uuid.UUID
}

// IssueTokenUseCase creates a material token against the escrow's materials
// share. Issuance capacity is the materials balance minus what other live
// tokens could still claim, so overlapping tokens can never spend the share
// twice.
type IssueTokenUseCase struct {
	tokenRepo  repository.TokenRepository
	escrowRepo repository.EscrowRepository
}

func NewIssueTokenUseCase(tokenRepo repository.TokenRepository, escrowRepo repository.EscrowRepository) *IssueTokenUseCase {
	return &IssueTokenUseCase{tokenRepo: tokenRepo, escrowRepo: escrowRepo}
}

func (uc *IssueTokenUseCase) Execute(ctx context.Context, input IssueTokenInput) (*entity.MaterialToken, error) {
	account, err := uc.escrowRepo.GetByID(ctx, input.EscrowID)
	if err != nil {
		return nil, err
	}
	if input.RequesterID != account.PayerID && input.RequesterID != account.PayeeID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only a party to the escrow can issue tokens")
	}

	now := time.Now().UTC()
	available, err := uc.availableMaterials(ctx, account, now)
	if err != nil {
		return nil, err
	}

	tok, err := entity.IssueToken(account, input.RequesterID, input.Amount, available, input.AllowedRedeemers, now)
	if err != nil {
		return nil, err
	}
	if err := uc.tokenRepo.Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// availableMaterials subtracts the unspent remainders of live, unexpired
// tokens from the remaining materials share. An expired token's remainder
// counts as available even before the sweep marks it Expired.
func (uc *IssueTokenUseCase) availableMaterials(ctx context.Context, account *entity.EscrowAccount, now time.Time) (valueobject.Money, error) {
	tokens, err := uc.tokenRepo.ListByEscrow(ctx, account.ID)
	if err != nil {
		return valueobject.Money{}, err
	}

	available := account.RemainingMaterials()
	for _, t := range tokens {
		if t.Status.IsTerminal() || now.After(t.ExpiresAt) {
			continue
		}
		available, err = available.Sub(t.Remaining())
		if err != nil {
			return valueobject.Money{}, err
		}
	}
	return available, nil
}
