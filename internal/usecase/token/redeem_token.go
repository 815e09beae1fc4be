package token

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
	"github.com/baticonnect/artisan-backend/internal/service"
)

// Notifier pushes a stored event to a user, over websocket when connected.
// Delivery is best effort; failures are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload any)
}

type RedeemTokenInput struct {
	Code       string
	RedeemerID uuid.UUID
	Amount     valueobject.Money

	// Live positions of both sides of the counter, for the proximity check.
	RequesterLocation valueobject.GeoPoint
	RedeemerLocation  valueobject.GeoPoint
}

// RedeemTokenUseCase spends part of a material token at a supplier. The
// token's fatal checks run first on copies, then the gateway pays the
// supplier from the blocked funds, then token and escrow counters commit.
// The redemption reference includes the token's post-redemption used
// amount, so a gateway retry after a crash cannot double-pay.
type RedeemTokenUseCase struct {
	tokenRepo  repository.TokenRepository
	escrowRepo repository.EscrowRepository
	txRepo     repository.TransactionRepository
	gateway    service.MoneyGateway
	notifier   Notifier
}

func NewRedeemTokenUseCase(
	tokenRepo repository.TokenRepository,
	escrowRepo repository.EscrowRepository,
	txRepo repository.TransactionRepository,
	gateway service.MoneyGateway,
	notifier Notifier,
) *RedeemTokenUseCase {
	return &RedeemTokenUseCase{
		tokenRepo:  tokenRepo,
		escrowRepo: escrowRepo,
		txRepo:     txRepo,
		gateway:    gateway,
		notifier:   notifier,
	}
}

func (uc *RedeemTokenUseCase) Execute(ctx context.Context, input RedeemTokenInput) (*models.Transaction, error) {
	tok, err := uc.tokenRepo.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	account, err := uc.escrowRepo.GetByID(ctx, tok.EscrowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	tokenProbe := *tok
	if err := tokenProbe.Redeem(input.RedeemerID, input.Amount, input.RequesterLocation, input.RedeemerLocation, now); err != nil {
		return nil, err
	}
	accountProbe := *account
	if err := accountProbe.ReleaseMaterials(input.Amount); err != nil {
		return nil, err
	}

	reference := service.TokenRedemptionReference(tok.ID, tokenProbe.UsedAmount.Amount)
	existing, err := uc.txRepo.GetByReference(ctx, reference)
	if err == nil {
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	result, err := uc.gateway.TransferFunds(ctx, account.PayerID, input.RedeemerID, input.Amount, reference)
	if err != nil {
		return nil, err
	}

	err = occ.Retry(ctx, func(ctx context.Context) error {
		fresh, err := uc.tokenRepo.GetByCode(ctx, input.Code)
		if err != nil {
			return err
		}
		if err := fresh.Redeem(input.RedeemerID, input.Amount, input.RequesterLocation, input.RedeemerLocation, now); err != nil {
			return err
		}
		return uc.tokenRepo.Save(ctx, fresh)
	})
	if err != nil {
		return nil, err
	}

	var tx *models.Transaction
	err = occ.Retry(ctx, func(ctx context.Context) error {
		fresh, err := uc.escrowRepo.GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		if err := fresh.ReleaseMaterials(input.Amount); err != nil {
			return err
		}
		tx = &models.Transaction{
			ID:           uuid.New(),
			EscrowID:     fresh.ID,
			Type:         models.TransactionTypeReleaseMaterials,
			Amount:       input.Amount,
			Reference:    reference,
			ProviderTxID: &result.ProviderTxID,
			Status:       models.TransactionStatusPending,
			CreatedAt:    time.Now().UTC(),
		}
		return uc.escrowRepo.SaveWithTransaction(ctx, fresh, tx)
	})
	if err != nil {
		return nil, err
	}

	uc.notifier.Notify(ctx, tok.RequesterID, models.EventTokenRedeemed, map[string]any{
		"token_id":     tok.ID,
		"code":         tok.Code,
		"amount_minor": input.Amount.Amount,
		"redeemer_id":  input.RedeemerID,
	})

	return tx, nil
}
