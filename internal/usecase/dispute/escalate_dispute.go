package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
)

type EscalateDisputeInput struct {
	DisputeID    uuid.UUID
	ActorID      uuid.UUID
	ArbitratorID uuid.UUID
}

// EscalateDisputeUseCase moves a mediated dispute to binding arbitration.
// A party or the mediator can escalate; the mediation log is retained.
type EscalateDisputeUseCase struct {
	disputeRepo repository.DisputeRepository
	userRepo    UserGetter
}

// UserGetter resolves a user for capability checks.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func NewEscalateDisputeUseCase(disputeRepo repository.DisputeRepository, userRepo UserGetter) *EscalateDisputeUseCase {
	return &EscalateDisputeUseCase{disputeRepo: disputeRepo, userRepo: userRepo}
}

func (uc *EscalateDisputeUseCase) Execute(ctx context.Context, input EscalateDisputeInput) (*entity.Dispute, error) {
	arbitrator, err := uc.userRepo.GetByID(ctx, input.ArbitratorID)
	if err != nil {
		return nil, err
	}
	if !arbitrator.IsActive || !arbitrator.CanMediate() {
		return nil, apperror.New(apperror.ErrCodeValidation, "arbitrator is not eligible")
	}

	var out *entity.Dispute
	err = occ.Retry(ctx, func(ctx context.Context) error {
		d, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}
		if !d.IsParty(input.ActorID) && (d.Mediation == nil || d.Mediation.MediatorID != input.ActorID) {
			return apperror.New(apperror.ErrCodeForbidden, "only a party or the mediator can escalate")
		}
		if d.IsParty(input.ArbitratorID) {
			return apperror.New(apperror.ErrCodeValidation, "a party to the dispute cannot arbitrate it")
		}
		if err := d.EscalateToArbitration(input.ArbitratorID, time.Now().UTC()); err != nil {
			return err
		}
		if err := uc.disputeRepo.Save(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
