package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
)

// MediatorAssigner picks an eligible mediator for a dispute.
type MediatorAssigner interface {
	Assign(ctx context.Context, dispute *entity.Dispute, escrowTotal valueobject.Money) (*models.User, error)
}

type StartMediationInput struct {
	DisputeID uuid.UUID
}

// StartMediationUseCase moves an open dispute into mediation with an
// assigned mediator.
type StartMediationUseCase struct {
	disputeRepo repository.DisputeRepository
	escrowRepo  repository.EscrowRepository
	assigner    MediatorAssigner
}

func NewStartMediationUseCase(
	disputeRepo repository.DisputeRepository,
	escrowRepo repository.EscrowRepository,
	assigner MediatorAssigner,
) *StartMediationUseCase {
	return &StartMediationUseCase{disputeRepo: disputeRepo, escrowRepo: escrowRepo, assigner: assigner}
}

func (uc *StartMediationUseCase) Execute(ctx context.Context, input StartMediationInput) (*entity.Dispute, error) {
	d, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	account, err := uc.escrowRepo.GetByJobID(ctx, d.JobID)
	if err != nil {
		return nil, err
	}

	mediator, err := uc.assigner.Assign(ctx, d, account.Total)
	if err != nil {
		return nil, err
	}

	var out *entity.Dispute
	err = occ.Retry(ctx, func(ctx context.Context) error {
		fresh, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}
		if err := fresh.StartMediation(mediator.ID, time.Now().UTC()); err != nil {
			return err
		}
		if err := uc.disputeRepo.Save(ctx, fresh); err != nil {
			return err
		}
		out = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
