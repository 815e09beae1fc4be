package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
)

type CloseDisputeInput struct {
	DisputeID uuid.UUID
}

// CloseDisputeUseCase archives a resolved dispute once its settlement is
// confirmed. Authorization is an admin concern handled at the transport
// layer.
type CloseDisputeUseCase struct {
	disputeRepo repository.DisputeRepository
}

func NewCloseDisputeUseCase(disputeRepo repository.DisputeRepository) *CloseDisputeUseCase {
	return &CloseDisputeUseCase{disputeRepo: disputeRepo}
}

func (uc *CloseDisputeUseCase) Execute(ctx context.Context, input CloseDisputeInput) (*entity.Dispute, error) {
	var out *entity.Dispute
	err := occ.Retry(ctx, func(ctx context.Context) error {
		d, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}
		if err := d.Close(); err != nil {
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
