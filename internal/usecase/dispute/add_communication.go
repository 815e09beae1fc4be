package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
)

type AddCommunicationInput struct {
	DisputeID uuid.UUID
	AuthorID  uuid.UUID
	Message   string
}

// AddCommunicationUseCase appends a message to an active mediation log.
// The log itself is append-only; entries are never edited or removed.
type AddCommunicationUseCase struct {
	disputeRepo repository.DisputeRepository
}

func NewAddCommunicationUseCase(disputeRepo repository.DisputeRepository) *AddCommunicationUseCase {
	return &AddCommunicationUseCase{disputeRepo: disputeRepo}
}

func (uc *AddCommunicationUseCase) Execute(ctx context.Context, input AddCommunicationInput) (*entity.Dispute, error) {
	var out *entity.Dispute
	err := occ.Retry(ctx, func(ctx context.Context) error {
		d, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}
		if err := d.AddCommunication(input.AuthorID, input.Message, time.Now().UTC()); err != nil {
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
