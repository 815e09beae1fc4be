package worksite

import (
	"context"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
	"github.com/baticonnect/artisan-backend/internal/usecase/escrow"
)

// Notifier pushes a stored event to a user, over websocket when connected.
// Delivery is best effort; failures are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload any)
}

// FundsReleaser releases part of an escrow share to the payee.
type FundsReleaser interface {
	Execute(ctx context.Context, input escrow.ReleaseInput) (*models.Transaction, error)
}

type AddMilestoneInput struct {
	WorksiteID     uuid.UUID
	ActorID        uuid.UUID
	Description    string
	LaborAmount    valueobject.Money
	SequenceNumber int
}

// AddMilestoneUseCase appends a deliverable to the worksite plan. The plan's
// total labor can never exceed the escrow's labor share, since each
// milestone's validation releases exactly its labor amount.
type AddMilestoneUseCase struct {
	worksiteRepo repository.WorksiteRepository
	escrowRepo   repository.EscrowRepository
}

func NewAddMilestoneUseCase(worksiteRepo repository.WorksiteRepository, escrowRepo repository.EscrowRepository) *AddMilestoneUseCase {
	return &AddMilestoneUseCase{worksiteRepo: worksiteRepo, escrowRepo: escrowRepo}
}

func (uc *AddMilestoneUseCase) Execute(ctx context.Context, input AddMilestoneInput) (*entity.Milestone, error) {
	var milestone *entity.Milestone
	err := occ.Retry(ctx, func(ctx context.Context) error {
		w, err := uc.worksiteRepo.GetByID(ctx, input.WorksiteID)
		if err != nil {
			return err
		}
		if input.ActorID != w.PayerID {
			return apperror.New(apperror.ErrCodeForbidden, "only the client can plan milestones")
		}

		account, err := uc.escrowRepo.GetByJobID(ctx, w.JobID)
		if err != nil {
			return err
		}
		planned := input.LaborAmount.Amount
		for _, m := range w.Milestones {
			planned += m.LaborAmount.Amount
		}
		if planned > account.LaborShare.Amount {
			return apperror.Newf(apperror.ErrCodeInsufficientFunds,
				"planned labor %d exceeds the labor share %d", planned, account.LaborShare.Amount)
		}

		milestone, err = w.AddMilestone(input.Description, input.LaborAmount, input.SequenceNumber)
		if err != nil {
			return err
		}
		return uc.worksiteRepo.Save(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}
