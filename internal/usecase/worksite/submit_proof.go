package worksite

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

type SubmitProofInput struct {
	WorksiteID  uuid.UUID
	MilestoneID uuid.UUID
	ActorID     uuid.UUID
	Proof       entity.ProofOfDelivery
}

// SubmitProofUseCase records the artisan's proof of delivery and arms the
// auto-validation deadline.
type SubmitProofUseCase struct {
	worksiteRepo repository.WorksiteRepository
	notifier     Notifier
}

func NewSubmitProofUseCase(worksiteRepo repository.WorksiteRepository, notifier Notifier) *SubmitProofUseCase {
	return &SubmitProofUseCase{worksiteRepo: worksiteRepo, notifier: notifier}
}

func (uc *SubmitProofUseCase) Execute(ctx context.Context, input SubmitProofInput) (*entity.Milestone, error) {
	var milestone *entity.Milestone
	var payerID uuid.UUID
	err := occ.Retry(ctx, func(ctx context.Context) error {
		w, err := uc.worksiteRepo.GetByID(ctx, input.WorksiteID)
		if err != nil {
			return err
		}
		if input.ActorID != w.PayeeID {
			return apperror.New(apperror.ErrCodeForbidden, "only the assigned artisan can submit proof")
		}
		m, err := w.MilestoneByID(input.MilestoneID)
		if err != nil {
			return err
		}
		if err := m.SubmitProof(input.Proof, time.Now().UTC()); err != nil {
			return err
		}
		if err := uc.worksiteRepo.Save(ctx, w); err != nil {
			return err
		}
		milestone = m
		payerID = w.PayerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.notifier.Notify(ctx, payerID, models.EventMilestoneSubmitted, map[string]any{
		"worksite_id":  input.WorksiteID,
		"milestone_id": milestone.ID,
		"deadline":     milestone.AutoValidationDeadline,
	})
	return milestone, nil
}
