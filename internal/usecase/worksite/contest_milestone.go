package worksite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
)

type ContestMilestoneInput struct {
	WorksiteID  uuid.UUID
	MilestoneID uuid.UUID
	ActorID     uuid.UUID
	Reason      string
}

// ContestMilestoneUseCase rejects a submitted milestone. Contesting stops
// the auto-validation clock; no labor is released.
type ContestMilestoneUseCase struct {
	worksiteRepo repository.WorksiteRepository
	notifier     Notifier
}

func NewContestMilestoneUseCase(worksiteRepo repository.WorksiteRepository, notifier Notifier) *ContestMilestoneUseCase {
	return &ContestMilestoneUseCase{worksiteRepo: worksiteRepo, notifier: notifier}
}

func (uc *ContestMilestoneUseCase) Execute(ctx context.Context, input ContestMilestoneInput) error {
	var payeeID uuid.UUID
	err := occ.Retry(ctx, func(ctx context.Context) error {
		w, err := uc.worksiteRepo.GetByID(ctx, input.WorksiteID)
		if err != nil {
			return err
		}
		if input.ActorID != w.PayerID {
			return apperror.New(apperror.ErrCodeForbidden, "only the client can contest milestones")
		}
		m, err := w.MilestoneByID(input.MilestoneID)
		if err != nil {
			return err
		}
		if err := m.Contest(input.Reason, time.Now().UTC()); err != nil {
			return err
		}
		if err := uc.worksiteRepo.Save(ctx, w); err != nil {
			return err
		}
		payeeID = w.PayeeID
		return nil
	})
	if err != nil {
		return err
	}

	uc.notifier.Notify(ctx, payeeID, models.EventMilestoneContested, map[string]any{
		"worksite_id":  input.WorksiteID,
		"milestone_id": input.MilestoneID,
		"reason":       input.Reason,
	})
	return nil
}
