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

type CompleteWorksiteInput struct {
	WorksiteID uuid.UUID
	ActorID    uuid.UUID
}

// CompleteWorksiteUseCase closes a worksite once every milestone has
// validated. Either party can request completion.
type CompleteWorksiteUseCase struct {
	worksiteRepo repository.WorksiteRepository
	notifier     Notifier
}

func NewCompleteWorksiteUseCase(worksiteRepo repository.WorksiteRepository, notifier Notifier) *CompleteWorksiteUseCase {
	return &CompleteWorksiteUseCase{worksiteRepo: worksiteRepo, notifier: notifier}
}

func (uc *CompleteWorksiteUseCase) Execute(ctx context.Context, input CompleteWorksiteInput) (entity.WorksiteCompleted, error) {
	var event entity.WorksiteCompleted
	var payerID, payeeID uuid.UUID
	err := occ.Retry(ctx, func(ctx context.Context) error {
		w, err := uc.worksiteRepo.GetByID(ctx, input.WorksiteID)
		if err != nil {
			return err
		}
		if input.ActorID != w.PayerID && input.ActorID != w.PayeeID {
			return apperror.New(apperror.ErrCodeForbidden, "only a party to the worksite can complete it")
		}
		event, err = w.Complete(time.Now().UTC())
		if err != nil {
			return err
		}
		if err := uc.worksiteRepo.Save(ctx, w); err != nil {
			return err
		}
		payerID = w.PayerID
		payeeID = w.PayeeID
		return nil
	})
	if err != nil {
		return entity.WorksiteCompleted{}, err
	}

	payload := map[string]any{"worksite_id": event.WorksiteID, "job_id": event.JobID}
	uc.notifier.Notify(ctx, payerID, models.EventWorksiteCompleted, payload)
	uc.notifier.Notify(ctx, payeeID, models.EventWorksiteCompleted, payload)
	return event, nil
}
