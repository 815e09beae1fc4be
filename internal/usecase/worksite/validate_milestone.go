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
	"github.com/baticonnect/artisan-backend/internal/service"
	"github.com/baticonnect/artisan-backend/internal/usecase/escrow"
)

type ValidateMilestoneInput struct {
	WorksiteID  uuid.UUID
	MilestoneID uuid.UUID

	// ActorID is the validating client; nil when the deadline sweep
	// validates on the client's behalf.
	ActorID *uuid.UUID
	Auto    bool
}

// ValidateMilestoneUseCase accepts a submitted milestone and releases its
// labor amount from escrow. Validation commits first; if the release then
// fails, the milestone stays validated and the release is retried under the
// same milestone-derived reference.
type ValidateMilestoneUseCase struct {
	worksiteRepo repository.WorksiteRepository
	releaser     FundsReleaser
	notifier     Notifier
}

func NewValidateMilestoneUseCase(worksiteRepo repository.WorksiteRepository, releaser FundsReleaser, notifier Notifier) *ValidateMilestoneUseCase {
	return &ValidateMilestoneUseCase{worksiteRepo: worksiteRepo, releaser: releaser, notifier: notifier}
}

func (uc *ValidateMilestoneUseCase) Execute(ctx context.Context, input ValidateMilestoneInput) (*models.Transaction, error) {
	if !input.Auto && input.ActorID == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "validating user is required")
	}

	var event entity.MilestoneValidated
	var jobID, payeeID uuid.UUID
	err := occ.Retry(ctx, func(ctx context.Context) error {
		w, err := uc.worksiteRepo.GetByID(ctx, input.WorksiteID)
		if err != nil {
			return err
		}
		if !input.Auto && *input.ActorID != w.PayerID {
			return apperror.New(apperror.ErrCodeForbidden, "only the client can validate milestones")
		}
		m, err := w.MilestoneByID(input.MilestoneID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if input.Auto {
			event, err = m.AutoValidate(now)
		} else {
			event, err = m.Validate(now)
		}
		if err != nil {
			return err
		}
		if err := uc.worksiteRepo.Save(ctx, w); err != nil {
			return err
		}
		jobID = w.JobID
		payeeID = w.PayeeID
		return nil
	})
	if err != nil {
		return nil, err
	}

	tx, err := uc.releaser.Execute(ctx, escrow.ReleaseInput{
		JobID:     jobID,
		Share:     escrow.ShareLabor,
		Amount:    event.LaborAmount,
		Reference: service.MilestoneReleaseReference(input.MilestoneID),
	})
	if err != nil {
		return nil, err
	}

	uc.notifier.Notify(ctx, payeeID, models.EventMilestoneValidated, map[string]any{
		"worksite_id":    input.WorksiteID,
		"milestone_id":   input.MilestoneID,
		"labor_minor":    event.LaborAmount.Amount,
		"auto_validated": event.AutoValidated,
	})
	return tx, nil
}
