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

type ResolveMediationInput struct {
	DisputeID uuid.UUID
	ActorID   uuid.UUID
	Summary   string
}

// ResolveMediationUseCase records an amicable agreement reached during
// mediation. No funds move; the parties settle through the normal
// milestone flow, which resumes when the worksite is un-flagged.
type ResolveMediationUseCase struct {
	disputeRepo  repository.DisputeRepository
	worksiteRepo repository.WorksiteRepository
	notifier     Notifier
}

func NewResolveMediationUseCase(
	disputeRepo repository.DisputeRepository,
	worksiteRepo repository.WorksiteRepository,
	notifier Notifier,
) *ResolveMediationUseCase {
	return &ResolveMediationUseCase{disputeRepo: disputeRepo, worksiteRepo: worksiteRepo, notifier: notifier}
}

func (uc *ResolveMediationUseCase) Execute(ctx context.Context, input ResolveMediationInput) (*entity.Dispute, error) {
	var out *entity.Dispute
	err := occ.Retry(ctx, func(ctx context.Context) error {
		d, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}
		if d.Mediation == nil || d.Mediation.MediatorID != input.ActorID {
			return apperror.New(apperror.ErrCodeForbidden, "only the assigned mediator can resolve the mediation")
		}
		if err := d.ResolveFromMediation(input.Summary, time.Now().UTC()); err != nil {
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

	if err := resumeWorksite(ctx, uc.worksiteRepo, out.JobID); err != nil {
		return nil, err
	}

	payload := map[string]any{"dispute_id": out.ID, "job_id": out.JobID, "summary": input.Summary}
	uc.notifier.Notify(ctx, out.ReporterID, models.EventDisputeResolved, payload)
	uc.notifier.Notify(ctx, out.DefendantID, models.EventDisputeResolved, payload)
	return out, nil
}

// resumeWorksite lifts the disputed flag from the job's worksite, if any.
func resumeWorksite(ctx context.Context, repo repository.WorksiteRepository, jobID uuid.UUID) error {
	w, err := repo.GetByJobID(ctx, jobID)
	if apperror.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return occ.Retry(ctx, func(ctx context.Context) error {
		fresh, err := repo.GetByID(ctx, w.ID)
		if err != nil {
			return err
		}
		fresh.ResumeFromDispute()
		return repo.Save(ctx, fresh)
	})
}
