package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
)

// Notifier pushes a stored event to a user, over websocket when connected.
// Delivery is best effort; failures are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload any)
}

type OpenDisputeInput struct {
	JobID        uuid.UUID
	ReporterID   uuid.UUID
	Type         entity.DisputeType
	Description  string
	EvidenceURLs []string
}

// OpenDisputeUseCase opens a formal disagreement over a job. The reporting
// window runs from the job's most recent validated milestone; the defendant
// is whichever escrow party the reporter is not.
type OpenDisputeUseCase struct {
	disputeRepo  repository.DisputeRepository
	worksiteRepo repository.WorksiteRepository
	escrowRepo   repository.EscrowRepository
	notifier     Notifier
}

func NewOpenDisputeUseCase(
	disputeRepo repository.DisputeRepository,
	worksiteRepo repository.WorksiteRepository,
	escrowRepo repository.EscrowRepository,
	notifier Notifier,
) *OpenDisputeUseCase {
	return &OpenDisputeUseCase{
		disputeRepo:  disputeRepo,
		worksiteRepo: worksiteRepo,
		escrowRepo:   escrowRepo,
		notifier:     notifier,
	}
}

func (uc *OpenDisputeUseCase) Execute(ctx context.Context, input OpenDisputeInput) (*entity.Dispute, error) {
	existing, err := uc.disputeRepo.GetByJobID(ctx, input.JobID)
	if err == nil && existing.Status != valueobject.DisputeStatusClosed {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "job %s already has an active dispute", input.JobID)
	}
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	account, err := uc.escrowRepo.GetByJobID(ctx, input.JobID)
	if err != nil {
		return nil, err
	}

	var defendantID uuid.UUID
	switch input.ReporterID {
	case account.PayerID:
		defendantID = account.PayeeID
	case account.PayeeID:
		defendantID = account.PayerID
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "only a party to the job can open a dispute")
	}

	var lastValidated *time.Time
	w, err := uc.worksiteRepo.GetByJobID(ctx, input.JobID)
	switch {
	case err == nil:
		lastValidated = w.LastValidatedAt()
	case apperror.IsNotFound(err):
		w = nil
	default:
		return nil, err
	}

	d, err := entity.OpenDispute(input.JobID, input.ReporterID, defendantID,
		input.Type, input.Description, input.EvidenceURLs, lastValidated, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := uc.disputeRepo.Create(ctx, d); err != nil {
		return nil, err
	}

	if w != nil {
		err := occ.Retry(ctx, func(ctx context.Context) error {
			fresh, err := uc.worksiteRepo.GetByID(ctx, w.ID)
			if err != nil {
				return err
			}
			if err := fresh.MarkDisputed(); err != nil {
				return err
			}
			return uc.worksiteRepo.Save(ctx, fresh)
		})
		if err != nil {
			return nil, err
		}
	}

	uc.notifier.Notify(ctx, defendantID, models.EventDisputeOpened, map[string]any{
		"dispute_id": d.ID,
		"job_id":     d.JobID,
		"type":       d.Type,
	})
	return d, nil
}
