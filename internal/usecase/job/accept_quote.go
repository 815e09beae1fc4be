package job

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/usecase/escrow"
)

// Notifier pushes a stored event to a user, over websocket when connected.
// Delivery is best effort; failures are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload any)
}

// JobRepository is the slice of job persistence this package needs.
type JobRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	// AcceptQuote persists the accepted job and quote together.
	AcceptQuote(ctx context.Context, job *models.Job, quote *models.Quote) error
}

// EscrowOpener blocks the client's funds and opens the escrow account.
type EscrowOpener interface {
	Execute(ctx context.Context, input escrow.OpenEscrowInput) (*entity.EscrowAccount, error)
}

type AcceptQuoteInput struct {
	JobID    uuid.UUID
	QuoteID  uuid.UUID
	ClientID uuid.UUID
}

type AcceptQuoteResult struct {
	Job      *models.Job           `json:"job"`
	Escrow   *entity.EscrowAccount `json:"escrow"`
	Worksite *entity.Worksite      `json:"worksite"`
}

// AcceptQuoteUseCase is where a job turns financial: accepting a quote
// blocks the full amount, opens the escrow account and creates the
// worksite the milestones will live on.
type AcceptQuoteUseCase struct {
	jobRepo      JobRepository
	worksiteRepo repository.WorksiteRepository
	opener       EscrowOpener
	notifier     Notifier
}

func NewAcceptQuoteUseCase(
	jobRepo JobRepository,
	worksiteRepo repository.WorksiteRepository,
	opener EscrowOpener,
	notifier Notifier,
) *AcceptQuoteUseCase {
	return &AcceptQuoteUseCase{jobRepo: jobRepo, worksiteRepo: worksiteRepo, opener: opener, notifier: notifier}
}

func (uc *AcceptQuoteUseCase) Execute(ctx context.Context, input AcceptQuoteInput) (*AcceptQuoteResult, error) {
	j, err := uc.jobRepo.GetByID(ctx, input.JobID)
	if err != nil {
		return nil, err
	}
	if j.ClientID != input.ClientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only the job's client can accept a quote")
	}
	if j.Status != models.JobStatusPosted && j.Status != models.JobStatusQuoted {
		return nil, apperror.Newf(apperror.ErrCodeWrongState, "cannot accept a quote on a %s job", j.Status)
	}

	q, err := uc.jobRepo.GetQuote(ctx, input.QuoteID)
	if err != nil {
		return nil, err
	}
	if q.JobID != j.ID {
		return nil, apperror.New(apperror.ErrCodeValidation, "quote does not belong to this job")
	}
	if q.Status != models.QuoteStatusPending {
		return nil, apperror.Newf(apperror.ErrCodeWrongState, "quote is already %s", q.Status)
	}

	account, err := uc.opener.Execute(ctx, escrow.OpenEscrowInput{
		JobID:   j.ID,
		PayerID: j.ClientID,
		PayeeID: q.ArtisanID,
		Total:   q.Amount,
	})
	if err != nil {
		return nil, err
	}

	w := entity.NewWorksite(j.ID, j.ClientID, q.ArtisanID)
	if err := uc.worksiteRepo.Create(ctx, w); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	j.ArtisanID = &q.ArtisanID
	j.QuoteAmount = &q.Amount
	j.Status = models.JobStatusInProgress
	j.AcceptedAt = &now
	q.Status = models.QuoteStatusAccepted
	if err := uc.jobRepo.AcceptQuote(ctx, j, q); err != nil {
		return nil, err
	}

	uc.notifier.Notify(ctx, q.ArtisanID, models.EventQuoteAccepted, map[string]any{
		"job_id":       j.ID,
		"worksite_id":  w.ID,
		"amount_minor": q.Amount.Amount,
	})
	return &AcceptQuoteResult{Job: j, Escrow: account, Worksite: w}, nil
}
