package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/occ"
	"github.com/baticonnect/artisan-backend/internal/usecase/worksite"
)

// Notifier pushes a stored event to a user, over websocket when connected.
// Delivery is best effort; failures are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload any)
}

// MilestoneValidator validates a milestone on the client's behalf.
type MilestoneValidator interface {
	Execute(ctx context.Context, input worksite.ValidateMilestoneInput) (*models.Transaction, error)
}

// Report is what one sweep pass did.
type Report struct {
	MilestonesAutoValidated int `json:"milestones_auto_validated"`
	TokensExpired           int `json:"tokens_expired"`
	Failures                int `json:"failures"`
}

// RunSweepUseCase is the periodic deadline pass: it auto-validates
// submitted milestones whose review window has lapsed and expires material
// tokens past their TTL. Each item is swept independently; a failure is
// logged and retried on the next pass, and a re-run of the same pass is a
// no-op because swept items leave the candidate sets.
type RunSweepUseCase struct {
	worksiteRepo repository.WorksiteRepository
	tokenRepo    repository.TokenRepository
	validator    MilestoneValidator
	notifier     Notifier
	log          *logrus.Logger
}

func NewRunSweepUseCase(
	worksiteRepo repository.WorksiteRepository,
	tokenRepo repository.TokenRepository,
	validator MilestoneValidator,
	notifier Notifier,
	log *logrus.Logger,
) *RunSweepUseCase {
	return &RunSweepUseCase{
		worksiteRepo: worksiteRepo,
		tokenRepo:    tokenRepo,
		validator:    validator,
		notifier:     notifier,
		log:          log,
	}
}

func (uc *RunSweepUseCase) Execute(ctx context.Context) (*Report, error) {
	now := time.Now().UTC()
	report := &Report{}

	uc.sweepMilestones(ctx, now, report)
	uc.sweepTokens(ctx, now, report)

	uc.log.WithFields(logrus.Fields{
		"auto_validated": report.MilestonesAutoValidated,
		"tokens_expired": report.TokensExpired,
		"failures":       report.Failures,
	}).Info("deadline sweep finished")
	return report, nil
}

func (uc *RunSweepUseCase) sweepMilestones(ctx context.Context, now time.Time, report *Report) {
	sites, err := uc.worksiteRepo.ListSubmittedPastDeadline(ctx, now)
	if err != nil {
		report.Failures++
		uc.log.WithError(err).Error("sweep: list overdue milestones")
		return
	}

	for _, w := range sites {
		for _, m := range w.Milestones {
			if m.Status != valueobject.MilestoneStatusSubmitted {
				continue
			}
			if m.AutoValidationDeadline == nil || now.Before(*m.AutoValidationDeadline) {
				continue
			}
			_, err := uc.validator.Execute(ctx, worksite.ValidateMilestoneInput{
				WorksiteID:  w.ID,
				MilestoneID: m.ID,
				Auto:        true,
			})
			if err != nil {
				report.Failures++
				uc.log.WithError(err).WithField("milestone_id", m.ID).Error("sweep: auto-validate milestone")
				continue
			}
			report.MilestonesAutoValidated++
		}
	}
}

func (uc *RunSweepUseCase) sweepTokens(ctx context.Context, now time.Time, report *Report) {
	tokens, err := uc.tokenRepo.ListExpiredLive(ctx, now)
	if err != nil {
		report.Failures++
		uc.log.WithError(err).Error("sweep: list expired tokens")
		return
	}

	for _, t := range tokens {
		tokenID := t.ID
		var remainder valueobject.Money
		var requesterID, escrowID uuid.UUID
		expired := false

		err := occ.Retry(ctx, func(ctx context.Context) error {
			fresh, err := uc.tokenRepo.GetByID(ctx, tokenID)
			if err != nil {
				return err
			}
			remainder, expired = fresh.ExpireSweep(now)
			if !expired {
				return nil
			}
			requesterID = fresh.RequesterID
			escrowID = fresh.EscrowID
			return uc.tokenRepo.Save(ctx, fresh)
		})
		if err != nil {
			report.Failures++
			uc.log.WithError(err).WithField("token_id", tokenID).Error("sweep: expire token")
			continue
		}
		if !expired {
			continue
		}

		report.TokensExpired++
		uc.notifier.Notify(ctx, requesterID, models.EventTokenExpired, map[string]any{
			"token_id":        tokenID,
			"escrow_id":       escrowID,
			"remainder_minor": remainder.Amount,
		})
	}
}
