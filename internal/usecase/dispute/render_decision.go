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
	"github.com/baticonnect/artisan-backend/internal/service"
)

type RenderDecisionInput struct {
	DisputeID     uuid.UUID
	ActorID       uuid.UUID
	Decision      entity.Decision
	Justification string
}

// RenderDecisionUseCase records the arbitrator's ruling and settles the
// job's escrow account accordingly. The ruling commits before any money
// moves; when the dispute is already Resolved with a recorded decision,
// re-running skips the ruling and finishes the settlement a crash may have
// interrupted. Every leg carries a dispute-derived reference, a leg whose
// movement already exists is skipped, and the plan is derived from the
// share balances as they stood before the first leg, so a replay computes
// the same amounts.
type RenderDecisionUseCase struct {
	disputeRepo  repository.DisputeRepository
	worksiteRepo repository.WorksiteRepository
	escrowRepo   repository.EscrowRepository
	txRepo       repository.TransactionRepository
	gateway      service.MoneyGateway
	notifier     Notifier
}

func NewRenderDecisionUseCase(
	disputeRepo repository.DisputeRepository,
	worksiteRepo repository.WorksiteRepository,
	escrowRepo repository.EscrowRepository,
	txRepo repository.TransactionRepository,
	gateway service.MoneyGateway,
	notifier Notifier,
) *RenderDecisionUseCase {
	return &RenderDecisionUseCase{
		disputeRepo:  disputeRepo,
		worksiteRepo: worksiteRepo,
		escrowRepo:   escrowRepo,
		txRepo:       txRepo,
		gateway:      gateway,
		notifier:     notifier,
	}
}

func (uc *RenderDecisionUseCase) Execute(ctx context.Context, input RenderDecisionInput) (*entity.Dispute, error) {
	d, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if d.Arbitration == nil || d.Arbitration.ArbitratorID != input.ActorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only the assigned arbitrator can rule")
	}

	var decision entity.Decision
	if d.Status == valueobject.DisputeStatusResolved && d.Arbitration.Decision != nil {
		// The ruling is already on record; only the settlement can still
		// be outstanding.
		decision = *d.Arbitration.Decision
	} else {
		decision = input.Decision
		err = occ.Retry(ctx, func(ctx context.Context) error {
			fresh, err := uc.disputeRepo.GetByID(ctx, input.DisputeID)
			if err != nil {
				return err
			}
			if fresh.Arbitration == nil || fresh.Arbitration.ArbitratorID != input.ActorID {
				return apperror.New(apperror.ErrCodeForbidden, "only the assigned arbitrator can rule")
			}
			if _, err := fresh.RenderArbitrationDecision(decision, input.Justification, time.Now().UTC()); err != nil {
				return err
			}
			if err := uc.disputeRepo.Save(ctx, fresh); err != nil {
				return err
			}
			d = fresh
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := uc.settle(ctx, d, decision); err != nil {
		return nil, err
	}

	if decision.Kind != entity.DecisionFreezeFunds {
		if err := resumeWorksite(ctx, uc.worksiteRepo, d.JobID); err != nil {
			return nil, err
		}
	}

	payload := map[string]any{"dispute_id": d.ID, "job_id": d.JobID, "decision": decision.Kind}
	uc.notifier.Notify(ctx, d.ReporterID, models.EventDisputeResolved, payload)
	uc.notifier.Notify(ctx, d.DefendantID, models.EventDisputeResolved, payload)
	return d, nil
}

// settlementPlan is what a decision moves: the named amount goes where the
// ruling says and nothing more, except PartialRefund, which refunds the
// named amount and pays the artisan the rest of the balance.
type settlementPlan struct {
	payoutMaterials valueobject.Money
	payoutLabor     valueobject.Money
	refund          valueobject.Money
}

func planSettlement(decision entity.Decision, materialsBalance, laborBalance valueobject.Money) (settlementPlan, error) {
	var plan settlementPlan
	if decision.Kind == entity.DecisionFreezeFunds {
		return plan, nil
	}

	currency := materialsBalance.Currency
	remaining := materialsBalance.Amount + laborBalance.Amount
	if remaining <= 0 {
		return plan, apperror.New(apperror.ErrCodeInsufficientFunds, "escrow has no funds left to settle")
	}

	var refundAmt, payoutAmt int64
	switch decision.Kind {
	case entity.DecisionRefundClient:
		refundAmt = remaining
		if decision.Amount != nil {
			refundAmt = decision.Amount.Amount
		}
	case entity.DecisionPayArtisan:
		payoutAmt = remaining
		if decision.Amount != nil {
			payoutAmt = decision.Amount.Amount
		}
	case entity.DecisionPartialRefund:
		if decision.Amount == nil {
			return plan, apperror.New(apperror.ErrCodeValidation, "partial refund requires an amount")
		}
		refundAmt = decision.Amount.Amount
		payoutAmt = remaining - refundAmt
	default:
		return plan, apperror.Newf(apperror.ErrCodeInternal, "unknown decision kind %q", decision.Kind)
	}
	if refundAmt < 0 || payoutAmt < 0 || refundAmt+payoutAmt > remaining {
		return plan, apperror.Newf(apperror.ErrCodeInsufficientFunds,
			"decision amount exceeds the remaining balance %d", remaining)
	}

	payout := valueobject.Money{Amount: payoutAmt, Currency: currency}
	plan.refund = valueobject.Money{Amount: refundAmt, Currency: currency}
	plan.payoutMaterials, plan.payoutLabor = entity.ApportionShares(
		payout, materialsBalance, laborBalance, valueobject.LaborSharePercent)
	return plan, nil
}

func (uc *RenderDecisionUseCase) settle(ctx context.Context, d *entity.Dispute, decision entity.Decision) error {
	if decision.Kind == entity.DecisionFreezeFunds {
		return nil
	}

	account, err := uc.escrowRepo.GetByJobID(ctx, d.JobID)
	if err != nil {
		return err
	}

	// Legs run in a fixed order, so a recorded refund movement means the
	// whole settlement already finished.
	applied := make(map[string]*models.Transaction)
	for _, name := range []string{"materials", "labor", "refund"} {
		tx, err := uc.txRepo.GetByReference(ctx, service.DisputeReference(d.ID, name))
		if err == nil {
			applied[name] = tx
			continue
		}
		if !apperror.IsNotFound(err) {
			return err
		}
	}
	if applied["refund"] != nil {
		return nil
	}

	// Rebuild the share balances as they stood before the first leg. Each
	// applied leg committed its account mutation together with its
	// movement, so adding the recorded amounts back is exact.
	materialsBalance := account.RemainingMaterials()
	laborBalance := account.RemainingLabor()
	if tx := applied["materials"]; tx != nil {
		if materialsBalance, err = materialsBalance.Add(tx.Amount); err != nil {
			return err
		}
	}
	if tx := applied["labor"]; tx != nil {
		if laborBalance, err = laborBalance.Add(tx.Amount); err != nil {
			return err
		}
	}

	plan, err := planSettlement(decision, materialsBalance, laborBalance)
	if err != nil {
		return err
	}

	legs := []struct {
		name   string
		txType string
		amount valueobject.Money
		apply  func(*entity.EscrowAccount, valueobject.Money) error
		send   func(context.Context, *entity.EscrowAccount, valueobject.Money, string) (*service.GatewayResult, error)
	}{
		{
			name: "materials", txType: models.TransactionTypeReleaseMaterials, amount: plan.payoutMaterials,
			apply: (*entity.EscrowAccount).ReleaseMaterials,
			send: func(ctx context.Context, a *entity.EscrowAccount, amt valueobject.Money, ref string) (*service.GatewayResult, error) {
				return uc.gateway.TransferFunds(ctx, a.PayerID, a.PayeeID, amt, ref)
			},
		},
		{
			name: "labor", txType: models.TransactionTypeReleaseLabor, amount: plan.payoutLabor,
			apply: (*entity.EscrowAccount).ReleaseLabor,
			send: func(ctx context.Context, a *entity.EscrowAccount, amt valueobject.Money, ref string) (*service.GatewayResult, error) {
				return uc.gateway.TransferFunds(ctx, a.PayerID, a.PayeeID, amt, ref)
			},
		},
		{
			name: "refund", txType: models.TransactionTypeRefund, amount: plan.refund,
			apply: (*entity.EscrowAccount).Refund,
			send: func(ctx context.Context, a *entity.EscrowAccount, amt valueobject.Money, ref string) (*service.GatewayResult, error) {
				return uc.gateway.RefundFunds(ctx, a.PayerID, amt, ref)
			},
		},
	}

	for _, leg := range legs {
		if !leg.amount.IsPositive() {
			continue
		}
		if applied[leg.name] != nil {
			continue
		}
		reference := service.DisputeReference(d.ID, leg.name)

		result, err := leg.send(ctx, account, leg.amount, reference)
		if err != nil {
			return err
		}

		leg := leg
		err = occ.Retry(ctx, func(ctx context.Context) error {
			fresh, err := uc.escrowRepo.GetByID(ctx, account.ID)
			if err != nil {
				return err
			}
			if err := leg.apply(fresh, leg.amount); err != nil {
				return err
			}
			tx := &models.Transaction{
				ID:           uuid.New(),
				EscrowID:     fresh.ID,
				Type:         leg.txType,
				Amount:       leg.amount,
				Reference:    reference,
				ProviderTxID: &result.ProviderTxID,
				Status:       models.TransactionStatusPending,
				CreatedAt:    time.Now().UTC(),
			}
			return uc.escrowRepo.SaveWithTransaction(ctx, fresh, tx)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
