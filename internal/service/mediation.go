package service

import (
	"context"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// HighValueDisputeThreshold is the escrow total above which a dispute must
// be mediated by a zone referent rather than a generic admin.
const HighValueDisputeThreshold = 2_000_000

// MediatorPool lists candidate mediators by capability tag.
type MediatorPool interface {
	ListByRole(ctx context.Context, role string, limit int) ([]models.User, error)
}

// MediatorAssigner picks a mediator for a dispute. Eligibility is a
// predicate over the user's capability tag and the escrow total; there is
// no role hierarchy.
type MediatorAssigner struct {
	pool MediatorPool
}

func NewMediatorAssigner(pool MediatorPool) *MediatorAssigner {
	return &MediatorAssigner{pool: pool}
}

// Assign returns a mediator for the dispute. High-value disputes require
// the zone-referent tag; a party to the dispute is never eligible.
func (a *MediatorAssigner) Assign(ctx context.Context, dispute *entity.Dispute, escrowTotal valueobject.Money) (*models.User, error) {
	role := models.RoleAdmin
	if escrowTotal.Amount > HighValueDisputeThreshold {
		role = models.RoleZoneReferent
	}

	candidates, err := a.pool.ListByRole(ctx, role, 20)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidate := &candidates[i]
		if !candidate.IsActive || !candidate.CanMediate() {
			continue
		}
		if dispute.IsParty(candidate.ID) {
			continue
		}
		return candidate, nil
	}

	return nil, apperror.Newf(apperror.ErrCodeNotFound, "no eligible %s mediator available", role)
}
