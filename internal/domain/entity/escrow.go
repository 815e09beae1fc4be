package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// EscrowAccount holds a client's payment for a job until it is released to
// the artisan or refunded. The total is fragmented into a materials share
// and a labor share at opening time; each share is released independently.
// An account is a financial record and is never deleted.
type EscrowAccount struct {
	ID      uuid.UUID `db:"id" json:"id"`
	JobID   uuid.UUID `db:"job_id" json:"job_id"`
	PayerID uuid.UUID `db:"payer_id" json:"payer_id"`
	PayeeID uuid.UUID `db:"payee_id" json:"payee_id"`

	Total          valueobject.Money `json:"total"`
	MaterialsShare valueobject.Money `json:"materials_share"`
	LaborShare     valueobject.Money `json:"labor_share"`

	// The account tracks how much of each share is no longer held in
	// escrow, not who received it. Transaction records are the audit trail
	// for recipients; a refund moves the same counters as a release.
	MaterialsReleased valueobject.Money `json:"materials_released"`
	LaborReleased     valueobject.Money `json:"labor_released"`

	Status    valueobject.EscrowStatus `db:"status" json:"status"`
	CreatedAt time.Time                `db:"created_at" json:"created_at"`

	// Version is the optimistic-concurrency guard; incremented on every
	// save.
	Version int `db:"version" json:"-"`
}

// OpenEscrow creates a Blocked account for an accepted job, splitting the
// total 65/35 between materials and labor. The labor share absorbs the
// rounding remainder so the two shares sum exactly to the total.
func OpenEscrow(jobID, payerID, payeeID uuid.UUID, total valueobject.Money) (*EscrowAccount, error) {
	if !total.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "escrow total must be positive")
	}

	materials, labor := total.SplitMaterialsLabor()

	return &EscrowAccount{
		ID:                uuid.New(),
		JobID:             jobID,
		PayerID:           payerID,
		PayeeID:           payeeID,
		Total:             total,
		MaterialsShare:    materials,
		LaborShare:        labor,
		MaterialsReleased: valueobject.Zero(total.Currency),
		LaborReleased:     valueobject.Zero(total.Currency),
		Status:            valueobject.EscrowStatusBlocked,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// ReleaseMaterials releases amount from the materials share.
func (e *EscrowAccount) ReleaseMaterials(amount valueobject.Money) error {
	return e.release(amount, &e.MaterialsReleased, e.RemainingMaterials(), "materials")
}

// ReleaseLabor releases amount from the labor share.
func (e *EscrowAccount) ReleaseLabor(amount valueobject.Money) error {
	return e.release(amount, &e.LaborReleased, e.RemainingLabor(), "labor")
}

func (e *EscrowAccount) release(amount valueobject.Money, counter *valueobject.Money, remaining valueobject.Money, share string) error {
	if e.Status.IsTerminal() {
		return apperror.Newf(apperror.ErrCodeWrongState, "escrow account is %s", e.Status)
	}
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "release amount must be positive")
	}
	if amount.GreaterThan(remaining) {
		return apperror.Newf(apperror.ErrCodeInsufficientFunds,
			"release of %s exceeds remaining %s share %s", amount, share, remaining)
	}

	updated, err := counter.Add(amount)
	if err != nil {
		return err
	}
	*counter = updated

	e.recomputeStatus()
	return nil
}

// Refund returns amount to the payer and drives the account to its terminal
// Refunded status. The refund is split proportionally 65/35 across the two
// released counters; if one share cannot absorb its portion the excess
// shifts to the other, which always fits because amount is bounded by the
// total remaining balance.
func (e *EscrowAccount) Refund(amount valueobject.Money) error {
	if e.Status.IsTerminal() {
		return apperror.Newf(apperror.ErrCodeWrongState, "escrow account is %s", e.Status)
	}
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "refund amount must be positive")
	}
	if amount.GreaterThan(e.RemainingTotal()) {
		return apperror.Newf(apperror.ErrCodeInsufficientFunds,
			"refund of %s exceeds remaining balance %s", amount, e.RemainingTotal())
	}

	materials, labor := e.ApportionAcrossShares(amount, valueobject.MaterialsSharePercent)

	if materials.IsPositive() {
		updated, err := e.MaterialsReleased.Add(materials)
		if err != nil {
			return err
		}
		e.MaterialsReleased = updated
	}
	if labor.IsPositive() {
		updated, err := e.LaborReleased.Add(labor)
		if err != nil {
			return err
		}
		e.LaborReleased = updated
	}

	e.Status = valueobject.EscrowStatusRefunded
	return nil
}

// ApportionAcrossShares splits amount between the materials and labor
// shares, giving materialsPercent to materials, capped by what each share
// can still absorb. The caller must ensure amount does not exceed the total
// remaining balance.
func (e *EscrowAccount) ApportionAcrossShares(amount valueobject.Money, materialsPercent int64) (materials, labor valueobject.Money) {
	return ApportionShares(amount, e.RemainingMaterials(), e.RemainingLabor(), materialsPercent)
}

// ApportionShares splits amount against explicit share balances rather than
// an account's current counters, so callers replaying a settlement can feed
// in the balances as they stood when the settlement was planned.
func ApportionShares(amount, materialsBalance, laborBalance valueobject.Money, materialsPercent int64) (materials, labor valueobject.Money) {
	materials = amount.Percent(materialsPercent)
	labor = valueobject.Money{Amount: amount.Amount - materials.Amount, Currency: amount.Currency}

	if materials.GreaterThan(materialsBalance) {
		excess := materials.Amount - materialsBalance.Amount
		materials.Amount = materialsBalance.Amount
		labor.Amount += excess
	}
	if labor.GreaterThan(laborBalance) {
		excess := labor.Amount - laborBalance.Amount
		labor.Amount = laborBalance.Amount
		materials.Amount += excess
	}

	return materials, labor
}

func (e *EscrowAccount) RemainingMaterials() valueobject.Money {
	return valueobject.Money{
		Amount:   e.MaterialsShare.Amount - e.MaterialsReleased.Amount,
		Currency: e.Total.Currency,
	}
}

func (e *EscrowAccount) RemainingLabor() valueobject.Money {
	return valueobject.Money{
		Amount:   e.LaborShare.Amount - e.LaborReleased.Amount,
		Currency: e.Total.Currency,
	}
}

func (e *EscrowAccount) RemainingTotal() valueobject.Money {
	return valueobject.Money{
		Amount:   e.RemainingMaterials().Amount + e.RemainingLabor().Amount,
		Currency: e.Total.Currency,
	}
}

func (e *EscrowAccount) IsFullyReleased() bool {
	return e.MaterialsReleased.Cmp(e.MaterialsShare) == 0 &&
		e.LaborReleased.Cmp(e.LaborShare) == 0
}

// recomputeStatus derives the status from the counters. Refunded is set
// explicitly by Refund and never recomputed away.
func (e *EscrowAccount) recomputeStatus() {
	if e.Status == valueobject.EscrowStatusRefunded {
		return
	}
	switch {
	case e.IsFullyReleased():
		e.Status = valueobject.EscrowStatusReleased
	case e.MaterialsReleased.IsPositive() || e.LaborReleased.IsPositive():
		e.Status = valueobject.EscrowStatusPartial
	default:
		e.Status = valueobject.EscrowStatusBlocked
	}
}
