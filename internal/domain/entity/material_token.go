package entity

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

const (
	// TokenTTL is the fixed lifetime of a material token.
	TokenTTL = 7 * 24 * time.Hour

	// ProximityLimitMeters bounds the distance between requester and
	// redeemer at redemption time.
	ProximityLimitMeters = 100.0
)

// codeAlphabet omits ambiguous characters (0/O, 1/I/L) so codes survive
// being read out loud over the phone.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// MaterialToken is a short-lived, amount-bounded claim against an escrow
// account's materials share. The artisan shares the code with a building
// materials supplier, who redeems it in person; redemption is geo-fenced.
type MaterialToken struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EscrowID    uuid.UUID `db:"escrow_id" json:"escrow_id"`
	RequesterID uuid.UUID `db:"requester_id" json:"requester_id"`
	Code        string    `db:"code" json:"code"`

	TotalAmount valueobject.Money `json:"total_amount"`
	UsedAmount  valueobject.Money `json:"used_amount"`

	// AllowedRedeemers restricts who may redeem. An empty list means the
	// token is open to any supplier.
	AllowedRedeemers []uuid.UUID `json:"allowed_redeemers,omitempty"`

	Status    valueobject.TokenStatus `db:"status" json:"status"`
	CreatedAt time.Time               `db:"created_at" json:"created_at"`
	ExpiresAt time.Time               `db:"expires_at" json:"expires_at"`

	Version int `db:"version" json:"-"`
}

// IssueToken creates an Active token against escrow's materials share.
// availableMaterials is the materials balance not already claimed by other
// live tokens; the caller computes it.
func IssueToken(escrow *EscrowAccount, requesterID uuid.UUID, amount, availableMaterials valueobject.Money, allowedRedeemers []uuid.UUID, now time.Time) (*MaterialToken, error) {
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "token amount must be positive")
	}
	if escrow.Status.IsTerminal() {
		return nil, apperror.Newf(apperror.ErrCodeWrongState, "escrow account is %s", escrow.Status)
	}
	if amount.GreaterThan(availableMaterials) {
		return nil, apperror.Newf(apperror.ErrCodeInsufficientFunds,
			"token amount %s exceeds available materials balance %s", amount, availableMaterials)
	}

	code, err := generateCode()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "could not generate token code")
	}

	return &MaterialToken{
		ID:               uuid.New(),
		EscrowID:         escrow.ID,
		RequesterID:      requesterID,
		Code:             code,
		TotalAmount:      amount,
		UsedAmount:       valueobject.Zero(amount.Currency),
		AllowedRedeemers: allowedRedeemers,
		Status:           valueobject.TokenStatusActive,
		CreatedAt:        now,
		ExpiresAt:        now.Add(TokenTTL),
	}, nil
}

// Redeem consumes amount of the token. The checks run in a fixed order and
// each one rejects the whole operation; on success the used counter moves
// and the status is recomputed. The escrow-side release is the caller's
// responsibility.
func (t *MaterialToken) Redeem(redeemerID uuid.UUID, amount valueobject.Money, requesterLoc, redeemerLoc valueobject.GeoPoint, now time.Time) error {
	if now.After(t.ExpiresAt) {
		return apperror.New(apperror.ErrCodeExpiredToken, "material token has expired")
	}
	if t.Status.IsTerminal() {
		return apperror.Newf(apperror.ErrCodeWrongState, "material token is %s", t.Status)
	}
	if !t.isAllowedRedeemer(redeemerID) {
		return apperror.New(apperror.ErrCodeForbidden, "redeemer is not authorized for this token")
	}
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "redemption amount must be positive")
	}
	if amount.GreaterThan(t.Remaining()) {
		return apperror.Newf(apperror.ErrCodeInsufficientFunds,
			"redemption of %s exceeds remaining %s", amount, t.Remaining())
	}
	if requesterLoc.DistanceMeters(redeemerLoc) > ProximityLimitMeters {
		return apperror.Newf(apperror.ErrCodeOutOfProximity,
			"parties are more than %.0f meters apart", ProximityLimitMeters)
	}

	used, err := t.UsedAmount.Add(amount)
	if err != nil {
		return err
	}
	t.UsedAmount = used

	if t.Remaining().IsZero() {
		t.Status = valueobject.TokenStatusFullyUsed
	} else {
		t.Status = valueobject.TokenStatusPartiallyUsed
	}
	return nil
}

func (t *MaterialToken) Remaining() valueobject.Money {
	return valueobject.Money{
		Amount:   t.TotalAmount.Amount - t.UsedAmount.Amount,
		Currency: t.TotalAmount.Currency,
	}
}

// ExpireSweep drives a live token past its expiry to Expired and reports
// the unspent remainder exactly once. Running it again on an already
// expired token is a no-op.
func (t *MaterialToken) ExpireSweep(now time.Time) (remainder valueobject.Money, expired bool) {
	if t.Status.IsTerminal() {
		return valueobject.Zero(t.TotalAmount.Currency), false
	}
	if !now.After(t.ExpiresAt) {
		return valueobject.Zero(t.TotalAmount.Currency), false
	}

	t.Status = valueobject.TokenStatusExpired
	return t.Remaining(), true
}

func (t *MaterialToken) isAllowedRedeemer(redeemerID uuid.UUID) bool {
	if len(t.AllowedRedeemers) == 0 {
		return true
	}
	for _, id := range t.AllowedRedeemers {
		if id == redeemerID {
			return true
		}
	}
	return false
}

// generateCode produces a human-shareable code like "MAT-7KQ2XF".
func generateCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "MAT-" + string(buf), nil
}
