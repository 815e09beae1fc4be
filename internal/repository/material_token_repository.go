package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// TokenRepository persists material tokens.
type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

type tokenRow struct {
	ID               uuid.UUID      `db:"id"`
	EscrowID         uuid.UUID      `db:"escrow_id"`
	RequesterID      uuid.UUID      `db:"requester_id"`
	Code             string         `db:"code"`
	TotalMinor       int64          `db:"total_minor"`
	UsedMinor        int64          `db:"used_minor"`
	Currency         string         `db:"currency"`
	AllowedRedeemers pq.StringArray `db:"allowed_redeemers"`
	Status           string         `db:"status"`
	CreatedAt        time.Time      `db:"created_at"`
	ExpiresAt        time.Time      `db:"expires_at"`
	Version          int            `db:"version"`
}

func (r tokenRow) toEntity() (*entity.MaterialToken, error) {
	allowed := make([]uuid.UUID, 0, len(r.AllowedRedeemers))
	for _, raw := range r.AllowedRedeemers {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "token repository: malformed redeemer id")
		}
		allowed = append(allowed, id)
	}

	return &entity.MaterialToken{
		ID:               r.ID,
		EscrowID:         r.EscrowID,
		RequesterID:      r.RequesterID,
		Code:             r.Code,
		TotalAmount:      valueobject.Money{Amount: r.TotalMinor, Currency: r.Currency},
		UsedAmount:       valueobject.Money{Amount: r.UsedMinor, Currency: r.Currency},
		AllowedRedeemers: allowed,
		Status:           valueobject.TokenStatus(r.Status),
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        r.ExpiresAt,
		Version:          r.Version,
	}, nil
}

func redeemerStrings(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

const tokenColumns = `
	id, escrow_id, requester_id, code, total_minor, used_minor, currency,
	allowed_redeemers, status, created_at, expires_at, version
`

func (r *TokenRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.MaterialToken, error) {
	return r.getBy(ctx, "id", id)
}

func (r *TokenRepository) GetByCode(ctx context.Context, code string) (*entity.MaterialToken, error) {
	return r.getBy(ctx, "code", code)
}

func (r *TokenRepository) getBy(ctx context.Context, field string, value interface{}) (*entity.MaterialToken, error) {
	var row tokenRow
	query := `SELECT ` + tokenColumns + ` FROM material_tokens WHERE ` + field + ` = $1`
	if err := r.db.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTokenNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "token repository: get by "+field)
	}
	return row.toEntity()
}

func (r *TokenRepository) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*entity.MaterialToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM material_tokens WHERE escrow_id = $1 ORDER BY created_at`
	return r.list(ctx, query, escrowID)
}

// ListExpiredLive returns unexpired-status tokens whose expiry timestamp
// has passed, for the deadline sweep.
func (r *TokenRepository) ListExpiredLive(ctx context.Context, now time.Time) ([]*entity.MaterialToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM material_tokens
		WHERE status IN ($2, $3) AND expires_at < $1
		ORDER BY expires_at
	`
	return r.list(ctx, query, now,
		string(valueobject.TokenStatusActive), string(valueobject.TokenStatusPartiallyUsed))
}

func (r *TokenRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.MaterialToken, error) {
	var rows []tokenRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "token repository: list")
	}

	out := make([]*entity.MaterialToken, 0, len(rows))
	for _, row := range rows {
		tok, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

func (r *TokenRepository) Create(ctx context.Context, token *entity.MaterialToken) error {
	query := `
		INSERT INTO material_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.EscrowID, token.RequesterID, token.Code,
		token.TotalAmount.Amount, token.UsedAmount.Amount, token.TotalAmount.Currency,
		redeemerStrings(token.AllowedRedeemers), string(token.Status),
		token.CreatedAt, token.ExpiresAt, token.Version,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "token repository: create")
	}
	return nil
}

func (r *TokenRepository) Save(ctx context.Context, token *entity.MaterialToken) error {
	query := `
		UPDATE material_tokens
		SET used_minor = $1,
		    status = $2,
		    version = version + 1
		WHERE id = $3 AND version = $4
	`
	res, err := r.db.ExecContext(ctx, query,
		token.UsedAmount.Amount, string(token.Status), token.ID, token.Version)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "token repository: save")
	}
	return bumpVersion(res, &token.Version, "material token")
}
