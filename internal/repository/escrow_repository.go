package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// EscrowRepository persists escrow accounts. Saves are guarded by the
// aggregate version; a lost race surfaces as a conflict for the caller to
// retry.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

type escrowRow struct {
	ID                uuid.UUID `db:"id"`
	JobID             uuid.UUID `db:"job_id"`
	PayerID           uuid.UUID `db:"payer_id"`
	PayeeID           uuid.UUID `db:"payee_id"`
	Currency          string    `db:"currency"`
	TotalMinor        int64     `db:"total_minor"`
	MaterialsMinor    int64     `db:"materials_minor"`
	LaborMinor        int64     `db:"labor_minor"`
	MaterialsReleased int64     `db:"materials_released_minor"`
	LaborReleased     int64     `db:"labor_released_minor"`
	Status            string    `db:"status"`
	CreatedAt         time.Time `db:"created_at"`
	Version           int       `db:"version"`
}

func (r escrowRow) toEntity() *entity.EscrowAccount {
	money := func(amount int64) valueobject.Money {
		return valueobject.Money{Amount: amount, Currency: r.Currency}
	}
	return &entity.EscrowAccount{
		ID:                r.ID,
		JobID:             r.JobID,
		PayerID:           r.PayerID,
		PayeeID:           r.PayeeID,
		Total:             money(r.TotalMinor),
		MaterialsShare:    money(r.MaterialsMinor),
		LaborShare:        money(r.LaborMinor),
		MaterialsReleased: money(r.MaterialsReleased),
		LaborReleased:     money(r.LaborReleased),
		Status:            valueobject.EscrowStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		Version:           r.Version,
	}
}

const escrowColumns = `
	id, job_id, payer_id, payee_id, currency,
	total_minor, materials_minor, labor_minor,
	materials_released_minor, labor_released_minor,
	status, created_at, version
`

func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.EscrowAccount, error) {
	return r.getBy(ctx, "id", id)
}

func (r *EscrowRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.EscrowAccount, error) {
	return r.getBy(ctx, "job_id", jobID)
}

func (r *EscrowRepository) getBy(ctx context.Context, field string, value uuid.UUID) (*entity.EscrowAccount, error) {
	var row escrowRow
	query := `SELECT ` + escrowColumns + ` FROM escrow_accounts WHERE ` + field + ` = $1`
	if err := r.db.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow repository: get by "+field)
	}
	return row.toEntity(), nil
}

func (r *EscrowRepository) Create(ctx context.Context, account *entity.EscrowAccount) error {
	query := `
		INSERT INTO escrow_accounts (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.JobID, account.PayerID, account.PayeeID, account.Total.Currency,
		account.Total.Amount, account.MaterialsShare.Amount, account.LaborShare.Amount,
		account.MaterialsReleased.Amount, account.LaborReleased.Amount,
		string(account.Status), account.CreatedAt, account.Version,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow repository: create")
	}
	return nil
}

func (r *EscrowRepository) Save(ctx context.Context, account *entity.EscrowAccount) error {
	res, err := r.db.ExecContext(ctx, escrowUpdateQuery, saveEscrowArgs(account)...)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow repository: save")
	}
	return bumpVersion(res, &account.Version, "escrow account")
}

// SaveWithTransaction commits the counters and the movement record in one
// database transaction.
func (r *EscrowRepository) SaveWithTransaction(ctx context.Context, account *entity.EscrowAccount, mv *models.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow repository: begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, escrowUpdateQuery, saveEscrowArgs(account)...)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow repository: save")
	}
	if err := bumpVersion(res, &account.Version, "escrow account"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, transactionInsertQuery, transactionInsertArgs(mv)...); err != nil {
		account.Version--
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow repository: record movement")
	}

	if err := tx.Commit(); err != nil {
		account.Version--
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow repository: commit")
	}
	return nil
}

const escrowUpdateQuery = `
	UPDATE escrow_accounts
	SET materials_released_minor = $1,
	    labor_released_minor = $2,
	    status = $3,
	    version = version + 1
	WHERE id = $4 AND version = $5
`

func saveEscrowArgs(account *entity.EscrowAccount) []interface{} {
	return []interface{}{
		account.MaterialsReleased.Amount,
		account.LaborReleased.Amount,
		string(account.Status),
		account.ID,
		account.Version,
	}
}

// bumpVersion interprets the affected-row count of a version-guarded
// update: zero rows means another writer got there first.
func bumpVersion(res sql.Result, version *int, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "rows affected")
	}
	if affected == 0 {
		return apperror.Newf(apperror.ErrCodeConflict, "%s was modified concurrently", what)
	}
	*version++
	return nil
}
