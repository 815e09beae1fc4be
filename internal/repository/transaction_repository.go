package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// TransactionRepository persists money-movement records. Rows are
// append-only: the amount and reference never change after insert, only
// the reconciliation status does.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

type transactionRow struct {
	ID           uuid.UUID  `db:"id"`
	EscrowID     uuid.UUID  `db:"escrow_id"`
	Type         string     `db:"type"`
	AmountMinor  int64      `db:"amount_minor"`
	Currency     string     `db:"currency"`
	Reference    string     `db:"reference"`
	ProviderTxID *string    `db:"provider_tx_id"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}

func (r transactionRow) toModel() *models.Transaction {
	return &models.Transaction{
		ID:           r.ID,
		EscrowID:     r.EscrowID,
		Type:         r.Type,
		Amount:       valueobject.Money{Amount: r.AmountMinor, Currency: r.Currency},
		Reference:    r.Reference,
		ProviderTxID: r.ProviderTxID,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		CompletedAt:  r.CompletedAt,
	}
}

const transactionColumns = `
	id, escrow_id, type, amount_minor, currency, reference,
	provider_tx_id, status, created_at, completed_at
`

const transactionInsertQuery = `
	INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func transactionInsertArgs(tx *models.Transaction) []interface{} {
	return []interface{}{
		tx.ID, tx.EscrowID, tx.Type, tx.Amount.Amount, tx.Amount.Currency,
		tx.Reference, tx.ProviderTxID, tx.Status, tx.CreatedAt, tx.CompletedAt,
	}
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.getBy(ctx, "id", id)
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return r.getBy(ctx, "reference", reference)
}

func (r *TransactionRepository) getBy(ctx context.Context, field string, value interface{}) (*models.Transaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + field + ` = $1`
	if err := r.db.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Newf(apperror.ErrCodeNotFound, "transaction with %s %v not found", field, value)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "transaction repository: get by "+field)
	}
	return row.toModel(), nil
}

func (r *TransactionRepository) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*models.Transaction, error) {
	var rows []transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE escrow_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, escrowID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "transaction repository: list by escrow")
	}

	out := make([]*models.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if _, err := r.db.ExecContext(ctx, transactionInsertQuery, transactionInsertArgs(tx)...); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "transaction repository: create")
	}
	return nil
}

// UpdateStatus reconciles a movement after hearing back from the gateway.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, providerTxID *string, completedAt *time.Time) error {
	query := `
		UPDATE transactions
		SET status = $1,
		    provider_tx_id = COALESCE($2, provider_tx_id),
		    completed_at = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, status, providerTxID, completedAt, id)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "transaction repository: update status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "transaction repository: rows affected")
	}
	if affected == 0 {
		return apperror.Newf(apperror.ErrCodeNotFound, "transaction %s not found", id)
	}
	return nil
}
