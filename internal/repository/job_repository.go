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

// JobRepository persists jobs and their quotes.
type JobRepository struct {
	db       *sqlx.DB
	currency string
}

func NewJobRepository(db *sqlx.DB, currency string) *JobRepository {
	return &JobRepository{db: db, currency: currency}
}

type jobRow struct {
	ID               uuid.UUID  `db:"id"`
	ClientID         uuid.UUID  `db:"client_id"`
	ArtisanID        *uuid.UUID `db:"artisan_id"`
	Title            string     `db:"title"`
	Description      string     `db:"description"`
	QuoteAmountMinor *int64     `db:"quote_amount_minor"`
	Status           string     `db:"status"`
	AcceptedAt       *time.Time `db:"accepted_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r jobRow) toModel(currency string) *models.Job {
	job := &models.Job{
		ID:          r.ID,
		ClientID:    r.ClientID,
		ArtisanID:   r.ArtisanID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		AcceptedAt:  r.AcceptedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.QuoteAmountMinor != nil {
		job.QuoteAmount = &valueobject.Money{Amount: *r.QuoteAmountMinor, Currency: currency}
	}
	return job
}

type quoteRow struct {
	ID          uuid.UUID `db:"id"`
	JobID       uuid.UUID `db:"job_id"`
	ArtisanID   uuid.UUID `db:"artisan_id"`
	AmountMinor int64     `db:"amount_minor"`
	Message     *string   `db:"message"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r quoteRow) toModel(currency string) *models.Quote {
	return &models.Quote{
		ID:        r.ID,
		JobID:     r.JobID,
		ArtisanID: r.ArtisanID,
		Amount:    valueobject.Money{Amount: r.AmountMinor, Currency: currency},
		Message:   r.Message,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

const jobColumns = `
	id, client_id, artisan_id, title, description, quote_amount_minor,
	status, accepted_at, created_at, updated_at
`

const quoteColumns = `id, job_id, artisan_id, amount_minor, message, status, created_at`

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	var quoteMinor *int64
	if job.QuoteAmount != nil {
		quoteMinor = &job.QuoteAmount.Amount
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.ClientID, job.ArtisanID, job.Title, job.Description,
		quoteMinor, job.Status, job.AcceptedAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: create")
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: get by id")
	}
	return row.toModel(r.currency), nil
}

func (r *JobRepository) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs WHERE client_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	return r.listJobs(ctx, query, clientID, limit, offset)
}

func (r *JobRepository) ListByArtisan(ctx context.Context, artisanID uuid.UUID, limit, offset int) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs WHERE artisan_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	return r.listJobs(ctx, query, artisanID, limit, offset)
}

// ListOpen returns jobs still accepting quotes.
func (r *JobRepository) ListOpen(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs WHERE status IN ('` + models.JobStatusPosted + `', '` + models.JobStatusQuoted + `')
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	return r.listJobs(ctx, query, limit, offset)
}

func (r *JobRepository) listJobs(ctx context.Context, query string, args ...interface{}) ([]*models.Job, error) {
	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: list")
	}

	out := make([]*models.Job, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel(r.currency))
	}
	return out, nil
}

func (r *JobRepository) CreateQuote(ctx context.Context, quote *models.Quote) error {
	query := `
		INSERT INTO quotes (` + quoteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		quote.ID, quote.JobID, quote.ArtisanID, quote.Amount.Amount,
		quote.Message, quote.Status, quote.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: create quote")
	}
	return nil
}

func (r *JobRepository) GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var row quoteRow
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "quote not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: get quote")
	}
	return row.toModel(r.currency), nil
}

func (r *JobRepository) ListQuotes(ctx context.Context, jobID uuid.UUID) ([]*models.Quote, error) {
	var rows []quoteRow
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE job_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: list quotes")
	}

	out := make([]*models.Quote, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel(r.currency))
	}
	return out, nil
}

// UpdateStatus moves a job between lifecycle statuses.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE jobs SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: update status")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrJobNotFound
	}
	return nil
}

// AcceptQuote persists the accepted job and quote in one transaction and
// rejects the job's other pending quotes.
func (r *JobRepository) AcceptQuote(ctx context.Context, job *models.Job, quote *models.Quote) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var quoteMinor *int64
	if job.QuoteAmount != nil {
		quoteMinor = &job.QuoteAmount.Amount
	}

	jobQuery := `
		UPDATE jobs
		SET artisan_id = $1, quote_amount_minor = $2, status = $3,
		    accepted_at = $4, updated_at = NOW()
		WHERE id = $5
	`
	res, err := tx.ExecContext(ctx, jobQuery,
		job.ArtisanID, quoteMinor, job.Status, job.AcceptedAt, job.ID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: accept quote (job)")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrJobNotFound
	}

	quoteQuery := `UPDATE quotes SET status = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, quoteQuery, quote.Status, quote.ID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: accept quote (quote)")
	}

	rejectQuery := `UPDATE quotes SET status = $1 WHERE job_id = $2 AND id <> $3 AND status = $4`
	_, err = tx.ExecContext(ctx, rejectQuery,
		models.QuoteStatusRejected, job.ID, quote.ID, models.QuoteStatusPending)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: reject other quotes")
	}

	if err := tx.Commit(); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "job repository: commit accept quote")
	}
	return nil
}
