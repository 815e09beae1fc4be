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
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// WorksiteRepository persists worksites together with their milestones.
// The worksite is the aggregate root; milestones are never written outside
// a worksite save.
type WorksiteRepository struct {
	db       *sqlx.DB
	currency string
}

func NewWorksiteRepository(db *sqlx.DB, currency string) *WorksiteRepository {
	return &WorksiteRepository{db: db, currency: currency}
}

type worksiteRow struct {
	ID        uuid.UUID `db:"id"`
	JobID     uuid.UUID `db:"job_id"`
	PayerID   uuid.UUID `db:"payer_id"`
	PayeeID   uuid.UUID `db:"payee_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	Version   int       `db:"version"`
}

func (r worksiteRow) toEntity() *entity.Worksite {
	return &entity.Worksite{
		ID:        r.ID,
		JobID:     r.JobID,
		PayerID:   r.PayerID,
		PayeeID:   r.PayeeID,
		Status:    valueobject.WorksiteStatus(r.Status),
		CreatedAt: r.CreatedAt,
		Version:   r.Version,
	}
}

type milestoneRow struct {
	ID             uuid.UUID `db:"id"`
	WorksiteID     uuid.UUID `db:"worksite_id"`
	Description    string    `db:"description"`
	LaborMinor     int64     `db:"labor_minor"`
	SequenceNumber int       `db:"sequence_number"`
	Status         string    `db:"status"`

	ProofPhotoURL   *string    `db:"proof_photo_url"`
	ProofLat        *float64   `db:"proof_lat"`
	ProofLon        *float64   `db:"proof_lon"`
	ProofAccuracyM  *float64   `db:"proof_accuracy_m"`
	ProofCapturedAt *time.Time `db:"proof_captured_at"`

	SubmittedAt            *time.Time `db:"submitted_at"`
	ValidatedAt            *time.Time `db:"validated_at"`
	AutoValidationDeadline *time.Time `db:"auto_validation_deadline"`
	ContestReason          *string    `db:"contest_reason"`
	AutoValidated          bool       `db:"auto_validated"`
	Version                int        `db:"version"`
}

func (r milestoneRow) toEntity(currency string) *entity.Milestone {
	m := &entity.Milestone{
		ID:                     r.ID,
		WorksiteID:             r.WorksiteID,
		Description:            r.Description,
		LaborAmount:            valueobject.Money{Amount: r.LaborMinor, Currency: currency},
		SequenceNumber:         r.SequenceNumber,
		Status:                 valueobject.MilestoneStatus(r.Status),
		SubmittedAt:            r.SubmittedAt,
		ValidatedAt:            r.ValidatedAt,
		AutoValidationDeadline: r.AutoValidationDeadline,
		ContestReason:          r.ContestReason,
		AutoValidated:          r.AutoValidated,
		Version:                r.Version,
	}
	if r.ProofPhotoURL != nil {
		m.Proof = &entity.ProofOfDelivery{
			PhotoURL: *r.ProofPhotoURL,
			Location: valueobject.GeoPoint{
				Latitude:       deref(r.ProofLat),
				Longitude:      deref(r.ProofLon),
				AccuracyMeters: deref(r.ProofAccuracyM),
			},
			CapturedAt: derefTime(r.ProofCapturedAt),
		}
	}
	return m
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

const milestoneColumns = `
	id, worksite_id, description, labor_minor, sequence_number, status,
	proof_photo_url, proof_lat, proof_lon, proof_accuracy_m, proof_captured_at,
	submitted_at, validated_at, auto_validation_deadline, contest_reason,
	auto_validated, version
`

func (r *WorksiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Worksite, error) {
	return r.getBy(ctx, "id", id)
}

func (r *WorksiteRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Worksite, error) {
	return r.getBy(ctx, "job_id", jobID)
}

func (r *WorksiteRepository) getBy(ctx context.Context, field string, value uuid.UUID) (*entity.Worksite, error) {
	var row worksiteRow
	query := `
		SELECT id, job_id, payer_id, payee_id, status, created_at, version
		FROM worksites WHERE ` + field + ` = $1`
	if err := r.db.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrWorksiteNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: get by "+field)
	}

	worksite := row.toEntity()
	if err := r.loadMilestones(ctx, worksite); err != nil {
		return nil, err
	}
	return worksite, nil
}

func (r *WorksiteRepository) loadMilestones(ctx context.Context, w *entity.Worksite) error {
	var rows []milestoneRow
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE worksite_id = $1 ORDER BY sequence_number`
	if err := r.db.SelectContext(ctx, &rows, query, w.ID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: load milestones")
	}

	w.Milestones = make([]*entity.Milestone, 0, len(rows))
	for _, row := range rows {
		w.Milestones = append(w.Milestones, row.toEntity(r.currency))
	}
	return nil
}

// ListSubmittedPastDeadline returns worksites with at least one submitted
// milestone whose auto-validation deadline is behind now. Fed to the sweep.
func (r *WorksiteRepository) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Worksite, error) {
	var rows []worksiteRow
	query := `
		SELECT DISTINCT w.id, w.job_id, w.payer_id, w.payee_id, w.status, w.created_at, w.version
		FROM worksites w
		JOIN milestones m ON m.worksite_id = w.id
		WHERE m.status = $1 AND m.auto_validation_deadline < $2
		ORDER BY w.created_at
	`
	if err := r.db.SelectContext(ctx, &rows, query, string(valueobject.MilestoneStatusSubmitted), now); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: list past deadline")
	}

	out := make([]*entity.Worksite, 0, len(rows))
	for _, row := range rows {
		worksite := row.toEntity()
		if err := r.loadMilestones(ctx, worksite); err != nil {
			return nil, err
		}
		out = append(out, worksite)
	}
	return out, nil
}

func (r *WorksiteRepository) Create(ctx context.Context, worksite *entity.Worksite) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO worksites (id, job_id, payer_id, payee_id, status, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, query,
		worksite.ID, worksite.JobID, worksite.PayerID, worksite.PayeeID,
		string(worksite.Status), worksite.CreatedAt, worksite.Version)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: create")
	}

	if err := upsertMilestones(ctx, tx, worksite); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: commit create")
	}
	return nil
}

// Save writes the worksite row under its version guard and upserts every
// milestone in the same transaction.
func (r *WorksiteRepository) Save(ctx context.Context, worksite *entity.Worksite) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		UPDATE worksites
		SET status = $1, version = version + 1
		WHERE id = $2 AND version = $3
	`
	res, err := tx.ExecContext(ctx, query, string(worksite.Status), worksite.ID, worksite.Version)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: save")
	}
	if err := bumpVersion(res, &worksite.Version, "worksite"); err != nil {
		return err
	}

	if err := upsertMilestones(ctx, tx, worksite); err != nil {
		worksite.Version--
		return err
	}
	if err := tx.Commit(); err != nil {
		worksite.Version--
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: commit save")
	}
	return nil
}

func upsertMilestones(ctx context.Context, tx *sqlx.Tx, worksite *entity.Worksite) error {
	query := `
		INSERT INTO milestones (` + milestoneColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			proof_photo_url = EXCLUDED.proof_photo_url,
			proof_lat = EXCLUDED.proof_lat,
			proof_lon = EXCLUDED.proof_lon,
			proof_accuracy_m = EXCLUDED.proof_accuracy_m,
			proof_captured_at = EXCLUDED.proof_captured_at,
			submitted_at = EXCLUDED.submitted_at,
			validated_at = EXCLUDED.validated_at,
			auto_validation_deadline = EXCLUDED.auto_validation_deadline,
			contest_reason = EXCLUDED.contest_reason,
			auto_validated = EXCLUDED.auto_validated,
			version = milestones.version + 1
	`
	for _, m := range worksite.Milestones {
		var photoURL *string
		var lat, lon, accuracy *float64
		var capturedAt *time.Time
		if m.Proof != nil {
			photoURL = &m.Proof.PhotoURL
			lat = &m.Proof.Location.Latitude
			lon = &m.Proof.Location.Longitude
			accuracy = &m.Proof.Location.AccuracyMeters
			capturedAt = &m.Proof.CapturedAt
		}

		_, err := tx.ExecContext(ctx, query,
			m.ID, m.WorksiteID, m.Description, m.LaborAmount.Amount, m.SequenceNumber,
			string(m.Status), photoURL, lat, lon, accuracy, capturedAt,
			m.SubmittedAt, m.ValidatedAt, m.AutoValidationDeadline, m.ContestReason,
			m.AutoValidated, m.Version,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "worksite repository: upsert milestone")
		}
	}
	return nil
}
