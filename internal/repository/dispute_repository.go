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

// DisputeRepository persists disputes. Mediation, arbitration and
// resolution live as nullable column groups on the dispute row; the
// communication log lives in its own append-only table.
type DisputeRepository struct {
	db       *sqlx.DB
	currency string
}

func NewDisputeRepository(db *sqlx.DB, currency string) *DisputeRepository {
	return &DisputeRepository{db: db, currency: currency}
}

type disputeRow struct {
	ID           uuid.UUID      `db:"id"`
	JobID        uuid.UUID      `db:"job_id"`
	ReporterID   uuid.UUID      `db:"reporter_id"`
	DefendantID  uuid.UUID      `db:"defendant_id"`
	Type         string         `db:"type"`
	Description  string         `db:"description"`
	EvidenceURLs pq.StringArray `db:"evidence_urls"`
	Status       string         `db:"status"`

	MediationMediatorID *uuid.UUID `db:"mediation_mediator_id"`
	MediationActive     *bool      `db:"mediation_active"`
	MediationStartedAt  *time.Time `db:"mediation_started_at"`
	MediationEndedAt    *time.Time `db:"mediation_ended_at"`

	ArbitrationArbitratorID  *uuid.UUID `db:"arbitration_arbitrator_id"`
	ArbitrationJustification *string    `db:"arbitration_justification"`
	ArbitrationStartedAt     *time.Time `db:"arbitration_started_at"`
	ArbitrationDecidedAt     *time.Time `db:"arbitration_decided_at"`
	DecisionKind             *string    `db:"decision_kind"`
	DecisionAmountMinor      *int64     `db:"decision_amount_minor"`

	ResolutionKind        *string `db:"resolution_kind"`
	ResolutionAmountMinor *int64  `db:"resolution_amount_minor"`
	ResolutionSummary     *string `db:"resolution_summary"`

	CreatedAt  time.Time  `db:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at"`
	Version    int        `db:"version"`
}

func (r disputeRow) toEntity(currency string) *entity.Dispute {
	d := &entity.Dispute{
		ID:           r.ID,
		JobID:        r.JobID,
		ReporterID:   r.ReporterID,
		DefendantID:  r.DefendantID,
		Type:         entity.DisputeType(r.Type),
		Description:  r.Description,
		EvidenceURLs: []string(r.EvidenceURLs),
		Status:       valueobject.DisputeStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		ResolvedAt:   r.ResolvedAt,
		Version:      r.Version,
	}

	if r.MediationMediatorID != nil {
		active := false
		if r.MediationActive != nil {
			active = *r.MediationActive
		}
		d.Mediation = &entity.Mediation{
			MediatorID: *r.MediationMediatorID,
			Active:     active,
			StartedAt:  derefTime(r.MediationStartedAt),
			EndedAt:    r.MediationEndedAt,
		}
	}

	if r.ArbitrationArbitratorID != nil {
		arb := &entity.Arbitration{
			ArbitratorID: *r.ArbitrationArbitratorID,
			StartedAt:    derefTime(r.ArbitrationStartedAt),
			DecidedAt:    r.ArbitrationDecidedAt,
		}
		if r.ArbitrationJustification != nil {
			arb.Justification = *r.ArbitrationJustification
		}
		arb.Decision = decisionFromColumns(r.DecisionKind, r.DecisionAmountMinor, currency)
		d.Arbitration = arb
	}

	if r.ResolutionSummary != nil {
		d.Resolution = &entity.Resolution{
			Decision: decisionFromColumns(r.ResolutionKind, r.ResolutionAmountMinor, currency),
			Summary:  *r.ResolutionSummary,
		}
	}

	return d
}

func decisionFromColumns(kind *string, amountMinor *int64, currency string) *entity.Decision {
	if kind == nil {
		return nil
	}
	decision := &entity.Decision{Kind: entity.DecisionKind(*kind)}
	if amountMinor != nil {
		decision.Amount = &valueobject.Money{Amount: *amountMinor, Currency: currency}
	}
	return decision
}

func decisionToColumns(d *entity.Decision) (kind *string, amountMinor *int64) {
	if d == nil {
		return nil, nil
	}
	k := string(d.Kind)
	kind = &k
	if d.Amount != nil {
		amountMinor = &d.Amount.Amount
	}
	return kind, amountMinor
}

type communicationRow struct {
	ID        uuid.UUID `db:"id"`
	DisputeID uuid.UUID `db:"dispute_id"`
	AuthorID  uuid.UUID `db:"author_id"`
	Message   string    `db:"message"`
	SentAt    time.Time `db:"sent_at"`
}

const disputeColumns = `
	id, job_id, reporter_id, defendant_id, type, description, evidence_urls, status,
	mediation_mediator_id, mediation_active, mediation_started_at, mediation_ended_at,
	arbitration_arbitrator_id, arbitration_justification, arbitration_started_at,
	arbitration_decided_at, decision_kind, decision_amount_minor,
	resolution_kind, resolution_amount_minor, resolution_summary,
	created_at, resolved_at, version
`

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByJobID returns the most recent dispute for the job. Closed disputes
// do not block opening a new one, so a job can accumulate several.
func (r *DisputeRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, query, jobID)
}

func (r *DisputeRepository) getOne(ctx context.Context, query string, arg uuid.UUID) (*entity.Dispute, error) {
	var row disputeRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: get")
	}

	dispute := row.toEntity(r.currency)
	if err := r.loadCommunications(ctx, dispute); err != nil {
		return nil, err
	}
	return dispute, nil
}

func (r *DisputeRepository) ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Dispute, error) {
	var rows []disputeRow
	query := `
		SELECT ` + disputeColumns + `
		FROM disputes
		WHERE reporter_id = $1 OR defendant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: list by party")
	}

	out := make([]*entity.Dispute, 0, len(rows))
	for _, row := range rows {
		dispute := row.toEntity(r.currency)
		if err := r.loadCommunications(ctx, dispute); err != nil {
			return nil, err
		}
		out = append(out, dispute)
	}
	return out, nil
}

func (r *DisputeRepository) loadCommunications(ctx context.Context, d *entity.Dispute) error {
	if d.Mediation == nil {
		return nil
	}

	var rows []communicationRow
	query := `
		SELECT id, dispute_id, author_id, message, sent_at
		FROM dispute_communications
		WHERE dispute_id = $1
		ORDER BY sent_at, id
	`
	if err := r.db.SelectContext(ctx, &rows, query, d.ID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: load communications")
	}

	d.Mediation.Communications = make([]entity.Communication, 0, len(rows))
	for _, row := range rows {
		d.Mediation.Communications = append(d.Mediation.Communications, entity.Communication{
			ID:       row.ID,
			AuthorID: row.AuthorID,
			Message:  row.Message,
			SentAt:   row.SentAt,
		})
	}
	return nil
}

func (r *DisputeRepository) Create(ctx context.Context, dispute *entity.Dispute) error {
	query := `
		INSERT INTO disputes (id, job_id, reporter_id, defendant_id, type, description,
			evidence_urls, status, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		dispute.ID, dispute.JobID, dispute.ReporterID, dispute.DefendantID,
		string(dispute.Type), dispute.Description, pq.StringArray(dispute.EvidenceURLs),
		string(dispute.Status), dispute.CreatedAt, dispute.Version,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: create")
	}
	return nil
}

// Save writes the dispute row under its version guard and inserts any
// communications not yet on disk. Existing log entries are never touched.
func (r *DisputeRepository) Save(ctx context.Context, dispute *entity.Dispute) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		mediatorID        *uuid.UUID
		mediationActive   *bool
		mediationStarted  *time.Time
		mediationEnded    *time.Time
		arbitratorID      *uuid.UUID
		justification     *string
		arbStarted        *time.Time
		arbDecided        *time.Time
		resolutionSummary *string
	)
	if m := dispute.Mediation; m != nil {
		mediatorID = &m.MediatorID
		mediationActive = &m.Active
		mediationStarted = &m.StartedAt
		mediationEnded = m.EndedAt
	}
	var decisionKind *string
	var decisionMinor *int64
	if a := dispute.Arbitration; a != nil {
		arbitratorID = &a.ArbitratorID
		justification = &a.Justification
		arbStarted = &a.StartedAt
		arbDecided = a.DecidedAt
		decisionKind, decisionMinor = decisionToColumns(a.Decision)
	}
	var resolutionKind *string
	var resolutionMinor *int64
	if res := dispute.Resolution; res != nil {
		resolutionSummary = &res.Summary
		resolutionKind, resolutionMinor = decisionToColumns(res.Decision)
	}

	query := `
		UPDATE disputes
		SET status = $1,
		    evidence_urls = $2,
		    mediation_mediator_id = $3,
		    mediation_active = $4,
		    mediation_started_at = $5,
		    mediation_ended_at = $6,
		    arbitration_arbitrator_id = $7,
		    arbitration_justification = $8,
		    arbitration_started_at = $9,
		    arbitration_decided_at = $10,
		    decision_kind = $11,
		    decision_amount_minor = $12,
		    resolution_kind = $13,
		    resolution_amount_minor = $14,
		    resolution_summary = $15,
		    resolved_at = $16,
		    version = version + 1
		WHERE id = $17 AND version = $18
	`
	res, err := tx.ExecContext(ctx, query,
		string(dispute.Status), pq.StringArray(dispute.EvidenceURLs),
		mediatorID, mediationActive, mediationStarted, mediationEnded,
		arbitratorID, justification, arbStarted, arbDecided,
		decisionKind, decisionMinor,
		resolutionKind, resolutionMinor, resolutionSummary,
		dispute.ResolvedAt, dispute.ID, dispute.Version,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: save")
	}
	if err := bumpVersion(res, &dispute.Version, "dispute"); err != nil {
		return err
	}

	if err := insertNewCommunications(ctx, tx, dispute); err != nil {
		dispute.Version--
		return err
	}
	if err := tx.Commit(); err != nil {
		dispute.Version--
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: commit save")
	}
	return nil
}

func insertNewCommunications(ctx context.Context, tx *sqlx.Tx, dispute *entity.Dispute) error {
	if dispute.Mediation == nil {
		return nil
	}

	query := `
		INSERT INTO dispute_communications (id, dispute_id, author_id, message, sent_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	for _, c := range dispute.Mediation.Communications {
		_, err := tx.ExecContext(ctx, query, c.ID, dispute.ID, c.AuthorID, c.Message, c.SentAt)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "dispute repository: insert communication")
		}
	}
	return nil
}
