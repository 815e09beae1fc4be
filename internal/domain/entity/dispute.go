package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// ReportingWindow bounds how long after the job's last validated milestone
// a dispute may still be opened. The boundary instant is inclusive.
const ReportingWindow = 7 * 24 * time.Hour

type DisputeType string

const (
	DisputeTypeQuality DisputeType = "quality"
	DisputeTypePayment DisputeType = "payment"
	DisputeTypeDelay   DisputeType = "delay"
	DisputeTypeOther   DisputeType = "other"
)

func (t DisputeType) IsValid() bool {
	switch t {
	case DisputeTypeQuality, DisputeTypePayment, DisputeTypeDelay, DisputeTypeOther:
		return true
	}
	return false
}

// DecisionKind enumerates the closed set of arbitration rulings. Execution
// dispatches exhaustively over it; an unknown kind is an internal error,
// not a silent no-op.
type DecisionKind string

const (
	DecisionRefundClient  DecisionKind = "refund_client"
	DecisionPayArtisan    DecisionKind = "pay_artisan"
	DecisionPartialRefund DecisionKind = "partial_refund"
	DecisionFreezeFunds   DecisionKind = "freeze_funds"
)

// Decision is the arbitrator's ruling. A nil Amount on RefundClient or
// PayArtisan means "apply to the full remaining escrow balance";
// PartialRefund always carries an amount; FreezeFunds never does.
type Decision struct {
	Kind   DecisionKind       `db:"kind" json:"kind"`
	Amount *valueobject.Money `json:"amount,omitempty"`
}

func RefundClientDecision(amount *valueobject.Money) Decision {
	return Decision{Kind: DecisionRefundClient, Amount: amount}
}

func PayArtisanDecision(amount *valueobject.Money) Decision {
	return Decision{Kind: DecisionPayArtisan, Amount: amount}
}

func PartialRefundDecision(amount valueobject.Money) Decision {
	return Decision{Kind: DecisionPartialRefund, Amount: &amount}
}

func FreezeFundsDecision() Decision {
	return Decision{Kind: DecisionFreezeFunds}
}

func (d Decision) Validate() error {
	switch d.Kind {
	case DecisionRefundClient, DecisionPayArtisan:
		if d.Amount != nil && !d.Amount.IsPositive() {
			return apperror.New(apperror.ErrCodeValidation, "decision amount must be positive")
		}
	case DecisionPartialRefund:
		if d.Amount == nil {
			return apperror.New(apperror.ErrCodeValidation, "partial refund requires an amount")
		}
		if !d.Amount.IsPositive() {
			return apperror.New(apperror.ErrCodeValidation, "decision amount must be positive")
		}
	case DecisionFreezeFunds:
		if d.Amount != nil {
			return apperror.New(apperror.ErrCodeValidation, "freeze funds carries no amount")
		}
	default:
		return apperror.Newf(apperror.ErrCodeValidation, "unknown decision kind %q", d.Kind)
	}
	return nil
}

// Communication is one message in a mediation log. The log is append-only.
type Communication struct {
	ID       uuid.UUID `db:"id" json:"id"`
	AuthorID uuid.UUID `db:"author_id" json:"author_id"`
	Message  string    `db:"message" json:"message"`
	SentAt   time.Time `db:"sent_at" json:"sent_at"`
}

// Mediation is the amicable phase of a dispute. Once set it is never
// replaced; escalation ends it but keeps the log.
type Mediation struct {
	MediatorID     uuid.UUID       `db:"mediator_id" json:"mediator_id"`
	Communications []Communication `json:"communications"`
	Active         bool            `db:"active" json:"active"`
	StartedAt      time.Time       `db:"started_at" json:"started_at"`
	EndedAt        *time.Time      `db:"ended_at" json:"ended_at,omitempty"`
}

// Arbitration is the binding phase. Once set it is never replaced.
type Arbitration struct {
	ArbitratorID  uuid.UUID  `db:"arbitrator_id" json:"arbitrator_id"`
	Decision      *Decision  `json:"decision,omitempty"`
	Justification string     `db:"justification" json:"justification"`
	StartedAt     time.Time  `db:"started_at" json:"started_at"`
	DecidedAt     *time.Time `db:"decided_at" json:"decided_at,omitempty"`
}

// Resolution summarizes how a dispute ended, whether through mediation or
// an arbitration decision.
type Resolution struct {
	Decision *Decision `json:"decision,omitempty"`
	Summary  string    `db:"summary" json:"summary"`
}

// Dispute is a formal disagreement over a job, progressing through
// mediation and/or arbitration toward a resolution that is executed against
// the job's escrow account.
type Dispute struct {
	ID          uuid.UUID `db:"id" json:"id"`
	JobID       uuid.UUID `db:"job_id" json:"job_id"`
	ReporterID  uuid.UUID `db:"reporter_id" json:"reporter_id"`
	DefendantID uuid.UUID `db:"defendant_id" json:"defendant_id"`

	Type         DisputeType `db:"type" json:"type"`
	Description  string      `db:"description" json:"description"`
	EvidenceURLs []string    `json:"evidence_urls,omitempty"`

	Status      valueobject.DisputeStatus `db:"status" json:"status"`
	Mediation   *Mediation                `json:"mediation,omitempty"`
	Arbitration *Arbitration              `json:"arbitration,omitempty"`
	Resolution  *Resolution               `json:"resolution,omitempty"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`

	Version int `db:"version" json:"-"`
}

// OpenDispute creates a dispute for a job. lastMilestoneValidatedAt is the
// job's most recent validated-milestone timestamp, supplied by the worksite
// collaborator; when nil the reporting window has not started and the
// dispute may always be opened.
func OpenDispute(jobID, reporterID, defendantID uuid.UUID, disputeType DisputeType, description string, evidenceURLs []string, lastMilestoneValidatedAt *time.Time, now time.Time) (*Dispute, error) {
	if !disputeType.IsValid() {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "unknown dispute type %q", disputeType)
	}
	if description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "dispute description is required")
	}
	if reporterID == defendantID {
		return nil, apperror.New(apperror.ErrCodeValidation, "reporter and defendant must differ")
	}
	if lastMilestoneValidatedAt != nil {
		deadline := lastMilestoneValidatedAt.Add(ReportingWindow)
		if now.After(deadline) {
			return nil, apperror.New(apperror.ErrCodeWrongState,
				"reporting window closed 7 days after the last validated milestone")
		}
	}

	return &Dispute{
		ID:           uuid.New(),
		JobID:        jobID,
		ReporterID:   reporterID,
		DefendantID:  defendantID,
		Type:         disputeType,
		Description:  description,
		EvidenceURLs: evidenceURLs,
		Status:       valueobject.DisputeStatusOpen,
		CreatedAt:    now,
	}, nil
}

// IsParty reports whether userID is the reporter or the defendant.
func (d *Dispute) IsParty(userID uuid.UUID) bool {
	return userID == d.ReporterID || userID == d.DefendantID
}

func (d *Dispute) StartMediation(mediatorID uuid.UUID, now time.Time) error {
	if d.Status != valueobject.DisputeStatusOpen {
		return apperror.Newf(apperror.ErrCodeWrongState, "cannot start mediation on a %s dispute", d.Status)
	}
	if d.Mediation != nil {
		return apperror.New(apperror.ErrCodeWrongState, "mediation already exists")
	}

	d.Mediation = &Mediation{
		MediatorID: mediatorID,
		Active:     true,
		StartedAt:  now,
	}
	d.Status = valueobject.DisputeStatusInMediation
	return nil
}

// AddCommunication appends a message to the mediation log. The log accepts
// messages from the parties and the mediator while the mediation is active.
func (d *Dispute) AddCommunication(authorID uuid.UUID, message string, now time.Time) error {
	if d.Mediation == nil || !d.Mediation.Active {
		return apperror.New(apperror.ErrCodeWrongState, "no active mediation")
	}
	if message == "" {
		return apperror.New(apperror.ErrCodeValidation, "message is required")
	}
	if !d.IsParty(authorID) && authorID != d.Mediation.MediatorID {
		return apperror.ErrForbidden
	}

	d.Mediation.Communications = append(d.Mediation.Communications, Communication{
		ID:       uuid.New(),
		AuthorID: authorID,
		Message:  message,
		SentAt:   now,
	})
	return nil
}

// ResolveFromMediation ends the dispute amicably, bypassing arbitration.
func (d *Dispute) ResolveFromMediation(summary string, now time.Time) error {
	if d.Status != valueobject.DisputeStatusInMediation {
		return apperror.Newf(apperror.ErrCodeWrongState, "cannot resolve a %s dispute from mediation", d.Status)
	}
	if summary == "" {
		return apperror.New(apperror.ErrCodeValidation, "resolution summary is required")
	}

	d.endMediation(now)
	d.Resolution = &Resolution{Summary: summary}
	d.Status = valueobject.DisputeStatusResolved
	d.ResolvedAt = &now
	return nil
}

// EscalateToArbitration hands the dispute to an arbitrator. An active
// mediation is ended, not destroyed; its log is retained.
func (d *Dispute) EscalateToArbitration(arbitratorID uuid.UUID, now time.Time) error {
	if d.Status != valueobject.DisputeStatusInMediation {
		return apperror.Newf(apperror.ErrCodeWrongState, "cannot escalate a %s dispute", d.Status)
	}
	if d.Arbitration != nil {
		return apperror.New(apperror.ErrCodeWrongState, "arbitration already exists")
	}

	d.endMediation(now)
	d.Arbitration = &Arbitration{
		ArbitratorID: arbitratorID,
		StartedAt:    now,
	}
	d.Status = valueobject.DisputeStatusInArbitration
	return nil
}

// RenderArbitrationDecision records the ruling and resolves the dispute.
// Executing the decision against the escrow is the orchestration layer's
// job; the rendered decision is a durable record either way.
func (d *Dispute) RenderArbitrationDecision(decision Decision, justification string, now time.Time) (DecisionRendered, error) {
	if d.Status != valueobject.DisputeStatusInArbitration {
		return DecisionRendered{}, apperror.Newf(apperror.ErrCodeWrongState,
			"cannot render a decision on a %s dispute", d.Status)
	}
	if err := decision.Validate(); err != nil {
		return DecisionRendered{}, err
	}
	if justification == "" {
		return DecisionRendered{}, apperror.New(apperror.ErrCodeValidation, "justification is required")
	}

	d.Arbitration.Decision = &decision
	d.Arbitration.Justification = justification
	d.Arbitration.DecidedAt = &now
	d.Resolution = &Resolution{Decision: &decision, Summary: justification}
	d.Status = valueobject.DisputeStatusResolved
	d.ResolvedAt = &now

	return DecisionRendered{
		DisputeID:  d.ID,
		JobID:      d.JobID,
		Decision:   decision,
		RenderedAt: now,
	}, nil
}

func (d *Dispute) Close() error {
	if d.Status != valueobject.DisputeStatusResolved {
		return apperror.Newf(apperror.ErrCodeWrongState, "cannot close a %s dispute", d.Status)
	}
	d.Status = valueobject.DisputeStatusClosed
	return nil
}

func (d *Dispute) endMediation(now time.Time) {
	if d.Mediation != nil && d.Mediation.Active {
		d.Mediation.Active = false
		d.Mediation.EndedAt = &now
	}
}
