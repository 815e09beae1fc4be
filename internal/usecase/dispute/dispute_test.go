package dispute

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/service"
)

type fakeDisputeRepo struct {
	disputes map[uuid.UUID]*entity.Dispute
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: make(map[uuid.UUID]*entity.Dispute)}
}

func copyDispute(d *entity.Dispute) *entity.Dispute {
	cp := *d
	if d.Mediation != nil {
		m := *d.Mediation
		m.Communications = append([]entity.Communication(nil), d.Mediation.Communications...)
		cp.Mediation = &m
	}
	if d.Arbitration != nil {
		a := *d.Arbitration
		cp.Arbitration = &a
	}
	if d.Resolution != nil {
		r := *d.Resolution
		cp.Resolution = &r
	}
	return &cp
}

func (r *fakeDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	d, ok := r.disputes[id]
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return copyDispute(d), nil
}

func (r *fakeDisputeRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Dispute, error) {
	var latest *entity.Dispute
	for _, d := range r.disputes {
		if d.JobID == jobID && (latest == nil || d.CreatedAt.After(latest.CreatedAt)) {
			latest = d
		}
	}
	if latest == nil {
		return nil, apperror.ErrDisputeNotFound
	}
	return copyDispute(latest), nil
}

func (r *fakeDisputeRepo) ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Dispute, error) {
	var out []*entity.Dispute
	for _, d := range r.disputes {
		if d.ReporterID == userID || d.DefendantID == userID {
			out = append(out, copyDispute(d))
		}
	}
	return out, nil
}

func (r *fakeDisputeRepo) Create(ctx context.Context, d *entity.Dispute) error {
	r.disputes[d.ID] = copyDispute(d)
	return nil
}

func (r *fakeDisputeRepo) Save(ctx context.Context, d *entity.Dispute) error {
	r.disputes[d.ID] = copyDispute(d)
	return nil
}

type fakeWorksiteRepo struct {
	sites map[uuid.UUID]*entity.Worksite
}

func newFakeWorksiteRepo() *fakeWorksiteRepo {
	return &fakeWorksiteRepo{sites: make(map[uuid.UUID]*entity.Worksite)}
}

func copyWorksite(w *entity.Worksite) *entity.Worksite {
	cp := *w
	cp.Milestones = make([]*entity.Milestone, len(w.Milestones))
	for i, m := range w.Milestones {
		mc := *m
		cp.Milestones[i] = &mc
	}
	return &cp
}

func (r *fakeWorksiteRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Worksite, error) {
	w, ok := r.sites[id]
	if !ok {
		return nil, apperror.ErrWorksiteNotFound
	}
	return copyWorksite(w), nil
}

func (r *fakeWorksiteRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Worksite, error) {
	for _, w := range r.sites {
		if w.JobID == jobID {
			return copyWorksite(w), nil
		}
	}
	return nil, apperror.ErrWorksiteNotFound
}

func (r *fakeWorksiteRepo) Create(ctx context.Context, w *entity.Worksite) error {
	r.sites[w.ID] = copyWorksite(w)
	return nil
}

func (r *fakeWorksiteRepo) Save(ctx context.Context, w *entity.Worksite) error {
	r.sites[w.ID] = copyWorksite(w)
	return nil
}

func (r *fakeWorksiteRepo) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Worksite, error) {
	return nil, nil
}

type fakeEscrowRepo struct {
	accounts map[uuid.UUID]*entity.EscrowAccount
	txs      *fakeTxRepo
}

func newFakeEscrowRepo(txs *fakeTxRepo) *fakeEscrowRepo {
	return &fakeEscrowRepo{accounts: make(map[uuid.UUID]*entity.EscrowAccount), txs: txs}
}

func (r *fakeEscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.EscrowAccount, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, apperror.ErrEscrowNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeEscrowRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.EscrowAccount, error) {
	for _, a := range r.accounts {
		if a.JobID == jobID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.ErrEscrowNotFound
}

func (r *fakeEscrowRepo) Create(ctx context.Context, account *entity.EscrowAccount) error {
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *fakeEscrowRepo) Save(ctx context.Context, account *entity.EscrowAccount) error {
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *fakeEscrowRepo) SaveWithTransaction(ctx context.Context, account *entity.EscrowAccount, tx *models.Transaction) error {
	if err := r.txs.Create(ctx, tx); err != nil {
		return err
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

type fakeTxRepo struct {
	byRef map[string]*models.Transaction
}

func newFakeTxRepo() *fakeTxRepo {
	return &fakeTxRepo{byRef: make(map[string]*models.Transaction)}
}

func (r *fakeTxRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	for _, tx := range r.byRef {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, apperror.New(apperror.ErrCodeNotFound, "transaction not found")
}

func (r *fakeTxRepo) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	tx, ok := r.byRef[reference]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeNotFound, "transaction not found")
	}
	return tx, nil
}

func (r *fakeTxRepo) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, tx := range r.byRef {
		if tx.EscrowID == escrowID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeTxRepo) Create(ctx context.Context, tx *models.Transaction) error {
	if _, ok := r.byRef[tx.Reference]; ok {
		return apperror.New(apperror.ErrCodeConflict, "reference already used")
	}
	r.byRef[tx.Reference] = tx
	return nil
}

func (r *fakeTxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, providerTxID *string, completedAt *time.Time) error {
	for _, tx := range r.byRef {
		if tx.ID == id {
			tx.Status = status
			return nil
		}
	}
	return apperror.New(apperror.ErrCodeNotFound, "transaction not found")
}

type fakeGateway struct {
	transfers []string
	refunds   []string
	amounts   map[string]int64
	fail      bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{amounts: make(map[string]int64)}
}

func (g *fakeGateway) BlockFunds(ctx context.Context, payerID uuid.UUID, amount valueobject.Money, reference string) (*service.GatewayResult, error) {
	return &service.GatewayResult{ProviderTxID: "prov-" + reference, Status: service.GatewayStatusPending}, nil
}

func (g *fakeGateway) TransferFunds(ctx context.Context, payerID, payeeID uuid.UUID, amount valueobject.Money, reference string) (*service.GatewayResult, error) {
	if g.fail {
		return nil, apperror.New(apperror.ErrCodeGateway, "provider unavailable")
	}
	g.transfers = append(g.transfers, reference)
	g.amounts[reference] = amount.Amount
	return &service.GatewayResult{ProviderTxID: "prov-" + reference, Status: service.GatewayStatusPending}, nil
}

func (g *fakeGateway) RefundFunds(ctx context.Context, payerID uuid.UUID, amount valueobject.Money, reference string) (*service.GatewayResult, error) {
	if g.fail {
		return nil, apperror.New(apperror.ErrCodeGateway, "provider unavailable")
	}
	g.refunds = append(g.refunds, reference)
	g.amounts[reference] = amount.Amount
	return &service.GatewayResult{ProviderTxID: "prov-" + reference, Status: service.GatewayStatusPending}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, providerTxID string) (string, error) {
	return service.GatewayStatusCompleted, nil
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, event string, payload any) {
	n.events = append(n.events, event)
}

type fakeUserGetter struct {
	users map[uuid.UUID]*models.User
}

func (g *fakeUserGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := g.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	return u, nil
}

type fakeAssigner struct {
	mediator *models.User
}

func (a *fakeAssigner) Assign(ctx context.Context, d *entity.Dispute, total valueobject.Money) (*models.User, error) {
	return a.mediator, nil
}

type disputeFixture struct {
	disputes   *fakeDisputeRepo
	worksites  *fakeWorksiteRepo
	escrows    *fakeEscrowRepo
	txs        *fakeTxRepo
	gw         *fakeGateway
	account    *entity.EscrowAccount
	worksite   *entity.Worksite
	jobID      uuid.UUID
	client     uuid.UUID
	artisan    uuid.UUID
	arbitrator uuid.UUID
}

func newDisputeFixture(t *testing.T) *disputeFixture {
	t.Helper()
	txs := newFakeTxRepo()
	escrows := newFakeEscrowRepo(txs)
	jobID := uuid.New()
	client, artisan := uuid.New(), uuid.New()

	account, err := entity.OpenEscrow(jobID, client, artisan, valueobject.MustMoney(100000))
	require.NoError(t, err)
	require.NoError(t, escrows.Create(context.Background(), account))

	worksites := newFakeWorksiteRepo()
	w := entity.NewWorksite(jobID, client, artisan)
	require.NoError(t, worksites.Create(context.Background(), w))

	return &disputeFixture{
		disputes:   newFakeDisputeRepo(),
		worksites:  worksites,
		escrows:    escrows,
		txs:        txs,
		gw:         newFakeGateway(),
		account:    account,
		worksite:   w,
		jobID:      jobID,
		client:     client,
		artisan:    artisan,
		arbitrator: uuid.New(),
	}
}

// arbitrated stores a dispute that has already passed through mediation and
// escalation, ready for a ruling.
func (f *disputeFixture) arbitrated(t *testing.T) *entity.Dispute {
	t.Helper()
	now := time.Now().UTC()
	d, err := entity.OpenDispute(f.jobID, f.client, f.artisan, entity.DisputeTypeQuality,
		"the finish is unacceptable", nil, nil, now)
	require.NoError(t, err)
	require.NoError(t, d.StartMediation(uuid.New(), now))
	require.NoError(t, d.EscalateToArbitration(f.arbitrator, now))
	require.NoError(t, f.disputes.Create(context.Background(), d))

	stored := f.worksites.sites[f.worksite.ID]
	require.NoError(t, stored.MarkDisputed())
	return d
}

func TestOpenDispute_MarksWorksiteAndNotifiesDefendant(t *testing.T) {
	f := newDisputeFixture(t)
	notifier := &fakeNotifier{}
	uc := NewOpenDisputeUseCase(f.disputes, f.worksites, f.escrows, notifier)

	d, err := uc.Execute(context.Background(), OpenDisputeInput{
		JobID:       f.jobID,
		ReporterID:  f.client,
		Type:        entity.DisputeTypeQuality,
		Description: "the finish is unacceptable",
	})
	require.NoError(t, err)

	assert.Equal(t, f.artisan, d.DefendantID)
	assert.Equal(t, []string{models.EventDisputeOpened}, notifier.events)

	w, err := f.worksites.GetByID(context.Background(), f.worksite.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.WorksiteStatusDisputed, w.Status)
}

func TestOpenDispute_ActiveDisputeBlocksASecond(t *testing.T) {
	f := newDisputeFixture(t)
	uc := NewOpenDisputeUseCase(f.disputes, f.worksites, f.escrows, &fakeNotifier{})

	input := OpenDisputeInput{
		JobID:       f.jobID,
		ReporterID:  f.client,
		Type:        entity.DisputeTypeQuality,
		Description: "the finish is unacceptable",
	}
	_, err := uc.Execute(context.Background(), input)
	require.NoError(t, err)

	_, err = uc.Execute(context.Background(), input)
	assert.True(t, apperror.IsConflict(err))
}

func TestOpenDispute_OutsiderForbidden(t *testing.T) {
	f := newDisputeFixture(t)
	uc := NewOpenDisputeUseCase(f.disputes, f.worksites, f.escrows, &fakeNotifier{})

	_, err := uc.Execute(context.Background(), OpenDisputeInput{
		JobID:       f.jobID,
		ReporterID:  uuid.New(),
		Type:        entity.DisputeTypePayment,
		Description: "never got paid",
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestStartMediation_AssignsMediator(t *testing.T) {
	f := newDisputeFixture(t)
	mediator := &models.User{ID: uuid.New(), Role: models.RoleAdmin, IsActive: true}
	uc := NewStartMediationUseCase(f.disputes, f.escrows, &fakeAssigner{mediator: mediator})

	open := NewOpenDisputeUseCase(f.disputes, f.worksites, f.escrows, &fakeNotifier{})
	d, err := open.Execute(context.Background(), OpenDisputeInput{
		JobID:       f.jobID,
		ReporterID:  f.client,
		Type:        entity.DisputeTypeQuality,
		Description: "the finish is unacceptable",
	})
	require.NoError(t, err)

	out, err := uc.Execute(context.Background(), StartMediationInput{DisputeID: d.ID})
	require.NoError(t, err)
	require.NotNil(t, out.Mediation)
	assert.Equal(t, mediator.ID, out.Mediation.MediatorID)
	assert.Equal(t, valueobject.DisputeStatusInMediation, out.Status)
}

func TestEscalate_RejectsIneligibleOrPartyArbitrator(t *testing.T) {
	f := newDisputeFixture(t)
	now := time.Now().UTC()
	d, err := entity.OpenDispute(f.jobID, f.client, f.artisan, entity.DisputeTypeQuality,
		"the finish is unacceptable", nil, nil, now)
	require.NoError(t, err)
	mediatorID := uuid.New()
	require.NoError(t, d.StartMediation(mediatorID, now))
	require.NoError(t, f.disputes.Create(context.Background(), d))

	users := &fakeUserGetter{users: map[uuid.UUID]*models.User{
		f.artisan: {ID: f.artisan, Role: models.RoleZoneReferent, IsActive: true},
	}}
	laborer := &models.User{ID: uuid.New(), Role: models.RoleArtisan, IsActive: true}
	users.users[laborer.ID] = laborer
	uc := NewEscalateDisputeUseCase(f.disputes, users)

	_, err = uc.Execute(context.Background(), EscalateDisputeInput{
		DisputeID:    d.ID,
		ActorID:      f.client,
		ArbitratorID: laborer.ID,
	})
	assert.True(t, apperror.IsValidation(err), "an artisan cannot arbitrate")

	_, err = uc.Execute(context.Background(), EscalateDisputeInput{
		DisputeID:    d.ID,
		ActorID:      f.client,
		ArbitratorID: f.artisan,
	})
	assert.True(t, apperror.IsValidation(err), "a party cannot arbitrate its own dispute")
}

func TestResolveMediation_ResumesWorksiteAndNotifiesBothParties(t *testing.T) {
	f := newDisputeFixture(t)
	now := time.Now().UTC()
	d, err := entity.OpenDispute(f.jobID, f.client, f.artisan, entity.DisputeTypeQuality,
		"the finish is unacceptable", nil, nil, now)
	require.NoError(t, err)
	mediatorID := uuid.New()
	require.NoError(t, d.StartMediation(mediatorID, now))
	require.NoError(t, f.disputes.Create(context.Background(), d))
	require.NoError(t, f.worksites.sites[f.worksite.ID].MarkDisputed())

	notifier := &fakeNotifier{}
	uc := NewResolveMediationUseCase(f.disputes, f.worksites, notifier)

	out, err := uc.Execute(context.Background(), ResolveMediationInput{
		DisputeID: d.ID,
		ActorID:   mediatorID,
		Summary:   "parties agreed on a rework",
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, out.Status)
	assert.Equal(t, []string{models.EventDisputeResolved, models.EventDisputeResolved}, notifier.events)

	w, err := f.worksites.GetByID(context.Background(), f.worksite.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.WorksiteStatusInProgress, w.Status)
}

func TestRenderDecision_PartialRefundSettlesWholeBalance(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	notifier := &fakeNotifier{}
	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, notifier)

	// 100,000 blocked, nothing released. Refund 40,000 to the client; the
	// remaining 60,000 goes to the artisan, capped by what each share can
	// still absorb: 25,000 materials and 35,000 labor.
	out, err := uc.Execute(context.Background(), RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       f.arbitrator,
		Decision:      entity.PartialRefundDecision(valueobject.MustMoney(40000)),
		Justification: "work partially delivered",
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, out.Status)

	assert.Equal(t, int64(25000), f.gw.amounts[service.DisputeReference(d.ID, "materials")])
	assert.Equal(t, int64(35000), f.gw.amounts[service.DisputeReference(d.ID, "labor")])
	assert.Equal(t, int64(40000), f.gw.amounts[service.DisputeReference(d.ID, "refund")])

	account, err := f.escrows.GetByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.True(t, account.RemainingTotal().IsZero())

	w, err := f.worksites.GetByID(context.Background(), f.worksite.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.WorksiteStatusInProgress, w.Status)
}

func TestRenderDecision_PayArtisanFullBalance(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, &fakeNotifier{})

	_, err := uc.Execute(context.Background(), RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       f.arbitrator,
		Decision:      entity.PayArtisanDecision(nil),
		Justification: "work fully delivered",
	})
	require.NoError(t, err)

	assert.Empty(t, f.gw.refunds)
	total := f.gw.amounts[service.DisputeReference(d.ID, "materials")] +
		f.gw.amounts[service.DisputeReference(d.ID, "labor")]
	assert.Equal(t, int64(100000), total)
}

func TestRenderDecision_FreezeMovesNoMoney(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, &fakeNotifier{})

	out, err := uc.Execute(context.Background(), RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       f.arbitrator,
		Decision:      entity.FreezeFundsDecision(),
		Justification: "pending criminal investigation",
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, out.Status)
	assert.Empty(t, f.gw.transfers)
	assert.Empty(t, f.gw.refunds)

	account, err := f.escrows.GetByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), account.RemainingTotal().Amount)

	w, err := f.worksites.GetByID(context.Background(), f.worksite.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.WorksiteStatusDisputed, w.Status, "a freeze keeps the worksite blocked")
}

func TestRenderDecision_OnlyAssignedArbitratorMayRule(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, &fakeNotifier{})

	_, err := uc.Execute(context.Background(), RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       uuid.New(),
		Decision:      entity.PayArtisanDecision(nil),
		Justification: "irrelevant",
	})
	assert.True(t, apperror.IsForbidden(err))
	assert.Empty(t, f.gw.transfers)
}

func TestRenderDecision_RefundClientNamedAmountMovesOnlyThatAmount(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, &fakeNotifier{})

	refund := valueobject.MustMoney(30000)
	_, err := uc.Execute(context.Background(), RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       f.arbitrator,
		Decision:      entity.RefundClientDecision(&refund),
		Justification: "defects on part of the work",
	})
	require.NoError(t, err)

	assert.Empty(t, f.gw.transfers, "nothing goes to the artisan")
	assert.Equal(t, int64(30000), f.gw.amounts[service.DisputeReference(d.ID, "refund")])

	account, err := f.escrows.GetByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70000), account.RemainingTotal().Amount, "the remainder stays in escrow")
}

func TestRenderDecision_PayArtisanNamedAmountMovesOnlyThatAmount(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, &fakeNotifier{})

	payout := valueobject.MustMoney(30000)
	_, err := uc.Execute(context.Background(), RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       f.arbitrator,
		Decision:      entity.PayArtisanDecision(&payout),
		Justification: "work delivered up to the second milestone",
	})
	require.NoError(t, err)

	assert.Empty(t, f.gw.refunds, "nothing goes back to the client")
	assert.Equal(t, int64(10500), f.gw.amounts[service.DisputeReference(d.ID, "materials")])
	assert.Equal(t, int64(19500), f.gw.amounts[service.DisputeReference(d.ID, "labor")])

	account, err := f.escrows.GetByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70000), account.RemainingTotal().Amount, "the remainder stays in escrow")
}

func TestRenderDecision_RerunAfterCrashFinishesSettlement(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	ctx := context.Background()

	// The ruling committed and the materials leg (25,000 of the 60,000
	// payout) applied before the crash; labor and refund never ran.
	decision := entity.PartialRefundDecision(valueobject.MustMoney(40000))
	_, err := d.RenderArbitrationDecision(decision, "work partially delivered", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.disputes.Save(ctx, d))

	account, err := f.escrows.GetByID(ctx, f.account.ID)
	require.NoError(t, err)
	require.NoError(t, account.ReleaseMaterials(valueobject.MustMoney(25000)))
	materialsRef := service.DisputeReference(d.ID, "materials")
	require.NoError(t, f.escrows.SaveWithTransaction(ctx, account, &models.Transaction{
		ID:        uuid.New(),
		EscrowID:  account.ID,
		Type:      models.TransactionTypeReleaseMaterials,
		Amount:    valueobject.MustMoney(25000),
		Reference: materialsRef,
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now().UTC(),
	}))

	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, &fakeNotifier{})
	out, err := uc.Execute(ctx, RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       f.arbitrator,
		Decision:      decision,
		Justification: "work partially delivered",
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, out.Status)

	// The replay derives the plan from the pre-crash balances: the applied
	// materials leg is skipped, labor and refund run with their original
	// amounts.
	assert.NotContains(t, f.gw.transfers, materialsRef)
	assert.Equal(t, int64(35000), f.gw.amounts[service.DisputeReference(d.ID, "labor")])
	assert.Equal(t, int64(40000), f.gw.amounts[service.DisputeReference(d.ID, "refund")])

	settled, err := f.escrows.GetByID(ctx, f.account.ID)
	require.NoError(t, err)
	assert.True(t, settled.RemainingTotal().IsZero())
}

func TestRenderDecision_GatewayFailureThenRetrySettlesOnce(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.arbitrated(t)
	uc := NewRenderDecisionUseCase(f.disputes, f.worksites, f.escrows, f.txs, f.gw, &fakeNotifier{})

	input := RenderDecisionInput{
		DisputeID:     d.ID,
		ActorID:       f.arbitrator,
		Decision:      entity.PayArtisanDecision(nil),
		Justification: "work fully delivered",
	}

	f.gw.fail = true
	_, err := uc.Execute(context.Background(), input)
	require.Error(t, err)

	stored, err := f.disputes.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, stored.Status, "the ruling outlives the failed settlement")

	f.gw.fail = false
	_, err = uc.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Len(t, f.gw.transfers, 2)
	total := f.gw.amounts[service.DisputeReference(d.ID, "materials")] +
		f.gw.amounts[service.DisputeReference(d.ID, "labor")]
	assert.Equal(t, int64(100000), total)

	account, err := f.escrows.GetByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.True(t, account.RemainingTotal().IsZero())
}

func TestAddCommunication_AppendsToActiveMediationOnly(t *testing.T) {
	f := newDisputeFixture(t)
	now := time.Now().UTC()
	d, err := entity.OpenDispute(f.jobID, f.client, f.artisan, entity.DisputeTypeQuality,
		"the finish is unacceptable", nil, nil, now)
	require.NoError(t, err)
	require.NoError(t, f.disputes.Create(context.Background(), d))

	uc := NewAddCommunicationUseCase(f.disputes)
	_, err = uc.Execute(context.Background(), AddCommunicationInput{
		DisputeID: d.ID,
		AuthorID:  f.client,
		Message:   "here are more photos",
	})
	assert.True(t, apperror.IsWrongState(err), "no mediation is running yet")

	require.NoError(t, d.StartMediation(uuid.New(), now))
	require.NoError(t, f.disputes.Save(context.Background(), d))

	out, err := uc.Execute(context.Background(), AddCommunicationInput{
		DisputeID: d.ID,
		AuthorID:  f.client,
		Message:   "here are more photos",
	})
	require.NoError(t, err)
	require.Len(t, out.Mediation.Communications, 1)
	assert.Equal(t, "here are more photos", out.Mediation.Communications[0].Message)
}

func TestCloseDispute_OnlyAfterResolution(t *testing.T) {
	f := newDisputeFixture(t)
	now := time.Now().UTC()
	d, err := entity.OpenDispute(f.jobID, f.client, f.artisan, entity.DisputeTypeQuality,
		"the finish is unacceptable", nil, nil, now)
	require.NoError(t, err)
	require.NoError(t, f.disputes.Create(context.Background(), d))

	uc := NewCloseDisputeUseCase(f.disputes)
	_, err = uc.Execute(context.Background(), CloseDisputeInput{DisputeID: d.ID})
	assert.True(t, apperror.IsWrongState(err))

	mediatorID := uuid.New()
	require.NoError(t, d.StartMediation(mediatorID, now))
	require.NoError(t, d.ResolveFromMediation("settled amicably", now))
	require.NoError(t, f.disputes.Save(context.Background(), d))

	out, err := uc.Execute(context.Background(), CloseDisputeInput{DisputeID: d.ID})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusClosed, out.Status)
}
