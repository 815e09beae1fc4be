package worksite

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
	"github.com/baticonnect/artisan-backend/internal/usecase/escrow"
)

// fakeWorksiteRepo deep-copies on read so a mutation only lands through
// Save, matching the SQL repository's behavior.
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
	var out []*entity.Worksite
	for _, w := range r.sites {
		for _, m := range w.Milestones {
			if m.Status == valueobject.MilestoneStatusSubmitted &&
				m.AutoValidationDeadline != nil && m.AutoValidationDeadline.Before(now) {
				out = append(out, copyWorksite(w))
				break
			}
		}
	}
	return out, nil
}

type fakeEscrowRepo struct {
	accounts map[uuid.UUID]*entity.EscrowAccount
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
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeEscrowRepo) Save(ctx context.Context, account *entity.EscrowAccount) error {
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeEscrowRepo) SaveWithTransaction(ctx context.Context, account *entity.EscrowAccount, tx *models.Transaction) error {
	r.accounts[account.ID] = account
	return nil
}

type fakeReleaser struct {
	calls []escrow.ReleaseInput
	fail  bool
}

func (f *fakeReleaser) Execute(ctx context.Context, input escrow.ReleaseInput) (*models.Transaction, error) {
	if f.fail {
		return nil, apperror.New(apperror.ErrCodeGateway, "gateway unavailable")
	}
	f.calls = append(f.calls, input)
	return &models.Transaction{
		ID:        uuid.New(),
		Type:      models.TransactionTypeReleaseLabor,
		Amount:    input.Amount,
		Reference: input.Reference,
		Status:    models.TransactionStatusPending,
	}, nil
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, event string, payload any) {
	n.events = append(n.events, event)
}

type worksiteFixture struct {
	repo      *fakeWorksiteRepo
	escrows   *fakeEscrowRepo
	worksite  *entity.Worksite
	milestone *entity.Milestone
	client    uuid.UUID
	artisan   uuid.UUID
}

// newSubmittedFixture builds a worksite with one submitted milestone worth
// 10,000 in labor, backed by a 100,000 escrow.
func newSubmittedFixture(t *testing.T) *worksiteFixture {
	t.Helper()
	client, artisan := uuid.New(), uuid.New()
	jobID := uuid.New()

	account, err := entity.OpenEscrow(jobID, client, artisan, valueobject.MustMoney(100000))
	require.NoError(t, err)
	escrows := &fakeEscrowRepo{accounts: map[uuid.UUID]*entity.EscrowAccount{account.ID: account}}

	w := entity.NewWorksite(jobID, client, artisan)
	m, err := w.AddMilestone("pour the foundation", valueobject.MustMoney(10000), 1)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, m.SubmitProof(entity.ProofOfDelivery{
		PhotoURL:   "https://cdn.example.com/media/proof.jpg",
		Location:   valueobject.GeoPoint{Latitude: 14.6928, Longitude: -17.4467, AccuracyMeters: 10},
		CapturedAt: now.Add(-time.Hour),
	}, now))

	repo := newFakeWorksiteRepo()
	require.NoError(t, repo.Create(context.Background(), w))

	return &worksiteFixture{
		repo:      repo,
		escrows:   escrows,
		worksite:  w,
		milestone: m,
		client:    client,
		artisan:   artisan,
	}
}

func TestAddMilestone_PlannedLaborBoundedByLaborShare(t *testing.T) {
	f := newSubmittedFixture(t) // 10,000 already planned against a 35,000 labor share
	uc := NewAddMilestoneUseCase(f.repo, f.escrows)

	m, err := uc.Execute(context.Background(), AddMilestoneInput{
		WorksiteID:     f.worksite.ID,
		ActorID:        f.client,
		Description:    "raise the walls",
		LaborAmount:    valueobject.MustMoney(25000),
		SequenceNumber: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusPending, m.Status)

	_, err = uc.Execute(context.Background(), AddMilestoneInput{
		WorksiteID:     f.worksite.ID,
		ActorID:        f.client,
		Description:    "fit the roof",
		LaborAmount:    valueobject.MustMoney(1),
		SequenceNumber: 3,
	})
	assert.True(t, apperror.IsInsufficientFunds(err))
}

func TestAddMilestone_OnlyClientMayPlan(t *testing.T) {
	f := newSubmittedFixture(t)
	uc := NewAddMilestoneUseCase(f.repo, f.escrows)

	_, err := uc.Execute(context.Background(), AddMilestoneInput{
		WorksiteID:     f.worksite.ID,
		ActorID:        f.artisan,
		Description:    "raise the walls",
		LaborAmount:    valueobject.MustMoney(1000),
		SequenceNumber: 2,
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestValidateMilestone_ReleasesLaborUnderMilestoneReference(t *testing.T) {
	f := newSubmittedFixture(t)
	releaser := &fakeReleaser{}
	notifier := &fakeNotifier{}
	uc := NewValidateMilestoneUseCase(f.repo, releaser, notifier)

	tx, err := uc.Execute(context.Background(), ValidateMilestoneInput{
		WorksiteID:  f.worksite.ID,
		MilestoneID: f.milestone.ID,
		ActorID:     &f.client,
	})
	require.NoError(t, err)
	require.Len(t, releaser.calls, 1)

	call := releaser.calls[0]
	assert.Equal(t, escrow.ShareLabor, call.Share)
	assert.Equal(t, int64(10000), call.Amount.Amount)
	assert.Equal(t, service.MilestoneReleaseReference(f.milestone.ID), call.Reference)
	assert.Equal(t, call.Reference, tx.Reference)
	assert.Equal(t, []string{models.EventMilestoneValidated}, notifier.events)

	stored, err := f.repo.GetByID(context.Background(), f.worksite.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusValidated, stored.Milestones[0].Status)
	assert.Nil(t, stored.Milestones[0].AutoValidationDeadline)
	assert.False(t, stored.Milestones[0].AutoValidated)
}

func TestValidateMilestone_OnlyClientMayValidate(t *testing.T) {
	f := newSubmittedFixture(t)
	releaser := &fakeReleaser{}
	uc := NewValidateMilestoneUseCase(f.repo, releaser, &fakeNotifier{})

	_, err := uc.Execute(context.Background(), ValidateMilestoneInput{
		WorksiteID:  f.worksite.ID,
		MilestoneID: f.milestone.ID,
		ActorID:     &f.artisan,
	})
	assert.True(t, apperror.IsForbidden(err))
	assert.Empty(t, releaser.calls)
}

func TestValidateMilestone_AutoBeforeDeadlineRejected(t *testing.T) {
	f := newSubmittedFixture(t)
	releaser := &fakeReleaser{}
	uc := NewValidateMilestoneUseCase(f.repo, releaser, &fakeNotifier{})

	_, err := uc.Execute(context.Background(), ValidateMilestoneInput{
		WorksiteID:  f.worksite.ID,
		MilestoneID: f.milestone.ID,
		Auto:        true,
	})
	assert.True(t, apperror.IsWrongState(err))
	assert.Empty(t, releaser.calls)
}

func TestValidateMilestone_ValidationSurvivesReleaseFailure(t *testing.T) {
	f := newSubmittedFixture(t)
	releaser := &fakeReleaser{fail: true}
	uc := NewValidateMilestoneUseCase(f.repo, releaser, &fakeNotifier{})

	_, err := uc.Execute(context.Background(), ValidateMilestoneInput{
		WorksiteID:  f.worksite.ID,
		MilestoneID: f.milestone.ID,
		ActorID:     &f.client,
	})
	require.Error(t, err)

	// The milestone stays validated; the release is retried later under
	// the same reference.
	stored, err := f.repo.GetByID(context.Background(), f.worksite.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusValidated, stored.Milestones[0].Status)
}

func TestContestMilestone_StopsAutoValidationClock(t *testing.T) {
	f := newSubmittedFixture(t)
	notifier := &fakeNotifier{}
	uc := NewContestMilestoneUseCase(f.repo, notifier)

	err := uc.Execute(context.Background(), ContestMilestoneInput{
		WorksiteID:  f.worksite.ID,
		MilestoneID: f.milestone.ID,
		ActorID:     f.client,
		Reason:      "wall is not plumb",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.EventMilestoneContested}, notifier.events)

	stored, err := f.repo.GetByID(context.Background(), f.worksite.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusContested, stored.Milestones[0].Status)
	assert.Nil(t, stored.Milestones[0].AutoValidationDeadline)
}

func TestCompleteWorksite_RequiresEveryMilestoneValidated(t *testing.T) {
	f := newSubmittedFixture(t)
	uc := NewCompleteWorksiteUseCase(f.repo, &fakeNotifier{})

	_, err := uc.Execute(context.Background(), CompleteWorksiteInput{
		WorksiteID: f.worksite.ID,
		ActorID:    f.artisan,
	})
	assert.True(t, apperror.IsWrongState(err))

	// Validate the lone milestone, then completion succeeds.
	validate := NewValidateMilestoneUseCase(f.repo, &fakeReleaser{}, &fakeNotifier{})
	_, err = validate.Execute(context.Background(), ValidateMilestoneInput{
		WorksiteID:  f.worksite.ID,
		MilestoneID: f.milestone.ID,
		ActorID:     &f.client,
	})
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	ucDone := NewCompleteWorksiteUseCase(f.repo, notifier)
	event, err := ucDone.Execute(context.Background(), CompleteWorksiteInput{
		WorksiteID: f.worksite.ID,
		ActorID:    f.artisan,
	})
	require.NoError(t, err)
	assert.Equal(t, f.worksite.JobID, event.JobID)
	assert.Equal(t, []string{models.EventWorksiteCompleted, models.EventWorksiteCompleted}, notifier.events)
}

func TestSubmitProof_OnlyArtisanMaySubmit(t *testing.T) {
	client, artisan := uuid.New(), uuid.New()
	w := entity.NewWorksite(uuid.New(), client, artisan)
	m, err := w.AddMilestone("tile the bathroom", valueobject.MustMoney(5000), 1)
	require.NoError(t, err)

	repo := newFakeWorksiteRepo()
	require.NoError(t, repo.Create(context.Background(), w))
	uc := NewSubmitProofUseCase(repo, &fakeNotifier{})

	proof := entity.ProofOfDelivery{
		PhotoURL:   "https://cdn.example.com/media/proof.jpg",
		Location:   valueobject.GeoPoint{Latitude: 14.6928, Longitude: -17.4467, AccuracyMeters: 10},
		CapturedAt: time.Now().UTC().Add(-time.Minute),
	}

	_, err = uc.Execute(context.Background(), SubmitProofInput{
		WorksiteID:  w.ID,
		MilestoneID: m.ID,
		ActorID:     client,
		Proof:       proof,
	})
	assert.True(t, apperror.IsForbidden(err))

	got, err := uc.Execute(context.Background(), SubmitProofInput{
		WorksiteID:  w.ID,
		MilestoneID: m.ID,
		ActorID:     artisan,
		Proof:       proof,
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusSubmitted, got.Status)
	assert.NotNil(t, got.AutoValidationDeadline)
}
