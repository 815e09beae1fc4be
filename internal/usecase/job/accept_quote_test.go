package job

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
	"github.com/baticonnect/artisan-backend/internal/usecase/escrow"
)

type fakeJobRepo struct {
	jobs   map[uuid.UUID]*models.Job
	quotes map[uuid.UUID]*models.Quote
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*models.Job), quotes: make(map[uuid.UUID]*models.Quote)}
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, apperror.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeNotFound, "quote not found")
	}
	cp := *q
	return &cp, nil
}

func (r *fakeJobRepo) AcceptQuote(ctx context.Context, job *models.Job, quote *models.Quote) error {
	jc, qc := *job, *quote
	r.jobs[job.ID] = &jc
	r.quotes[quote.ID] = &qc
	return nil
}

type fakeWorksiteRepo struct {
	sites map[uuid.UUID]*entity.Worksite
}

func newFakeWorksiteRepo() *fakeWorksiteRepo {
	return &fakeWorksiteRepo{sites: make(map[uuid.UUID]*entity.Worksite)}
}

func (r *fakeWorksiteRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Worksite, error) {
	w, ok := r.sites[id]
	if !ok {
		return nil, apperror.ErrWorksiteNotFound
	}
	return w, nil
}

func (r *fakeWorksiteRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Worksite, error) {
	for _, w := range r.sites {
		if w.JobID == jobID {
			return w, nil
		}
	}
	return nil, apperror.ErrWorksiteNotFound
}

func (r *fakeWorksiteRepo) Create(ctx context.Context, w *entity.Worksite) error {
	r.sites[w.ID] = w
	return nil
}

func (r *fakeWorksiteRepo) Save(ctx context.Context, w *entity.Worksite) error {
	r.sites[w.ID] = w
	return nil
}

func (r *fakeWorksiteRepo) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Worksite, error) {
	return nil, nil
}

// fakeOpener stands in for the escrow use case and records what it was
// asked to block.
type fakeOpener struct {
	inputs []escrow.OpenEscrowInput
	fail   bool
}

func (o *fakeOpener) Execute(ctx context.Context, input escrow.OpenEscrowInput) (*entity.EscrowAccount, error) {
	o.inputs = append(o.inputs, input)
	if o.fail {
		return nil, apperror.New(apperror.ErrCodeGateway, "provider unavailable")
	}
	return entity.OpenEscrow(input.JobID, input.PayerID, input.PayeeID, input.Total)
}

type fakeNotifier struct {
	events []string
	users  []uuid.UUID
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, event string, payload any) {
	n.events = append(n.events, event)
	n.users = append(n.users, userID)
}

type acceptFixture struct {
	jobs     *fakeJobRepo
	sites    *fakeWorksiteRepo
	opener   *fakeOpener
	notifier *fakeNotifier
	uc       *AcceptQuoteUseCase
	job      *models.Job
	quote    *models.Quote
}

func newAcceptFixture(t *testing.T) *acceptFixture {
	t.Helper()
	jobs := newFakeJobRepo()
	sites := newFakeWorksiteRepo()
	opener := &fakeOpener{}
	notifier := &fakeNotifier{}

	j := &models.Job{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Title:    "retile the bathroom",
		Status:   models.JobStatusQuoted,
	}
	q := &models.Quote{
		ID:        uuid.New(),
		JobID:     j.ID,
		ArtisanID: uuid.New(),
		Amount:    valueobject.MustMoney(100000),
		Status:    models.QuoteStatusPending,
	}
	jobs.jobs[j.ID] = j
	jobs.quotes[q.ID] = q

	return &acceptFixture{
		jobs:     jobs,
		sites:    sites,
		opener:   opener,
		notifier: notifier,
		uc:       NewAcceptQuoteUseCase(jobs, sites, opener, notifier),
		job:      j,
		quote:    q,
	}
}

func TestAcceptQuote_BlocksFundsAndCreatesWorksite(t *testing.T) {
	f := newAcceptFixture(t)

	out, err := f.uc.Execute(context.Background(), AcceptQuoteInput{
		JobID:    f.job.ID,
		QuoteID:  f.quote.ID,
		ClientID: f.job.ClientID,
	})
	require.NoError(t, err)

	require.Len(t, f.opener.inputs, 1)
	assert.Equal(t, f.job.ClientID, f.opener.inputs[0].PayerID)
	assert.Equal(t, f.quote.ArtisanID, f.opener.inputs[0].PayeeID)
	assert.Equal(t, int64(100000), f.opener.inputs[0].Total.Amount)

	assert.Equal(t, models.JobStatusInProgress, out.Job.Status)
	require.NotNil(t, out.Job.ArtisanID)
	assert.Equal(t, f.quote.ArtisanID, *out.Job.ArtisanID)
	require.NotNil(t, out.Job.QuoteAmount)
	assert.Equal(t, int64(100000), out.Job.QuoteAmount.Amount)

	stored := f.jobs.quotes[f.quote.ID]
	assert.Equal(t, models.QuoteStatusAccepted, stored.Status)

	w, err := f.sites.GetByJobID(context.Background(), f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, out.Worksite.ID)

	assert.Equal(t, []string{models.EventQuoteAccepted}, f.notifier.events)
	assert.Equal(t, []uuid.UUID{f.quote.ArtisanID}, f.notifier.users)
}

func TestAcceptQuote_OnlyTheClientMayAccept(t *testing.T) {
	f := newAcceptFixture(t)

	_, err := f.uc.Execute(context.Background(), AcceptQuoteInput{
		JobID:    f.job.ID,
		QuoteID:  f.quote.ID,
		ClientID: f.quote.ArtisanID,
	})
	assert.True(t, apperror.IsForbidden(err))
	assert.Empty(t, f.opener.inputs)
}

func TestAcceptQuote_QuoteOfAnotherJobRejected(t *testing.T) {
	f := newAcceptFixture(t)
	stray := &models.Quote{
		ID:        uuid.New(),
		JobID:     uuid.New(),
		ArtisanID: uuid.New(),
		Amount:    valueobject.MustMoney(5000),
		Status:    models.QuoteStatusPending,
	}
	f.jobs.quotes[stray.ID] = stray

	_, err := f.uc.Execute(context.Background(), AcceptQuoteInput{
		JobID:    f.job.ID,
		QuoteID:  stray.ID,
		ClientID: f.job.ClientID,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestAcceptQuote_NonPendingQuoteRejected(t *testing.T) {
	f := newAcceptFixture(t)
	f.quote.Status = models.QuoteStatusRejected

	_, err := f.uc.Execute(context.Background(), AcceptQuoteInput{
		JobID:    f.job.ID,
		QuoteID:  f.quote.ID,
		ClientID: f.job.ClientID,
	})
	assert.True(t, apperror.IsWrongState(err))
	assert.Empty(t, f.opener.inputs)
}

func TestAcceptQuote_InProgressJobRejected(t *testing.T) {
	f := newAcceptFixture(t)
	f.job.Status = models.JobStatusInProgress

	_, err := f.uc.Execute(context.Background(), AcceptQuoteInput{
		JobID:    f.job.ID,
		QuoteID:  f.quote.ID,
		ClientID: f.job.ClientID,
	})
	assert.True(t, apperror.IsWrongState(err))
}

func TestAcceptQuote_EscrowFailureLeavesJobUntouched(t *testing.T) {
	f := newAcceptFixture(t)
	f.opener.fail = true

	_, err := f.uc.Execute(context.Background(), AcceptQuoteInput{
		JobID:    f.job.ID,
		QuoteID:  f.quote.ID,
		ClientID: f.job.ClientID,
	})
	require.Error(t, err)

	assert.Equal(t, models.JobStatusQuoted, f.jobs.jobs[f.job.ID].Status)
	assert.Equal(t, models.QuoteStatusPending, f.jobs.quotes[f.quote.ID].Status)
	assert.Empty(t, f.sites.sites)
	assert.Empty(t, f.notifier.events)
}
