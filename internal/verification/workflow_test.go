package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invasivewatch/dashboard/internal/audit"
	"invasivewatch/dashboard/internal/auth"
	"invasivewatch/dashboard/internal/notify"
	"invasivewatch/dashboard/internal/reports"
)

var (
	citizen    = &auth.User{ID: "u-cit", FullName: "Sam Citizen", Role: auth.RoleCitizen}
	researcher = &auth.User{ID: "u-lee", FullName: "A. Lee", Role: auth.RoleResearcher}
)

type fakeAudit struct {
	events []audit.Event
}

func (f *fakeAudit) Record(e audit.Event) error {
	f.events = append(f.events, e)
	return nil
}

type fixture struct {
	wf       *Workflow
	repo     *reports.Repository
	notes    *notify.Recorder
	audit    *fakeAudit
	verified []reports.Report
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := reports.NewRepository()
	require.NoError(t, repo.Seed(reports.Report{
		ID: "r1", SpeciesID: "sp-kudzu", ReporterName: "Maria Lopez",
		ThreatAssessment: reports.ThreatHigh, ConfidenceLevel: reports.ConfidenceMedium,
		VerificationStatus: reports.StatusPending, CreatedAt: time.Now(),
	}))

	f := &fixture{repo: repo, notes: notify.NewRecorder(50), audit: &fakeAudit{}}
	wf, err := New(Config{
		Reports:    repo,
		Notifier:   f.notes,
		Audit:      f.audit,
		OnVerified: func(r reports.Report) { f.verified = append(f.verified, r) },
	})
	require.NoError(t, err)
	f.wf = wf
	return f
}

func TestCitizenCannotOpen(t *testing.T) {
	f := newFixture(t)

	_, err := f.wf.Open(context.Background(), "r1", citizen)
	require.ErrorIs(t, err, auth.ErrPermissionDenied)
	assert.Equal(t, StateClosed, f.wf.State())

	msgs := f.notes.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.LevelError, msgs[0].Level)

	_, err = f.wf.Open(context.Background(), "r1", nil)
	require.ErrorIs(t, err, auth.ErrPermissionDenied)
	assert.Equal(t, StateClosed, f.wf.State())
}

func TestResearcherVerifiesReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	review, err := f.wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)
	assert.Equal(t, StateReviewOpen, f.wf.State())
	assert.Equal(t, "r1", review.Report.ID)
	assert.Equal(t, "A. Lee", review.Verifier.FullName)

	updated, err := f.wf.Submit(ctx, "Verified", "confirmed in field")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, f.wf.State())
	assert.Equal(t, reports.StatusVerified, updated.VerificationStatus)

	got, err := f.repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusVerified, got.VerificationStatus)
	assert.Equal(t, "A. Lee", got.VerifiedBy)
	assert.Equal(t, "confirmed in field", got.VerificationNotes)

	msgs := f.notes.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.LevelSuccess, msgs[0].Level)

	require.Len(t, f.verified, 1, "refresh hook runs once")
	require.Len(t, f.audit.events, 1)
	assert.Equal(t, audit.ActionReportVerify, f.audit.events[0].Action)
	assert.Equal(t, "r1", f.audit.events[0].Target)

	_, ok := f.wf.Current()
	assert.False(t, ok)
}

func TestNotesStoredAsEntered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)
	notes := "  confirmed in field\n  second visit pending \n"
	_, err = f.wf.Submit(ctx, "Verified", notes)
	require.NoError(t, err)

	got, err := f.repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, notes, got.VerificationNotes)
}

func TestEmptyDecisionKeepsReviewOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)

	for _, decision := range []string{"", "   ", "Pending", "Maybe"} {
		_, err = f.wf.Submit(ctx, decision, "notes")
		require.ErrorIs(t, err, ErrValidationFailed, decision)
		assert.Equal(t, StateReviewOpen, f.wf.State())
	}

	got, err := f.repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusPending, got.VerificationStatus)
	assert.Empty(t, got.VerifiedBy)
	assert.Empty(t, f.verified)
}

func TestMissingVerifierNameIsValidationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nameless := &auth.User{ID: "u-x", Role: auth.RoleGovernmentOfficial}
	_, err := f.wf.Open(ctx, "r1", nameless)
	require.NoError(t, err)

	_, err = f.wf.Submit(ctx, "Rejected", "")
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, StateReviewOpen, f.wf.State())
}

func TestOpenMissingReportReturnsToClosed(t *testing.T) {
	f := newFixture(t)

	_, err := f.wf.Open(context.Background(), "missing", researcher)
	require.ErrorIs(t, err, reports.ErrNotFound)
	assert.Equal(t, StateClosed, f.wf.State())
	assert.Len(t, f.notes.Drain(), 1)
}

func TestCancelDiscardsInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.wf.Open(context.Background(), "r1", researcher)
	require.NoError(t, err)
	require.NoError(t, f.wf.Cancel())
	assert.Equal(t, StateClosed, f.wf.State())

	_, err = f.wf.Submit(context.Background(), "Verified", "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusPending, got.VerificationStatus)
	assert.NoError(t, f.wf.Cancel(), "cancel on closed workflow is a no-op")
}

func TestOpenWhileReviewOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)
	_, err = f.wf.Open(ctx, "r1", researcher)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateReviewOpen, f.wf.State())
}

func TestSubmitVisibleToNextOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)
	_, err = f.wf.Submit(ctx, "needs review", "blurry photo")
	require.NoError(t, err)

	review, err := f.wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)
	assert.Equal(t, reports.StatusNeedsReview, review.Report.VerificationStatus)
	assert.Equal(t, "blurry photo", review.Report.VerificationNotes)
}

type failingStore struct {
	*reports.Repository
	err error
}

func (s failingStore) ApplyVerification(string, string, reports.Status, string) (reports.Report, error) {
	return reports.Report{}, s.err
}

func TestRepositoryFailureReturnsToReviewOpen(t *testing.T) {
	f := newFixture(t)
	rec := notify.NewRecorder(10)
	wf, err := New(Config{Reports: failingStore{Repository: f.repo, err: errors.New("boom")}, Notifier: rec})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)

	_, err = wf.Submit(ctx, "Verified", "ok")
	require.Error(t, err)
	assert.Equal(t, StateReviewOpen, wf.State())

	msgs := rec.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.LevelError, msgs[0].Level)

	got, err := f.repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusPending, got.VerificationStatus)
}

type blockingStore struct {
	*reports.Repository
	entered chan struct{}
	release chan struct{}
}

func (s blockingStore) ApplyVerification(id, verifier string, status reports.Status, notes string) (reports.Report, error) {
	close(s.entered)
	<-s.release
	return s.Repository.ApplyVerification(id, verifier, status, notes)
}

func TestCancelDuringSubmitIsRejected(t *testing.T) {
	f := newFixture(t)
	store := blockingStore{Repository: f.repo, entered: make(chan struct{}), release: make(chan struct{})}
	wf, err := New(Config{Reports: store})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = wf.Open(ctx, "r1", researcher)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := wf.Submit(ctx, "Rejected", "not invasive")
		done <- err
	}()

	<-store.entered
	assert.Equal(t, StateSubmitting, wf.State())
	require.ErrorIs(t, wf.Cancel(), ErrInvalidTransition)

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, wf.State())

	got, err := f.repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusRejected, got.VerificationStatus)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
