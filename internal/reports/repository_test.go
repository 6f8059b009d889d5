package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository()
	repo.nowFunc = func() time.Time { return testNow }
	require.NoError(t, repo.Seed(
		Report{ID: "r1", SpeciesID: "sp-kudzu", ReporterName: "Maria Lopez", LocationDescription: "Riverside trail",
			ThreatAssessment: ThreatHigh, ConfidenceLevel: ConfidenceHigh, Notes: "Dense mat over fence",
			VerificationStatus: StatusPending, CreatedAt: testNow.Add(-2 * time.Hour)},
		Report{ID: "r2", SpeciesID: "sp-zebra", ReporterName: "Dock Patrol", LocationDescription: "Marina slip 4",
			ThreatAssessment: ThreatCritical, ConfidenceLevel: ConfidenceMedium,
			VerificationStatus: StatusVerified, CreatedAt: testNow.AddDate(0, 0, -5)},
		Report{ID: "r3", SpeciesID: "sp-knotweed", ReporterName: "J. Park", LocationDescription: "Old mill lot",
			ThreatAssessment: ThreatMedium, ConfidenceLevel: ConfidenceLow, Notes: "possible KUDZU nearby",
			CreatedAt: testNow.AddDate(0, -2, 0)},
	))
	return repo
}

func TestApplyVerificationThenGet(t *testing.T) {
	repo := newTestRepository(t)

	updated, err := repo.ApplyVerification("r1", "A. Lee", StatusRejected, "misidentified vine")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.VerificationStatus)

	got, err := repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.VerificationStatus)
	assert.Equal(t, "A. Lee", got.VerifiedBy)
	assert.Equal(t, "misidentified vine", got.VerificationNotes)
	require.NotNil(t, got.VerificationDate)
	assert.True(t, got.VerificationDate.Equal(testNow))
}

func TestApplyVerificationMissingLeavesRepositoryUnchanged(t *testing.T) {
	repo := newTestRepository(t)
	before := repo.List(Filter{})

	_, err := repo.ApplyVerification("does-not-exist", "A. Lee", StatusVerified, "x")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, len(before), repo.Len())
	assert.Equal(t, before, repo.List(Filter{}))
}

func TestApplyVerificationRejectsUnknownStatus(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.ApplyVerification("r1", "A. Lee", Status("Maybe"), "")
	require.ErrorIs(t, err, ErrInvalidInput)

	got, err := repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.VerificationStatus)
}

func TestReverifyTerminalReportAllowed(t *testing.T) {
	repo := newTestRepository(t)
	got, err := repo.ApplyVerification("r2", "B. Ortiz", StatusNeedsReview, "second look")
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, got.VerificationStatus)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.GetByID("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnedReportsAreCopies(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.ApplyVerification("r1", "A. Lee", StatusVerified, "")
	require.NoError(t, err)

	got, err := repo.GetByID("r1")
	require.NoError(t, err)
	*got.VerificationDate = time.Time{}
	got.VerifiedBy = "mallory"

	again, err := repo.GetByID("r1")
	require.NoError(t, err)
	assert.Equal(t, "A. Lee", again.VerifiedBy)
	assert.True(t, again.VerificationDate.Equal(testNow))
}

func TestListFilters(t *testing.T) {
	repo := newTestRepository(t)

	ids := func(rs []Report) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(repo.List(Filter{})))
	assert.Equal(t, []string{"r3"}, ids(repo.List(Filter{Query: "kudzu"})), "notes match is case-insensitive")
	assert.Equal(t, []string{"r2"}, ids(repo.List(Filter{Query: "MARINA"})))
	assert.Equal(t, []string{"r3"}, ids(repo.List(Filter{Query: "park"})))
	assert.Equal(t, []string{"r2"}, ids(repo.List(Filter{Query: "r2"})))
	assert.Equal(t, []string{"r2"}, ids(repo.List(Filter{Status: StatusVerified})))
	assert.Equal(t, []string{"r1", "r3"}, ids(repo.List(Filter{Status: StatusPending})))
	assert.Equal(t, []string{"r3"}, ids(repo.List(Filter{Threat: ThreatMedium})))
	assert.Equal(t, []string{"r1"}, ids(repo.List(Filter{Range: RangeToday})))
	assert.Equal(t, []string{"r1", "r2"}, ids(repo.List(Filter{Range: RangeWeek})))
	assert.Equal(t, []string{"r1", "r2"}, ids(repo.List(Filter{Range: RangeMonth})))
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(repo.List(Filter{Range: RangeQuarter})))
	assert.Empty(t, repo.List(Filter{Status: StatusRejected}))
}

func TestDateRangeBounds(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)

	since, ok := RangeToday.Since(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), since)

	since, _ = RangeWeek.Since(now)
	assert.Equal(t, time.Date(2026, 2, 7, 10, 30, 0, 0, time.UTC), since)

	since, _ = RangeMonth.Since(now)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), since)

	// Current month plus the two before it.
	since, _ = RangeQuarter.Since(now)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), since)

	_, ok = RangeAll.Since(now)
	assert.False(t, ok)
}

func TestSubmit(t *testing.T) {
	repo := newTestRepository(t)

	rep, err := repo.Submit(Report{
		SpeciesID:          "sp-kudzu",
		ReporterName:       "  New Reporter ",
		Coordinates:        &Coordinates{Lat: 35.1, Lon: -85.3},
		ThreatAssessment:   ThreatLow,
		ConfidenceLevel:    ConfidenceMedium,
		VerificationStatus: StatusVerified,
		VerifiedBy:         "self",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, StatusPending, rep.VerificationStatus)
	assert.Empty(t, rep.VerifiedBy)
	assert.Equal(t, "New Reporter", rep.ReporterName)
	assert.True(t, rep.CreatedAt.Equal(testNow))
	assert.Equal(t, 4, repo.Len())

	list := repo.List(Filter{})
	assert.Equal(t, rep.ID, list[len(list)-1].ID, "new reports are appended")
}

func TestSubmitNormalizesLevels(t *testing.T) {
	repo := newTestRepository(t)

	rep, err := repo.Submit(Report{
		SpeciesID:           "sp-kudzu",
		ReporterName:        "Lower Case",
		LocationDescription: "creek bank",
		ThreatAssessment:    "high",
		ConfidenceLevel:     "low",
	})
	require.NoError(t, err)
	assert.Equal(t, ThreatHigh, rep.ThreatAssessment)
	assert.Equal(t, ConfidenceLow, rep.ConfidenceLevel)

	stored, err := repo.GetByID(rep.ID)
	require.NoError(t, err)
	assert.Equal(t, ThreatHigh, stored.ThreatAssessment)

	var ids []string
	for _, r := range repo.List(Filter{Threat: ThreatHigh}) {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, rep.ID)

	st := Summarize(repo.List(Filter{}))
	_, odd := st.ByThreat["high"]
	assert.False(t, odd, "no separate lowercase bucket")
}

func TestSubmitValidation(t *testing.T) {
	repo := newTestRepository(t)
	base := Report{SpeciesID: "sp-kudzu", ReporterName: "x", LocationDescription: "park",
		ThreatAssessment: ThreatLow, ConfidenceLevel: ConfidenceLow}

	cases := map[string]func(r *Report){
		"missing species":       func(r *Report) { r.SpeciesID = "" },
		"missing reporter":      func(r *Report) { r.ReporterName = " " },
		"no location":           func(r *Report) { r.LocationDescription = "" },
		"latitude out of range": func(r *Report) { r.Coordinates = &Coordinates{Lat: 91, Lon: 0} },
		"bad threat":            func(r *Report) { r.ThreatAssessment = "Apocalyptic" },
		"bad confidence":        func(r *Report) { r.ConfidenceLevel = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := repo.Submit(in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Equal(t, 3, repo.Len())
}

func TestSeedRejectsDuplicates(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.Seed(Report{ID: "r1"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"Pending":      StatusPending,
		"verified":     StatusVerified,
		"Needs Review": StatusNeedsReview,
		"needs_review": StatusNeedsReview,
		"REJECTED":     StatusRejected,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStatus("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
