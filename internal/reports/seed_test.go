package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
reports:
  - id: r-100
    species_id: sp-kudzu
    lat: 35.05
    lon: -85.31
    location_description: Tennessee Riverwalk
    reporter_name: Maria Lopez
    reporter_type: Citizen
    population_size: Large (50+)
    threat_assessment: high
    confidence_level: medium
    created_days_ago: 3
    satellite:
      mission: Landsat 8
      product: OLI NDVI
      acquired_at: 2026-05-01T10:00:00Z
      ndvi: 0.71
      cloud_cover_pct: 12.5
  - id: r-101
    species_id: sp-zebra
    location_description: Lake marina
    reporter_name: Dock Patrol
    threat_assessment: Critical
    confidence_level: High
    verification_status: Verified
    verified_by: Dr. Chen
`

func TestParseSeed(t *testing.T) {
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	items, err := ParseSeed([]byte(seedYAML), now)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	require.NotNil(t, first.Coordinates)
	assert.InDelta(t, 35.05, first.Coordinates.Lat, 1e-9)
	assert.Equal(t, ThreatHigh, first.ThreatAssessment)
	assert.Equal(t, StatusPending, first.VerificationStatus)
	assert.True(t, first.CreatedAt.Equal(now.AddDate(0, 0, -3)))
	require.NotNil(t, first.Satellite)
	assert.Equal(t, "Landsat 8", first.Satellite.Mission)
	assert.InDelta(t, 0.71, first.Satellite.NDVI, 1e-9)

	second := items[1]
	assert.Nil(t, second.Coordinates)
	assert.Equal(t, StatusVerified, second.VerificationStatus)
	require.NotNil(t, second.VerificationDate)
}

func TestParseSeedRejectsHalfCoordinates(t *testing.T) {
	doc := "reports:\n  - id: r1\n    species_id: s\n    lat: 1.0\n    threat_assessment: low\n    confidence_level: low\n"
	_, err := ParseSeed([]byte(doc), time.Now())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSummarize(t *testing.T) {
	st := Summarize([]Report{
		{SpeciesID: "a", VerificationStatus: StatusVerified, ThreatAssessment: ThreatHigh},
		{SpeciesID: "a", VerificationStatus: StatusPending, ThreatAssessment: ThreatHigh},
		{SpeciesID: "b", VerificationStatus: StatusRejected, ThreatAssessment: ThreatLow},
		{SpeciesID: "c", VerificationStatus: StatusVerified},
	})
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.ByStatus[StatusVerified])
	assert.Equal(t, 0, st.ByStatus[StatusNeedsReview])
	assert.Equal(t, 2, st.ByThreat[ThreatHigh])
	assert.Equal(t, 3, st.Species)
	assert.InDelta(t, 0.5, st.VerifiedRate, 1e-9)

	empty := Summarize(nil)
	assert.Zero(t, empty.VerifiedRate)
}
