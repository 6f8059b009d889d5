package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invasivewatch/dashboard/internal/reports"
)

var names = map[string]string{
	"sp-kudzu":  "Kudzu",
	"sp-zebra":  "Zebra Mussel",
	"sp-unused": "Unused",
}

func sample() []reports.Report {
	return []reports.Report{
		{ID: "r1", SpeciesID: "sp-kudzu", VerificationStatus: reports.StatusPending},
		{ID: "r2", SpeciesID: "sp-zebra", VerificationStatus: reports.StatusVerified},
		{ID: "r3", SpeciesID: "sp-kudzu", VerificationStatus: reports.StatusRejected},
		{ID: "r4", SpeciesID: "sp-ghost", VerificationStatus: reports.StatusPending},
	}
}

func TestCollection(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	doc := Collection(sample(), names, now)

	assert.Equal(t, now, doc.ExportedAt)
	require.Len(t, doc.Reports, 4)
	assert.Equal(t, map[string]string{
		"sp-kudzu": "Kudzu",
		"sp-zebra": "Zebra Mussel",
		"sp-ghost": "sp-ghost",
	}, doc.Species)
	assert.Equal(t, "invasive-reports-2026-03-14.json", Filename(doc, false))
}

func TestSingle(t *testing.T) {
	doc := Single(sample()[1], names, time.Now())

	require.Len(t, doc.Reports, 1)
	assert.Equal(t, "r2", doc.Reports[0].ID)
	assert.Equal(t, map[string]string{"sp-zebra": "Zebra Mussel"}, doc.Species)
	assert.Equal(t, "report-r2.json", Filename(doc, true))
}

func TestWriteUsesWireNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Collection(sample()[:1], names, time.Now())))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Contains(t, raw, "exported_at")
	assert.Contains(t, raw, "reports")
	assert.Contains(t, raw, "species")

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, reports.StatusPending, doc.Reports[0].VerificationStatus)
}

func TestEmptyCollection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Collection(nil, names, time.Now())))
	assert.Contains(t, buf.String(), `"reports": []`)
}
