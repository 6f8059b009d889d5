// Package export serializes reports for download. Documents carry an
// exported_at timestamp, the reports, and the species names they refer to.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"invasivewatch/dashboard/internal/reports"
)

type Document struct {
	ExportedAt time.Time         `json:"exported_at"`
	Reports    []reports.Report  `json:"reports"`
	Species    map[string]string `json:"species"`
}

// Collection builds a document for items. Only species referenced by items
// are included in the lookup table.
func Collection(items []reports.Report, names map[string]string, now time.Time) Document {
	doc := Document{
		ExportedAt: now.UTC(),
		Reports:    make([]reports.Report, 0, len(items)),
		Species:    make(map[string]string),
	}
	for _, r := range items {
		doc.Reports = append(doc.Reports, r.Clone())
		if _, ok := doc.Species[r.SpeciesID]; ok {
			continue
		}
		if name, ok := names[r.SpeciesID]; ok {
			doc.Species[r.SpeciesID] = name
		} else {
			doc.Species[r.SpeciesID] = r.SpeciesID
		}
	}
	return doc
}

func Single(r reports.Report, names map[string]string, now time.Time) Document {
	return Collection([]reports.Report{r}, names, now)
}

func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Filename suggests a download name: the report id for single-report
// documents, the export date otherwise.
func Filename(doc Document, single bool) string {
	if single && len(doc.Reports) == 1 {
		return fmt.Sprintf("report-%s.json", doc.Reports[0].ID)
	}
	return fmt.Sprintf("invasive-reports-%s.json", doc.ExportedAt.Format("2006-01-02"))
}
