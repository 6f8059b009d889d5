package reports

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Reports []seedReport `yaml:"reports"`
}

type seedReport struct {
	ID                  string                `yaml:"id"`
	SpeciesID           string                `yaml:"species_id"`
	Lat                 *float64              `yaml:"lat"`
	Lon                 *float64              `yaml:"lon"`
	LocationDescription string                `yaml:"location_description"`
	ReporterName        string                `yaml:"reporter_name"`
	ReporterType        string                `yaml:"reporter_type"`
	PopulationSize      string                `yaml:"population_size"`
	ThreatAssessment    string                `yaml:"threat_assessment"`
	ConfidenceLevel     string                `yaml:"confidence_level"`
	Notes               string                `yaml:"notes"`
	VerificationStatus  string                `yaml:"verification_status"`
	VerifiedBy          string                `yaml:"verified_by"`
	VerificationNotes   string                `yaml:"verification_notes"`
	CreatedDaysAgo      int                   `yaml:"created_days_ago"`
	Satellite           *SatelliteObservation `yaml:"satellite"`
}

// ParseSeed decodes mock reports. Creation times are stored as offsets from
// now so date-range views stay populated.
func ParseSeed(data []byte, now time.Time) ([]Report, error) {
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decode report seed: %w", err)
	}

	out := make([]Report, 0, len(sf.Reports))
	for _, s := range sf.Reports {
		rep := Report{
			ID:                  s.ID,
			SpeciesID:           s.SpeciesID,
			LocationDescription: s.LocationDescription,
			ReporterName:        s.ReporterName,
			ReporterType:        s.ReporterType,
			PopulationSize:      s.PopulationSize,
			Notes:               s.Notes,
			VerifiedBy:          s.VerifiedBy,
			VerificationNotes:   s.VerificationNotes,
			Satellite:           s.Satellite,
			CreatedAt:           now.AddDate(0, 0, -s.CreatedDaysAgo).UTC(),
		}
		switch {
		case s.Lat != nil && s.Lon != nil:
			rep.Coordinates = &Coordinates{Lat: *s.Lat, Lon: *s.Lon}
		case s.Lat != nil || s.Lon != nil:
			return nil, fmt.Errorf("%w: report %s has only one coordinate", ErrInvalidInput, s.ID)
		}

		var err error
		if rep.ThreatAssessment, err = ParseThreatLevel(s.ThreatAssessment); err != nil {
			return nil, fmt.Errorf("report %s: %w", s.ID, err)
		}
		if rep.ConfidenceLevel, err = ParseConfidence(s.ConfidenceLevel); err != nil {
			return nil, fmt.Errorf("report %s: %w", s.ID, err)
		}
		rep.VerificationStatus = StatusPending
		if s.VerificationStatus != "" {
			if rep.VerificationStatus, err = ParseStatus(s.VerificationStatus); err != nil {
				return nil, fmt.Errorf("report %s: %w", s.ID, err)
			}
		}
		if rep.VerifiedBy != "" {
			d := rep.CreatedAt.Add(24 * time.Hour)
			rep.VerificationDate = &d
		}
		out = append(out, rep)
	}
	return out, nil
}
