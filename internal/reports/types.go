package reports

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending     Status = "Pending"
	StatusVerified    Status = "Verified"
	StatusNeedsReview Status = "Needs Review"
	StatusRejected    Status = "Rejected"
)

func ParseStatus(s string) (Status, error) {
	switch normalize(s) {
	case "pending":
		return StatusPending, nil
	case "verified":
		return StatusVerified, nil
	case "needsreview":
		return StatusNeedsReview, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: unknown verification status %q", ErrInvalidInput, s)
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusNeedsReview, StatusRejected:
		return true
	default:
		return false
	}
}

type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "Low"
	ThreatMedium   ThreatLevel = "Medium"
	ThreatHigh     ThreatLevel = "High"
	ThreatCritical ThreatLevel = "Critical"
)

func ParseThreatLevel(s string) (ThreatLevel, error) {
	switch normalize(s) {
	case "low":
		return ThreatLow, nil
	case "medium":
		return ThreatMedium, nil
	case "high":
		return ThreatHigh, nil
	case "critical":
		return ThreatCritical, nil
	default:
		return "", fmt.Errorf("%w: unknown threat level %q", ErrInvalidInput, s)
	}
}

type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

func ParseConfidence(s string) (Confidence, error) {
	switch normalize(s) {
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	default:
		return "", fmt.Errorf("%w: unknown confidence level %q", ErrInvalidInput, s)
	}
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// SatelliteObservation is decorative imagery metadata attached to seed
// reports. Nothing in the verification path reads it.
type SatelliteObservation struct {
	Mission       string    `json:"mission" yaml:"mission"`
	Product       string    `json:"product" yaml:"product"`
	AcquiredAt    time.Time `json:"acquired_at" yaml:"acquired_at"`
	NDVI          float64   `json:"ndvi" yaml:"ndvi"`
	CloudCoverPct float64   `json:"cloud_cover_pct" yaml:"cloud_cover_pct"`
	TileURL       string    `json:"tile_url,omitempty" yaml:"tile_url"`
}

type Report struct {
	ID                  string                `json:"id"`
	SpeciesID           string                `json:"species_id"`
	Coordinates         *Coordinates          `json:"coordinates,omitempty"`
	LocationDescription string                `json:"location_description,omitempty"`
	ReporterName        string                `json:"reporter_name"`
	ReporterType        string                `json:"reporter_type"`
	PopulationSize      string                `json:"population_size,omitempty"`
	ThreatAssessment    ThreatLevel           `json:"threat_assessment"`
	ConfidenceLevel     Confidence            `json:"confidence_level"`
	Notes               string                `json:"notes,omitempty"`
	VerificationStatus  Status                `json:"verification_status"`
	VerifiedBy          string                `json:"verified_by,omitempty"`
	VerificationDate    *time.Time            `json:"verification_date,omitempty"`
	VerificationNotes   string                `json:"verification_notes,omitempty"`
	Satellite           *SatelliteObservation `json:"satellite,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
}

// Clone returns a copy that shares no pointers with r.
func (r Report) Clone() Report {
	out := r
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	if r.VerificationDate != nil {
		d := *r.VerificationDate
		out.VerificationDate = &d
	}
	if r.Satellite != nil {
		s := *r.Satellite
		out.Satellite = &s
	}
	return out
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
