// Package reports holds the in-memory sighting report collection. Reports do
// not survive a restart beyond what seed data provides.
package reports

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("report not found")
	ErrInvalidInput = errors.New("invalid report input")
	ErrDuplicateID  = errors.New("duplicate report id")
)

type Repository struct {
	nowFunc func() time.Time

	mu    sync.RWMutex
	order []string
	byID  map[string]Report
}

func NewRepository() *Repository {
	return &Repository{
		nowFunc: time.Now,
		byID:    make(map[string]Report),
	}
}

// Seed inserts fully formed reports, keeping their ids, statuses and timestamps.
func (r *Repository) Seed(items ...Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			return fmt.Errorf("%w: seed report without id", ErrInvalidInput)
		}
		if _, ok := r.byID[it.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, it.ID)
		}
		if it.VerificationStatus == "" {
			it.VerificationStatus = StatusPending
		}
		if !it.VerificationStatus.Valid() {
			return fmt.Errorf("%w: report %s has status %q", ErrInvalidInput, it.ID, it.VerificationStatus)
		}
		r.order = append(r.order, it.ID)
		r.byID[it.ID] = it.Clone()
	}
	return nil
}

// Submit records a new sighting. Any verification fields on in are ignored.
func (r *Repository) Submit(in Report) (Report, error) {
	threat, confidence, err := validateSubmission(in)
	if err != nil {
		return Report{}, err
	}

	rep := in.Clone()
	rep.ThreatAssessment = threat
	rep.ConfidenceLevel = confidence
	rep.ID = uuid.NewString()
	rep.SpeciesID = strings.TrimSpace(rep.SpeciesID)
	rep.ReporterName = strings.TrimSpace(rep.ReporterName)
	rep.VerificationStatus = StatusPending
	rep.VerifiedBy = ""
	rep.VerificationDate = nil
	rep.VerificationNotes = ""
	rep.CreatedAt = r.nowFunc().UTC()

	r.mu.Lock()
	r.order = append(r.order, rep.ID)
	r.byID[rep.ID] = rep.Clone()
	r.mu.Unlock()

	return rep, nil
}

// List returns matching reports in insertion order.
func (r *Repository) List(f Filter) []Report {
	now := r.nowFunc()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Report, 0, len(r.order))
	for _, id := range r.order {
		rep := r.byID[id]
		if !f.Match(rep, now) {
			continue
		}
		out = append(out, rep.Clone())
	}
	return out
}

func (r *Repository) GetByID(id string) (Report, error) {
	r.mu.RLock()
	rep, ok := r.byID[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok {
		return Report{}, ErrNotFound
	}
	return rep.Clone(), nil
}

// ApplyVerification is the only writer of the verification fields. A report
// that already holds a terminal status may be re-verified.
func (r *Repository) ApplyVerification(id, verifier string, status Status, notes string) (Report, error) {
	if !status.Valid() {
		return Report{}, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rep, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Report{}, ErrNotFound
	}
	now := r.nowFunc().UTC()
	rep.VerificationStatus = status
	rep.VerifiedBy = verifier
	rep.VerificationDate = &now
	rep.VerificationNotes = notes
	r.byID[rep.ID] = rep
	return rep.Clone(), nil
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// validateSubmission returns the canonical threat and confidence levels.
func validateSubmission(in Report) (ThreatLevel, Confidence, error) {
	if strings.TrimSpace(in.SpeciesID) == "" {
		return "", "", fmt.Errorf("%w: species_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.ReporterName) == "" {
		return "", "", fmt.Errorf("%w: reporter_name is required", ErrInvalidInput)
	}
	if in.Coordinates != nil && !in.Coordinates.Valid() {
		return "", "", fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if in.Coordinates == nil && strings.TrimSpace(in.LocationDescription) == "" {
		return "", "", fmt.Errorf("%w: coordinates or location_description is required", ErrInvalidInput)
	}
	threat, err := ParseThreatLevel(string(in.ThreatAssessment))
	if err != nil {
		return "", "", err
	}
	confidence, err := ParseConfidence(string(in.ConfidenceLevel))
	if err != nil {
		return "", "", err
	}
	return threat, confidence, nil
}
