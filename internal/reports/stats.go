package reports

// Stats is the dashboard summary of a report set.
type Stats struct {
	Total        int                 `json:"total"`
	ByStatus     map[Status]int      `json:"by_status"`
	ByThreat     map[ThreatLevel]int `json:"by_threat"`
	Species      int                 `json:"species"`
	VerifiedRate float64             `json:"verified_rate"`
}

func Summarize(items []Report) Stats {
	st := Stats{
		Total:    len(items),
		ByStatus: map[Status]int{StatusPending: 0, StatusVerified: 0, StatusNeedsReview: 0, StatusRejected: 0},
		ByThreat: make(map[ThreatLevel]int),
	}
	species := make(map[string]struct{})
	for _, r := range items {
		st.ByStatus[r.VerificationStatus]++
		if r.ThreatAssessment != "" {
			st.ByThreat[r.ThreatAssessment]++
		}
		species[r.SpeciesID] = struct{}{}
	}
	st.Species = len(species)
	if st.Total > 0 {
		st.VerifiedRate = float64(st.ByStatus[StatusVerified]) / float64(st.Total)
	}
	return st
}
