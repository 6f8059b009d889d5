package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"invasivewatch/dashboard/internal/audit"
	"invasivewatch/dashboard/internal/auth"
	"invasivewatch/dashboard/internal/export"
	"invasivewatch/dashboard/internal/reports"
	"invasivewatch/dashboard/internal/verification"
)

type reportView struct {
	reports.Report
	SpeciesName string `json:"species_name"`
}

type speciesView struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	CommonName     string `json:"common_name,omitempty"`
	ScientificName string `json:"scientific_name"`
	Category       string `json:"category,omitempty"`
}

func registerSpeciesHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/v1/species", func(w http.ResponseWriter, r *http.Request) {
		if deps.Species == nil {
			writeError(w, http.StatusServiceUnavailable, "species catalog unavailable")
			return
		}
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		items := deps.Species.List(limit)
		out := make([]speciesView, 0, len(items))
		for _, s := range items {
			out = append(out, speciesView{
				ID:             s.ID,
				DisplayName:    s.DisplayName(),
				CommonName:     s.CommonName,
				ScientificName: s.ScientificName,
				Category:       s.Category,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"species": out})
	}).Methods(http.MethodGet)
}

func registerReportHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/v1/reports", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := requireSession(w, r, deps); !ok {
			return
		}
		if deps.Reports == nil {
			writeError(w, http.StatusServiceUnavailable, "report repository unavailable")
			return
		}
		f, err := parseFilter(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := deps.Reports.List(f)
		writeJSON(w, http.StatusOK, map[string]any{
			"reports": toViews(deps, items),
			"count":   len(items),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/reports", func(w http.ResponseWriter, r *http.Request) {
		client, session, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Reports == nil {
			writeError(w, http.StatusServiceUnavailable, "report repository unavailable")
			return
		}

		var req struct {
			SpeciesID           string   `json:"species_id"`
			Lat                 *float64 `json:"lat"`
			Lon                 *float64 `json:"lon"`
			LocationDescription string   `json:"location_description"`
			ReporterType        string   `json:"reporter_type"`
			PopulationSize      string   `json:"population_size"`
			ThreatAssessment    string   `json:"threat_assessment"`
			ConfidenceLevel     string   `json:"confidence_level"`
			Notes               string   `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if (req.Lat == nil) != (req.Lon == nil) {
			writeError(w, http.StatusBadRequest, "lat and lon must be given together")
			return
		}
		in := reports.Report{
			SpeciesID:           req.SpeciesID,
			LocationDescription: strings.TrimSpace(req.LocationDescription),
			ReporterName:        session.User.FullName,
			ReporterType:        req.ReporterType,
			PopulationSize:      req.PopulationSize,
			Notes:               strings.TrimSpace(req.Notes),
		}
		if in.ReporterType == "" {
			in.ReporterType = string(session.User.Role)
		}
		if req.Lat != nil {
			in.Coordinates = &reports.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
		}
		var err error
		if in.ThreatAssessment, err = reports.ParseThreatLevel(req.ThreatAssessment); err != nil {
			writeDomainError(w, err)
			return
		}
		if in.ConfidenceLevel, err = reports.ParseConfidence(req.ConfidenceLevel); err != nil {
			writeDomainError(w, err)
			return
		}

		created, err := deps.Reports.Submit(in)
		if err != nil {
			auditReq(deps.Audit, r, session.User, audit.ActionReportSubmit, "", "failed", err.Error())
			writeDomainError(w, err)
			return
		}
		auditReq(deps.Audit, r, session.User, audit.ActionReportSubmit, created.ID, "success", "")
		client.Notices.NotifySuccess("Report " + created.ID + " submitted.")
		if deps.Dashboard != nil {
			deps.Dashboard.Refresh()
		}
		writeJSON(w, http.StatusCreated, toView(deps, created))
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := requireSession(w, r, deps); !ok {
			return
		}
		if deps.Reports == nil {
			writeError(w, http.StatusServiceUnavailable, "report repository unavailable")
			return
		}
		rep, err := deps.Reports.GetByID(mux.Vars(r)["id"])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toView(deps, rep))
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/reports/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		_, session, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Reports == nil {
			writeError(w, http.StatusServiceUnavailable, "report repository unavailable")
			return
		}
		id := mux.Vars(r)["id"]
		rep, err := deps.Reports.GetByID(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeExport(w, r, deps, session.User, export.Single(rep, speciesNames(deps), time.Now()), true)
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/export", func(w http.ResponseWriter, r *http.Request) {
		_, session, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if deps.Reports == nil {
			writeError(w, http.StatusServiceUnavailable, "report repository unavailable")
			return
		}
		f, err := parseFilter(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeExport(w, r, deps, session.User, export.Collection(deps.Reports.List(f), speciesNames(deps), time.Now()), false)
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := requireSession(w, r, deps); !ok {
			return
		}
		if deps.Dashboard == nil {
			writeError(w, http.StatusServiceUnavailable, "dashboard unavailable")
			return
		}
		stats, at := deps.Dashboard.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":        stats,
			"refreshed_at": at.Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

	// Management view: same listing, verifier roles only.
	r.HandleFunc("/v1/manage/reports", func(w http.ResponseWriter, r *http.Request) {
		_, session, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		user := session.User
		if !auth.CanVerify(&user) {
			writeDomainError(w, auth.ErrPermissionDenied)
			return
		}
		if deps.Reports == nil {
			writeError(w, http.StatusServiceUnavailable, "report repository unavailable")
			return
		}
		f, err := parseFilter(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := deps.Reports.List(f)
		writeJSON(w, http.StatusOK, map[string]any{
			"reports": toViews(deps, items),
			"stats":   reports.Summarize(items),
		})
	}).Methods(http.MethodGet)
}

func registerReviewHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/v1/reports/{id}/review", func(w http.ResponseWriter, r *http.Request) {
		client, session, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		user := session.User
		id := mux.Vars(r)["id"]
		review, err := client.Workflow.Open(r.Context(), id, &user)
		if err != nil {
			if errors.Is(err, auth.ErrPermissionDenied) {
				auditReq(deps.Audit, r, user, audit.ActionReportVerify, id, "denied", "")
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reviewResponse(deps, client.Workflow.State(), &review))
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/review", func(w http.ResponseWriter, r *http.Request) {
		client, _, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		state := client.Workflow.State()
		if review, open := client.Workflow.Current(); open {
			writeJSON(w, http.StatusOK, reviewResponse(deps, state, &review))
			return
		}
		writeJSON(w, http.StatusOK, reviewResponse(deps, state, nil))
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/review/submit", func(w http.ResponseWriter, r *http.Request) {
		client, _, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		var req struct {
			Decision string `json:"decision"`
			Notes    string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := client.Workflow.Submit(r.Context(), req.Decision, req.Notes)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state":  client.Workflow.State(),
			"report": toView(deps, updated),
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/review/cancel", func(w http.ResponseWriter, r *http.Request) {
		client, _, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		if err := client.Workflow.Cancel(); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reviewResponse(deps, client.Workflow.State(), nil))
	}).Methods(http.MethodPost)
}

func reviewResponse(deps Deps, state verification.State, review *verification.Review) map[string]any {
	out := map[string]any{"state": state}
	if review != nil {
		out["report"] = toView(deps, review.Report)
		out["verifier"] = review.Verifier.FullName
		out["opened_at"] = review.OpenedAt.Format(time.RFC3339)
	}
	return out
}

func writeExport(w http.ResponseWriter, r *http.Request, deps Deps, user auth.User, doc export.Document, single bool) {
	target := ""
	if single && len(doc.Reports) == 1 {
		target = doc.Reports[0].ID
	}
	auditReq(deps.Audit, r, user, audit.ActionReportExport, target, "success", strconv.Itoa(len(doc.Reports))+" reports")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(doc, single)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, doc); err != nil {
		deps.Logger.WarnContext(r.Context(), "write export", "error", err)
	}
}

func parseFilter(r *http.Request) (reports.Filter, error) {
	q := r.URL.Query()
	f := reports.Filter{Query: q.Get("q")}
	var err error
	if raw := q.Get("status"); raw != "" {
		if f.Status, err = reports.ParseStatus(raw); err != nil {
			return reports.Filter{}, err
		}
	}
	if raw := q.Get("threat"); raw != "" {
		if f.Threat, err = reports.ParseThreatLevel(raw); err != nil {
			return reports.Filter{}, err
		}
	}
	if f.Range, err = reports.ParseDateRange(q.Get("range")); err != nil {
		return reports.Filter{}, err
	}
	return f, nil
}

func toView(deps Deps, r reports.Report) reportView {
	name := r.SpeciesID
	if deps.Species != nil {
		name = deps.Species.DisplayName(r.SpeciesID)
	}
	return reportView{Report: r, SpeciesName: name}
}

func toViews(deps Deps, items []reports.Report) []reportView {
	out := make([]reportView, 0, len(items))
	for _, r := range items {
		out = append(out, toView(deps, r))
	}
	return out
}

func speciesNames(deps Deps) map[string]string {
	if deps.Species == nil {
		return nil
	}
	return deps.Species.Names()
}
