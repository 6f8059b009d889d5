package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"invasivewatch/dashboard/internal/audit"
	"invasivewatch/dashboard/internal/auth"
)

const defaultAuditTail = 100

func registerAdminHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/v1/admin/activity", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireAdmin(w, r, deps)
		if !ok {
			return
		}
		if deps.Activity == nil {
			writeError(w, http.StatusServiceUnavailable, "activity log unavailable")
			return
		}
		entries, err := deps.Activity.Entries()
		if err != nil {
			auditReq(deps.Audit, r, user, audit.ActionActivityView, "", "failed", err.Error())
			writeDomainError(w, err)
			return
		}
		if entries == nil {
			entries = []auth.ActivityEntry{}
		}
		auditReq(deps.Audit, r, user, audit.ActionActivityView, "", "success", "")
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/admin/audit", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r, deps); !ok {
			return
		}
		if deps.Audit == nil {
			writeError(w, http.StatusServiceUnavailable, "audit log unavailable")
			return
		}
		limit := defaultAuditTail
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		events, err := deps.Audit.Tail(limit)
		if err != nil {
			deps.Logger.ErrorContext(r.Context(), "read audit log", "error", err)
			writeError(w, http.StatusInternalServerError, "read audit log failed")
			return
		}
		if events == nil {
			events = []audit.Event{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	}).Methods(http.MethodGet)
}

func requireAdmin(w http.ResponseWriter, r *http.Request, deps Deps) (auth.User, bool) {
	_, session, ok := requireSession(w, r, deps)
	if !ok {
		return auth.User{}, false
	}
	user := session.User
	if !auth.IsAdmin(&user) {
		auditReq(deps.Audit, r, user, r.URL.Path, "", "denied", "")
		writeDomainError(w, auth.ErrPermissionDenied)
		return auth.User{}, false
	}
	return user, true
}
