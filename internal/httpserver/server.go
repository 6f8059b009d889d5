package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"invasivewatch/dashboard/internal/audit"
	"invasivewatch/dashboard/internal/auth"
	"invasivewatch/dashboard/internal/config"
	"invasivewatch/dashboard/internal/kvstore"
	"invasivewatch/dashboard/internal/notify"
	"invasivewatch/dashboard/internal/reports"
	"invasivewatch/dashboard/internal/species"
	"invasivewatch/dashboard/internal/verification"
)

type AuthService interface {
	Login(sessions *auth.SessionStore, email, password string) (auth.Session, error)
	Logout(sessions *auth.SessionStore) error
}

type ReportRepository interface {
	List(f reports.Filter) []reports.Report
	GetByID(id string) (reports.Report, error)
	Submit(in reports.Report) (reports.Report, error)
}

type SpeciesCatalog interface {
	List(limit int) []species.Species
	DisplayName(id string) string
	Names() map[string]string
}

type ActivityReader interface {
	Entries() ([]auth.ActivityEntry, error)
}

type AuditLogger interface {
	Record(e audit.Event) error
	Tail(n int) ([]audit.Event, error)
}

type Deps struct {
	Auth      AuthService
	Clients   *Clients
	Reports   ReportRepository
	Species   SpeciesCatalog
	Dashboard *Dashboard
	Activity  ActivityReader
	Audit     AuditLogger
	Logger    *slog.Logger
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	handler := NewHandler(deps)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      loggingMiddleware(deps.Logger, handler),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)

	registerAuthHandlers(r, deps)
	registerSpeciesHandlers(r, deps)
	registerReportHandlers(r, deps)
	registerReviewHandlers(r, deps)
	registerAdminHandlers(r, deps)
	registerNotificationHandlers(r, deps)

	return r
}

func registerAuthHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil || deps.Clients == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		client, err := deps.Clients.Create()
		if err != nil {
			deps.Logger.ErrorContext(r.Context(), "create client", "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}

		persisted := true
		session, err := deps.Auth.Login(client.Sessions, req.Email, req.Password)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrStorageUnavailable):
			// Login goes ahead; the session just lives in this process only.
			persisted = false
			client.setUnsaved(&session)
			client.Notices.NotifyError("Your session could not be saved and will end if the server restarts.")
		case errors.Is(err, auth.ErrInvalidCredentials):
			auditReq(deps.Audit, r, auth.User{Email: req.Email}, "auth.login", "", "failed", "invalid credentials")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		default:
			auditReq(deps.Audit, r, auth.User{Email: req.Email}, "auth.login", "", "failed", err.Error())
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		deps.Clients.Register(client)
		auditReq(deps.Audit, r, session.User, "auth.login", "", "success", "")

		writeJSON(w, http.StatusOK, map[string]any{
			"token":      client.Token,
			"user":       session.User,
			"issued_at":  session.IssuedAt.UTC().Format(time.RFC3339),
			"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
			"persisted":  persisted,
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		_, session, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		user := session.User
		writeJSON(w, http.StatusOK, map[string]any{
			"user":       user,
			"issued_at":  session.IssuedAt.UTC().Format(time.RFC3339),
			"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
			"can_verify": auth.CanVerify(&user),
			"is_admin":   auth.IsAdmin(&user),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil || deps.Clients == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		client, err := deps.Clients.Resolve(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		session, _ := client.Session()

		if err := client.Workflow.Cancel(); err != nil {
			deps.Logger.WarnContext(r.Context(), "cancel review on logout", "error", err)
		}
		client.setUnsaved(nil)
		deps.Clients.Remove(token)
		if err := deps.Auth.Logout(client.Sessions); err != nil {
			auditReq(deps.Audit, r, session.User, "auth.logout", "", "failed", err.Error())
			writeDomainError(w, err)
			return
		}
		auditReq(deps.Audit, r, session.User, "auth.logout", "", "success", "")
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)
}

func registerNotificationHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		client, _, ok := requireSession(w, r, deps)
		if !ok {
			return
		}
		msgs := client.Notices.Drain()
		if msgs == nil {
			msgs = []notify.Message{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": msgs})
	}).Methods(http.MethodGet)
}

// requireSession resolves the bearer token to a client and its live session.
// An expired session ends the client context.
func requireSession(w http.ResponseWriter, r *http.Request, deps Deps) (*Client, auth.Session, bool) {
	if deps.Clients == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return nil, auth.Session{}, false
	}
	token, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return nil, auth.Session{}, false
	}

	client, err := deps.Clients.Resolve(token)
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			writeError(w, http.StatusUnauthorized, "session expired, please sign in again")
			return nil, auth.Session{}, false
		}
		writeError(w, http.StatusUnauthorized, "invalid token")
		return nil, auth.Session{}, false
	}

	session, err := client.Session()
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			if cerr := client.Workflow.Cancel(); cerr != nil {
				deps.Logger.WarnContext(r.Context(), "cancel review on expiry", "error", cerr)
			}
			deps.Clients.Remove(token)
			writeError(w, http.StatusUnauthorized, "session expired, please sign in again")
			return nil, auth.Session{}, false
		}
		writeError(w, http.StatusUnauthorized, "no active session")
		return nil, auth.Session{}, false
	}
	return client, session, true
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps core errors to HTTP statuses. Unknown errors are
// reported without detail.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, reports.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reports.ErrInvalidInput), errors.Is(err, verification.ErrValidationFailed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, verification.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrSessionExpired), errors.Is(err, auth.ErrNoSession):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrStorageUnavailable), errors.Is(err, kvstore.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey{})
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a AuditLogger, r *http.Request, user auth.User, action, target, outcome, detail string) {
	if a == nil {
		return
	}
	parts := []string{
		"rid=" + requestIDFromContext(r.Context()),
		"ip=" + clientIP(r),
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		parts = append(parts, "ua="+ua)
	}
	if strings.TrimSpace(detail) != "" {
		parts = append(parts, "detail="+strings.TrimSpace(detail))
	}
	actor := user.FullName
	if actor == "" {
		actor = user.Email
	}
	_ = a.Record(audit.Event{
		Actor:   actor,
		Role:    string(user.Role),
		Action:  action,
		Target:  target,
		Outcome: outcome,
		Detail:  strings.Join(parts, " | "),
	})
}
