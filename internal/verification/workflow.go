package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"invasivewatch/dashboard/internal/audit"
	"invasivewatch/dashboard/internal/auth"
	"invasivewatch/dashboard/internal/notify"
	"invasivewatch/dashboard/internal/reports"
)

var (
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

type State string

const (
	StateClosed        State = "closed"
	StateLoadingReport State = "loading_report"
	StateReviewOpen    State = "review_open"
	StateSubmitting    State = "submitting"
)

type ReportStore interface {
	GetByID(id string) (reports.Report, error)
	ApplyVerification(id, verifier string, status reports.Status, notes string) (reports.Report, error)
}

type AuditRecorder interface {
	Record(e audit.Event) error
}

// Review is what the decision form shows: the report and the verifier
// identity captured when the review was opened.
type Review struct {
	Report   reports.Report `json:"report"`
	Verifier auth.User      `json:"verifier"`
	OpenedAt time.Time      `json:"opened_at"`
}

type Config struct {
	Reports  ReportStore
	Notifier notify.Sink
	Audit    AuditRecorder
	Logger   *slog.Logger
	// OnVerified runs after a decision is stored so the caller can refresh
	// any report list it shows.
	OnVerified func(reports.Report)
}

type Workflow struct {
	reports    ReportStore
	notifier   notify.Sink
	audit      AuditRecorder
	log        *slog.Logger
	onVerified func(reports.Report)
	nowFunc    func() time.Time

	mu     sync.Mutex
	state  State
	review *Review
}

func New(cfg Config) (*Workflow, error) {
	if cfg.Reports == nil {
		return nil, fmt.Errorf("report store is required")
	}
	w := &Workflow{
		reports:    cfg.Reports,
		notifier:   cfg.Notifier,
		audit:      cfg.Audit,
		log:        cfg.Logger,
		onVerified: cfg.OnVerified,
		nowFunc:    time.Now,
		state:      StateClosed,
	}
	if w.notifier == nil {
		w.notifier = notify.Fanout{}
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w, nil
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Current returns the open review, if any.
func (w *Workflow) Current() (Review, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.review == nil {
		return Review{}, false
	}
	r := *w.review
	r.Report = r.Report.Clone()
	return r, true
}

// Open starts a review of reportID on behalf of actor. Without the verify
// permission the workflow stays closed.
func (w *Workflow) Open(ctx context.Context, reportID string, actor *auth.User) (Review, error) {
	w.mu.Lock()
	if w.state != StateClosed {
		state := w.state
		w.mu.Unlock()
		return Review{}, fmt.Errorf("%w: open while %s", ErrInvalidTransition, state)
	}
	if !auth.CanVerify(actor) {
		w.mu.Unlock()
		w.notifier.NotifyError("You do not have permission to verify reports.")
		w.log.WarnContext(ctx, "verification denied", "report_id", reportID, "user_id", userID(actor))
		return Review{}, auth.ErrPermissionDenied
	}
	verifier := *actor
	w.state = StateLoadingReport
	w.mu.Unlock()

	rep, err := w.reports.GetByID(reportID)

	w.mu.Lock()
	if err != nil {
		w.state = StateClosed
		w.mu.Unlock()
		w.notifier.NotifyError(fmt.Sprintf("Could not load report %s.", reportID))
		w.log.WarnContext(ctx, "load report for verification", "report_id", reportID, "error", err)
		return Review{}, fmt.Errorf("load report %s: %w", reportID, err)
	}
	review := Review{Report: rep, Verifier: verifier, OpenedAt: w.nowFunc().UTC()}
	w.review = &review
	w.state = StateReviewOpen
	w.mu.Unlock()

	w.log.InfoContext(ctx, "verification opened", "report_id", rep.ID, "verifier", verifier.FullName)
	out := review
	out.Report = rep.Clone()
	return out, nil
}

// Submit applies decision to the open report. Validation failures keep the
// review open and write nothing.
func (w *Workflow) Submit(ctx context.Context, decision, notes string) (reports.Report, error) {
	w.mu.Lock()
	if w.state != StateReviewOpen || w.review == nil {
		state := w.state
		w.mu.Unlock()
		return reports.Report{}, fmt.Errorf("%w: submit while %s", ErrInvalidTransition, state)
	}
	review := *w.review

	status, msg := validateDecision(decision, review.Verifier)
	if msg != "" {
		w.mu.Unlock()
		w.notifier.NotifyError(msg)
		return reports.Report{}, fmt.Errorf("%w: %s", ErrValidationFailed, msg)
	}
	w.state = StateSubmitting
	w.mu.Unlock()

	verifier := strings.TrimSpace(review.Verifier.FullName)
	updated, err := w.reports.ApplyVerification(review.Report.ID, verifier, status, notes)

	w.mu.Lock()
	if err != nil {
		w.state = StateReviewOpen
		w.mu.Unlock()
		w.notifier.NotifyError(fmt.Sprintf("Could not save verification for report %s.", review.Report.ID))
		w.log.ErrorContext(ctx, "apply verification", "report_id", review.Report.ID, "error", err)
		w.recordAudit(review, status, "failed", err.Error())
		return reports.Report{}, fmt.Errorf("apply verification: %w", err)
	}
	w.state = StateClosed
	w.review = nil
	w.mu.Unlock()

	w.notifier.NotifySuccess(fmt.Sprintf("Report %s marked as %s.", updated.ID, updated.VerificationStatus))
	w.log.InfoContext(ctx, "verification submitted", "report_id", updated.ID, "status", updated.VerificationStatus, "verifier", verifier)
	w.recordAudit(review, status, "success", notes)
	if w.onVerified != nil {
		w.onVerified(updated.Clone())
	}
	return updated, nil
}

// Cancel discards the open review. Cancelling a closed workflow is a no-op;
// a submission in flight cannot be cancelled.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateClosed:
		return nil
	case StateReviewOpen:
		w.state = StateClosed
		w.review = nil
		return nil
	default:
		return fmt.Errorf("%w: cancel while %s", ErrInvalidTransition, w.state)
	}
}

func validateDecision(decision string, verifier auth.User) (reports.Status, string) {
	if strings.TrimSpace(decision) == "" {
		return "", "Please select a verification decision."
	}
	status, err := reports.ParseStatus(decision)
	if err != nil || status == reports.StatusPending {
		return "", fmt.Sprintf("%q is not a verification decision.", decision)
	}
	if strings.TrimSpace(verifier.FullName) == "" {
		return "", "Verifier name is required."
	}
	return status, ""
}

func (w *Workflow) recordAudit(review Review, status reports.Status, outcome, detail string) {
	if w.audit == nil {
		return
	}
	err := w.audit.Record(audit.Event{
		Actor:   review.Verifier.FullName,
		Role:    string(review.Verifier.Role),
		Action:  audit.ActionReportVerify,
		Target:  review.Report.ID,
		Outcome: outcome + ":" + string(status),
		Detail:  detail,
	})
	if err != nil {
		w.log.Warn("record verification audit", "report_id", review.Report.ID, "error", err)
	}
}

func userID(u *auth.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
