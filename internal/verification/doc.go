// Package verification implements the report review workflow: a verifier
// opens a report, records a decision and the decision is written back to
// the report repository.
//
// A Workflow moves through
//
//	closed -> loading_report -> review_open -> submitting -> closed
//
// and returns to closed on cancel or when the report cannot be loaded. A
// failed write returns to review_open with the decision unapplied. One
// Workflow models one modal dialog, so it holds at most one open review.
package verification
