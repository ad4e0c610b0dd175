package models

import "time"

// AuditStatus is the lifecycle state of an audit record.
type AuditStatus string

const (
	AuditRunning   AuditStatus = "running"
	AuditCompleted AuditStatus = "completed"
	AuditFailed    AuditStatus = "failed"
)

// Summary holds per-status counts over an audit's results. Total counts every
// result, including ones whose status is outside the canonical vocabulary.
type Summary struct {
	Total int `json:"total"`
	Pass  int `json:"pass"`
	Fail  int `json:"fail"`
	Warn  int `json:"warn"`
	Error int `json:"error"`
}

// AuditRecord is the stored outcome of one audit run.
//
// A completed record carries Results, Raw, GuidelineIDs and Summary; a failed
// record carries Error. Records are not modified once saved.
type AuditRecord struct {
	AuditID   string      `json:"audit_id"`
	AccountID string      `json:"account_id"`
	RoleName  string      `json:"role_name,omitempty"`
	Status    AuditStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Results are ordered by check, then by emission order within a check.
	Results []CheckResult `json:"results,omitempty"`

	// Raw maps check name to the evidence that check captured.
	Raw map[string][]any `json:"raw,omitempty"`

	// GuidelineIDs maps check name to its guideline reference. Checks without
	// a guideline are present with a null value.
	GuidelineIDs map[string]*int `json:"guideline_ids,omitempty"`

	Summary *Summary `json:"summary,omitempty"`

	Error string `json:"error,omitempty"`
}
