package models

import "strings"

// Status is the verdict a check assigns to a single resource.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusWarn  Status = "WARN"
	StatusError Status = "ERROR"
)

// ResourceNotApplicable is the resource_id used for account-level findings and
// for results that do not refer to a specific resource (empty collections,
// enumeration failures).
const ResourceNotApplicable = "N/A"

// statusSynonyms folds the spellings emitted by older checks and localized
// reports into the canonical vocabulary. Keys are lower-cased.
var statusSynonyms = map[string]Status{
	"pass":          StatusPass,
	"passed":        StatusPass,
	"ok":            StatusPass,
	"compliant":     StatusPass,
	"양호":            StatusPass,
	"fail":          StatusFail,
	"failed":        StatusFail,
	"noncompliant":  StatusFail,
	"non_compliant": StatusFail,
	"vulnerable":    StatusFail,
	"취약":            StatusFail,
	"warn":          StatusWarn,
	"warning":       StatusWarn,
	"경고":            StatusWarn,
	"error":         StatusError,
	"err":           StatusError,
	"failure":       StatusError,
	"오류":            StatusError,
}

// NormalizeStatus maps s onto the canonical vocabulary. Matching ignores case
// and surrounding whitespace. A value with no mapping is returned upper-cased;
// callers can detect it with Canonical.
func NormalizeStatus(s string) Status {
	trimmed := strings.TrimSpace(s)
	if st, ok := statusSynonyms[strings.ToLower(trimmed)]; ok {
		return st
	}
	return Status(strings.ToUpper(trimmed))
}

// Canonical reports whether s is one of PASS, FAIL, WARN or ERROR.
func (s Status) Canonical() bool {
	switch s {
	case StatusPass, StatusFail, StatusWarn, StatusError:
		return true
	}
	return false
}

// CheckResult is a single verdict about one resource. It is the atomic output
// unit of a check and is never modified after the runner appends it to an
// audit record.
type CheckResult struct {
	// CheckID is the registry name of the check that produced this result.
	// Checks leave it empty; the runner fills it in.
	CheckID string `json:"check_id"`

	Status Status `json:"status"`

	// ResourceID identifies the evaluated resource (bucket name, instance id,
	// "role:<name>", ...). ResourceNotApplicable for account-level findings.
	ResourceID string `json:"resource_id"`

	Message string `json:"message"`

	// Details carries check-specific structured context such as the offending
	// statement or the port/CIDR pair that triggered a failure.
	Details map[string]any `json:"details,omitempty"`
}

// CheckOutcome is what a check returns from a single run.
type CheckOutcome struct {
	Results []CheckResult

	// Raw is check-defined evidence captured while evaluating resources.
	// It is stored alongside the results, keyed by check name.
	Raw []any

	// GuidelineID references the external best-practice guideline the check
	// implements. Nil when the check is not mapped to a guideline.
	GuidelineID *int
}

// Guideline returns a pointer to id for use in CheckOutcome.GuidelineID.
func Guideline(id int) *int {
	return &id
}
