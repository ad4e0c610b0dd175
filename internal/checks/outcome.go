package checks

import (
	"errors"
	"fmt"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
)

// errEmptyResponse is reported when an API call succeeds without the
// object the check asked for.
var errEmptyResponse = errors.New("empty response")

// outcome accumulates results and evidence for one check run.
type outcome struct {
	res models.CheckOutcome
}

func newOutcome(guideline *int) *outcome {
	return &outcome{res: models.CheckOutcome{GuidelineID: guideline}}
}

func (o *outcome) add(status models.Status, resourceID, message string, details map[string]any) {
	if resourceID == "" {
		resourceID = models.ResourceNotApplicable
	}
	o.res.Results = append(o.res.Results, models.CheckResult{
		Status:     status,
		ResourceID: resourceID,
		Message:    message,
		Details:    details,
	})
}

func (o *outcome) pass(resourceID, message string, details map[string]any) {
	o.add(models.StatusPass, resourceID, message, details)
}

func (o *outcome) fail(resourceID, message string, details map[string]any) {
	o.add(models.StatusFail, resourceID, message, details)
}

func (o *outcome) warn(resourceID, message string, details map[string]any) {
	o.add(models.StatusWarn, resourceID, message, details)
}

// errored records a failure to evaluate one resource.
func (o *outcome) errored(resourceID, action string, err error) {
	o.add(models.StatusError, resourceID, fmt.Sprintf("%s: %v", action, err), nil)
}

// evidence appends v to the raw evidence of the run.
func (o *outcome) evidence(v any) {
	o.res.Raw = append(o.res.Raw, v)
}

// done returns the accumulated outcome. When nothing was recorded it emits
// the vacuous PASS with emptyMessage.
func (o *outcome) done(emptyMessage string) models.CheckOutcome {
	if len(o.res.Results) == 0 {
		o.pass(models.ResourceNotApplicable, emptyMessage, nil)
	}
	return o.res
}

// enumerationFailed is the outcome of a check that could not list its
// resources: a single ERROR result for the whole check.
func enumerationFailed(guideline *int, action string, err error) models.CheckOutcome {
	o := newOutcome(guideline)
	o.errored(models.ResourceNotApplicable, action, err)
	return o.res
}
