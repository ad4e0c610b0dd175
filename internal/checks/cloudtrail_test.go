package checks

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

func ctSession(f *fakeCloudTrail) *common.Session {
	return sessionWith(&common.ClientSet{CloudTrail: f})
}

func TestTrailLoggingCheck(t *testing.T) {
	on, off, broken := trail("on"), trail("off"), trail("broken")
	f := &fakeCloudTrail{
		trails:    []cttypes.Trail{on, off, broken},
		logging:   map[string]bool{aws.ToString(on.TrailARN): true},
		statusErr: map[string]error{aws.ToString(broken.TrailARN): errAccessDenied},
	}
	got := byResource(newTrailLoggingCheck(ctSession(f)).Run(context.Background()))

	want := map[string]models.Status{
		"on":     models.StatusPass,
		"off":    models.StatusFail,
		"broken": models.StatusError,
	}
	for id, status := range want {
		if got[id].Status != status {
			t.Errorf("%s: got %q; want %q", id, got[id].Status, status)
		}
	}
}

// TestTrailLoggingCheck_NoTrailsFails verifies that an account without any
// trail is itself a violation rather than a vacuous pass.
func TestTrailLoggingCheck_NoTrailsFails(t *testing.T) {
	out := newTrailLoggingCheck(ctSession(&fakeCloudTrail{})).Run(context.Background())
	if len(out.Results) != 1 {
		t.Fatalf("want 1 result, got %d", len(out.Results))
	}
	r := out.Results[0]
	if r.Status != models.StatusFail || r.ResourceID != models.ResourceNotApplicable {
		t.Errorf("want FAIL/N/A, got %+v", r)
	}
	if out.GuidelineID == nil || *out.GuidelineID != 30 {
		t.Errorf("guideline: got %v; want 30", out.GuidelineID)
	}
}

func TestManagementEventsCheck(t *testing.T) {
	all, writeOnly, none, advanced := trail("all"), trail("write-only"), trail("none"), trail("advanced")
	f := &fakeCloudTrail{
		trails: []cttypes.Trail{all, writeOnly, none, advanced},
		selectors: map[string]*cloudtrail.GetEventSelectorsOutput{
			aws.ToString(all.TrailARN): {EventSelectors: []cttypes.EventSelector{
				{ReadWriteType: cttypes.ReadWriteTypeAll, IncludeManagementEvents: aws.Bool(true)},
			}},
			aws.ToString(writeOnly.TrailARN): {EventSelectors: []cttypes.EventSelector{
				{ReadWriteType: cttypes.ReadWriteTypeWriteOnly, IncludeManagementEvents: aws.Bool(true)},
			}},
			aws.ToString(none.TrailARN): {EventSelectors: []cttypes.EventSelector{
				{ReadWriteType: cttypes.ReadWriteTypeAll, IncludeManagementEvents: aws.Bool(false)},
			}},
			aws.ToString(advanced.TrailARN): {AdvancedEventSelectors: []cttypes.AdvancedEventSelector{
				{FieldSelectors: []cttypes.AdvancedFieldSelector{
					{Field: aws.String("eventCategory"), Equals: []string{"Management"}},
				}},
			}},
		},
	}
	got := byResource(newManagementEventsCheck(ctSession(f)).Run(context.Background()))

	want := map[string]models.Status{
		"all":        models.StatusPass,
		"write-only": models.StatusFail,
		"none":       models.StatusFail,
		"advanced":   models.StatusPass,
	}
	for id, status := range want {
		if got[id].Status != status {
			t.Errorf("%s: got %q; want %q", id, got[id].Status, status)
		}
	}
}

func TestManagementScope_ReadOnlyPlusWriteOnlyIsAll(t *testing.T) {
	out := &cloudtrail.GetEventSelectorsOutput{EventSelectors: []cttypes.EventSelector{
		{ReadWriteType: cttypes.ReadWriteTypeReadOnly},
		{ReadWriteType: cttypes.ReadWriteTypeWriteOnly},
	}}
	if got := managementScope(out); got != "All" {
		t.Errorf("got %q; want All", got)
	}
}
