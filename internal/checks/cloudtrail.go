package checks

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

func describeTrails(ctx context.Context, client common.CloudTrailClient) ([]cttypes.Trail, error) {
	out, err := client.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return nil, err
	}
	return out.TrailList, nil
}

// trailRef is the identifier accepted by the per-trail CloudTrail calls.
// The ARN also resolves shadow trails homed in other regions.
func trailRef(t cttypes.Trail) string {
	if arn := aws.ToString(t.TrailARN); arn != "" {
		return arn
	}
	return aws.ToString(t.Name)
}

// ── CloudTrailLoggingCheck ──────────────────────────────────────────────────

// trailLoggingCheck fails accounts without trails and trails that are not
// logging. The absence of any trail is itself the finding.
type trailLoggingCheck struct {
	ct common.CloudTrailClient
}

func newTrailLoggingCheck(sess *common.Session) Check {
	return &trailLoggingCheck{ct: sess.Clients.CloudTrail}
}

func (c *trailLoggingCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(30)
	o := newOutcome(guideline)

	trails, err := describeTrails(ctx, c.ct)
	if err != nil {
		return enumerationFailed(guideline, "describe trails", err)
	}
	if len(trails) == 0 {
		o.fail(models.ResourceNotApplicable, "no CloudTrail trails are configured", nil)
		return o.res
	}
	for _, t := range trails {
		name := aws.ToString(t.Name)
		status, err := c.ct.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: aws.String(trailRef(t))})
		if err != nil {
			o.errored(name, "get trail status", err)
			continue
		}
		details := map[string]any{
			"multi_region": aws.ToBool(t.IsMultiRegionTrail),
			"home_region":  aws.ToString(t.HomeRegion),
		}
		if aws.ToBool(status.IsLogging) {
			o.pass(name, "trail is logging", details)
			continue
		}
		o.fail(name, "trail exists but logging is stopped", details)
	}
	return o.res
}

// ── CloudTrailManagementEventsCheck ─────────────────────────────────────────

// managementEventsCheck requires each trail to record both read and write
// management events.
type managementEventsCheck struct {
	ct common.CloudTrailClient
}

func newManagementEventsCheck(sess *common.Session) Check {
	return &managementEventsCheck{ct: sess.Clients.CloudTrail}
}

func (c *managementEventsCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(26)
	o := newOutcome(guideline)

	trails, err := describeTrails(ctx, c.ct)
	if err != nil {
		return enumerationFailed(guideline, "describe trails", err)
	}
	for _, t := range trails {
		name := aws.ToString(t.Name)
		sel, err := c.ct.GetEventSelectors(ctx, &cloudtrail.GetEventSelectorsInput{TrailName: aws.String(trailRef(t))})
		if err != nil {
			o.errored(name, "get event selectors", err)
			continue
		}
		scope := managementScope(sel)
		details := map[string]any{"read_write_type": scope}
		switch scope {
		case string(cttypes.ReadWriteTypeAll):
			o.pass(name, "trail records all management events", details)
		case "":
			o.fail(name, "trail does not record management events", details)
		default:
			o.evidence(map[string]any{"trail": name, "read_write_type": scope})
			o.fail(name, "trail records only "+scope+" management events", details)
		}
	}
	return o.done("no CloudTrail trails found")
}

// managementScope returns the widest ReadWriteType under which management
// events are recorded: "All", "ReadOnly", "WriteOnly" or "" when they are not
// recorded at all.
func managementScope(out *cloudtrail.GetEventSelectorsOutput) string {
	scope := ""
	widen := func(rw string) {
		switch {
		case rw == string(cttypes.ReadWriteTypeAll):
			scope = rw
		case scope == "":
			scope = rw
		case scope != rw && scope != string(cttypes.ReadWriteTypeAll):
			// ReadOnly and WriteOnly selectors together cover everything.
			scope = string(cttypes.ReadWriteTypeAll)
		}
	}

	for _, s := range out.EventSelectors {
		if s.IncludeManagementEvents != nil && !*s.IncludeManagementEvents {
			continue
		}
		rw := string(s.ReadWriteType)
		if rw == "" {
			rw = string(cttypes.ReadWriteTypeAll)
		}
		widen(rw)
	}

	for _, adv := range out.AdvancedEventSelectors {
		management := false
		rw := string(cttypes.ReadWriteTypeAll)
		for _, f := range adv.FieldSelectors {
			switch aws.ToString(f.Field) {
			case "eventCategory":
				for _, v := range f.Equals {
					if strings.EqualFold(v, "Management") {
						management = true
					}
				}
			case "readOnly":
				if len(f.Equals) > 0 {
					if strings.EqualFold(f.Equals[0], "true") {
						rw = string(cttypes.ReadWriteTypeReadOnly)
					} else {
						rw = string(cttypes.ReadWriteTypeWriteOnly)
					}
				}
			}
		}
		if management {
			widen(rw)
		}
	}
	return scope
}
