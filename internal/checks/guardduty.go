package checks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// guardDutyCheck fails regions without a GuardDuty detector and detectors
// that are not ENABLED.
type guardDutyCheck struct {
	gd common.GuardDutyClient
}

func newGuardDutyCheck(sess *common.Session) Check {
	return &guardDutyCheck{gd: sess.Clients.GuardDuty}
}

func (c *guardDutyCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(37)
	o := newOutcome(guideline)

	list, err := c.gd.ListDetectors(ctx, &guardduty.ListDetectorsInput{})
	if err != nil {
		return enumerationFailed(guideline, "list detectors", err)
	}
	if len(list.DetectorIds) == 0 {
		o.fail(models.ResourceNotApplicable, "GuardDuty is not enabled: no detector exists", nil)
		return o.res
	}
	for _, id := range list.DetectorIds {
		det, err := c.gd.GetDetector(ctx, &guardduty.GetDetectorInput{DetectorId: &id})
		if err != nil {
			o.errored(id, "get detector", err)
			continue
		}
		details := map[string]any{
			"status":                       string(det.Status),
			"finding_publishing_frequency": string(det.FindingPublishingFrequency),
		}
		if det.Status == gdtypes.DetectorStatusEnabled {
			o.pass(id, "GuardDuty detector is enabled", details)
			continue
		}
		o.fail(id, "GuardDuty detector is "+string(det.Status), details)
	}
	return o.res
}
