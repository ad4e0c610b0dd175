package checks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// cloudTrailMetricsNamespace is the namespace conventionally used by metric
// filters on the CloudTrail log group.
const cloudTrailMetricsNamespace = "CloudTrailMetrics"

// securityAlarmCheck warns when no CloudWatch alarm watches a CloudTrail
// metric filter, meaning API activity such as root logins or policy changes
// goes unnoticed.
type securityAlarmCheck struct {
	cw common.CloudWatchClient
}

func newSecurityAlarmCheck(sess *common.Session) Check {
	return &securityAlarmCheck{cw: sess.Clients.CloudWatch}
}

func (c *securityAlarmCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)

	paginator := cloudwatch.NewDescribeAlarmsPaginator(c.cw, &cloudwatch.DescribeAlarmsInput{})
	var alarms []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return enumerationFailed(nil, "describe alarms", err)
		}
		for _, a := range page.MetricAlarms {
			if aws.ToString(a.Namespace) == cloudTrailMetricsNamespace {
				alarms = append(alarms, aws.ToString(a.AlarmName))
			}
		}
	}

	if len(alarms) == 0 {
		o.warn(models.ResourceNotApplicable, "no CloudWatch alarms monitor CloudTrail metric filters", nil)
		return o.res
	}
	o.pass(models.ResourceNotApplicable, "CloudTrail activity is monitored by CloudWatch alarms", map[string]any{"alarms": alarms})
	return o.res
}
