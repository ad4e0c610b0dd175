package checks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// configRecorderCheck fails when AWS Config has no recorder or a recorder is
// not recording.
type configRecorderCheck struct {
	cfg common.ConfigServiceClient
}

func newConfigRecorderCheck(sess *common.Session) Check {
	return &configRecorderCheck{cfg: sess.Clients.Config}
}

func (c *configRecorderCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)
	out, err := c.cfg.DescribeConfigurationRecorderStatus(ctx, &configservice.DescribeConfigurationRecorderStatusInput{})
	if err != nil {
		return enumerationFailed(nil, "describe configuration recorder status", err)
	}
	if len(out.ConfigurationRecordersStatus) == 0 {
		o.fail(models.ResourceNotApplicable, "AWS Config has no configuration recorder", nil)
		return o.res
	}
	for _, st := range out.ConfigurationRecordersStatus {
		name := aws.ToString(st.Name)
		details := map[string]any{"last_status": string(st.LastStatus)}
		if st.Recording {
			o.pass(name, "configuration recorder is recording", details)
			continue
		}
		o.fail(name, "configuration recorder is not recording", details)
	}
	return o.res
}
