package checks

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// httpsListenerCheck evaluates internet-facing application load balancers.
// Plain HTTP listeners must redirect to HTTPS.
type httpsListenerCheck struct {
	elb common.ELBv2Client
}

func newHTTPSListenerCheck(sess *common.Session) Check {
	return &httpsListenerCheck{elb: sess.Clients.ELBv2}
}

func (c *httpsListenerCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)

	paginator := elbv2.NewDescribeLoadBalancersPaginator(c.elb, &elbv2.DescribeLoadBalancersInput{})
	var lbs []elbtypes.LoadBalancer
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return enumerationFailed(nil, "describe load balancers", err)
		}
		for _, lb := range page.LoadBalancers {
			if lb.Type == elbtypes.LoadBalancerTypeEnumApplication && lb.Scheme == elbtypes.LoadBalancerSchemeEnumInternetFacing {
				lbs = append(lbs, lb)
			}
		}
	}

	for _, lb := range lbs {
		name := aws.ToString(lb.LoadBalancerName)
		out, err := c.elb.DescribeListeners(ctx, &elbv2.DescribeListenersInput{LoadBalancerArn: lb.LoadBalancerArn})
		if err != nil {
			o.errored(name, "describe listeners", err)
			continue
		}
		hasHTTPS := false
		var plain []int32
		for _, l := range out.Listeners {
			switch l.Protocol {
			case elbtypes.ProtocolEnumHttps:
				hasHTTPS = true
			case elbtypes.ProtocolEnumHttp:
				if !redirectsToHTTPS(l) {
					plain = append(plain, aws.ToInt32(l.Port))
				}
			}
		}
		details := map[string]any{"https": hasHTTPS, "plain_http_ports": plain}
		switch {
		case len(plain) == 0 && hasHTTPS:
			o.pass(name, "load balancer serves HTTPS only", details)
		case len(plain) == 0:
			o.warn(name, "load balancer has no HTTP or HTTPS listeners", details)
		case hasHTTPS:
			o.warn(name, "load balancer serves HTTPS but also plain HTTP without redirect", details)
		default:
			o.fail(name, "load balancer serves plain HTTP only", details)
		}
	}
	return o.done("no internet-facing application load balancers found")
}

func redirectsToHTTPS(l elbtypes.Listener) bool {
	for _, a := range l.DefaultActions {
		if a.Type == elbtypes.ActionTypeEnumRedirect && a.RedirectConfig != nil &&
			strings.EqualFold(aws.ToString(a.RedirectConfig.Protocol), "HTTPS") {
			return true
		}
	}
	return false
}
