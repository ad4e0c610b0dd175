package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/samber/lo"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// ── IAMRoleCloudFormationPassRoleCheck / IAMGluePassRoleCheck ───────────────

// servicePassRoleCheck fails roles that can both launch a service resource
// and pass an arbitrary role to it. The launched resource runs with the
// passed role, so the pair escalates the caller to any role in the account.
type servicePassRoleCheck struct {
	iam       common.IAMClient
	guideline int
	service   string
	action    string

	// wildcardOnly counts a grant only when it applies to every resource.
	wildcardOnly bool
}

func newCloudFormationPassRoleCheck(sess *common.Session) Check {
	return &servicePassRoleCheck{
		iam:          sess.Clients.IAM,
		guideline:    41,
		service:      "CloudFormation",
		action:       "cloudformation:CreateStack",
		wildcardOnly: true,
	}
}

func newGluePassRoleCheck(sess *common.Session) Check {
	return &servicePassRoleCheck{
		iam:       sess.Clients.IAM,
		guideline: 45,
		service:   "Glue",
		action:    "glue:CreateDevEndpoint",
	}
}

func (c *servicePassRoleCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(c.guideline)
	o := newOutcome(guideline)
	reader := newPolicyReader(c.iam)

	roles, err := listRoles(ctx, c.iam)
	if err != nil {
		return enumerationFailed(guideline, "list IAM roles", err)
	}
	for _, r := range roles {
		if isServiceLinked(r) {
			continue
		}
		name := aws.ToString(r.RoleName)
		policies, err := reader.rolePolicies(ctx, name)
		if err != nil {
			o.errored(name, "read role policies", err)
			continue
		}

		var launch, pass []string
		for _, pol := range policies {
			for _, st := range pol.Document.Statement {
				if !st.allows() {
					continue
				}
				if st.grantsAction(c.action) && (!c.wildcardOnly || lo.Contains(st.Resource, "*")) {
					launch = append(launch, pol.Name)
				}
				if st.grantsAction("iam:PassRole") && (!c.wildcardOnly || lo.ContainsBy(st.Resource, isAnyRoleResource)) {
					pass = append(pass, pol.Name)
				}
			}
		}
		if len(launch) == 0 && len(pass) == 0 {
			continue
		}

		details := map[string]any{
			"role":              name,
			"launch_policies":   lo.Uniq(launch),
			"passrole_policies": lo.Uniq(pass),
		}
		o.evidence(details)
		if len(launch) > 0 && len(pass) > 0 {
			o.fail(name, fmt.Sprintf("role can call %s and iam:PassRole together", c.action), details)
			continue
		}
		o.pass(name, fmt.Sprintf("%s and iam:PassRole permissions are separated", c.service), details)
	}
	return o.done(fmt.Sprintf("no roles grant %s or iam:PassRole", c.action))
}

// ── IAMSSMCommandPolicyCheck ────────────────────────────────────────────────

// sendCommandConditionOperators are the Condition operators that can limit
// ssm:SendCommand to tagged or named targets.
var sendCommandConditionOperators = []string{
	"StringEquals",
	"StringLike",
	"ArnEquals",
	"ArnLike",
	"ForAllValues:StringEquals",
	"ForAnyValue:StringEquals",
	"ForAnyValue:StringLike",
}

// ssmCommandPolicyCheck evaluates attached managed policies that allow
// ssm:SendCommand. The grant must name its targets and be narrowed by a
// Condition; otherwise the holder can run shell commands on every managed
// instance.
type ssmCommandPolicyCheck struct {
	iam common.IAMClient
}

func newSSMCommandPolicyCheck(sess *common.Session) Check {
	return &ssmCommandPolicyCheck{iam: sess.Clients.IAM}
}

func (c *ssmCommandPolicyCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(35)
	o := newOutcome(guideline)
	reader := newPolicyReader(c.iam)

	policies, err := listAttachedPolicies(ctx, c.iam)
	if err != nil {
		return enumerationFailed(guideline, "list IAM policies", err)
	}
	for _, p := range policies {
		name := aws.ToString(p.PolicyName)
		doc, err := reader.versionDocument(ctx, aws.ToString(p.Arn), aws.ToString(p.DefaultVersionId))
		if err != nil {
			o.errored(name, "read policy document", err)
			continue
		}

		granted := false
		var issues []string
		for i, st := range doc.Statement {
			if !st.allows() || !st.grantsAction("ssm:SendCommand") {
				continue
			}
			granted = true
			issues = append(issues, lo.Map(sendCommandIssues(st), func(issue string, _ int) string {
				return st.label(i) + ": " + issue
			})...)
		}
		if !granted {
			continue
		}

		details := map[string]any{"policy_arn": aws.ToString(p.Arn)}
		if len(issues) == 0 {
			o.pass(name, "ssm:SendCommand is restricted to named targets", details)
			continue
		}
		details["issues"] = issues
		o.evidence(map[string]any{"policy": name, "policy_arn": aws.ToString(p.Arn), "issues": issues})
		o.fail(name, "ssm:SendCommand is granted too broadly: "+strings.Join(issues, "; "), details)
	}
	return o.done("no attached policies allow ssm:SendCommand")
}

// sendCommandIssues lists what is wrong with an Allow statement granting
// ssm:SendCommand.
func sendCommandIssues(st statement) []string {
	var issues []string
	if st.Principal.anyone() {
		issues = append(issues, "any principal")
	}
	if lo.Contains(st.Resource, "*") {
		issues = append(issues, "all resources")
	}
	switch {
	case len(st.Condition) == 0:
		issues = append(issues, "no condition limiting target instances")
	case !lo.SomeBy(lo.Keys(st.Condition), func(op string) bool {
		return lo.ContainsBy(sendCommandConditionOperators, func(want string) bool { return strings.EqualFold(op, want) })
	}):
		issues = append(issues, "condition does not limit target instances")
	}
	return issues
}

// listAttachedPolicies returns every customer and AWS managed policy that is
// attached to at least one user, group or role.
func listAttachedPolicies(ctx context.Context, client common.IAMClient) ([]iamtypes.Policy, error) {
	paginator := iam.NewListPoliciesPaginator(client, &iam.ListPoliciesInput{
		Scope:        iamtypes.PolicyScopeTypeAll,
		OnlyAttached: true,
	})
	var policies []iamtypes.Policy
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		policies = append(policies, page.Policies...)
	}
	return policies, nil
}
