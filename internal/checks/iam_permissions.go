package checks

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/samber/lo"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// passRoleCheck fails users and roles whose permission policies allow
// iam:PassRole on every role in the account. Passing arbitrary roles to a
// service is a privilege escalation path.
type passRoleCheck struct {
	iam common.IAMClient
}

func newPassRoleCheck(sess *common.Session) Check {
	return &passRoleCheck{iam: sess.Clients.IAM}
}

// passRoleGrant is one statement granting iam:PassRole too broadly.
type passRoleGrant struct {
	Policy    string   `json:"policy"`
	Statement string   `json:"statement"`
	Actions   []string `json:"actions"`
	Resources []string `json:"resources"`
}

func (c *passRoleCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(14)
	o := newOutcome(guideline)
	reader := newPolicyReader(c.iam)

	users, err := listUsers(ctx, c.iam)
	if err != nil {
		return enumerationFailed(guideline, "list IAM users", err)
	}
	roles, err := listRoles(ctx, c.iam)
	if err != nil {
		return enumerationFailed(guideline, "list IAM roles", err)
	}

	for _, u := range users {
		name := aws.ToString(u.UserName)
		policies, err := reader.userPolicies(ctx, name)
		if err != nil {
			o.errored("user:"+name, "read user policies", err)
			continue
		}
		c.evaluate(o, "user:"+name, policies)
	}
	for _, r := range roles {
		if isServiceLinked(r) {
			continue
		}
		name := aws.ToString(r.RoleName)
		policies, err := reader.rolePolicies(ctx, name)
		if err != nil {
			o.errored("role:"+name, "read role policies", err)
			continue
		}
		c.evaluate(o, "role:"+name, policies)
	}
	return o.done("no IAM users or roles to evaluate")
}

func (c *passRoleCheck) evaluate(o *outcome, entity string, policies []namedPolicy) {
	var grants []passRoleGrant
	for _, pol := range policies {
		for i, st := range pol.Document.Statement {
			if !st.allows() || !st.grantsAction("iam:PassRole") {
				continue
			}
			wide := lo.Filter(st.Resource, func(r string, _ int) bool { return isAnyRoleResource(r) })
			if len(wide) == 0 {
				continue
			}
			grants = append(grants, passRoleGrant{
				Policy:    pol.Name,
				Statement: st.label(i),
				Actions:   st.Action,
				Resources: wide,
			})
		}
	}
	if len(grants) == 0 {
		o.pass(entity, "iam:PassRole is not granted on all roles", nil)
		return
	}
	names := lo.Uniq(lo.Map(grants, func(g passRoleGrant, _ int) string { return g.Policy }))
	o.evidence(map[string]any{"entity": entity, "grants": grants})
	o.fail(entity, "iam:PassRole allowed on any role via "+strings.Join(names, ", "),
		map[string]any{"grants": grants})
}

// isAnyRoleResource reports whether resource covers every role.
func isAnyRoleResource(resource string) bool {
	return resource == "*" ||
		resource == "arn:aws:iam::*:role/*" ||
		strings.HasSuffix(resource, ":role/*")
}
