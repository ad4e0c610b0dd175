package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/samber/lo"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// accountPrincipal matches an IAM principal ARN and captures its account.
var accountPrincipal = regexp.MustCompile(`^arn:aws[a-z-]*:(?:iam|sts)::(\d{12}):`)

// trustedRole is a role paired with its decoded trust policy.
type trustedRole struct {
	role  iamtypes.Role
	trust *policyDocument
}

// trustPolicies lists roles and decodes their trust policies. Roles whose
// trust policy cannot be decoded are reported as ERROR on o and skipped.
func trustPolicies(ctx context.Context, client common.IAMClient, o *outcome) ([]trustedRole, error) {
	roles, err := listRoles(ctx, client)
	if err != nil {
		return nil, err
	}
	out := make([]trustedRole, 0, len(roles))
	for _, role := range roles {
		doc, err := parsePolicyDocument(aws.ToString(role.AssumeRolePolicyDocument))
		if err != nil {
			o.errored(aws.ToString(role.RoleName), "decode trust policy", err)
			continue
		}
		out = append(out, trustedRole{role: role, trust: doc})
	}
	return out, nil
}

// ── IAMTrustPolicyWildcardCheck ─────────────────────────────────────────────

// trustPolicyWildcardCheck fails roles whose trust policy lets any AWS
// principal assume them without a Condition.
type trustPolicyWildcardCheck struct {
	iam common.IAMClient
}

func newTrustPolicyWildcardCheck(sess *common.Session) Check {
	return &trustPolicyWildcardCheck{iam: sess.Clients.IAM}
}

func (c *trustPolicyWildcardCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(13)
	o := newOutcome(guideline)

	roles, err := trustPolicies(ctx, c.iam, o)
	if err != nil {
		return enumerationFailed(guideline, "list IAM roles", err)
	}
	for _, tr := range roles {
		name := aws.ToString(tr.role.RoleName)
		var offending []string
		for i, st := range tr.trust.Statement {
			if st.allows() && st.Principal.anyone() && len(st.Condition) == 0 {
				offending = append(offending, st.label(i))
			}
		}
		if len(offending) == 0 {
			o.pass(name, "trust policy does not allow unconditioned wildcard principals", nil)
			continue
		}
		o.evidence(map[string]any{"role": name, "statements": offending})
		o.fail(name, fmt.Sprintf("trust policy allows any principal without a condition (%s)", strings.Join(offending, ", ")),
			map[string]any{"statements": offending})
	}
	return o.done("no IAM roles to evaluate")
}

// ── IAMIdPAssumeRoleCheck ───────────────────────────────────────────────────

// idpAssumeRoleCheck evaluates roles trusted by a federated identity
// provider. The provider must be named explicitly and the statement must
// carry a Condition restricting the audience or subject.
type idpAssumeRoleCheck struct {
	iam common.IAMClient
}

func newIdPAssumeRoleCheck(sess *common.Session) Check {
	return &idpAssumeRoleCheck{iam: sess.Clients.IAM}
}

func (c *idpAssumeRoleCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(15)
	o := newOutcome(guideline)

	roles, err := trustPolicies(ctx, c.iam, o)
	if err != nil {
		return enumerationFailed(guideline, "list IAM roles", err)
	}
	for _, tr := range roles {
		name := aws.ToString(tr.role.RoleName)
		federated := false
		var problems []string
		for i, st := range tr.trust.Statement {
			providers := st.Principal.values("Federated")
			if !st.allows() || len(providers) == 0 {
				continue
			}
			federated = true
			if lo.Contains(providers, "*") {
				problems = append(problems, st.label(i)+": wildcard identity provider")
			}
			if len(st.Condition) == 0 {
				problems = append(problems, st.label(i)+": no audience or subject condition")
			}
		}
		if !federated {
			continue
		}
		if len(problems) == 0 {
			o.pass(name, "federated trust is restricted to a named provider with conditions", nil)
			continue
		}
		o.evidence(map[string]any{"role": name, "problems": problems})
		o.fail(name, "federated trust is not sufficiently restricted: "+strings.Join(problems, "; "),
			map[string]any{"problems": problems})
	}
	return o.done("no roles trust a federated identity provider")
}

// ── IAMCrossAccountAssumeRoleCheck ──────────────────────────────────────────

// crossAccountAssumeRoleCheck evaluates roles trusted by AWS principals.
// Principals outside the audited account must be specific and guarded by an
// sts:ExternalId condition.
type crossAccountAssumeRoleCheck struct {
	iam       common.IAMClient
	accountID string
}

func newCrossAccountAssumeRoleCheck(sess *common.Session) Check {
	return &crossAccountAssumeRoleCheck{iam: sess.Clients.IAM, accountID: sess.AccountID}
}

func (c *crossAccountAssumeRoleCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(16)
	o := newOutcome(guideline)

	roles, err := trustPolicies(ctx, c.iam, o)
	if err != nil {
		return enumerationFailed(guideline, "list IAM roles", err)
	}
	for _, tr := range roles {
		name := aws.ToString(tr.role.RoleName)
		trustsAWS := false
		var problems []string
		for i, st := range tr.trust.Statement {
			if !st.allows() {
				continue
			}
			principals := st.Principal.values("AWS")
			if st.Principal != nil && st.Principal.Wildcard {
				principals = []string{"*"}
			}
			if len(principals) == 0 {
				continue
			}
			trustsAWS = true
			for _, p := range principals {
				if problem := c.principalProblem(p, st); problem != "" {
					problems = append(problems, fmt.Sprintf("%s: %s", st.label(i), problem))
				}
			}
		}
		if !trustsAWS {
			continue
		}
		if len(problems) == 0 {
			o.pass(name, "AWS principal trust is scoped and protected", nil)
			continue
		}
		o.evidence(map[string]any{"role": name, "problems": problems})
		o.fail(name, "cross-account trust is not restricted: "+strings.Join(problems, "; "),
			map[string]any{"problems": problems})
	}
	return o.done("no roles trust AWS account principals")
}

// principalProblem returns a description of what is wrong with trusting p,
// or "" when the principal is acceptable.
func (c *crossAccountAssumeRoleCheck) principalProblem(p string, st statement) string {
	if p == "*" || strings.Contains(p, ":iam::*:") {
		return "wildcard principal " + p
	}
	account := ""
	switch {
	case len(p) == 12 && strings.Trim(p, "0123456789") == "":
		account = p
	default:
		m := accountPrincipal.FindStringSubmatch(p)
		if m == nil {
			return "principal " + p + " is not an ARN"
		}
		account = m[1]
	}
	if account == c.accountID {
		return ""
	}
	if !st.conditionKey("sts:ExternalId") {
		return "principal " + p + " from account " + account + " without sts:ExternalId condition"
	}
	return ""
}

// ── EKSIRSARoleCheck ────────────────────────────────────────────────────────

// irsaRoleCheck evaluates IAM roles for Kubernetes service accounts (roles
// trusted by an EKS OIDC provider). They must not carry administrator
// permissions.
type irsaRoleCheck struct {
	iam common.IAMClient
}

func newIRSARoleCheck(sess *common.Session) Check {
	return &irsaRoleCheck{iam: sess.Clients.IAM}
}

func (c *irsaRoleCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(27)
	o := newOutcome(guideline)
	reader := newPolicyReader(c.iam)

	roles, err := trustPolicies(ctx, c.iam, o)
	if err != nil {
		return enumerationFailed(guideline, "list IAM roles", err)
	}
	for _, tr := range roles {
		if !isIRSATrust(tr.trust) {
			continue
		}
		name := aws.ToString(tr.role.RoleName)
		policies, err := reader.rolePolicies(ctx, name)
		if err != nil {
			o.errored(name, "read role policies", err)
			continue
		}
		var admin []string
		for _, pol := range policies {
			if strings.HasSuffix(pol.ARN, "/AdministratorAccess") || grantsFullAccess(pol.Document) {
				admin = append(admin, pol.Name)
			}
		}
		if len(admin) == 0 {
			o.pass(name, "service account role has no administrator permissions", nil)
			continue
		}
		o.evidence(map[string]any{"role": name, "policies": admin})
		o.fail(name, "service account role grants administrator permissions via "+strings.Join(admin, ", "),
			map[string]any{"policies": admin})
	}
	return o.done("no IRSA roles found")
}

// isIRSATrust reports whether the trust policy federates an EKS OIDC
// provider for web identity.
func isIRSATrust(doc *policyDocument) bool {
	for _, st := range doc.Statement {
		if !st.allows() || !st.grantsAction("sts:AssumeRoleWithWebIdentity") {
			continue
		}
		for _, p := range st.Principal.values("Federated") {
			if strings.Contains(p, "oidc-provider/oidc.eks.") {
				return true
			}
		}
	}
	return false
}

// grantsFullAccess reports whether doc allows every action on every
// resource.
func grantsFullAccess(doc *policyDocument) bool {
	for _, st := range doc.Statement {
		if !st.allows() {
			continue
		}
		allActions := lo.Contains(st.Action, "*") || lo.Contains(st.Action, "*:*")
		if allActions && lo.Contains(st.Resource, "*") {
			return true
		}
	}
	return false
}
