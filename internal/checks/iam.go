package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// serviceLinkedRolePath is the IAM path of roles owned and managed by AWS
// services. Their policies cannot be changed by the account owner.
const serviceLinkedRolePath = "/aws-service-role/"

// listRoles returns every IAM role in the account using the ListRoles
// paginator.
func listRoles(ctx context.Context, client common.IAMClient) ([]iamtypes.Role, error) {
	paginator := iam.NewListRolesPaginator(client, &iam.ListRolesInput{})
	var roles []iamtypes.Role
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		roles = append(roles, page.Roles...)
	}
	return roles, nil
}

// listUsers returns every IAM user in the account using the ListUsers
// paginator.
func listUsers(ctx context.Context, client common.IAMClient) ([]iamtypes.User, error) {
	paginator := iam.NewListUsersPaginator(client, &iam.ListUsersInput{})
	var users []iamtypes.User
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		users = append(users, page.Users...)
	}
	return users, nil
}

// namedPolicy is a decoded permission policy attached to a user or role.
type namedPolicy struct {
	Name     string
	Managed  bool
	ARN      string
	Document *policyDocument
}

// policyReader loads inline and attached managed policies. Managed policy
// documents are cached for the lifetime of the reader because the same
// policy is typically attached to many principals.
type policyReader struct {
	client  common.IAMClient
	managed map[string]*policyDocument
}

func newPolicyReader(client common.IAMClient) *policyReader {
	return &policyReader{client: client, managed: make(map[string]*policyDocument)}
}

// rolePolicies returns the inline and attached policies of roleName.
func (r *policyReader) rolePolicies(ctx context.Context, roleName string) ([]namedPolicy, error) {
	var names []string
	inline := iam.NewListRolePoliciesPaginator(r.client, &iam.ListRolePoliciesInput{RoleName: aws.String(roleName)})
	for inline.HasMorePages() {
		page, err := inline.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list inline policies: %w", err)
		}
		names = append(names, page.PolicyNames...)
	}
	var out []namedPolicy
	for _, name := range names {
		pol, err := r.client.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(name),
		})
		if err != nil {
			return nil, fmt.Errorf("get inline policy %s: %w", name, err)
		}
		doc, err := parsePolicyDocument(aws.ToString(pol.PolicyDocument))
		if err != nil {
			return nil, fmt.Errorf("inline policy %s: %w", name, err)
		}
		out = append(out, namedPolicy{Name: name, Document: doc})
	}

	var attached []iamtypes.AttachedPolicy
	pages := iam.NewListAttachedRolePoliciesPaginator(r.client, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(roleName)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list attached policies: %w", err)
		}
		attached = append(attached, page.AttachedPolicies...)
	}
	return r.appendManaged(ctx, out, attached)
}

// userPolicies returns the inline and attached policies of userName.
func (r *policyReader) userPolicies(ctx context.Context, userName string) ([]namedPolicy, error) {
	var names []string
	inline := iam.NewListUserPoliciesPaginator(r.client, &iam.ListUserPoliciesInput{UserName: aws.String(userName)})
	for inline.HasMorePages() {
		page, err := inline.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list inline policies: %w", err)
		}
		names = append(names, page.PolicyNames...)
	}
	var out []namedPolicy
	for _, name := range names {
		pol, err := r.client.GetUserPolicy(ctx, &iam.GetUserPolicyInput{
			UserName:   aws.String(userName),
			PolicyName: aws.String(name),
		})
		if err != nil {
			return nil, fmt.Errorf("get inline policy %s: %w", name, err)
		}
		doc, err := parsePolicyDocument(aws.ToString(pol.PolicyDocument))
		if err != nil {
			return nil, fmt.Errorf("inline policy %s: %w", name, err)
		}
		out = append(out, namedPolicy{Name: name, Document: doc})
	}

	var attached []iamtypes.AttachedPolicy
	pages := iam.NewListAttachedUserPoliciesPaginator(r.client, &iam.ListAttachedUserPoliciesInput{UserName: aws.String(userName)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list attached policies: %w", err)
		}
		attached = append(attached, page.AttachedPolicies...)
	}
	return r.appendManaged(ctx, out, attached)
}

func (r *policyReader) appendManaged(ctx context.Context, out []namedPolicy, attached []iamtypes.AttachedPolicy) ([]namedPolicy, error) {
	for _, ap := range attached {
		arn := aws.ToString(ap.PolicyArn)
		doc, err := r.managedDocument(ctx, arn)
		if err != nil {
			return nil, err
		}
		out = append(out, namedPolicy{
			Name:     aws.ToString(ap.PolicyName),
			Managed:  true,
			ARN:      arn,
			Document: doc,
		})
	}
	return out, nil
}

// managedDocument fetches the default version of the managed policy arn.
func (r *policyReader) managedDocument(ctx context.Context, arn string) (*policyDocument, error) {
	if doc, ok := r.managed[arn]; ok {
		return doc, nil
	}
	pol, err := r.client.GetPolicy(ctx, &iam.GetPolicyInput{PolicyArn: aws.String(arn)})
	if err != nil {
		return nil, fmt.Errorf("get managed policy %s: %w", arn, err)
	}
	if pol.Policy == nil {
		return nil, fmt.Errorf("get managed policy %s: empty response", arn)
	}
	return r.versionDocument(ctx, arn, aws.ToString(pol.Policy.DefaultVersionId))
}

// versionDocument fetches version of the managed policy arn. The document
// is cached under arn, so callers pass the default version.
func (r *policyReader) versionDocument(ctx context.Context, arn, version string) (*policyDocument, error) {
	if doc, ok := r.managed[arn]; ok {
		return doc, nil
	}
	ver, err := r.client.GetPolicyVersion(ctx, &iam.GetPolicyVersionInput{
		PolicyArn: aws.String(arn),
		VersionId: aws.String(version),
	})
	if err != nil {
		return nil, fmt.Errorf("get managed policy version %s: %w", arn, err)
	}
	if ver.PolicyVersion == nil {
		return nil, fmt.Errorf("get managed policy version %s: empty response", arn)
	}
	doc, err := parsePolicyDocument(aws.ToString(ver.PolicyVersion.Document))
	if err != nil {
		return nil, fmt.Errorf("managed policy %s: %w", arn, err)
	}
	r.managed[arn] = doc
	return doc, nil
}

// isServiceLinked reports whether role is managed by an AWS service.
func isServiceLinked(role iamtypes.Role) bool {
	return strings.HasPrefix(aws.ToString(role.Path), serviceLinkedRolePath)
}
