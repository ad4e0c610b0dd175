package checks

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	cfgtypes "github.com/aws/aws-sdk-go-v2/service/configservice/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/samber/lo"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const testAccountID = "111111111111"

var errAccessDenied = &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func sessionWith(cs *common.ClientSet) *common.Session {
	return &common.Session{AccountID: testAccountID, Region: "us-east-1", Clients: cs}
}

// byResource indexes results by resource id. Tests use it when each
// resource appears once.
func byResource(out models.CheckOutcome) map[string]models.CheckResult {
	return lo.KeyBy(out.Results, func(r models.CheckResult) string { return r.ResourceID })
}

// ── IAM ──────────────────────────────────────────────────────────────────────

type inlinePolicy struct {
	name string
	doc  string
}

type fakeIAM struct {
	roles    []iamtypes.Role
	rolesErr error
	users    []iamtypes.User
	usersErr error

	accessKeys    map[string][]iamtypes.AccessKeyMetadata
	accessKeysErr map[string]error
	mfaDevices    map[string]int
	loginProfiles map[string]bool
	summary       map[string]int32
	summaryErr    error

	userInline   map[string][]inlinePolicy
	userAttached map[string][]iamtypes.AttachedPolicy
	roleInline   map[string][]inlinePolicy
	roleAttached map[string][]iamtypes.AttachedPolicy
	roleErr      map[string]error
	managed      map[string]string

	// policies are the customer and AWS managed policies returned by
	// ListPolicies; their documents live in managed.
	policies    []iamtypes.Policy
	policiesErr error

	// pageSize splits every IAM list response into pages of this size.
	pageSize int

	getPolicyCalls int
}

// pageOf returns the page of items starting at marker and the marker of the
// following page, or nil when it is the last one.
func pageOf[T any](items []T, marker *string, size int) ([]T, *string) {
	if size <= 0 {
		return items, nil
	}
	start, _ := strconv.Atoi(aws.ToString(marker))
	start = min(start, len(items))
	end := min(start+size, len(items))
	if end == len(items) {
		return items[start:end], nil
	}
	return items[start:end], aws.String(strconv.Itoa(end))
}

func (f *fakeIAM) ListRoles(_ context.Context, _ *iam.ListRolesInput, _ ...func(*iam.Options)) (*iam.ListRolesOutput, error) {
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return &iam.ListRolesOutput{Roles: f.roles}, nil
}

func (f *fakeIAM) ListUsers(_ context.Context, _ *iam.ListUsersInput, _ ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return &iam.ListUsersOutput{Users: f.users}, nil
}

func (f *fakeIAM) ListAccessKeys(_ context.Context, in *iam.ListAccessKeysInput, _ ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	user := aws.ToString(in.UserName)
	if err := f.accessKeysErr[user]; err != nil {
		return nil, err
	}
	keys, next := pageOf(f.accessKeys[user], in.Marker, f.pageSize)
	return &iam.ListAccessKeysOutput{AccessKeyMetadata: keys, Marker: next, IsTruncated: next != nil}, nil
}

func (f *fakeIAM) ListMFADevices(_ context.Context, in *iam.ListMFADevicesInput, _ ...func(*iam.Options)) (*iam.ListMFADevicesOutput, error) {
	n := f.mfaDevices[aws.ToString(in.UserName)]
	devices, next := pageOf(make([]iamtypes.MFADevice, n), in.Marker, f.pageSize)
	return &iam.ListMFADevicesOutput{MFADevices: devices, Marker: next, IsTruncated: next != nil}, nil
}

func (f *fakeIAM) GetLoginProfile(_ context.Context, in *iam.GetLoginProfileInput, _ ...func(*iam.Options)) (*iam.GetLoginProfileOutput, error) {
	if !f.loginProfiles[aws.ToString(in.UserName)] {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("no login profile")}
	}
	return &iam.GetLoginProfileOutput{}, nil
}

func (f *fakeIAM) GetAccountSummary(_ context.Context, _ *iam.GetAccountSummaryInput, _ ...func(*iam.Options)) (*iam.GetAccountSummaryOutput, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return &iam.GetAccountSummaryOutput{SummaryMap: f.summary}, nil
}

func (f *fakeIAM) ListUserPolicies(_ context.Context, in *iam.ListUserPoliciesInput, _ ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error) {
	names := lo.Map(f.userInline[aws.ToString(in.UserName)], func(p inlinePolicy, _ int) string { return p.name })
	names, next := pageOf(names, in.Marker, f.pageSize)
	return &iam.ListUserPoliciesOutput{PolicyNames: names, Marker: next, IsTruncated: next != nil}, nil
}

func (f *fakeIAM) GetUserPolicy(_ context.Context, in *iam.GetUserPolicyInput, _ ...func(*iam.Options)) (*iam.GetUserPolicyOutput, error) {
	for _, p := range f.userInline[aws.ToString(in.UserName)] {
		if p.name == aws.ToString(in.PolicyName) {
			return &iam.GetUserPolicyOutput{PolicyDocument: aws.String(p.doc)}, nil
		}
	}
	return nil, &iamtypes.NoSuchEntityException{}
}

func (f *fakeIAM) ListAttachedUserPolicies(_ context.Context, in *iam.ListAttachedUserPoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error) {
	attached, next := pageOf(f.userAttached[aws.ToString(in.UserName)], in.Marker, f.pageSize)
	return &iam.ListAttachedUserPoliciesOutput{AttachedPolicies: attached, Marker: next, IsTruncated: next != nil}, nil
}

func (f *fakeIAM) ListRolePolicies(_ context.Context, in *iam.ListRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error) {
	role := aws.ToString(in.RoleName)
	if err := f.roleErr[role]; err != nil {
		return nil, err
	}
	names := lo.Map(f.roleInline[role], func(p inlinePolicy, _ int) string { return p.name })
	names, next := pageOf(names, in.Marker, f.pageSize)
	return &iam.ListRolePoliciesOutput{PolicyNames: names, Marker: next, IsTruncated: next != nil}, nil
}

func (f *fakeIAM) GetRolePolicy(_ context.Context, in *iam.GetRolePolicyInput, _ ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error) {
	for _, p := range f.roleInline[aws.ToString(in.RoleName)] {
		if p.name == aws.ToString(in.PolicyName) {
			return &iam.GetRolePolicyOutput{PolicyDocument: aws.String(p.doc)}, nil
		}
	}
	return nil, &iamtypes.NoSuchEntityException{}
}

func (f *fakeIAM) ListAttachedRolePolicies(_ context.Context, in *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	attached, next := pageOf(f.roleAttached[aws.ToString(in.RoleName)], in.Marker, f.pageSize)
	return &iam.ListAttachedRolePoliciesOutput{AttachedPolicies: attached, Marker: next, IsTruncated: next != nil}, nil
}

func (f *fakeIAM) ListPolicies(_ context.Context, in *iam.ListPoliciesInput, _ ...func(*iam.Options)) (*iam.ListPoliciesOutput, error) {
	if f.policiesErr != nil {
		return nil, f.policiesErr
	}
	policies, next := pageOf(f.policies, in.Marker, f.pageSize)
	return &iam.ListPoliciesOutput{Policies: policies, Marker: next, IsTruncated: next != nil}, nil
}

func (f *fakeIAM) GetPolicy(_ context.Context, in *iam.GetPolicyInput, _ ...func(*iam.Options)) (*iam.GetPolicyOutput, error) {
	f.getPolicyCalls++
	if _, ok := f.managed[aws.ToString(in.PolicyArn)]; !ok {
		return nil, &iamtypes.NoSuchEntityException{}
	}
	return &iam.GetPolicyOutput{Policy: &iamtypes.Policy{
		Arn:              in.PolicyArn,
		DefaultVersionId: aws.String("v1"),
	}}, nil
}

func (f *fakeIAM) GetPolicyVersion(_ context.Context, in *iam.GetPolicyVersionInput, _ ...func(*iam.Options)) (*iam.GetPolicyVersionOutput, error) {
	return &iam.GetPolicyVersionOutput{PolicyVersion: &iamtypes.PolicyVersion{
		Document: aws.String(f.managed[aws.ToString(in.PolicyArn)]),
	}}, nil
}

func role(name, trust string) iamtypes.Role {
	return iamtypes.Role{
		RoleName:                 aws.String(name),
		Arn:                      aws.String("arn:aws:iam::" + testAccountID + ":role/" + name),
		Path:                     aws.String("/"),
		AssumeRolePolicyDocument: aws.String(trust),
	}
}

func user(name string) iamtypes.User {
	return iamtypes.User{UserName: aws.String(name)}
}

// ── EC2 ──────────────────────────────────────────────────────────────────────

type fakeEC2 struct {
	instances    []ec2types.Instance
	instancesErr error
	groups       []ec2types.SecurityGroup
	groupsErr    error
	images       []ec2types.Image
	snapshots    []ec2types.Snapshot
	publicSnaps  map[string]bool
	snapAttrErr  map[string]error
}

func (f *fakeEC2) DescribeInstances(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.instancesErr != nil {
		return nil, f.instancesErr
	}
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{Instances: f.instances}}}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	if len(in.GroupIds) == 0 {
		return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
	}
	groups := lo.Filter(f.groups, func(g ec2types.SecurityGroup, _ int) bool {
		return lo.Contains(in.GroupIds, aws.ToString(g.GroupId))
	})
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: groups}, nil
}

func (f *fakeEC2) DescribeSnapshots(_ context.Context, _ *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	return &ec2.DescribeSnapshotsOutput{Snapshots: f.snapshots}, nil
}

func (f *fakeEC2) DescribeImages(_ context.Context, _ *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	return &ec2.DescribeImagesOutput{Images: f.images}, nil
}

func (f *fakeEC2) DescribeSnapshotAttribute(_ context.Context, in *ec2.DescribeSnapshotAttributeInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotAttributeOutput, error) {
	id := aws.ToString(in.SnapshotId)
	if err := f.snapAttrErr[id]; err != nil {
		return nil, err
	}
	out := &ec2.DescribeSnapshotAttributeOutput{SnapshotId: in.SnapshotId}
	if f.publicSnaps[id] {
		out.CreateVolumePermissions = []ec2types.CreateVolumePermission{{Group: ec2types.PermissionGroupAll}}
	}
	return out, nil
}

func ingress(port int32, cidrs ...string) ec2types.IpPermission {
	perm := ec2types.IpPermission{
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(port),
		ToPort:     aws.Int32(port),
	}
	for _, c := range cidrs {
		if strings.Contains(c, ":") {
			perm.Ipv6Ranges = append(perm.Ipv6Ranges, ec2types.Ipv6Range{CidrIpv6: aws.String(c)})
			continue
		}
		perm.IpRanges = append(perm.IpRanges, ec2types.IpRange{CidrIp: aws.String(c)})
	}
	return perm
}

// ── S3 ───────────────────────────────────────────────────────────────────────

type fakeS3 struct {
	buckets      []string
	listErr      error
	blocks       map[string]*s3types.PublicAccessBlockConfiguration
	blockErr     map[string]error
	publicPolicy map[string]bool
	encrypted    map[string]bool
	encErr       map[string]error
}

func (f *fakeS3) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &s3.ListBucketsOutput{Buckets: lo.Map(f.buckets, func(n string, _ int) s3types.Bucket {
		return s3types.Bucket{Name: aws.String(n)}
	})}, nil
}

func (f *fakeS3) GetPublicAccessBlock(_ context.Context, in *s3.GetPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	name := aws.ToString(in.Bucket)
	if err := f.blockErr[name]; err != nil {
		return nil, err
	}
	cfg, ok := f.blocks[name]
	if !ok {
		return nil, apiError("NoSuchPublicAccessBlockConfiguration")
	}
	return &s3.GetPublicAccessBlockOutput{PublicAccessBlockConfiguration: cfg}, nil
}

func (f *fakeS3) GetBucketPolicyStatus(_ context.Context, in *s3.GetBucketPolicyStatusInput, _ ...func(*s3.Options)) (*s3.GetBucketPolicyStatusOutput, error) {
	public, ok := f.publicPolicy[aws.ToString(in.Bucket)]
	if !ok {
		return nil, apiError("NoSuchBucketPolicy")
	}
	return &s3.GetBucketPolicyStatusOutput{PolicyStatus: &s3types.PolicyStatus{IsPublic: aws.Bool(public)}}, nil
}

func (f *fakeS3) GetBucketEncryption(_ context.Context, in *s3.GetBucketEncryptionInput, _ ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	name := aws.ToString(in.Bucket)
	if err := f.encErr[name]; err != nil {
		return nil, err
	}
	if !f.encrypted[name] {
		return nil, apiError("ServerSideEncryptionConfigurationNotFoundError")
	}
	return &s3.GetBucketEncryptionOutput{ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
		Rules: []s3types.ServerSideEncryptionRule{{
			ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{SSEAlgorithm: s3types.ServerSideEncryptionAes256},
		}},
	}}, nil
}

func fullBlock() *s3types.PublicAccessBlockConfiguration {
	return &s3types.PublicAccessBlockConfiguration{
		BlockPublicAcls:       aws.Bool(true),
		IgnorePublicAcls:      aws.Bool(true),
		BlockPublicPolicy:     aws.Bool(true),
		RestrictPublicBuckets: aws.Bool(true),
	}
}

// ── RDS ──────────────────────────────────────────────────────────────────────

type fakeRDS struct {
	instances        []rdstypes.DBInstance
	instancesErr     error
	snapshots        []rdstypes.DBSnapshot
	snapshotsErr     error
	clusterSnapshots []rdstypes.DBClusterSnapshot
	restore          map[string][]string
	attrErr          map[string]error
}

func (f *fakeRDS) DescribeDBInstances(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if f.instancesErr != nil {
		return nil, f.instancesErr
	}
	return &rds.DescribeDBInstancesOutput{DBInstances: f.instances}, nil
}

func (f *fakeRDS) DescribeDBSnapshots(_ context.Context, _ *rds.DescribeDBSnapshotsInput, _ ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error) {
	if f.snapshotsErr != nil {
		return nil, f.snapshotsErr
	}
	return &rds.DescribeDBSnapshotsOutput{DBSnapshots: f.snapshots}, nil
}

func (f *fakeRDS) DescribeDBClusterSnapshots(_ context.Context, _ *rds.DescribeDBClusterSnapshotsInput, _ ...func(*rds.Options)) (*rds.DescribeDBClusterSnapshotsOutput, error) {
	return &rds.DescribeDBClusterSnapshotsOutput{DBClusterSnapshots: f.clusterSnapshots}, nil
}

func (f *fakeRDS) DescribeDBSnapshotAttributes(_ context.Context, in *rds.DescribeDBSnapshotAttributesInput, _ ...func(*rds.Options)) (*rds.DescribeDBSnapshotAttributesOutput, error) {
	id := aws.ToString(in.DBSnapshotIdentifier)
	if err := f.attrErr[id]; err != nil {
		return nil, err
	}
	return &rds.DescribeDBSnapshotAttributesOutput{DBSnapshotAttributesResult: &rdstypes.DBSnapshotAttributesResult{
		DBSnapshotAttributes: []rdstypes.DBSnapshotAttribute{{AttributeName: aws.String("restore"), AttributeValues: f.restore[id]}},
	}}, nil
}

func (f *fakeRDS) DescribeDBClusterSnapshotAttributes(_ context.Context, in *rds.DescribeDBClusterSnapshotAttributesInput, _ ...func(*rds.Options)) (*rds.DescribeDBClusterSnapshotAttributesOutput, error) {
	id := aws.ToString(in.DBClusterSnapshotIdentifier)
	return &rds.DescribeDBClusterSnapshotAttributesOutput{DBClusterSnapshotAttributesResult: &rdstypes.DBClusterSnapshotAttributesResult{
		DBClusterSnapshotAttributes: []rdstypes.DBClusterSnapshotAttribute{{AttributeName: aws.String("restore"), AttributeValues: f.restore[id]}},
	}}, nil
}

// ── CloudTrail ───────────────────────────────────────────────────────────────

type fakeCloudTrail struct {
	trails    []cttypes.Trail
	trailsErr error
	logging   map[string]bool
	statusErr map[string]error
	selectors map[string]*cloudtrail.GetEventSelectorsOutput
}

func (f *fakeCloudTrail) DescribeTrails(_ context.Context, _ *cloudtrail.DescribeTrailsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error) {
	if f.trailsErr != nil {
		return nil, f.trailsErr
	}
	return &cloudtrail.DescribeTrailsOutput{TrailList: f.trails}, nil
}

func (f *fakeCloudTrail) GetTrailStatus(_ context.Context, in *cloudtrail.GetTrailStatusInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error) {
	ref := aws.ToString(in.Name)
	if err := f.statusErr[ref]; err != nil {
		return nil, err
	}
	return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(f.logging[ref])}, nil
}

func (f *fakeCloudTrail) GetEventSelectors(_ context.Context, in *cloudtrail.GetEventSelectorsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.GetEventSelectorsOutput, error) {
	if out, ok := f.selectors[aws.ToString(in.TrailName)]; ok {
		return out, nil
	}
	return &cloudtrail.GetEventSelectorsOutput{}, nil
}

func trail(name string) cttypes.Trail {
	return cttypes.Trail{
		Name:     aws.String(name),
		TrailARN: aws.String("arn:aws:cloudtrail:us-east-1:" + testAccountID + ":trail/" + name),
	}
}

// ── GuardDuty / Config ───────────────────────────────────────────────────────

type fakeGuardDuty struct {
	ids      []string
	listErr  error
	statuses map[string]gdtypes.DetectorStatus
}

func (f *fakeGuardDuty) ListDetectors(_ context.Context, _ *guardduty.ListDetectorsInput, _ ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &guardduty.ListDetectorsOutput{DetectorIds: f.ids}, nil
}

func (f *fakeGuardDuty) GetDetector(_ context.Context, in *guardduty.GetDetectorInput, _ ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error) {
	st, ok := f.statuses[aws.ToString(in.DetectorId)]
	if !ok {
		return nil, errors.New("BadRequestException: detector not found")
	}
	return &guardduty.GetDetectorOutput{Status: st}, nil
}

type fakeConfig struct {
	recorders []cfgtypes.ConfigurationRecorderStatus
	err       error
}

func (f *fakeConfig) DescribeConfigurationRecorderStatus(_ context.Context, _ *configservice.DescribeConfigurationRecorderStatusInput, _ ...func(*configservice.Options)) (*configservice.DescribeConfigurationRecorderStatusOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &configservice.DescribeConfigurationRecorderStatusOutput{ConfigurationRecordersStatus: f.recorders}, nil
}

// ── EKS / ECR ────────────────────────────────────────────────────────────────

type fakeEKS struct {
	names    []string
	clusters map[string]*ekstypes.Cluster
	listErr  error
}

func (f *fakeEKS) ListClusters(_ context.Context, _ *eks.ListClustersInput, _ ...func(*eks.Options)) (*eks.ListClustersOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &eks.ListClustersOutput{Clusters: f.names}, nil
}

func (f *fakeEKS) DescribeCluster(_ context.Context, in *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	c, ok := f.clusters[aws.ToString(in.Name)]
	if !ok {
		return nil, apiError("ResourceNotFoundException")
	}
	return &eks.DescribeClusterOutput{Cluster: c}, nil
}

type fakeECR struct {
	repos    []ecrtypes.Repository
	policies map[string]string
}

func (f *fakeECR) DescribeRepositories(_ context.Context, _ *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	return &ecr.DescribeRepositoriesOutput{Repositories: f.repos}, nil
}

func (f *fakeECR) GetRepositoryPolicy(_ context.Context, in *ecr.GetRepositoryPolicyInput, _ ...func(*ecr.Options)) (*ecr.GetRepositoryPolicyOutput, error) {
	doc, ok := f.policies[aws.ToString(in.RepositoryName)]
	if !ok {
		return nil, apiError("RepositoryPolicyNotFoundException")
	}
	return &ecr.GetRepositoryPolicyOutput{PolicyText: aws.String(doc)}, nil
}

// ── ELBv2 / CloudWatch ───────────────────────────────────────────────────────

type fakeELB struct {
	lbs       []elbtypes.LoadBalancer
	listeners map[string][]elbtypes.Listener
}

func (f *fakeELB) DescribeLoadBalancers(_ context.Context, _ *elbv2.DescribeLoadBalancersInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error) {
	return &elbv2.DescribeLoadBalancersOutput{LoadBalancers: f.lbs}, nil
}

func (f *fakeELB) DescribeListeners(_ context.Context, in *elbv2.DescribeListenersInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeListenersOutput, error) {
	return &elbv2.DescribeListenersOutput{Listeners: f.listeners[aws.ToString(in.LoadBalancerArn)]}, nil
}

type fakeCloudWatch struct {
	alarms []cwtypes.MetricAlarm
	err    error
}

func (f *fakeCloudWatch) DescribeAlarms(_ context.Context, _ *cloudwatch.DescribeAlarmsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.DescribeAlarmsOutput{MetricAlarms: f.alarms}, nil
}
