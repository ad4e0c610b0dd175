package checks

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// remoteAdminPorts are the ports whose exposure SecurityGroupRemoteAccessCheck
// evaluates (SSH and RDP).
var remoteAdminPorts = []int32{22, 3389}

const (
	// minIPv4Prefix and minIPv6Prefix are the widest CIDR prefixes accepted
	// for remote administration ports.
	minIPv4Prefix = 16
	minIPv6Prefix = 32
)

// listInstances returns every non-terminated instance using the
// DescribeInstances paginator.
func listInstances(ctx context.Context, client common.EC2Client) ([]ec2types.Instance, error) {
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	var instances []ec2types.Instance
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				instances = append(instances, inst)
			}
		}
	}
	return instances, nil
}

// ── EC2IMDSv2Check ──────────────────────────────────────────────────────────

// imdsV2Check fails instances that still accept IMDSv1 requests.
type imdsV2Check struct {
	ec2 common.EC2Client
}

func newIMDSv2Check(sess *common.Session) Check {
	return &imdsV2Check{ec2: sess.Clients.EC2}
}

func (c *imdsV2Check) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)
	instances, err := listInstances(ctx, c.ec2)
	if err != nil {
		return enumerationFailed(nil, "describe instances", err)
	}
	for _, inst := range instances {
		id := aws.ToString(inst.InstanceId)
		tokens := ""
		if inst.MetadataOptions != nil {
			tokens = string(inst.MetadataOptions.HttpTokens)
		}
		if tokens == string(ec2types.HttpTokensStateRequired) {
			o.pass(id, "IMDSv2 is required", nil)
			continue
		}
		o.fail(id, "instance metadata service accepts IMDSv1 requests", map[string]any{"http_tokens": tokens})
	}
	return o.done("no EC2 instances found")
}

// ── EC2PublicIPCheck ────────────────────────────────────────────────────────

// publicIPCheck warns about instances with a public IPv4 address.
type publicIPCheck struct {
	ec2 common.EC2Client
}

func newPublicIPCheck(sess *common.Session) Check {
	return &publicIPCheck{ec2: sess.Clients.EC2}
}

func (c *publicIPCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)
	instances, err := listInstances(ctx, c.ec2)
	if err != nil {
		return enumerationFailed(nil, "describe instances", err)
	}
	for _, inst := range instances {
		id := aws.ToString(inst.InstanceId)
		if ip := aws.ToString(inst.PublicIpAddress); ip != "" {
			o.warn(id, "instance has public IP address "+ip, map[string]any{"public_ip": ip})
			continue
		}
		o.pass(id, "instance has no public IP address", nil)
	}
	return o.done("no EC2 instances found")
}

// ── EC2AMIPrivateCheck ──────────────────────────────────────────────────────

// amiPrivateCheck fails AMIs owned by the account that are shared publicly.
type amiPrivateCheck struct {
	ec2 common.EC2Client
}

func newAMIPrivateCheck(sess *common.Session) Check {
	return &amiPrivateCheck{ec2: sess.Clients.EC2}
}

func (c *amiPrivateCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)
	out, err := c.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{Owners: []string{"self"}})
	if err != nil {
		return enumerationFailed(nil, "describe images", err)
	}
	for _, img := range out.Images {
		id := aws.ToString(img.ImageId)
		if aws.ToBool(img.Public) {
			o.fail(id, "AMI is publicly shared", map[string]any{"name": aws.ToString(img.Name)})
			continue
		}
		o.pass(id, "AMI is private", nil)
	}
	return o.done("no self-owned AMIs found")
}

// ── EBSSnapshotPrivateCheck ─────────────────────────────────────────────────

// snapshotPrivateCheck fails self-owned EBS snapshots restorable by anyone
// and warns about unencrypted ones.
type snapshotPrivateCheck struct {
	ec2 common.EC2Client
}

func newSnapshotPrivateCheck(sess *common.Session) Check {
	return &snapshotPrivateCheck{ec2: sess.Clients.EC2}
}

func (c *snapshotPrivateCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)

	paginator := ec2.NewDescribeSnapshotsPaginator(c.ec2, &ec2.DescribeSnapshotsInput{OwnerIds: []string{"self"}})
	var snapshots []ec2types.Snapshot
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return enumerationFailed(nil, "describe snapshots", err)
		}
		snapshots = append(snapshots, page.Snapshots...)
	}

	for _, snap := range snapshots {
		id := aws.ToString(snap.SnapshotId)
		attr, err := c.ec2.DescribeSnapshotAttribute(ctx, &ec2.DescribeSnapshotAttributeInput{
			SnapshotId: snap.SnapshotId,
			Attribute:  ec2types.SnapshotAttributeNameCreateVolumePermission,
		})
		if err != nil {
			o.errored(id, "describe snapshot attribute", err)
			continue
		}
		public := false
		for _, perm := range attr.CreateVolumePermissions {
			if perm.Group == ec2types.PermissionGroupAll {
				public = true
			}
		}
		switch {
		case public:
			o.fail(id, "snapshot is restorable by any AWS account", nil)
		case !aws.ToBool(snap.Encrypted):
			o.warn(id, "snapshot is private but not encrypted", nil)
		default:
			o.pass(id, "snapshot is private and encrypted", nil)
		}
	}
	return o.done("no self-owned EBS snapshots found")
}

// ── SecurityGroupRemoteAccessCheck ──────────────────────────────────────────

// remoteAccessCheck fails security groups that open SSH or RDP to a CIDR
// wider than /16 (IPv4) or /32 (IPv6).
type remoteAccessCheck struct {
	ec2 common.EC2Client
}

func newRemoteAccessCheck(sess *common.Session) Check {
	return &remoteAccessCheck{ec2: sess.Clients.EC2}
}

// exposure is one ingress range that opens a remote administration port.
type exposure struct {
	Port      int32  `json:"port"`
	CIDR      string `json:"cidr"`
	PrefixLen int    `json:"prefix_len"`
}

func (c *remoteAccessCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(5)
	o := newOutcome(guideline)

	groups, err := listSecurityGroups(ctx, c.ec2, nil)
	if err != nil {
		return enumerationFailed(guideline, "describe security groups", err)
	}
	for _, sg := range groups {
		id := aws.ToString(sg.GroupId)
		var found []exposure
		for _, port := range remoteAdminPorts {
			found = append(found, wideIngress(sg.IpPermissions, port, minIPv4Prefix, minIPv6Prefix)...)
		}
		if len(found) == 0 {
			o.pass(id, "SSH and RDP are not open to wide CIDR ranges", nil)
			continue
		}
		o.evidence(map[string]any{
			"group_id":   id,
			"group_name": aws.ToString(sg.GroupName),
			"exposures":  found,
		})
		parts := make([]string, 0, len(found))
		for _, e := range found {
			parts = append(parts, fmt.Sprintf("%d from %s", e.Port, e.CIDR))
		}
		o.fail(id, fmt.Sprintf("security group %s opens remote access: %s", aws.ToString(sg.GroupName), strings.Join(parts, ", ")),
			map[string]any{"exposures": found})
	}
	return o.done("no security groups found")
}

// listSecurityGroups returns security groups, optionally limited to ids.
func listSecurityGroups(ctx context.Context, client common.EC2Client, ids []string) ([]ec2types.SecurityGroup, error) {
	paginator := ec2.NewDescribeSecurityGroupsPaginator(client, &ec2.DescribeSecurityGroupsInput{GroupIds: ids})
	var groups []ec2types.SecurityGroup
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		groups = append(groups, page.SecurityGroups...)
	}
	return groups, nil
}

// wideIngress returns the ingress ranges in perms that open port to a
// prefix shorter than minV4 (IPv4) or minV6 (IPv6). Protocol "-1" covers
// every port.
func wideIngress(perms []ec2types.IpPermission, port int32, minV4, minV6 int) []exposure {
	var out []exposure
	for _, perm := range perms {
		if !coversPort(perm, port) {
			continue
		}
		for _, r := range perm.IpRanges {
			if e, ok := wideRange(aws.ToString(r.CidrIp), port, minV4); ok {
				out = append(out, e)
			}
		}
		for _, r := range perm.Ipv6Ranges {
			if e, ok := wideRange(aws.ToString(r.CidrIpv6), port, minV6); ok {
				out = append(out, e)
			}
		}
	}
	return out
}

func coversPort(perm ec2types.IpPermission, port int32) bool {
	if aws.ToString(perm.IpProtocol) == "-1" {
		return true
	}
	if perm.FromPort == nil || perm.ToPort == nil {
		return false
	}
	return aws.ToInt32(perm.FromPort) <= port && port <= aws.ToInt32(perm.ToPort)
}

func wideRange(cidr string, port int32, minPrefix int) (exposure, bool) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil || prefix.Bits() >= minPrefix {
		return exposure{}, false
	}
	return exposure{Port: port, CIDR: cidr, PrefixLen: prefix.Bits()}, true
}
