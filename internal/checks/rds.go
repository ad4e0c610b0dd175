package checks

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/samber/lo"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// restoreAttribute is the snapshot attribute listing accounts allowed to
// restore it; the value "all" makes the snapshot public.
const restoreAttribute = "restore"

func listDBInstances(ctx context.Context, client common.RDSClient) ([]rdstypes.DBInstance, error) {
	paginator := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{})
	var out []rdstypes.DBInstance
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.DBInstances...)
	}
	return out, nil
}

// ── RDSPublicAccessibilityCheck ─────────────────────────────────────────────

// rdsPublicAccessCheck grades publicly accessible DB instances by what
// their security groups admit: a /16 or wider range on the DB port fails,
// a publicly accessible instance behind narrower rules warns.
type rdsPublicAccessCheck struct {
	rds common.RDSClient
	ec2 common.EC2Client
}

func newRDSPublicAccessCheck(sess *common.Session) Check {
	return &rdsPublicAccessCheck{rds: sess.Clients.RDS, ec2: sess.Clients.EC2}
}

func (c *rdsPublicAccessCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(24)
	o := newOutcome(guideline)

	instances, err := listDBInstances(ctx, c.rds)
	if err != nil {
		return enumerationFailed(guideline, "describe DB instances", err)
	}
	for _, db := range instances {
		id := aws.ToString(db.DBInstanceIdentifier)
		if !aws.ToBool(db.PubliclyAccessible) {
			o.pass(id, "DB instance is not publicly accessible", nil)
			continue
		}

		port := aws.ToInt32(db.DbInstancePort)
		if db.Endpoint != nil && db.Endpoint.Port != nil {
			port = aws.ToInt32(db.Endpoint.Port)
		}
		groupIDs := lo.FilterMap(db.VpcSecurityGroups, func(m rdstypes.VpcSecurityGroupMembership, _ int) (string, bool) {
			return aws.ToString(m.VpcSecurityGroupId), m.VpcSecurityGroupId != nil
		})

		var found []exposure
		if len(groupIDs) > 0 {
			groups, err := listSecurityGroups(ctx, c.ec2, groupIDs)
			if err != nil {
				o.errored(id, "describe DB security groups", err)
				continue
			}
			for _, sg := range groups {
				found = append(found, wideIngress(sg.IpPermissions, port, minIPv4Prefix+1, minIPv6Prefix+1)...)
			}
		}

		details := map[string]any{"port": port, "security_groups": groupIDs}
		if len(found) > 0 {
			details["exposures"] = found
			o.evidence(map[string]any{"db_instance": id, "exposures": found})
			o.fail(id, fmt.Sprintf("DB instance is publicly accessible and port %d is open to wide CIDR ranges", port), details)
			continue
		}
		o.warn(id, "DB instance is publicly accessible but security groups restrict the DB port", details)
	}
	return o.done("no RDS instances found")
}

// ── RDSSnapshotPublicAccessCheck ────────────────────────────────────────────

// rdsSnapshotPublicCheck fails manual DB and cluster snapshots that any AWS
// account can restore.
type rdsSnapshotPublicCheck struct {
	rds common.RDSClient
}

func newRDSSnapshotPublicCheck(sess *common.Session) Check {
	return &rdsSnapshotPublicCheck{rds: sess.Clients.RDS}
}

func (c *rdsSnapshotPublicCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(27)
	o := newOutcome(guideline)

	var dbSnapshots []rdstypes.DBSnapshot
	dbPages := rds.NewDescribeDBSnapshotsPaginator(c.rds, &rds.DescribeDBSnapshotsInput{SnapshotType: aws.String("manual")})
	for dbPages.HasMorePages() {
		page, err := dbPages.NextPage(ctx)
		if err != nil {
			return enumerationFailed(guideline, "describe DB snapshots", err)
		}
		dbSnapshots = append(dbSnapshots, page.DBSnapshots...)
	}

	var clusterSnapshots []rdstypes.DBClusterSnapshot
	clusterPages := rds.NewDescribeDBClusterSnapshotsPaginator(c.rds, &rds.DescribeDBClusterSnapshotsInput{SnapshotType: aws.String("manual")})
	for clusterPages.HasMorePages() {
		page, err := clusterPages.NextPage(ctx)
		if err != nil {
			return enumerationFailed(guideline, "describe DB cluster snapshots", err)
		}
		clusterSnapshots = append(clusterSnapshots, page.DBClusterSnapshots...)
	}

	for _, snap := range dbSnapshots {
		id := aws.ToString(snap.DBSnapshotIdentifier)
		attrs, err := c.rds.DescribeDBSnapshotAttributes(ctx, &rds.DescribeDBSnapshotAttributesInput{
			DBSnapshotIdentifier: snap.DBSnapshotIdentifier,
		})
		if err != nil {
			o.errored(id, "describe DB snapshot attributes", err)
			continue
		}
		var values [][]string
		if attrs.DBSnapshotAttributesResult != nil {
			for _, a := range attrs.DBSnapshotAttributesResult.DBSnapshotAttributes {
				if aws.ToString(a.AttributeName) == restoreAttribute {
					values = append(values, a.AttributeValues)
				}
			}
		}
		c.record(o, id, "DB snapshot", values)
	}

	for _, snap := range clusterSnapshots {
		id := aws.ToString(snap.DBClusterSnapshotIdentifier)
		attrs, err := c.rds.DescribeDBClusterSnapshotAttributes(ctx, &rds.DescribeDBClusterSnapshotAttributesInput{
			DBClusterSnapshotIdentifier: snap.DBClusterSnapshotIdentifier,
		})
		if err != nil {
			o.errored(id, "describe DB cluster snapshot attributes", err)
			continue
		}
		var values [][]string
		if attrs.DBClusterSnapshotAttributesResult != nil {
			for _, a := range attrs.DBClusterSnapshotAttributesResult.DBClusterSnapshotAttributes {
				if aws.ToString(a.AttributeName) == restoreAttribute {
					values = append(values, a.AttributeValues)
				}
			}
		}
		c.record(o, id, "DB cluster snapshot", values)
	}

	return o.done("no manual RDS snapshots found")
}

func (c *rdsSnapshotPublicCheck) record(o *outcome, id, kind string, restore [][]string) {
	if lo.Contains(lo.Flatten(restore), "all") {
		o.evidence(map[string]any{"snapshot": id, "type": kind})
		o.fail(id, kind+" is restorable by any AWS account", map[string]any{"type": kind})
		return
	}
	o.pass(id, kind+" is private", map[string]any{"type": kind})
}

// ── RDSEncryptionCheck ──────────────────────────────────────────────────────

// rdsEncryptionCheck fails DB instances without storage encryption.
type rdsEncryptionCheck struct {
	rds common.RDSClient
}

func newRDSEncryptionCheck(sess *common.Session) Check {
	return &rdsEncryptionCheck{rds: sess.Clients.RDS}
}

func (c *rdsEncryptionCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)
	instances, err := listDBInstances(ctx, c.rds)
	if err != nil {
		return enumerationFailed(nil, "describe DB instances", err)
	}
	for _, db := range instances {
		id := aws.ToString(db.DBInstanceIdentifier)
		if aws.ToBool(db.StorageEncrypted) {
			o.pass(id, "DB storage is encrypted", map[string]any{"kms_key_id": aws.ToString(db.KmsKeyId)})
			continue
		}
		o.fail(id, "DB storage is not encrypted", nil)
	}
	return o.done("no RDS instances found")
}
