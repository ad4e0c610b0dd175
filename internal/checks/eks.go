package checks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/samber/lo"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// eksClusterCheck enumerates clusters, describes each one and hands it to
// evaluate. The two EKS checks differ only in evaluate.
type eksClusterCheck struct {
	eks      common.EKSClient
	evaluate func(o *outcome, name string, cluster *ekstypes.Cluster)
}

func (c *eksClusterCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)

	paginator := eks.NewListClustersPaginator(c.eks, &eks.ListClustersInput{})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return enumerationFailed(nil, "list EKS clusters", err)
		}
		names = append(names, page.Clusters...)
	}

	for _, name := range names {
		out, err := c.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
		if err != nil {
			o.errored(name, "describe cluster", err)
			continue
		}
		if out.Cluster == nil {
			o.errored(name, "describe cluster", errEmptyResponse)
			continue
		}
		c.evaluate(o, name, out.Cluster)
	}
	return o.done("no EKS clusters found")
}

// ── EKSEndpointAccessCheck ──────────────────────────────────────────────────

// newEKSEndpointCheck fails clusters whose API endpoint is public to the
// whole internet and warns when it is public but CIDR-restricted.
func newEKSEndpointCheck(sess *common.Session) Check {
	return &eksClusterCheck{eks: sess.Clients.EKS, evaluate: evaluateEndpointAccess}
}

func evaluateEndpointAccess(o *outcome, name string, cluster *ekstypes.Cluster) {
	vpc := cluster.ResourcesVpcConfig
	if vpc == nil {
		o.warn(name, "cluster VPC configuration is not available", nil)
		return
	}
	details := map[string]any{
		"endpoint_public_access":  vpc.EndpointPublicAccess,
		"endpoint_private_access": vpc.EndpointPrivateAccess,
		"public_access_cidrs":     vpc.PublicAccessCidrs,
	}
	switch {
	case !vpc.EndpointPublicAccess && vpc.EndpointPrivateAccess:
		o.pass(name, "API endpoint is private", details)
	case !vpc.EndpointPublicAccess:
		o.fail(name, "API endpoint has neither public nor private access enabled", details)
	case len(vpc.PublicAccessCidrs) == 0 || lo.Contains(vpc.PublicAccessCidrs, "0.0.0.0/0"):
		o.evidence(map[string]any{"cluster": name, "public_access_cidrs": vpc.PublicAccessCidrs})
		o.fail(name, "API endpoint is publicly accessible from any address", details)
	default:
		o.warn(name, "API endpoint is public but restricted to specific CIDR ranges", details)
	}
}

// ── EKSSecretsEncryptionCheck ───────────────────────────────────────────────

// newEKSSecretsEncryptionCheck fails clusters that do not envelope-encrypt
// Kubernetes secrets with a KMS key.
func newEKSSecretsEncryptionCheck(sess *common.Session) Check {
	return &eksClusterCheck{eks: sess.Clients.EKS, evaluate: evaluateSecretsEncryption}
}

func evaluateSecretsEncryption(o *outcome, name string, cluster *ekstypes.Cluster) {
	for _, cfg := range cluster.EncryptionConfig {
		if !lo.Contains(cfg.Resources, "secrets") {
			continue
		}
		key := ""
		if cfg.Provider != nil {
			key = aws.ToString(cfg.Provider.KeyArn)
		}
		o.pass(name, "Kubernetes secrets are encrypted with KMS", map[string]any{"key_arn": key})
		return
	}
	o.fail(name, "Kubernetes secrets are not encrypted with a KMS key", nil)
}
