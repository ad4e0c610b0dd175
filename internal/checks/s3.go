package checks

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// apiErrorCode returns the AWS error code carried by err, or "".
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// ── S3PublicAccessCheck ─────────────────────────────────────────────────────

// s3PublicAccessCheck requires every bucket to have all four public access
// block settings enabled and a bucket policy that is not public.
type s3PublicAccessCheck struct {
	s3 common.S3Client
}

func newS3PublicAccessCheck(sess *common.Session) Check {
	return &s3PublicAccessCheck{s3: sess.Clients.S3}
}

func (c *s3PublicAccessCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)
	out, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return enumerationFailed(nil, "list buckets", err)
	}
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)

		pab, err := c.s3.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(name)})
		if err != nil {
			if apiErrorCode(err) == "NoSuchPublicAccessBlockConfiguration" {
				o.fail(name, "bucket has no public access block configuration", nil)
				continue
			}
			o.errored(name, "get public access block", err)
			continue
		}
		cfg := pab.PublicAccessBlockConfiguration
		settings := map[string]any{}
		if cfg != nil {
			settings["block_public_acls"] = aws.ToBool(cfg.BlockPublicAcls)
			settings["ignore_public_acls"] = aws.ToBool(cfg.IgnorePublicAcls)
			settings["block_public_policy"] = aws.ToBool(cfg.BlockPublicPolicy)
			settings["restrict_public_buckets"] = aws.ToBool(cfg.RestrictPublicBuckets)
		}
		blocked := cfg != nil &&
			aws.ToBool(cfg.BlockPublicAcls) &&
			aws.ToBool(cfg.IgnorePublicAcls) &&
			aws.ToBool(cfg.BlockPublicPolicy) &&
			aws.ToBool(cfg.RestrictPublicBuckets)
		if !blocked {
			o.fail(name, "bucket public access block is not fully enabled", settings)
			continue
		}

		public, err := c.policyIsPublic(ctx, name)
		if err != nil {
			o.errored(name, "get bucket policy status", err)
			continue
		}
		if public {
			o.fail(name, "bucket policy grants public access", settings)
			continue
		}
		o.pass(name, "bucket public access is blocked", nil)
	}
	return o.done("no S3 buckets found")
}

// policyIsPublic reports whether the bucket policy is public. A bucket
// without a policy is not public.
func (c *s3PublicAccessCheck) policyIsPublic(ctx context.Context, bucket string) (bool, error) {
	out, err := c.s3.GetBucketPolicyStatus(ctx, &s3.GetBucketPolicyStatusInput{Bucket: aws.String(bucket)})
	if err != nil {
		if apiErrorCode(err) == "NoSuchBucketPolicy" {
			return false, nil
		}
		return false, err
	}
	return out.PolicyStatus != nil && aws.ToBool(out.PolicyStatus.IsPublic), nil
}

// ── S3EncryptionCheck ───────────────────────────────────────────────────────

// s3EncryptionCheck fails buckets without default server-side encryption.
type s3EncryptionCheck struct {
	s3 common.S3Client
}

func newS3EncryptionCheck(sess *common.Session) Check {
	return &s3EncryptionCheck{s3: sess.Clients.S3}
}

func (c *s3EncryptionCheck) Run(ctx context.Context) models.CheckOutcome {
	o := newOutcome(nil)
	out, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return enumerationFailed(nil, "list buckets", err)
	}
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		enc, err := c.s3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)})
		if err != nil {
			if apiErrorCode(err) == "ServerSideEncryptionConfigurationNotFoundError" {
				o.fail(name, "bucket has no default encryption", nil)
				continue
			}
			o.errored(name, "get bucket encryption", err)
			continue
		}
		var algorithms []string
		if enc.ServerSideEncryptionConfiguration != nil {
			for _, rule := range enc.ServerSideEncryptionConfiguration.Rules {
				if rule.ApplyServerSideEncryptionByDefault != nil {
					algorithms = append(algorithms, string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm))
				}
			}
		}
		if len(algorithms) == 0 {
			o.fail(name, "bucket has no default encryption rule", nil)
			continue
		}
		o.pass(name, "bucket default encryption is enabled", map[string]any{"algorithms": algorithms})
	}
	return o.done("no S3 buckets found")
}
