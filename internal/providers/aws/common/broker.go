package common

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	// DefaultSessionName is the RoleSessionName recorded in the target
	// account's CloudTrail for every audit.
	DefaultSessionName = "InfraAuditSession"

	// DefaultSessionDuration is the lifetime requested for scoped credentials.
	DefaultSessionDuration = time.Hour

	// DefaultRegion is used when neither the options nor the ambient AWS
	// configuration name a region.
	DefaultRegion = "us-east-1"
)

// BrokerOptions configures an STSBroker. Zero values fall back to the
// package defaults.
type BrokerOptions struct {
	Region          string
	SessionName     string
	SessionDuration time.Duration
}

// STSBroker is the production CredentialBroker. It assumes the target role
// with the ambient credentials of the process (environment, shared config,
// instance profile) and never retries.
//
// Inject a custom ClientFactory via NewSTSBrokerWithClients to replace the
// per-session service clients with mocks in unit tests.
type STSBroker struct {
	base        aws.Config
	sts         STSClient
	factory     ClientFactory
	sessionName string
	duration    time.Duration
}

// NewSTSBroker loads the default AWS configuration and returns a broker
// backed by the real STS API.
func NewSTSBroker(ctx context.Context, opts BrokerOptions) (*STSBroker, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// Fall back to us-east-1 when no region is configured so that all SDK
	// clients can be constructed successfully.
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	// A single AssumeRole attempt per audit: the SDK retryer is disabled.
	stsClient := sts.NewFromConfig(cfg, func(o *sts.Options) {
		o.Retryer = aws.NopRetryer{}
	})

	return NewSTSBrokerWithClients(cfg, stsClient, NewClientSet, opts), nil
}

// NewSTSBrokerWithClients returns a broker that calls stsClient and builds
// session clients with factory. Pass fakes in tests.
func NewSTSBrokerWithClients(base aws.Config, stsClient STSClient, factory ClientFactory, opts BrokerOptions) *STSBroker {
	if opts.Region != "" {
		base.Region = opts.Region
	}
	if base.Region == "" {
		base.Region = DefaultRegion
	}
	name := opts.SessionName
	if name == "" {
		name = DefaultSessionName
	}
	duration := opts.SessionDuration
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &STSBroker{
		base:        base,
		sts:         stsClient,
		factory:     factory,
		sessionName: name,
		duration:    duration,
	}
}

// ---------------------------------------------------------------------------
// CredentialBroker implementation
// ---------------------------------------------------------------------------

// AssumeRole calls STS AssumeRole once for roleName in accountID.
func (b *STSBroker) AssumeRole(ctx context.Context, accountID, roleName, externalID string) (*ScopedCredentials, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrSessionEstablishment)
	}
	if strings.TrimSpace(roleName) == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrSessionEstablishment)
	}

	roleARN := RoleARN(b.base.Region, accountID, roleName)
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(b.sessionName),
		DurationSeconds: aws.Int32(int32(b.duration / time.Second)),
	}
	if externalID != "" {
		input.ExternalId = aws.String(externalID)
	}

	out, err := b.sts.AssumeRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: assume role %s: %w", ErrSessionEstablishment, roleARN, err)
	}
	if out.Credentials == nil {
		return nil, fmt.Errorf("%w: assume role %s: no credentials returned", ErrSessionEstablishment, roleARN)
	}

	return &ScopedCredentials{
		RoleARN:         roleARN,
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Expiration:      aws.ToTime(out.Credentials.Expiration),
	}, nil
}

// CallerAccount returns the account that owns the broker's ambient
// credentials. It is used for diagnostics; audits never depend on it.
func (b *STSBroker) CallerAccount(ctx context.Context) (string, error) {
	out, err := b.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// BuildSession copies the base configuration, swaps in a static provider for
// creds, and creates the session's service clients.
func (b *STSBroker) BuildSession(accountID string, creds *ScopedCredentials) *Session {
	cfg := b.base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID,
		creds.SecretAccessKey,
		creds.SessionToken,
	))

	return &Session{
		AccountID: accountID,
		RoleARN:   creds.RoleARN,
		Region:    cfg.Region,
		Expires:   creds.Expiration,
		Config:    cfg,
		Clients:   b.factory(cfg),
	}
}

// RoleARN formats the ARN of roleName in accountID using the partition that
// owns region.
func RoleARN(region, accountID, roleName string) string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", partitionFor(region), accountID, roleName)
}

func partitionFor(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}
