package common

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ErrSessionEstablishment is returned (wrapped) by a CredentialBroker when the
// target role cannot be assumed. The audit cannot proceed without it.
var ErrSessionEstablishment = errors.New("unable to establish audit session")

// ScopedCredentials are the short-lived credentials returned by AssumeRole.
type ScopedCredentials struct {
	// RoleARN is the role the credentials were issued for.
	RoleARN string

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Expiration is when the credentials stop being valid. Zero if unknown.
	Expiration time.Time
}

// Session is an authenticated handle into the target account. Every check is
// constructed with one and issues all of its API calls through Clients.
type Session struct {
	// AccountID is the audited account.
	AccountID string

	// RoleARN is the role the session was obtained from.
	RoleARN string

	// Region is the region the service clients are scoped to.
	Region string

	// Expires mirrors ScopedCredentials.Expiration.
	Expires time.Time

	// Config is the AWS SDK v2 configuration carrying the scoped credentials.
	Config aws.Config

	// Clients holds service clients built from Config.
	Clients *ClientSet
}

// CredentialBroker exchanges a target account and role for scoped
// credentials and turns them into a Session.
type CredentialBroker interface {
	// AssumeRole obtains scoped credentials for roleName in accountID.
	// externalID is passed only when non-empty. Failures wrap
	// ErrSessionEstablishment and are not retried.
	AssumeRole(ctx context.Context, accountID, roleName, externalID string) (*ScopedCredentials, error)

	// BuildSession returns a Session whose clients authenticate with creds.
	BuildSession(accountID string, creds *ScopedCredentials) *Session
}
