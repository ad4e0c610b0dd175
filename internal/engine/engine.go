package engine

import (
	"context"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
)

// DefaultRoleName is the role assumed in the target account when the caller
// does not name one.
const DefaultRoleName = "InfraAuditRole"

// AuditOptions configures a single audit run.
// It is the sole input to Runner.RunAudit.
type AuditOptions struct {
	// AccountID is the 12-digit id of the account to audit. Required.
	AccountID string

	// RoleName is the role to assume in AccountID. Empty means the runner's
	// configured default.
	RoleName string

	// ExternalID is passed to AssumeRole only when non-empty.
	ExternalID string

	// Checks restricts the run to the named checks, in this order. Empty
	// means every registered check. Unknown names are ignored.
	Checks []string
}

// Runner is the central orchestration interface.
// It establishes a session in the target account, runs the resolved checks,
// and stores the resulting AuditRecord.
//
// Runner must not call the AWS SDK directly; it delegates to the credential
// broker and to the checks.
type Runner interface {
	// RunAudit runs one audit to completion. When the session cannot be
	// established it returns the stored failed record together with the
	// error.
	RunAudit(ctx context.Context, opts AuditOptions) (*models.AuditRecord, error)

	// GetAudit returns a previously stored record.
	GetAudit(id string) (*models.AuditRecord, error)
}
