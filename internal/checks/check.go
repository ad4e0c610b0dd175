// Package checks holds the check contract, the name-to-factory registry and
// the built-in AWS security checks.
package checks

import (
	"context"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// Check evaluates one category of AWS resources in the session's account.
//
// A conforming check:
//   - enumerates its resources with read-only API calls, using the SDK
//     paginators where the API paginates;
//   - emits exactly one result per evaluated resource;
//   - emits a single PASS result with resource_id "N/A" when there is
//     nothing to evaluate;
//   - reports an enumeration failure as a single ERROR result with
//     resource_id "N/A" and a failure on one resource as an ERROR result for
//     that resource only.
//
// Run must not panic. The runner recovers panics anyway and records them as
// an ERROR result.
type Check interface {
	Run(ctx context.Context) models.CheckOutcome
}

// Factory constructs a Check bound to an authenticated session.
type Factory func(sess *common.Session) Check
