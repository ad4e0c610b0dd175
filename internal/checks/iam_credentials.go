package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// maxAccessKeyAge is the rotation threshold for active access keys.
const maxAccessKeyAge = 90 * 24 * time.Hour

// rootResource is the resource id used for findings about the root user.
const rootResource = "root"

// ── IAMAccessKeyAgeCheck ────────────────────────────────────────────────────

// accessKeyAgeCheck fails active access keys older than 90 days.
type accessKeyAgeCheck struct {
	iam common.IAMClient
	now func() time.Time
}

func newAccessKeyAgeCheck(sess *common.Session) Check {
	return &accessKeyAgeCheck{iam: sess.Clients.IAM, now: time.Now}
}

func (c *accessKeyAgeCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(13)
	o := newOutcome(guideline)

	users, err := listUsers(ctx, c.iam)
	if err != nil {
		return enumerationFailed(guideline, "list IAM users", err)
	}

	now := c.now()
	for _, u := range users {
		user := aws.ToString(u.UserName)
		keys, err := listAccessKeys(ctx, c.iam, user)
		if err != nil {
			o.errored(user, "list access keys", err)
			continue
		}
		for _, k := range keys {
			if k.Status != iamtypes.StatusTypeActive {
				continue
			}
			id := aws.ToString(k.AccessKeyId)
			age := now.Sub(aws.ToTime(k.CreateDate))
			days := int(age.Hours() / 24)
			details := map[string]any{"user": user, "age_days": days}
			if age > maxAccessKeyAge {
				o.fail(id, fmt.Sprintf("access key of %s is %d days old (limit 90)", user, days), details)
				continue
			}
			o.pass(id, fmt.Sprintf("access key of %s is %d days old", user, days), details)
		}
	}
	return o.done("no active access keys found")
}

// ── IAMRootAccessKeyCheck ───────────────────────────────────────────────────

// rootAccessKeyCheck fails when the root user has access keys.
type rootAccessKeyCheck struct {
	iam common.IAMClient
}

func newRootAccessKeyCheck(sess *common.Session) Check {
	return &rootAccessKeyCheck{iam: sess.Clients.IAM}
}

func (c *rootAccessKeyCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(15)
	o := newOutcome(guideline)

	summary, err := accountSummary(ctx, c.iam)
	if err != nil {
		return enumerationFailed(guideline, "get account summary", err)
	}
	present := summary["AccountAccessKeysPresent"]
	if present > 0 {
		o.fail(rootResource, "root user has access keys", map[string]any{"access_keys_present": present})
	} else {
		o.pass(rootResource, "root user has no access keys", nil)
	}
	return o.done("")
}

// ── IAMMFACheck ─────────────────────────────────────────────────────────────

// mfaCheck reports root MFA and one result per IAM user with console
// access. Users without a login profile cannot sign in to the console and
// are not evaluated.
type mfaCheck struct {
	iam common.IAMClient
}

func newMFACheck(sess *common.Session) Check {
	return &mfaCheck{iam: sess.Clients.IAM}
}

func (c *mfaCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(18)
	o := newOutcome(guideline)

	summary, err := accountSummary(ctx, c.iam)
	switch {
	case err != nil:
		o.errored(rootResource, "get account summary", err)
	case summary["AccountMFAEnabled"] == 1:
		o.pass(rootResource, "root user has MFA enabled", nil)
	default:
		o.fail(rootResource, "root user does not have MFA enabled", nil)
	}

	users, err := listUsers(ctx, c.iam)
	if err != nil {
		o.errored(models.ResourceNotApplicable, "list IAM users", err)
		return o.res
	}
	for _, u := range users {
		name := aws.ToString(u.UserName)
		console, err := hasLoginProfile(ctx, c.iam, name)
		if err != nil {
			o.errored(name, "get login profile", err)
			continue
		}
		if !console {
			continue
		}
		devices, err := countMFADevices(ctx, c.iam, name)
		if err != nil {
			o.errored(name, "list MFA devices", err)
			continue
		}
		if devices == 0 {
			o.fail(name, "console user has no MFA device", nil)
			continue
		}
		o.pass(name, "console user has MFA enabled", map[string]any{"devices": devices})
	}
	return o.res
}

// listAccessKeys returns every access key of userName.
func listAccessKeys(ctx context.Context, client common.IAMClient, userName string) ([]iamtypes.AccessKeyMetadata, error) {
	paginator := iam.NewListAccessKeysPaginator(client, &iam.ListAccessKeysInput{UserName: aws.String(userName)})
	var keys []iamtypes.AccessKeyMetadata
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page.AccessKeyMetadata...)
	}
	return keys, nil
}

// countMFADevices returns the number of MFA devices of userName.
func countMFADevices(ctx context.Context, client common.IAMClient, userName string) (int, error) {
	paginator := iam.NewListMFADevicesPaginator(client, &iam.ListMFADevicesInput{UserName: aws.String(userName)})
	n := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		n += len(page.MFADevices)
	}
	return n, nil
}

func accountSummary(ctx context.Context, client common.IAMClient) (map[string]int32, error) {
	out, err := client.GetAccountSummary(ctx, &iam.GetAccountSummaryInput{})
	if err != nil {
		return nil, err
	}
	return out.SummaryMap, nil
}

// hasLoginProfile reports whether userName has a console password.
// NoSuchEntity means no login profile; other errors are returned.
func hasLoginProfile(ctx context.Context, client common.IAMClient, userName string) (bool, error) {
	_, err := client.GetLoginProfile(ctx, &iam.GetLoginProfileInput{UserName: aws.String(userName)})
	if err == nil {
		return true, nil
	}
	var notFound *iamtypes.NoSuchEntityException
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}
