package checks

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// imageTransferActions are the ECR actions that push or pull image content.
var imageTransferActions = []string{
	"ecr:BatchGetImage",
	"ecr:GetDownloadUrlForLayer",
	"ecr:PutImage",
	"ecr:InitiateLayerUpload",
	"ecr:UploadLayerPart",
	"ecr:CompleteLayerUpload",
}

// ecrRepositoryCheck fails repositories that allow anonymous push or pull,
// do not scan images on push, or have mutable tags.
type ecrRepositoryCheck struct {
	ecr common.ECRClient
}

func newECRRepositoryCheck(sess *common.Session) Check {
	return &ecrRepositoryCheck{ecr: sess.Clients.ECR}
}

func (c *ecrRepositoryCheck) Run(ctx context.Context) models.CheckOutcome {
	guideline := models.Guideline(43)
	o := newOutcome(guideline)

	paginator := ecr.NewDescribeRepositoriesPaginator(c.ecr, &ecr.DescribeRepositoriesInput{})
	var repos []ecrtypes.Repository
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return enumerationFailed(guideline, "describe repositories", err)
		}
		repos = append(repos, page.Repositories...)
	}

	for _, repo := range repos {
		name := aws.ToString(repo.RepositoryName)
		public, err := c.publicPolicy(ctx, name)
		if err != nil {
			o.errored(name, "get repository policy", err)
			continue
		}

		var problems []string
		if len(public) > 0 {
			problems = append(problems, "policy allows any principal to "+strings.Join(public, ", "))
		}
		if repo.ImageScanningConfiguration == nil || !repo.ImageScanningConfiguration.ScanOnPush {
			problems = append(problems, "scan on push is disabled")
		}
		if repo.ImageTagMutability == ecrtypes.ImageTagMutabilityMutable {
			problems = append(problems, "image tags are mutable")
		}

		if len(problems) == 0 {
			o.pass(name, "repository is private, scanned on push and has immutable tags", nil)
			continue
		}
		o.evidence(map[string]any{"repository": name, "problems": problems})
		o.fail(name, strings.Join(problems, "; "), map[string]any{"problems": problems})
	}
	return o.done("no ECR repositories found")
}

// publicPolicy returns the image transfer actions the repository policy
// grants to any principal without a condition.
func (c *ecrRepositoryCheck) publicPolicy(ctx context.Context, repo string) ([]string, error) {
	out, err := c.ecr.GetRepositoryPolicy(ctx, &ecr.GetRepositoryPolicyInput{RepositoryName: aws.String(repo)})
	if err != nil {
		if apiErrorCode(err) == "RepositoryPolicyNotFoundException" {
			return nil, nil
		}
		return nil, err
	}
	doc, err := parsePolicyDocument(aws.ToString(out.PolicyText))
	if err != nil {
		return nil, err
	}
	var granted []string
	for _, st := range doc.Statement {
		if !st.allows() || !st.Principal.anyone() || len(st.Condition) > 0 {
			continue
		}
		for _, action := range imageTransferActions {
			if st.grantsAction(action) {
				granted = append(granted, action)
			}
		}
	}
	return granted, nil
}
