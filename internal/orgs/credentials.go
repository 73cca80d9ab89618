package orgs

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// OrgManagementConfig derives an AWS config whose credentials chain
// through the hub account's intermediate role into the org management
// account role. Organizations lives in the management account; the
// Lambdas run in the hub, so every Organizations client must use this
// config. DynamoDB and Scheduler clients stay on the base config.
func OrgManagementConfig(base aws.Config, intermediateRoleArn, orgMgmtRoleArn string) aws.Config {
	intermediateCfg := base.Copy()
	intermediateCfg.Credentials = aws.NewCredentialsCache(
		stscreds.NewAssumeRoleProvider(sts.NewFromConfig(base), intermediateRoleArn),
	)

	orgCfg := base.Copy()
	orgCfg.Credentials = aws.NewCredentialsCache(
		stscreds.NewAssumeRoleProvider(sts.NewFromConfig(intermediateCfg), orgMgmtRoleArn),
	)
	return orgCfg
}
