// Package config loads Lambda configuration from the environment.
// Required settings fail the cold start when absent; nothing is
// defaulted silently.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Quarantine is the configuration for the quarantine Lambda.
type Quarantine struct {
	AccountTableName      string `envconfig:"ACCOUNT_TABLE_NAME" required:"true"`
	SandboxOuID           string `envconfig:"SANDBOX_OU_ID" required:"true"`
	IntermediateRoleArn   string `envconfig:"INTERMEDIATE_ROLE_ARN" required:"true"`
	OrgMgmtRoleArn        string `envconfig:"ORG_MGT_ROLE_ARN" required:"true"`
	SchedulerRoleArn      string `envconfig:"SCHEDULER_ROLE_ARN" required:"true"`
	UnquarantineLambdaArn string `envconfig:"UNQUARANTINE_LAMBDA_ARN" required:"true"`
	// MetricNamespace enables CloudWatch outcome metrics when set.
	MetricNamespace string `envconfig:"METRIC_NAMESPACE"`
}

// Unquarantine is the configuration for the unquarantine Lambda.
type Unquarantine struct {
	AccountTableName    string `envconfig:"ACCOUNT_TABLE_NAME" required:"true"`
	SandboxOuID         string `envconfig:"SANDBOX_OU_ID" required:"true"`
	IntermediateRoleArn string `envconfig:"INTERMEDIATE_ROLE_ARN" required:"true"`
	OrgMgmtRoleArn      string `envconfig:"ORG_MGT_ROLE_ARN" required:"true"`
	MetricNamespace     string `envconfig:"METRIC_NAMESPACE"`
}

// LoadQuarantine reads the quarantine Lambda configuration.
func LoadQuarantine() (Quarantine, error) {
	var cfg Quarantine
	if err := envconfig.Process("", &cfg); err != nil {
		return Quarantine{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// LoadUnquarantine reads the unquarantine Lambda configuration.
func LoadUnquarantine() (Unquarantine, error) {
	var cfg Unquarantine
	if err := envconfig.Process("", &cfg); err != nil {
		return Unquarantine{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
