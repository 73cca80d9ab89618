package config

import (
	"os"
	"strings"
	"testing"
)

// unsetenv removes a variable while letting t.Setenv restore it after
// the test (envconfig only treats truly absent variables as missing).
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset %s: %v", key, err)
	}
}

func setQuarantineEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCOUNT_TABLE_NAME", "isb-accounts")
	t.Setenv("SANDBOX_OU_ID", "ou-abcd-12345678")
	t.Setenv("INTERMEDIATE_ROLE_ARN", "arn:aws:iam::111111111111:role/intermediate")
	t.Setenv("ORG_MGT_ROLE_ARN", "arn:aws:iam::222222222222:role/org-mgmt")
	t.Setenv("SCHEDULER_ROLE_ARN", "arn:aws:iam::111111111111:role/scheduler")
	t.Setenv("UNQUARANTINE_LAMBDA_ARN", "arn:aws:lambda:us-east-1:111111111111:function:unquarantine")
}

func TestLoadQuarantine_AllSet(t *testing.T) {
	setQuarantineEnv(t)
	t.Setenv("METRIC_NAMESPACE", "BillingSeparator")

	cfg, err := LoadQuarantine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccountTableName != "isb-accounts" {
		t.Errorf("unexpected table name: %q", cfg.AccountTableName)
	}
	if cfg.MetricNamespace != "BillingSeparator" {
		t.Errorf("unexpected namespace: %q", cfg.MetricNamespace)
	}
}

func TestLoadQuarantine_MissingRequired(t *testing.T) {
	setQuarantineEnv(t)
	unsetenv(t, "SANDBOX_OU_ID")

	_, err := LoadQuarantine()
	if err == nil {
		t.Fatal("expected error for missing SANDBOX_OU_ID")
	}
	if !strings.Contains(err.Error(), "SANDBOX_OU_ID") {
		t.Errorf("error should name the missing variable, got %v", err)
	}
}

func TestLoadQuarantine_MetricNamespaceOptional(t *testing.T) {
	setQuarantineEnv(t)

	cfg, err := LoadQuarantine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MetricNamespace != "" {
		t.Errorf("expected empty namespace, got %q", cfg.MetricNamespace)
	}
}

func TestLoadUnquarantine_AllSet(t *testing.T) {
	t.Setenv("ACCOUNT_TABLE_NAME", "isb-accounts")
	t.Setenv("SANDBOX_OU_ID", "ou-abcd-12345678")
	t.Setenv("INTERMEDIATE_ROLE_ARN", "arn:aws:iam::111111111111:role/intermediate")
	t.Setenv("ORG_MGT_ROLE_ARN", "arn:aws:iam::222222222222:role/org-mgmt")

	cfg, err := LoadUnquarantine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SandboxOuID != "ou-abcd-12345678" {
		t.Errorf("unexpected sandbox OU id: %q", cfg.SandboxOuID)
	}
}

func TestLoadUnquarantine_MissingRequired(t *testing.T) {
	t.Setenv("ACCOUNT_TABLE_NAME", "isb-accounts")
	unsetenv(t, "SANDBOX_OU_ID")
	unsetenv(t, "INTERMEDIATE_ROLE_ARN")
	unsetenv(t, "ORG_MGT_ROLE_ARN")

	_, err := LoadUnquarantine()
	if err == nil {
		t.Fatal("expected error when required variables are missing")
	}
}
