package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/checks"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/config"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// errUnhealthy is returned by doctor when any diagnostic fails. The details
// have already been rendered, so main only sets the exit code.
var errUnhealthy = errors.New("environment is not healthy")

// callerAccounter is implemented by brokers that can report the account of
// their ambient credentials.
type callerAccounter interface {
	CallerAccount(ctx context.Context) (string, error)
}

// DoctorResult is the structured output of infraaudit doctor. It can be
// serialised to JSON via --format=json or rendered as plain text (default).
type DoctorResult struct {
	Config struct {
		Path  string `json:"path,omitempty"`
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
	} `json:"config"`

	AWS struct {
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Role struct {
		Checked bool   `json:"checked"`
		RoleARN string `json:"role_arn,omitempty"`
		Assumed bool   `json:"assumed"`
		Error   string `json:"error,omitempty"`
	} `json:"role"`

	Checks struct {
		Registered      int      `json:"registered"`
		UnknownDisabled []string `json:"unknown_disabled,omitempty"`
	} `json:"checks"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd() *cobra.Command {
	var (
		format     string
		account    string
		role       string
		externalID string
	)

	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			result := collectDoctorResult(cmd.Context(), path, account, role, externalID)

			if err := renderDoctor(cmd.OutOrStdout(), result, format); err != nil {
				return err
			}
			if !result.OverallHealthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", `Output format: "table" or "json"`)
	cmd.Flags().StringVar(&account, "account", "", "Also try to assume the audit role in this account")
	cmd.Flags().StringVar(&role, "role", "", "Role to try with --account (default from config)")
	cmd.Flags().StringVar(&externalID, "external-id", "", "External id passed to AssumeRole")
	return cmd
}

// collectDoctorResult runs all environment checks and populates a
// DoctorResult. A configuration that fails to load is reported and the
// remaining checks run against the defaults.
func collectDoctorResult(ctx context.Context, path, account, role, externalID string) DoctorResult {
	var result DoctorResult

	loader := config.NewFileLoader(path)
	result.Config.Path = loader.ConfigPath()
	cfg, err := loader.Load()
	if err != nil {
		result.Config.Error = err.Error()
		cfg = config.Default()
	} else {
		result.Config.Valid = true
	}

	known := checks.NewRegistry()
	checks.RegisterBuiltins(known)
	result.Checks.UnknownDisabled = lo.Reject(cfg.Audit.DisabledChecks, func(name string, _ int) bool { return known.Has(name) })
	result.Checks.Registered = len(newRegistry(cfg).Names())

	broker, err := newBroker(ctx, cfg)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		collectAWS(ctx, &result, broker, account, lo.Ternary(role != "", role, cfg.AWS.DefaultRoleName), externalID)
	}

	result.OverallHealthy = result.Config.Valid &&
		result.AWS.Credentials &&
		(!result.Role.Checked || result.Role.Assumed) &&
		len(result.Checks.UnknownDisabled) == 0

	return result
}

// collectAWS verifies the ambient credentials and, when account is set,
// that the audit role can be assumed.
func collectAWS(ctx context.Context, result *DoctorResult, broker common.CredentialBroker, account, role, externalID string) {
	if ca, ok := broker.(callerAccounter); ok {
		id, err := ca.CallerAccount(ctx)
		if err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.Credentials = true
			result.AWS.AccountID = id
		}
	} else {
		result.AWS.Credentials = true
	}

	if account == "" {
		return
	}
	result.Role.Checked = true
	creds, err := broker.AssumeRole(ctx, account, role, externalID)
	if err != nil {
		result.Role.Error = err.Error()
		return
	}
	result.Role.Assumed = true
	result.Role.RoleARN = creds.RoleARN
}

// renderDoctor writes result to w as JSON or as plain text.
func renderDoctor(w io.Writer, result DoctorResult, format string) error {
	if format == "json" {
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return fmt.Errorf("encode doctor result: %w", err)
		}
		return nil
	}

	fmt.Fprintln(w, "Environment Diagnostics")

	fmt.Fprintln(w, "\nConfig:")
	source := lo.Ternary(result.Config.Path != "", result.Config.Path, "defaults and environment")
	if result.Config.Valid {
		doctorPrint(w, "Load", "OK", source)
	} else {
		doctorPrint(w, "Load", "FAIL", result.Config.Error)
	}

	fmt.Fprintln(w, "\nAWS:")
	switch {
	case !result.AWS.Credentials:
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
	case result.AWS.AccountID != "":
		doctorPrint(w, "Credentials", "OK", "Account: "+result.AWS.AccountID)
	default:
		doctorPrint(w, "Credentials", "OK", "")
	}
	switch {
	case !result.Role.Checked:
		doctorPrint(w, "Audit role", "SKIPPED", "pass --account to test")
	case result.Role.Assumed:
		doctorPrint(w, "Audit role", "OK", result.Role.RoleARN)
	default:
		doctorPrint(w, "Audit role", "FAIL", result.Role.Error)
	}

	fmt.Fprintln(w, "\nChecks:")
	doctorPrint(w, "Registered", fmt.Sprintf("%d", result.Checks.Registered), "")
	for _, name := range result.Checks.UnknownDisabled {
		doctorPrint(w, "Disabled check", "FAIL", "unknown check "+name)
	}
	return nil
}

// doctorPrint writes a single diagnostic line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
