package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/guardduty"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/checks"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/config"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeGuardDuty struct{}

func (fakeGuardDuty) ListDetectors(context.Context, *guardduty.ListDetectorsInput, ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error) {
	return &guardduty.ListDetectorsOutput{}, nil
}

func (fakeGuardDuty) GetDetector(context.Context, *guardduty.GetDetectorInput, ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error) {
	return nil, fmt.Errorf("unexpected GetDetector call")
}

type fakeBroker struct {
	err     error
	gotRole string
}

func (b *fakeBroker) AssumeRole(_ context.Context, accountID, roleName, _ string) (*common.ScopedCredentials, error) {
	b.gotRole = roleName
	if b.err != nil {
		return nil, b.err
	}
	return &common.ScopedCredentials{RoleARN: common.RoleARN("us-east-1", accountID, roleName)}, nil
}

func (b *fakeBroker) BuildSession(accountID string, creds *common.ScopedCredentials) *common.Session {
	return &common.Session{
		AccountID: accountID,
		RoleARN:   creds.RoleARN,
		Clients:   &common.ClientSet{GuardDuty: fakeGuardDuty{}},
	}
}

// useBroker swaps the package-level broker constructor for the duration of
// the test.
func useBroker(t *testing.T, b common.CredentialBroker) {
	t.Helper()
	orig := newBroker
	t.Cleanup(func() { newBroker = orig })
	newBroker = func(context.Context, *config.Config) (common.CredentialBroker, error) {
		return b, nil
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// ── audit run ─────────────────────────────────────────────────────────────────

func TestAuditRun_Table(t *testing.T) {
	b := &fakeBroker{}
	useBroker(t, b)

	out, err := execute(t, "audit", "run", "--account", "123456789012", "--check", "GuardDutyStatusCheck")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"123456789012", "completed", "GuardDutyStatusCheck", "FAIL", "N/A"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, out)
		}
	}
	if b.gotRole != "InfraAuditRole" {
		t.Errorf("role: got %q; want default InfraAuditRole", b.gotRole)
	}
}

func TestAuditRun_JSONAndOutputFile(t *testing.T) {
	useBroker(t, &fakeBroker{})
	path := filepath.Join(t.TempDir(), "audit.json")

	out, err := execute(t, "audit", "run", "--account", "123456789012", "--role", "Custom",
		"--check", "GuardDutyStatusCheck", "--report", "json", "--output", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec models.AuditRecord
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("stdout is not a JSON record: %v\n%s", err, out)
	}
	if rec.RoleName != "Custom" || rec.Status != models.AuditCompleted {
		t.Errorf("unexpected record: %+v", rec)
	}
	if len(rec.Results) != 1 || rec.Results[0].CheckID != "GuardDutyStatusCheck" {
		t.Errorf("unexpected results: %+v", rec.Results)
	}
	if g := rec.GuidelineIDs["GuardDutyStatusCheck"]; g == nil || *g != 37 {
		t.Errorf("guideline: got %v", g)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	var fromFile models.AuditRecord
	if err := json.Unmarshal(data, &fromFile); err != nil || fromFile.AuditID != rec.AuditID {
		t.Errorf("output file does not hold the same record: %v", err)
	}
}

func TestAuditRun_SessionFailure(t *testing.T) {
	useBroker(t, &fakeBroker{err: fmt.Errorf("%w: AccessDenied", common.ErrSessionEstablishment)})

	out, err := execute(t, "audit", "run", "--account", "123456789012")
	if err == nil {
		t.Fatal("want an error when the session cannot be established")
	}
	if !strings.Contains(out, "failed") || !strings.Contains(out, "AccessDenied") {
		t.Errorf("failed record must still be rendered\ngot:\n%s", out)
	}
}

func TestAuditRun_RequiresAccount(t *testing.T) {
	useBroker(t, &fakeBroker{})
	if _, err := execute(t, "audit", "run"); err == nil {
		t.Error("want an error without --account")
	}
}

func TestAuditRun_RejectsUnknownFormat(t *testing.T) {
	useBroker(t, &fakeBroker{})
	if _, err := execute(t, "audit", "run", "--account", "123456789012", "--report", "xml"); err == nil {
		t.Error("want an error for an unknown report format")
	}
}

// ── checks ────────────────────────────────────────────────────────────────────

func TestChecksCmd_ListsBuiltinsInOrder(t *testing.T) {
	out, err := execute(t, "checks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(checks.Builtin) {
		t.Fatalf("want %d checks, got %d:\n%s", len(checks.Builtin), len(lines), out)
	}
	for i, e := range checks.Builtin {
		if lines[i] != e.Name {
			t.Errorf("line %d: got %q; want %q", i, lines[i], e.Name)
		}
	}
}

func TestChecksCmd_HonoursDisabledChecks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "audit:\n  disabled_checks:\n    - EC2PublicIPCheck\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "checks", "--config", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "EC2PublicIPCheck") {
		t.Errorf("disabled check listed:\n%s", out)
	}
	if !strings.Contains(out, "EC2IMDSv2Check") {
		t.Errorf("enabled check missing:\n%s", out)
	}
}
