package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/checks"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/config"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/engine"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/logging"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/metrics"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/output"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/server"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/store"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newBroker builds the credential broker for a run. Tests replace it with a
// fake so no AWS call is made.
var newBroker = func(ctx context.Context, cfg *config.Config) (common.CredentialBroker, error) {
	return common.NewSTSBroker(ctx, common.BrokerOptions{
		Region:          cfg.AWS.Region,
		SessionName:     cfg.AWS.SessionName,
		SessionDuration: cfg.AWS.SessionDuration,
	})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "infraaudit",
		Short: "AWS account security audit engine",
	}
	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.AddCommand(newServeCmd())
	root.AddCommand(newAuditCmd())
	root.AddCommand(newChecksCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig reads the configuration named by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewFileLoader(path).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
}

func newRegistry(cfg *config.Config) *checks.Registry {
	reg := checks.NewRegistry()
	checks.RegisterBuiltins(reg, cfg.Audit.DisabledChecks...)
	return reg
}

// newRunner wires broker, registry, store and metrics into a runner.
func newRunner(
	ctx context.Context,
	cfg *config.Config,
	log logrus.FieldLogger,
	m *metrics.Metrics,
) (*engine.DefaultRunner, *checks.Registry, error) {
	broker, err := newBroker(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create credential broker: %w", err)
	}
	reg := newRegistry(cfg)
	runner := engine.NewDefaultRunner(broker, reg, store.NewMemoryStore(), engine.RunnerConfig{
		DefaultRoleName: cfg.AWS.DefaultRoleName,
		Concurrency:     cfg.Audit.Concurrency,
		Log:             log,
		Metrics:         m,
	})
	return runner, reg, nil
}

// ── serve ─────────────────────────────────────────────────────────────────────

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve the audit HTTP API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			runner, reg, err := newRunner(ctx, cfg, log, m)
			if err != nil {
				return err
			}
			log.Infof("registered %d checks", len(reg.Names()))
			return server.New(log, runner, reg.Names, m).Run(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")
	return cmd
}

// ── audit run ─────────────────────────────────────────────────────────────────

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run audits from the command line",
	}
	cmd.AddCommand(newAuditRunCmd())
	return cmd
}

func newAuditRunCmd() *cobra.Command {
	var (
		account      string
		role         string
		externalID   string
		checkNames   []string
		reportFmt    string
		outputPath   string
		failuresOnly bool
	)

	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Audit one AWS account and print the results",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reportFmt != "table" && reportFmt != "json" {
				return fmt.Errorf("unknown report format %q: want table or json", reportFmt)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}

			runner, _, err := newRunner(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			rec, runErr := runner.RunAudit(cmd.Context(), engine.AuditOptions{
				AccountID:  account,
				RoleName:   role,
				ExternalID: externalID,
				Checks:     checkNames,
			})
			if rec == nil {
				return fmt.Errorf("audit failed: %w", runErr)
			}

			if outputPath != "" {
				if err := writeRecordToFile(outputPath, rec); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if reportFmt == "json" {
				if err := printJSON(out, rec); err != nil {
					return err
				}
			} else {
				printTable(out, rec, failuresOnly)
			}

			if runErr != nil {
				return fmt.Errorf("audit failed: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "AWS account id to audit")
	cmd.Flags().StringVar(&role, "role", "", "Role to assume in the target account (default from config, InfraAuditRole)")
	cmd.Flags().StringVar(&externalID, "external-id", "", "External id passed to AssumeRole")
	cmd.Flags().StringSliceVar(&checkNames, "check", nil, "Check name(s) to run (default: all registered checks)")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write full JSON record to this file path (in addition to stdout output)")
	cmd.Flags().BoolVar(&failuresOnly, "failures-only", false, "Hide PASS results in table output")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

// printJSON writes the record as indented JSON to w.
func printJSON(w io.Writer, rec *models.AuditRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// writeRecordToFile serialises rec as indented JSON and writes it to path,
// creating or overwriting the file. It does not affect stdout output.
func writeRecordToFile(path string, rec *models.AuditRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record file %q: %w", path, err)
	}
	return nil
}

// printTable renders the audit summary followed by a results table.
func printTable(w io.Writer, rec *models.AuditRecord, failuresOnly bool) {
	output.RenderSummary(w, rec)
	if rec.Status != models.AuditCompleted {
		return
	}
	fmt.Fprintln(w)
	output.RenderTable(w, rec.Results, output.TableOptions{
		IncludeCheck: true,
		FailuresOnly: failuresOnly,
		Colored:      isTerminal(w),
	})
}

// isTerminal reports whether w is a character device such as a TTY.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// ── checks ────────────────────────────────────────────────────────────────────

func newChecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "checks",
		Short:        "List the registered checks in execution order",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			for _, name := range newRegistry(cfg).Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// ── version ───────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}
