package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/checks"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/metrics"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/store"
)

// RunnerConfig holds the tunables of a DefaultRunner. Zero values fall back
// to the package defaults.
type RunnerConfig struct {
	// DefaultRoleName replaces an empty AuditOptions.RoleName.
	DefaultRoleName string

	// Concurrency bounds how many checks of one audit run at the same time.
	// Values below 1 mean sequential execution.
	Concurrency int

	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
}

// DefaultRunner is the production implementation of Runner.
// It never calls the AWS SDK directly.
type DefaultRunner struct {
	broker   common.CredentialBroker
	registry *checks.Registry
	store    store.Store

	defaultRole string
	concurrency int
	log         logrus.FieldLogger
	metrics     *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// NewDefaultRunner constructs a DefaultRunner wired to the supplied broker,
// check registry and audit store.
func NewDefaultRunner(
	broker common.CredentialBroker,
	registry *checks.Registry,
	st store.Store,
	cfg RunnerConfig,
) *DefaultRunner {
	role := cfg.DefaultRoleName
	if role == "" {
		role = DefaultRoleName
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &DefaultRunner{
		broker:      broker,
		registry:    registry,
		store:       st,
		defaultRole: role,
		concurrency: concurrency,
		log:         log.WithField("component", "runner"),
		metrics:     cfg.Metrics,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// RunAudit implements Runner. Check failures never fail the audit; they are
// recorded as ERROR results. Only session establishment is fatal.
func (r *DefaultRunner) RunAudit(ctx context.Context, opts AuditOptions) (*models.AuditRecord, error) {
	roleName := opts.RoleName
	if roleName == "" {
		roleName = r.defaultRole
	}

	rec := &models.AuditRecord{
		AuditID:   r.newID(),
		AccountID: opts.AccountID,
		RoleName:  roleName,
		Status:    models.AuditRunning,
		StartedAt: r.now().UTC(),
	}
	log := r.log.WithFields(logrus.Fields{
		"audit_id":   rec.AuditID,
		"account_id": rec.AccountID,
		"role":       roleName,
	})
	log.Info("audit started")

	creds, err := r.broker.AssumeRole(ctx, opts.AccountID, roleName, opts.ExternalID)
	if err != nil {
		return r.fail(rec, log, err)
	}
	sess := r.broker.BuildSession(opts.AccountID, creds)

	entries := r.registry.Resolve(opts.Checks)
	outcomes := r.runChecks(ctx, sess, entries, log)

	rec.Raw = make(map[string][]any, len(entries))
	rec.GuidelineIDs = make(map[string]*int, len(entries))
	for i, e := range entries {
		out := outcomes[i]
		for _, res := range out.Results {
			res = tagResult(e.Name, res)
			if !res.Status.Canonical() {
				log.WithFields(logrus.Fields{"check": e.Name, "status": res.Status}).Warn("check emitted an unknown status")
			}
			r.metrics.IncCheckResult(e.Name, string(res.Status))
			rec.Results = append(rec.Results, res)
		}
		raw := out.Raw
		if raw == nil {
			raw = []any{}
		}
		rec.Raw[e.Name] = raw
		rec.GuidelineIDs[e.Name] = out.GuidelineID
	}
	if rec.Results == nil {
		rec.Results = []models.CheckResult{}
	}

	summary := Summarize(rec.Results)
	rec.Summary = &summary
	completed := r.now().UTC()
	rec.CompletedAt = &completed
	rec.Status = models.AuditCompleted

	if err := r.save(rec); err != nil {
		return rec, fmt.Errorf("save audit %s: %w", rec.AuditID, err)
	}
	r.metrics.ObserveAudit(string(rec.Status), completed.Sub(rec.StartedAt))
	log.WithFields(logrus.Fields{
		"checks": len(entries),
		"total":  summary.Total,
		"fail":   summary.Fail,
		"error":  summary.Error,
	}).Info("audit completed")
	return rec, nil
}

// GetAudit implements Runner.
func (r *DefaultRunner) GetAudit(id string) (*models.AuditRecord, error) {
	return r.store.Get(id)
}

// fail marks rec as failed with cause, stores it and returns both.
func (r *DefaultRunner) fail(rec *models.AuditRecord, log logrus.FieldLogger, cause error) (*models.AuditRecord, error) {
	completed := r.now().UTC()
	rec.Status = models.AuditFailed
	rec.Error = cause.Error()
	rec.CompletedAt = &completed

	log.WithError(cause).Error("audit failed")
	r.metrics.ObserveAudit(string(rec.Status), completed.Sub(rec.StartedAt))
	if err := r.save(rec); err != nil {
		return rec, errors.Join(cause, fmt.Errorf("save audit %s: %w", rec.AuditID, err))
	}
	return rec, cause
}

func (r *DefaultRunner) save(rec *models.AuditRecord) error {
	if err := r.store.Save(rec); err != nil {
		return err
	}
	if counter, ok := r.store.(interface{ Len() int }); ok {
		r.metrics.SetStored(counter.Len())
	}
	return nil
}

// runChecks runs entries with at most r.concurrency checks in flight and
// returns their outcomes in entry order.
func (r *DefaultRunner) runChecks(
	ctx context.Context,
	sess *common.Session,
	entries []checks.Entry,
	log logrus.FieldLogger,
) []models.CheckOutcome {
	outcomes := make([]models.CheckOutcome, len(entries))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			outcomes[i] = r.runCheck(ctx, sess, e, log.WithField("check", e.Name))
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// runCheck constructs and runs one check. A panic in the factory or in Run
// is converted into a single ERROR result for the check.
func (r *DefaultRunner) runCheck(
	ctx context.Context,
	sess *common.Session,
	e checks.Entry,
	log logrus.FieldLogger,
) (out models.CheckOutcome) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("check panicked: %v", p)
			out = models.CheckOutcome{Results: []models.CheckResult{{
				Status:     models.StatusError,
				ResourceID: models.ResourceNotApplicable,
				Message:    fmt.Sprintf("check panicked: %v", p),
			}}}
		}
		elapsed := time.Since(start)
		r.metrics.ObserveCheck(e.Name, elapsed)
		log.WithFields(logrus.Fields{
			"results":  len(out.Results),
			"duration": elapsed.Round(time.Millisecond).String(),
		}).Debug("check finished")
	}()

	return e.Factory(sess).Run(ctx)
}

// tagResult attributes res to the check registered as name and brings it
// into the canonical result shape.
func tagResult(name string, res models.CheckResult) models.CheckResult {
	res.CheckID = name
	res.Status = models.NormalizeStatus(string(res.Status))
	if res.ResourceID == "" {
		res.ResourceID = models.ResourceNotApplicable
	}
	return res
}
