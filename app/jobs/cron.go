package jobs

import (
	"context"
	"fmt"
	"time"

	"taskboard/app/config"
	"taskboard/app/services"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type auditor interface {
	AuditSizing(ctx context.Context) ([]services.Finding, error)
}

// Locker keeps the audit to one replica at a time. pgstore.Store satisfies it.
type Locker interface {
	WithAdvisoryLock(ctx context.Context, key int64, fn func(ctx context.Context) error) (bool, error)
}

const auditLockKey int64 = 515151

// Cron runs the periodic sizing audit.
type Cron struct {
	log  zerolog.Logger
	svc  auditor
	lock Locker
	c    *cron.Cron
}

// NewCron schedules the audit on cfg.AuditCron in cfg.TZ. lock may be nil.
func NewCron(cfg config.Config, log zerolog.Logger, svc auditor, lock Locker) (*Cron, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("jobs: timezone %q: %w", cfg.TZ, err)
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{log: log, svc: svc, lock: lock, c: c}
	if _, err := c.AddFunc(cfg.AuditCron, cr.audit); err != nil {
		return nil, fmt.Errorf("jobs: audit schedule %q: %w", cfg.AuditCron, err)
	}
	return cr, nil
}

// Start begins running scheduled audits.
func (cr *Cron) Start() { cr.c.Start() }

// Stop halts scheduling and returns a context that is done once a running
// audit finishes.
func (cr *Cron) Stop() context.Context { return cr.c.Stop() }

func (cr *Cron) audit() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := cr.Run(ctx); err != nil {
		cr.log.Error().Err(err).Msg("cron: audit failed")
	}
}

// Run performs one audit pass and logs every finding. It returns the number of
// findings, or zero when another replica holds the lock.
func (cr *Cron) Run(ctx context.Context) (int, error) {
	if cr.lock == nil {
		return cr.runAudit(ctx)
	}
	var n int
	ran, err := cr.lock.WithAdvisoryLock(ctx, auditLockKey, func(ctx context.Context) error {
		var err error
		n, err = cr.runAudit(ctx)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("jobs: locked audit: %w", err)
	}
	if !ran {
		cr.log.Info().Msg("cron: audit already running elsewhere")
	}
	return n, nil
}

func (cr *Cron) runAudit(ctx context.Context) (int, error) {
	start := time.Now()
	findings, err := cr.svc.AuditSizing(ctx)
	if err != nil {
		return 0, err
	}
	for _, f := range findings {
		cr.log.Warn().Str("task", f.TaskID).Str("title", f.Title).Str("kind", f.Kind).Msg(f.Message)
	}
	cr.log.Info().Int("findings", len(findings)).Dur("took", time.Since(start)).Msg("cron: sizing audit")
	return len(findings), nil
}
