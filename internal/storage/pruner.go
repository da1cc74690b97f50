package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"tvbroker/pkg/logx"
)

const DefaultPruneSchedule = "@hourly"

// Pruner deletes history older than a retention window on a cron schedule.
type Pruner struct {
	store     Store
	retention time.Duration
	schedule  cron.Schedule
	spec      string
	clock     clockwork.Clock
	log       logx.Logger
}

// NewPruner validates the schedule up front so a bad expression fails config
// loading rather than the running daemon.
func NewPruner(store Store, retention time.Duration, spec string, clock clockwork.Clock, log logx.Logger) (*Pruner, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultPruneSchedule
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pruner{store: store, retention: retention, schedule: sched, spec: spec, clock: clock, log: log}, nil
}

// ParseSchedule accepts standard five-field cron expressions and descriptors
// such as @hourly or @every 30m.
func ParseSchedule(spec string) (cron.Schedule, error) {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := p.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	return sched, nil
}

// PruneOnce removes entries older than the retention window.
func (p *Pruner) PruneOnce(ctx context.Context) (int, error) {
	if p.store == nil || p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.clock.Now().Add(-p.retention)
	n, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		p.log.Warn("history prune failed", logx.Err(err))
		return n, err
	}
	if n > 0 {
		p.log.Info("history pruned", logx.Int("removed", n), logx.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run schedules PruneOnce until ctx ends. Jobs never overlap.
func (p *Pruner) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(p.schedule, cron.FuncJob(func() {
		_, _ = p.PruneOnce(ctx)
	}))
	c.Start()
	p.log.Info("history pruner started", logx.String("schedule", p.spec), logx.Duration("retention", p.retention))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}
