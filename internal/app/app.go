// Package app wires the broadcast daemon together: config, logging, the
// broadcast service, the ops endpoint and the delivery history.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"tvbroker/internal/broadcast"
	"tvbroker/internal/config"
	"tvbroker/internal/daemon"
	"tvbroker/internal/ops"
	"tvbroker/internal/runtime/supervisor"
	"tvbroker/internal/storage"
	"tvbroker/pkg/logx"
)

type Option func(*options)

type options struct {
	clock  clockwork.Clock
	notify bool
}

// WithClock replaces the real clock; tests use a fake one.
func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// WithoutNotify skips service manager notifications.
func WithoutNotify() Option { return func(o *options) { o.notify = false } }

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor
	opts options

	log  logx.Logger
	logs *logx.Service

	store  storage.Store
	pruner *storage.Pruner
	tv     *broadcast.Service
	ops    *ops.Service
}

func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{clock: clockwork.NewRealClock(), notify: true}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bcfg, err := mapBroadcastConfig(cfg)
	if err != nil {
		return nil, err
	}

	var (
		store  storage.Store
		pruner *storage.Pruner
	)
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		retention, err := mapRetention(cfg)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		pruner, err = storage.NewPruner(st, retention, cfg.History.PruneSchedule, o.clock, log.With(logx.String("comp", "history")))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		log.Info("history enabled", logx.String("driver", sc.Driver))
	}

	bopts := []broadcast.Option{broadcast.WithClock(o.clock), broadcast.WithLogger(log)}
	if store != nil {
		bopts = append(bopts, broadcast.WithHistory(store))
	}
	tv := broadcast.New(bcfg, bopts...)

	a := &App{
		cfgm:   cfgm,
		opts:   o,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		store:  store,
		pruner: pruner,
		tv:     tv,
	}
	a.ops = ops.New(mapOpsConfig(cfg), ops.Deps{
		Broadcast:   tv,
		History:     store,
		RecentLimit: cfg.History.RecentLimit,
		Tasks:       a.Tasks,
	}, log)
	return a, nil
}

func (a *App) Broadcast() *broadcast.Service { return a.tv }

func (a *App) Ops() *ops.Service { return a.ops }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Tasks reports the app supervisor; empty before Start.
func (a *App) Tasks() supervisor.Snapshot {
	if a.sup == nil {
		return supervisor.Snapshot{}
	}
	return a.sup.Snapshot()
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start binds the broadcast endpoint and launches the background tasks. A
// bind failure is returned before anything else runs.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithClock(a.opts.clock), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapBroadcastConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapRetention(cfg); err != nil {
			return err
		}
		if _, err := storage.ParseSchedule(cfg.History.PruneSchedule); err != nil {
			return err
		}
		return nil
	})

	ln, err := a.tv.Listen()
	if err != nil {
		return err
	}
	a.sup.Go("broadcast.serve", func(c context.Context) error {
		return a.tv.Serve(c, ln)
	})

	a.ops.Start(a.sup.Context())

	if a.pruner != nil {
		a.sup.Go("history.prune", a.pruner.Run)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.opts.notify {
		daemon.NotifyReady(a.log)
	}
	a.log.Info("app started",
		logx.String("listen", a.tv.Addr()),
		logx.Int64("start_ts", a.tv.StartTime()),
	)
	return nil
}

// reloadLoop applies hot-reloadable sections and flags the rest.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) apply(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.Strings("sections", pending, 8))
	}

	a.logs.Apply(mapLoggingConfig(next))

	rctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	a.ops.Reconfigure(rctx, mapOpsConfig(next))
	cancel()

	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.opts.notify {
		daemon.NotifyStopping(a.log)
	}

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	a.step(ctx, "broadcast", 3*time.Second, a.tv.Stop)
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "history", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step with an upper bound so one component can't
// stall the whole stop. It never extends the caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
