// Package broadcast is the fan-out core: a TCP server whose sessions each own
// a private delivery buffer, plus a single monitor task that drains the queue
// file on an interval and appends fresh records to every registered buffer.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"tvbroker/internal/queuefile"
	"tvbroker/internal/runtime/supervisor"
	"tvbroker/pkg/logx"
)

type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(log logx.Logger) Option { return func(s *Service) { s.log = log } }

// WithHistory records every distributed batch in h.
func WithHistory(h History) Option { return func(s *Service) { s.history = h } }

type Service struct {
	cfg     Config
	clock   clockwork.Clock
	log     logx.Logger
	queue   *queuefile.Queue
	history History
	limiter *rate.Limiter

	// startTS is the staleness cutoff: records stamped earlier are dropped.
	startTS   int64
	startedAt time.Time

	sup *supervisor.Supervisor

	mu             sync.Mutex
	sessions       map[string]*Session
	monitorStarted bool
	addr           string
}

// New builds the service and fixes its start time. Nothing runs until the
// first session registers or ListenAndServe is called.
func New(cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		log:      logx.Nop(),
		queue:    queuefile.New(cfg.QueueFile),
		sessions: map[string]*Session{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "broadcast"))

	s.startedAt = s.clock.Now()
	s.startTS = s.startedAt.Unix()

	lim := rate.Inf
	if cfg.AcceptRate > 0 {
		lim = rate.Limit(cfg.AcceptRate)
	}
	s.limiter = rate.NewLimiter(lim, cfg.AcceptBurst)
	s.sup = supervisor.New(context.Background(), supervisor.WithLogger(s.log), supervisor.WithClock(s.clock))
	return s
}

// StartTime returns the staleness cutoff in unix seconds.
func (s *Service) StartTime() int64 { return s.startTS }

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Sessions:       len(s.sessions),
		MonitorRunning: s.monitorStarted && s.sup.Context().Err() == nil,
		StartedAt:      s.startedAt,
		Uptime:         s.clock.Since(s.startedAt).Truncate(time.Second).String(),
		Listen:         s.addr,
	}
}

// Tasks exposes the internal supervisor snapshot (monitor and sessions).
func (s *Service) Tasks() supervisor.Snapshot { return s.sup.Snapshot() }

// Stop ends the monitor, every session and the accept loop, then waits for
// them within ctx.
func (s *Service) Stop(ctx context.Context) error {
	start := s.clock.Now()
	if err := s.sup.Stop(ctx); err != nil {
		return err
	}
	s.log.Info("service stopped", logx.Duration("took", s.clock.Since(start)))
	return nil
}
