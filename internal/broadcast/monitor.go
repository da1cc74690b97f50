package broadcast

import (
	"context"
	"errors"

	"tvbroker/internal/metrics"
	"tvbroker/internal/record"
	"tvbroker/internal/storage"
	"tvbroker/pkg/logx"
)

func (s *Service) runMonitor(ctx context.Context) error {
	t := s.clock.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("monitor stopped")
			return nil
		case <-t.Chan():
			_, _ = s.runCycle(ctx)
		}
	}
}

// runCycle drains the queue file once and hands the fresh records to every
// registered session. It returns the distributed records. Errors are logged
// here; the caller just waits for the next tick.
func (s *Service) runCycle(ctx context.Context) ([]record.Record, error) {
	start := s.clock.Now()
	defer func() { metrics.MonitorCycleDuration.Observe(s.clock.Since(start).Seconds()) }()

	lines, err := s.queue.Drain(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		metrics.MonitorCycleErrors.Inc()
		s.log.Warn("queue drain failed", logx.String("queue", s.queue.Path()), logx.Err(err))
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	metrics.RecordsDrained.Add(float64(len(lines)))

	recs := s.filter(lines)
	if len(recs) == 0 {
		return nil, nil
	}

	sessions := s.snapshot()
	for _, sess := range sessions {
		sess.enqueue(recs)
	}
	s.log.Debug("records distributed", logx.Int("records", len(recs)), logx.Int("sessions", len(sessions)))

	s.recordHistory(ctx, recs, len(sessions))
	return recs, nil
}

// filter keeps well-formed records stamped at or after the service start, in
// drain order.
func (s *Service) filter(lines []string) []record.Record {
	out := make([]record.Record, 0, len(lines))
	for _, line := range lines {
		r, err := record.Parse(line)
		if err != nil {
			metrics.RecordsDropped.WithLabelValues("malformed").Inc()
			s.log.Debug("dropping malformed line", logx.String("line", line))
			continue
		}
		if r.Before(s.startTS) {
			metrics.RecordsDropped.WithLabelValues("stale").Inc()
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Service) recordHistory(ctx context.Context, recs []record.Record, sessions int) {
	if s.history == nil {
		return
	}
	at := s.clock.Now()
	ds := make([]storage.Delivery, len(recs))
	for i, r := range recs {
		ds[i] = storage.Delivery{At: at, Timestamp: r.Timestamp, Payload: r.Payload, Sessions: sessions}
	}
	if err := s.history.AppendDeliveries(ctx, ds); err != nil {
		metrics.HistoryErrors.Inc()
		s.log.Warn("history append failed", logx.Err(err))
	}
}
