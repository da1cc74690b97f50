package broadcast

import (
	"tvbroker/internal/metrics"
	"tvbroker/internal/runtime/supervisor"
	"tvbroker/pkg/logx"
)

// register adds sess to the registry. The first registration starts the
// monitor; the check and the start happen under the registry lock so it can
// only ever start once.
func (s *Service) register(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.id] = sess
	metrics.ActiveSessions.WithLabelValues(sess.transport).Inc()
	metrics.SessionsTotal.WithLabelValues(sess.transport).Inc()

	if !s.monitorStarted {
		s.monitorStarted = true
		// A panicking cycle restarts the loop rather than ending delivery.
		s.sup.GoRestart("monitor", s.runMonitor, supervisor.WithRestartBackoff(s.cfg.Interval, 10*s.cfg.Interval))
		s.log.Info("monitor started", logx.Duration("interval", s.cfg.Interval), logx.Int64("start_ts", s.startTS))
	}
}

func (s *Service) deregister(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.id]; !ok {
		return
	}
	delete(s.sessions, sess.id)
	metrics.ActiveSessions.WithLabelValues(sess.transport).Dec()
}

// snapshot copies the registry so the caller can work on sessions without
// holding the registry lock.
func (s *Service) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
