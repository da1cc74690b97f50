package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tvbroker/internal/metrics"
	"tvbroker/internal/record"
	"tvbroker/pkg/logx"
)

// Sink is the write side of one client connection.
type Sink interface {
	// WriteRecord writes one record and flushes it to the peer.
	WriteRecord(r record.Record) error
	Close() error
}

// Session is one connected client. The monitor appends to buf; the session's
// own loop writes and clears it.
type Session struct {
	id        string
	transport string
	sink      Sink
	log       logx.Logger

	mu  sync.Mutex
	buf []record.Record
}

func (s *Service) newSession(transport string, sink Sink) *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		transport: transport,
		sink:      sink,
		log:       s.log.With(logx.String("session", id), logx.String("transport", transport)),
	}
}

func (sess *Session) ID() string { return sess.id }

func (sess *Session) enqueue(recs []record.Record) {
	sess.mu.Lock()
	sess.buf = append(sess.buf, recs...)
	sess.mu.Unlock()
}

// flush writes every buffered record in order and clears the buffer, all
// under the buffer lock. A write error leaves the unwritten tail dropped; the
// session is about to end anyway.
func (sess *Session) flush() (int, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.buf) == 0 {
		return 0, nil
	}
	n := 0
	var err error
	for _, r := range sess.buf {
		if err = sess.sink.WriteRecord(r); err != nil {
			break
		}
		n++
	}
	sess.buf = sess.buf[:0]
	if n > 0 {
		metrics.RecordsDelivered.WithLabelValues(sess.transport).Add(float64(n))
	}
	return n, err
}

func (sess *Session) pending() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.buf)
}

// serveSession registers a session for sink and flushes it on every interval
// until ctx ends, the service stops, peerGone closes, or a write fails. The
// session is always deregistered and its sink closed on return.
func (s *Service) serveSession(ctx context.Context, transport string, sink Sink, peerGone <-chan struct{}) error {
	sess := s.newSession(transport, sink)
	s.register(sess)
	sess.log.Debug("session registered")
	defer func() {
		s.deregister(sess)
		_ = sink.Close()
		sess.log.Debug("session deregistered")
	}()

	stop := s.sup.Context().Done()
	t := s.clock.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-peerGone:
			return nil
		case <-t.Chan():
			if _, err := sess.flush(); err != nil {
				sess.log.Debug("session write failed", logx.Err(err))
				return err
			}
		}
	}
}
