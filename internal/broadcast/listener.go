package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"tvbroker/internal/metrics"
	"tvbroker/pkg/logx"
)

const acceptRetryDelay = 50 * time.Millisecond

// Listen binds the broadcast endpoint. Bind failures are returned as is so
// the daemon can exit non-zero.
func (s *Service) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("broadcast: listen %s: %w", s.cfg.Listen, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.log.Info("listening", logx.String("addr", s.addr))
	return ln, nil
}

// Serve accepts connections on ln until ctx ends or the service stops, and
// runs one session per connection. It closes ln on return.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	runCtx := s.sup.Context()
	go func() {
		select {
		case <-ctx.Done():
		case <-runCtx.Done():
		}
		_ = ln.Close()
	}()

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || runCtx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			metrics.AcceptErrors.Inc()
			s.log.Warn("accept failed", logx.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-s.clock.After(acceptRetryDelay):
			}
			continue
		}
		if runCtx.Err() != nil {
			_ = conn.Close()
			return nil
		}
		if !s.sup.Go0("session.tcp", func(ctx context.Context) {
			s.ServeConn(ctx, conn)
		}) {
			_ = conn.Close()
			return nil
		}
	}
}

func (s *Service) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Addr returns the bound address once Listen has succeeded.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ServeConn runs a session over an accepted TCP connection and returns when
// it ends. The connection is closed on return.
func (s *Service) ServeConn(ctx context.Context, conn net.Conn) {
	gone := make(chan struct{})
	go discardInput(conn, gone)
	_ = s.serveSession(ctx, TransportTCP, newTCPSink(conn, s.cfg.WriteTimeout), gone)
}

// ServeWebSocket runs a session over an upgraded WebSocket connection. It
// blocks for the life of the session.
func (s *Service) ServeWebSocket(ctx context.Context, conn *websocket.Conn) {
	gone := make(chan struct{})
	go discardMessages(conn, gone)
	_ = s.serveSession(ctx, TransportWebSocket, newWSSink(conn, s.cfg.WriteTimeout), gone)
}
