// Package dirserv answers recording-directory listing requests: a client
// sends a player name per line and gets back the recordings stored for that
// player with their sizes.
package dirserv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"tvbroker/internal/metrics"
	"tvbroker/internal/runtime/supervisor"
	"tvbroker/pkg/logx"
)

const (
	DefaultListen = "0.0.0.0:21977"

	// maxRequestLine bounds a single identifier line.
	maxRequestLine = 4096
	writeTimeout   = 10 * time.Second
)

var (
	ErrNoRoot = errors.New("recordings root does not exist")

	validID = regexp.MustCompile(`^[a-zA-Z0-9_ -]+$`)
)

type Config struct {
	Listen string
	Root   string
}

type Service struct {
	cfg Config
	log logx.Logger
	sup *supervisor.Supervisor
}

func New(cfg Config, log logx.Logger) *Service {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "dirserv"))
	return &Service{
		cfg: cfg,
		log: log,
		sup: supervisor.New(context.Background(), supervisor.WithLogger(log)),
	}
}

// CheckRoot reports ErrNoRoot when the recordings root is missing; the
// listing daemon is not launched in that case.
func CheckRoot(root string) error {
	st, err := os.Stat(root)
	if err != nil || !st.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoRoot, root)
	}
	return nil
}

func (s *Service) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("dirserv: listen %s: %w", s.cfg.Listen, err)
	}
	s.log.Info("listing server started", logx.String("addr", ln.Addr().String()), logx.String("root", s.cfg.Root))
	return ln, nil
}

// Serve handles connections until ctx ends or Stop is called.
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
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || runCtx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", logx.Err(err))
			continue
		}
		if !s.sup.Go0("listing.conn", func(ctx context.Context) {
			s.handle(ctx, conn)
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

func (s *Service) Stop(ctx context.Context) error {
	return s.sup.Stop(ctx)
}

func (s *Service) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 256), maxRequestLine)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		reply := Listing(s.cfg.Root, id)
		if reply == "\r\n" {
			metrics.ListingRequests.WithLabelValues("invalid").Inc()
		} else {
			metrics.ListingRequests.WithLabelValues("ok").Inc()
		}
		s.log.Debug("listing requested", logx.String("id", id))
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

// Listing builds the reply for one identifier: "name size" pairs for every
// <root>/<id>/*.ttyrec* file, sorted by name and space-separated, then CRLF.
// Identifiers outside [a-zA-Z0-9_ -] get a bare CRLF.
func Listing(root, id string) string {
	if !validID.MatchString(id) {
		return "\r\n"
	}
	matches, err := filepath.Glob(filepath.Join(root, id, "*.ttyrec*"))
	if err != nil {
		return "\r\n"
	}
	sort.Strings(matches)

	var b strings.Builder
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(filepath.Base(m))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(st.Size(), 10))
	}
	b.WriteString("\r\n")
	return b.String()
}
