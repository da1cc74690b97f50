package ops

import (
	"context"
	"encoding/json"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tvbroker/internal/broadcast"
	rtsup "tvbroker/internal/runtime/supervisor"
	"tvbroker/internal/storage"
	"tvbroker/pkg/logx"
)

const pprofPrefix = "/debug/pprof/"

type healthResponse struct {
	Status    string            `json:"status"`
	Broadcast *broadcast.Status `json:"broadcast,omitempty"`
	Tasks     *rtsup.Snapshot   `json:"tasks,omitempty"`
}

// handler builds the mux for cfg. sessionCtx bounds WebSocket sessions,
// which outlive the HTTP request once hijacked.
func (s *Service) handler(sessionCtx context.Context, cfg Config) http.Handler {
	mux := http.NewServeMux()
	auth := func(h http.Handler) http.Handler { return withAuth(cfg.Token, h) }

	mux.HandleFunc("/healthz", s.handleHealth)

	if cfg.Metrics {
		mux.Handle("/metrics", auth(promhttp.Handler()))
	}
	if cfg.Pprof {
		mux.Handle(pprofPrefix, auth(http.HandlerFunc(hpprof.Index)))
		mux.Handle(pprofPrefix+"cmdline", auth(http.HandlerFunc(hpprof.Cmdline)))
		mux.Handle(pprofPrefix+"profile", auth(http.HandlerFunc(hpprof.Profile)))
		mux.Handle(pprofPrefix+"symbol", auth(http.HandlerFunc(hpprof.Symbol)))
		mux.Handle(pprofPrefix+"trace", auth(http.HandlerFunc(hpprof.Trace)))
	}
	if s.deps.History != nil {
		mux.Handle("/history", auth(http.HandlerFunc(s.handleHistory)))
	}
	if p := strings.TrimSpace(cfg.WebSocketPath); p != "" && p != "-" && s.deps.Broadcast != nil {
		mux.Handle(p, auth(s.websocketHandler(sessionCtx)))
	}
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if b := s.deps.Broadcast; b != nil {
		st := b.Status()
		resp.Broadcast = &st
	}
	if s.deps.Tasks != nil {
		snap := s.deps.Tasks()
		resp.Tasks = &snap
		if snap.FirstError != "" {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.deps.RecentLimit
	if limit <= 0 {
		limit = 100
	}
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n < limit {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ds, err := s.deps.History.Recent(ctx, limit)
	if err != nil {
		s.log.Warn("history read failed", logx.Err(err))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if ds == nil {
		ds = []storage.Delivery{}
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Service) websocketHandler(sessionCtx context.Context) http.Handler {
	up := websocket.Upgrader{
		ReadBufferSize:  512,
		WriteBufferSize: 4096,
		// Viewers are arbitrary web pages; auth is the token, not the origin.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug("websocket upgrade failed", logx.Err(err))
			return
		}
		s.log.Debug("websocket viewer connected", logx.String("remote", r.RemoteAddr))
		s.deps.Broadcast.ServeWebSocket(sessionCtx, conn)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// withAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h.ServeHTTP(w, r)
			return
		}
		unauthorized(w)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
