package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"tvbroker/internal/broadcast"
	"tvbroker/internal/storage"
	"tvbroker/pkg/logx"
)

func newBroadcast(t *testing.T) *broadcast.Service {
	t.Helper()
	svc := broadcast.New(broadcast.Config{
		QueueFile: filepath.Join(t.TempDir(), "tv.queue"),
		Interval:  20 * time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})
	return svc
}

func TestHealthzIsPublic(t *testing.T) {
	s := New(Config{Token: "secret"}, Deps{Broadcast: newBroadcast(t)}, logx.Nop())
	srv := httptest.NewServer(s.handler(context.Background(), s.cfg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.NotNil(t, body.Broadcast)
	require.Equal(t, 0, body.Broadcast.Sessions)
}

func TestMetricsRequireToken(t *testing.T) {
	cfg := Config{Metrics: true, Token: "secret"}
	s := New(cfg, Deps{}, logx.Nop())
	srv := httptest.NewServer(s.handler(context.Background(), cfg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics?token=secret")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDisabledRoutes(t *testing.T) {
	cfg := Config{WebSocketPath: "-"}
	s := New(cfg, Deps{Broadcast: newBroadcast(t)}, logx.Nop())
	srv := httptest.NewServer(s.handler(context.Background(), cfg))
	defer srv.Close()

	for _, p := range []string{"/metrics", "/debug/pprof/", "/history", "/tv"} {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
}

func TestHistory(t *testing.T) {
	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "h.jsonl")}, logx.Nop())
	require.NoError(t, err)
	defer store.Close()

	now := time.Now()
	require.NoError(t, store.AppendDeliveries(context.Background(), []storage.Delivery{
		{At: now, Timestamp: 1, Payload: "name=a", Sessions: 1},
		{At: now, Timestamp: 2, Payload: "name=b", Sessions: 2},
		{At: now, Timestamp: 3, Payload: "name=c", Sessions: 0},
	}))

	s := New(Config{}, Deps{History: store, RecentLimit: 10}, logx.Nop())
	srv := httptest.NewServer(s.handler(context.Background(), s.cfg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/history?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ds []storage.Delivery
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ds))
	require.Len(t, ds, 2)
	require.Equal(t, "name=c", ds[0].Payload)
	require.Equal(t, "name=b", ds[1].Payload)

	bad, err := http.Get(srv.URL + "/history?limit=zero")
	require.NoError(t, err)
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestWebSocketRegistersSession(t *testing.T) {
	b := newBroadcast(t)
	cfg := Config{WebSocketPath: "/tv"}
	s := New(cfg, Deps{Broadcast: b}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(s.handler(ctx, cfg))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/tv", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.SessionCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return b.SessionCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStartStopReconfigure(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, Deps{}, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	s.Reconfigure(stopCtx, Config{Enabled: false})
	require.Equal(t, "", s.Addr())
}

func TestIsLoopbackAddr(t *testing.T) {
	require.True(t, isLoopbackAddr("127.0.0.1:1"))
	require.True(t, isLoopbackAddr("localhost:1"))
	require.True(t, isLoopbackAddr("[::1]:1"))
	require.False(t, isLoopbackAddr("0.0.0.0:1"))
	require.False(t, isLoopbackAddr(":1"))
}
