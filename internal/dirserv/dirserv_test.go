package dirserv

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tvbroker/pkg/logx"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
}

func TestListing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice", "x.ttyrec0"), 120)
	writeFile(t, filepath.Join(root, "bob smith", "b.ttyrec.bz2"), 7)
	writeFile(t, filepath.Join(root, "bob smith", "a.ttyrec"), 3)
	writeFile(t, filepath.Join(root, "bob smith", "notes.txt"), 1)

	tests := []struct {
		id   string
		want string
	}{
		{"alice", "x.ttyrec0 120\r\n"},
		{"bob smith", "a.ttyrec 3 b.ttyrec.bz2 7\r\n"},
		{"carol", "\r\n"},
		{"AL!CE", "\r\n"},
		{"", "\r\n"},
		{"../alice", "\r\n"},
		{"*", "\r\n"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Listing(root, tt.id), "id %q", tt.id)
	}
}

func TestCheckRoot(t *testing.T) {
	require.NoError(t, CheckRoot(t.TempDir()))
	require.ErrorIs(t, CheckRoot(filepath.Join(t.TempDir(), "missing")), ErrNoRoot)
}

func TestServeAnswersUntilDisconnect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice", "x.ttyrec0"), 120)

	svc := New(Config{Listen: "127.0.0.1:0", Root: root}, logx.Nop())
	ln, err := svc.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- svc.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))

	br := bufio.NewReader(conn)
	for _, tc := range []struct{ req, want string }{
		{"alice\n", "x.ttyrec0 120\r\n"},
		{"AL!CE\n", "\r\n"},
		{"  alice \r\n", "x.ttyrec0 120\r\n"},
	} {
		_, err := conn.Write([]byte(tc.req))
		require.NoError(t, err)
		got, err := br.ReadString('\n')
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, svc.Stop(stopCtx))
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
