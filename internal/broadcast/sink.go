package broadcast

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"tvbroker/internal/record"
)

const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// tcpSink writes newline-terminated record lines. Deadlines use wall time
// because net.Conn does.
type tcpSink struct {
	conn    net.Conn
	w       *bufio.Writer
	timeout time.Duration
}

func newTCPSink(conn net.Conn, timeout time.Duration) *tcpSink {
	return &tcpSink{conn: conn, w: bufio.NewWriter(conn), timeout: timeout}
}

func (t *tcpSink) WriteRecord(r record.Record) error {
	if t.timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	if _, err := t.w.WriteString(r.String()); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *tcpSink) Close() error { return t.conn.Close() }

// discardInput reads and drops client input until EOF or error, then closes
// gone.
func discardInput(r io.Reader, gone chan<- struct{}) {
	defer close(gone)
	_, _ = io.Copy(io.Discard, r)
}

// wsSink writes one text message per record.
type wsSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func newWSSink(conn *websocket.Conn, timeout time.Duration) *wsSink {
	return &wsSink{conn: conn, timeout: timeout}
}

func (w *wsSink) WriteRecord(r record.Record) error {
	if w.timeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	}
	return w.conn.WriteMessage(websocket.TextMessage, []byte(r.String()))
}

func (w *wsSink) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

// discardMessages reads until the peer closes; gorilla needs a reader to
// process control frames.
func discardMessages(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
