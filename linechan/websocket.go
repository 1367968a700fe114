package linechan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebSocket is a Channel carrying one line per websocket text message.
type WebSocket struct {
	cfg   *config
	conn  net.Conn
	state ws.State
	recv  *receiver

	wmu sync.Mutex // serializes Send with control replies written by the reader goroutine

	closeOnce sync.Once
	closeErr  error
}

var _ Channel = (*WebSocket)(nil)

// lockedWriter shares the connection's write side between Send and the reader
// goroutine, which answers ping and close frames.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	return lw.w.Write(p)
}

// DialWebSocket connects to a websocket endpoint (ws:// or wss://) and returns the client side channel.
func DialWebSocket(ctx context.Context, url string, opts ...Option) (*WebSocket, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("linechan: dial %s: %w", url, err)
	}

	var r io.Reader = conn
	if br != nil {
		// the server already sent data behind the handshake response
		r = io.MultiReader(br, conn)
	}

	return newWebSocket(conn, r, ws.StateClientSide, url, opts)
}

// UpgradeWebSocket upgrades an HTTP request to a websocket and returns the server side channel.
func UpgradeWebSocket(w http.ResponseWriter, req *http.Request, opts ...Option) (*WebSocket, error) {
	conn, rw, _, err := ws.UpgradeHTTP(req, w)
	if err != nil {
		return nil, fmt.Errorf("linechan: websocket upgrade: %w", err)
	}

	var r io.Reader = conn
	if rw != nil && rw.Reader.Buffered() > 0 {
		r = io.MultiReader(rw.Reader, conn)
	}

	return newWebSocket(conn, r, ws.StateServerSide, req.RemoteAddr, opts)
}

// NewWebSocket wraps an established websocket connection. state selects the client or
// server framing rules (masking).
func NewWebSocket(conn net.Conn, state ws.State, opts ...Option) (*WebSocket, error) {
	if conn == nil {
		return nil, errors.New("linechan: websocket connection must not be nil")
	}

	return newWebSocket(conn, conn, state, conn.RemoteAddr().String(), opts)
}

func newWebSocket(conn net.Conn, r io.Reader, state ws.State, name string, opts []Option) (*WebSocket, error) {
	if name == "" {
		name = "websocket"
	}

	cfg, err := newConfig(name, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	c := &WebSocket{
		cfg:   cfg,
		conn:  conn,
		state: state,
	}

	rw := struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{mu: &c.wmu, w: conn}}

	c.recv = newReceiver(func() (string, error) {
		for {
			payload, op, err := wsutil.ReadData(rw, state)
			if err != nil {
				var closed wsutil.ClosedError
				if errors.As(err, &closed) {
					return "", fmt.Errorf("linechan: websocket closed by peer (%d): %w", closed.Code, io.EOF)
				}

				return "", err
			}
			if op != ws.OpText && op != ws.OpBinary {
				continue
			}

			return trimLine(string(payload)), nil
		}
	})

	return c, nil
}

// Send implements Channel. The context deadline, if any, bounds the write. A write that
// fails on the deadline may have left a partial frame behind, so the channel is closed.
func (c *WebSocket) Send(ctx context.Context, line string) error {
	if c.recv.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkLine(line); err != nil {
		return err
	}

	c.cfg.traceOut(line)

	err := c.write(ctx, []byte(line))
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || ctx.Err() != nil {
		_ = c.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("linechan: websocket write aborted: %w", ctxErr)
		}
	}

	return fmt.Errorf("linechan: websocket write: %w", err)
}

func (c *WebSocket) write(ctx context.Context, p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}

	return wsutil.WriteMessage(c.conn, c.state, ws.OpText, p)
}

// Receive implements Channel.
func (c *WebSocket) Receive(ctx context.Context) (string, error) {
	line, err := c.recv.receive(ctx)
	if err != nil {
		return "", err
	}

	c.cfg.traceIn(line)

	return line, nil
}

// Close sends a normal closure frame (best effort) and closes the connection.
func (c *WebSocket) Close() error {
	c.closeOnce.Do(func() {
		c.recv.close()

		c.wmu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, body)
		c.wmu.Unlock()

		c.closeErr = c.conn.Close()
	})

	return c.closeErr
}
