package relink

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

const (
	DefaultCloseTimeout = 10 * time.Second
	defaultWriteWait    = time.Second
)

type (
	// ErrAdapter turns the outcome of a dial into the error reported to the listener. A nil
	// return means the dial succeeded.
	ErrAdapter func(*websocket.Conn, *http.Response, error) error

	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	// WebsocketTransport is a Transport backed by fasthttp/websocket.
	WebsocketTransport struct {
		logger       Logger
		dialer       *websocket.Dialer
		params       OpenConnectionParamsRepo
		errAdapters  ErrorAdapters
		pingInterval time.Duration
		closeTimeout time.Duration
	}

	WebsocketOption func(*WebsocketTransport)

	// wsConn is one connection attempt. All listener events are delivered from its run goroutine.
	wsConn struct {
		t        *WebsocketTransport
		url      string
		listener Listener
		logger   Logger

		// ctx bounds the dial only.
		ctx       context.Context
		cancelCtx context.CancelFunc
		done      chan struct{}

		mu         sync.Mutex
		conn       *websocket.Conn
		closeSent  bool
		cancelled  bool
		closeTimer *time.Timer

		// peerClosed is only touched by the read goroutine.
		peerClosed bool
	}
)

// WithPingInterval makes every connection send a ping control frame at interval.
func WithPingInterval(interval time.Duration) WebsocketOption {
	return func(t *WebsocketTransport) { t.pingInterval = interval }
}

// WithCloseTimeout bounds how long a close handshake may wait for the peer.
func WithCloseTimeout(timeout time.Duration) WebsocketOption {
	return func(t *WebsocketTransport) { t.closeTimeout = timeout }
}

func WithOpenConnectionParams(repo OpenConnectionParamsRepo) WebsocketOption {
	return func(t *WebsocketTransport) { t.params = repo }
}

func WithErrorAdapters(adapters ErrorAdapters) WebsocketOption {
	return func(t *WebsocketTransport) { t.errAdapters = adapters }
}

func NewWebsocketTransport(
	logger Logger,
	dialer *websocket.Dialer,
	opts ...WebsocketOption,
) *WebsocketTransport {
	if logger == nil {
		logger = NopLogger
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	t := &WebsocketTransport{
		logger:       logger.WithField("net", "ws_transport"),
		dialer:       dialer,
		closeTimeout: DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open starts dialing rawURL in the background and returns immediately.
func (t *WebsocketTransport) Open(ctx context.Context, rawURL string, l Listener) Conn {
	dctx, cancel := context.WithCancel(ctx)

	c := &wsConn{
		t:         t,
		url:       rawURL,
		listener:  l,
		logger:    t.logger.WithField("url", rawURL),
		ctx:       dctx,
		cancelCtx: cancel,
		done:      make(chan struct{}),
	}

	go c.run()

	return c
}

func (t *WebsocketTransport) handleDialError(conn *websocket.Conn, resp *http.Response, err error) error {
	if t.errAdapters.OnDial != nil {
		return t.errAdapters.OnDial(conn, resp, err)
	}

	// 1. HTTP errors first
	var msg string

	if resp != nil {
		if resp.Body != nil {
			bts, rerr := io.ReadAll(resp.Body)
			if rerr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}

	// 2. Network errors
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}

// Close sends a close frame once. If the peer does not answer within the close timeout the
// socket is dropped. Closing before the dial completed abandons the attempt silently.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closeSent || c.cancelled {
		c.mu.Unlock()
		return nil
	}
	c.closeSent = true

	conn := c.conn
	if conn == nil {
		c.cancelled = true
		c.mu.Unlock()
		c.cancelCtx()
		return nil
	}
	c.closeTimer = time.AfterFunc(c.t.closeTimeout, c.dropSocket)
	c.mu.Unlock()

	c.logger.Debugf("=> [CLOSE] code=%d reason=%q", code, reason)
	deadline := time.Now().Add(defaultWriteWait)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		c.dropSocket()
		return errors.Wrap(err, "cannot write close frame")
	}
	return nil
}

func (c *wsConn) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()

	c.cancelCtx()
	c.dropSocket()
}

func (c *wsConn) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *wsConn) dropSocket() {
	c.mu.Lock()
	conn := c.conn
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *wsConn) run() {
	defer close(c.done)
	defer c.cancelCtx()

	conn, err := c.dial()
	if err != nil {
		if c.isCancelled() {
			c.logger.Debugf("dial abandoned: %s", err)
			return
		}
		c.logger.Errorf("cannot connect: %s", err)
		c.listener.OnFailure(c, err)
		return
	}

	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	conn.SetCloseHandler(func(code int, text string) error {
		c.logger.Debugf("<= [CLOSE] code=%d reason=%q", code, text)
		c.peerClosed = true
		if !c.isCancelled() {
			c.listener.OnClosing(c, code, text)
		}
		return nil
	})

	c.logger.Debugf("success opening connection to %s", c.url)
	c.listener.OnOpen(c)

	if c.t.pingInterval > 0 {
		go c.keepAlive(conn)
	}

	c.read(conn)
}

func (c *wsConn) dial() (*websocket.Conn, error) {
	p, err := c.t.params.Get(c.ctx, c.url)
	if err != nil {
		return nil, errors.Wrap(ErrCannotConnect, err.Error())
	}

	conn, resp, err := c.t.dialer.DialContext(c.ctx, p.URL.String(), p.Header)
	if err = c.t.handleDialError(conn, resp, err); err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return nil, err
	}
	return conn, nil
}

func (c *wsConn) read(conn *websocket.Conn) {
	defer c.dropSocket()

	for {
		messageType, bts, err := conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		if c.isCancelled() {
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.listener.OnMessage(c, string(bts))
		default:
			c.logger.Debugf("dropping binary frame of %d bytes", len(bts))
		}
	}
}

func (c *wsConn) finish(err error) {
	c.dropSocket()

	if c.isCancelled() {
		return
	}

	// An abnormal closure (1006) is synthesized locally when the socket dies without a close
	// frame, so only a close frame actually received counts as a graceful close.
	var closeErr *websocket.CloseError
	if c.peerClosed && errors.As(err, &closeErr) {
		c.listener.OnClosed(c, closeErr.Code, closeErr.Text)
		return
	}

	c.logger.Errorf("error occurred on websocket read: %s", err)
	c.listener.OnFailure(c, errors.Wrap(ErrConnectionClosed, err.Error()))
}

func (c *wsConn) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.t.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.logger.Debug("=> [PING]")
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteWait)); err != nil {
				c.logger.Debugf("cannot send ping: %s", err)
			}
		}
	}
}
