package relink

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type (
	options struct {
		backoff BackoffConfig
		rnd     Rand
		logger  Logger
	}

	// Option configures a Manager.
	Option func(*options)

	reconnectTask struct {
		cancel context.CancelFunc
		delay  time.Duration
	}

	// Manager keeps a single logical connection to url alive. Connections that fail are retried
	// after an exponential backoff; connections closed gracefully by the peer are not.
	//
	// Every mutation (Start, Stop and the reaction to each transport event) runs under mu, which is
	// never held across the backoff sleep or a network write.
	Manager struct {
		url       string
		transport Transport
		logger    Logger
		emitter   *EventEmitter[ConnectionState, StateEvent]

		// ctx is cancelled by Stop and bounds every connection and reconnect task.
		ctx    context.Context
		cancel context.CancelFunc

		mu        sync.Mutex
		state     ConnectionState
		backoff   *Backoff
		conn      Conn
		bridge    *transportBridge
		reconnect *reconnectTask
		stream    *MessageStream
	}
)

func WithBackoff(cfg BackoffConfig) Option {
	return func(o *options) { o.backoff = cfg }
}

// WithRand sets the random source used for jitter.
func WithRand(rnd Rand) Option {
	return func(o *options) { o.rnd = rnd }
}

func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewManager validates its arguments and returns an idle Manager.
func NewManager(url string, transport Transport, opts ...Option) (*Manager, error) {
	o := options{
		backoff: DefaultBackoffConfig(),
		logger:  NopLogger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if url == "" {
		return nil, configErrorf("url is required")
	}
	if transport == nil {
		return nil, configErrorf("transport is required")
	}
	if o.logger == nil {
		o.logger = NopLogger
	}

	backoff, err := NewBackoff(o.backoff, o.rnd)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		url:       url,
		transport: transport,
		logger:    o.logger.WithField("type", "manager").WithField("url", url),
		emitter:   NewEventEmitter[ConnectionState, StateEvent](),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		backoff:   backoff,
	}, nil
}

func (m *Manager) URL() string { return m.url }

func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnState registers fn for transitions into state. Listeners run while the Manager holds its
// lock: they must return quickly and must not call back into the Manager.
func (m *Manager) OnState(state ConnectionState, fn func(StateEvent)) (off func()) {
	return m.emitter.On(state, fn)
}

// OnTransition registers fn for every transition. The same restrictions as OnState apply.
func (m *Manager) OnTransition(fn func(StateEvent)) (off func()) {
	return m.emitter.OnAny(fn)
}

// Start opens the connection and returns the stream of inbound text frames. It fails with
// ErrIllegalState unless the Manager is idle. After a graceful close the Manager is idle again
// and Start reconnects, returning the stream handed out before. Cancelling ctx is equivalent to
// cancelling the stream.
func (m *Manager) Start(ctx context.Context) (*MessageStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return nil, errors.Wrapf(ErrIllegalState, "cannot start manager for %s while %s", m.url, m.state)
	}

	if m.stream == nil {
		m.stream = newMessageStream(ctx, m.Stop)
	}

	m.connect()
	m.logger.Info("started")

	return m.stream, nil
}

// Stop cancels any pending reconnect, closes the live connection and moves to StateStopped,
// which is terminal. The stream, if any, is torn down. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return
	}

	m.cancelReconnect()
	conn := m.conn
	stream := m.stream
	m.conn = nil
	m.bridge = nil
	m.stream = nil
	m.backoff.Reset()
	m.transition(StateStopped, nil)
	m.cancel()
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(CloseNormal, ""); err != nil {
			m.logger.Warnf("cannot close connection: %s", err)
		}
	}
	if stream != nil {
		stream.close()
	}

	m.logger.Info("stopped")
}

// connect requires mu.
func (m *Manager) connect() {
	b := &transportBridge{m: m}
	m.bridge = b
	m.transition(StateConnecting, nil)
	m.conn = m.transport.Open(m.ctx, m.url, b)
}

// transition requires mu.
func (m *Manager) transition(to ConnectionState, err error) {
	from := m.state
	m.state = to

	if err != nil {
		m.logger.Infof("state %s -> %s: %s", from, to, err)
	} else {
		m.logger.Infof("state %s -> %s", from, to)
	}

	m.emitter.Emit(to, StateEvent{From: from, To: to, Err: err})
}

// scheduleReconnect requires mu. It replaces any pending reconnect.
func (m *Manager) scheduleReconnect(delay time.Duration) {
	m.cancelReconnect()

	ctx, cancel := context.WithCancel(m.ctx)
	task := &reconnectTask{cancel: cancel, delay: delay}
	m.reconnect = task

	go m.runReconnect(ctx, task)
}

// cancelReconnect requires mu.
func (m *Manager) cancelReconnect() {
	if m.reconnect == nil {
		return
	}
	m.reconnect.cancel()
	m.reconnect = nil
}

func (m *Manager) runReconnect(ctx context.Context, task *reconnectTask) {
	timer := time.NewTimer(task.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Stop or a newer failure may have won the race for the lock.
	if m.reconnect != task || m.state != StateReconnectScheduled {
		return
	}
	m.reconnect = nil
	task.cancel()

	m.logger.Infof("reconnecting after %s (attempt %d)", task.delay, m.backoff.Attempt())
	m.connect()
}

func (m *Manager) handleOpen(b *transportBridge, _ Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b != m.bridge {
		m.logger.Debug("ignoring open from abandoned connection")
		return
	}

	m.backoff.Reset()
	m.transition(StateConnected, nil)
}

func (m *Manager) handleMessage(b *transportBridge, _ Conn, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b != m.bridge {
		m.logger.Debug("dropping message from abandoned connection")
		return
	}

	m.logger.Debugf("<= %s", text)
	if m.stream != nil {
		m.stream.push(text)
	}
}

func (m *Manager) handleClosing(b *transportBridge, c Conn, code int, reason string) {
	m.mu.Lock()
	current := b == m.bridge
	m.mu.Unlock()

	if !current {
		m.logger.Debugf("ignoring closing from abandoned connection: code=%d reason=%q", code, reason)
		return
	}

	m.logger.Infof("peer is closing: code=%d reason=%q", code, reason)
	if err := c.Close(code, reason); err != nil {
		m.logger.Warnf("cannot acknowledge close: %s", err)
	}
}

// handleClosed leaves the Manager idle. A graceful close, whatever its code, does not trigger a
// reconnect; only failures do.
func (m *Manager) handleClosed(b *transportBridge, _ Conn, code int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b != m.bridge {
		m.logger.Debugf("ignoring closed from abandoned connection: code=%d reason=%q", code, reason)
		return
	}

	m.logger.Infof("connection closed: code=%d reason=%q", code, reason)
	m.conn = nil
	m.bridge = nil
	m.transition(StateIdle, nil)
}

func (m *Manager) handleFailure(b *transportBridge, c Conn, err error) {
	m.mu.Lock()
	if b != m.bridge {
		m.mu.Unlock()
		m.logger.Debugf("ignoring failure from abandoned connection: %s", err)
		return
	}

	m.logger.Errorf("connection failed: %s", err)
	m.conn = nil
	m.bridge = nil
	m.backoff.Fail()
	delay := m.backoff.Delay()
	m.transition(StateReconnectScheduled, err)
	m.scheduleReconnect(delay)
	m.logger.Infof("reconnect scheduled in %s (attempt %d)", delay, m.backoff.Attempt())
	m.mu.Unlock()

	c.Cancel()
}
