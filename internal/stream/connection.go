// Package stream maintains the eth_subscribe log feed with bounded
// exponential-backoff reconnects.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"volumeScope/internal/model"
)

const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultPingInterval = 25 * time.Second

	messageBuffer = 64
)

// Handler receives every log notification. Calls are serialised per session.
type Handler interface {
	HandleLog(ctx context.Context, record model.LogRecord)
}

type HandlerFunc func(ctx context.Context, record model.LogRecord)

func (f HandlerFunc) HandleLog(ctx context.Context, record model.LogRecord) {
	f(ctx, record)
}

type Config struct {
	URL     string
	ChainID uint64
	// Topics holds one topic0 per eth_subscribe request.
	Topics       []common.Hash
	Backoff      Backoff
	DialTimeout  time.Duration
	PingInterval time.Duration
	Dialer       Dialer
	Handler      Handler
	// OnStateChange runs with the connection lock held and must not call
	// back into the Connection.
	OnStateChange func(Status)
	Logger        *zap.Logger
	Now           func() time.Time
}

type timer interface {
	Stop() bool
}

// Connection is a reconnecting log subscription. Every dial starts a new
// session; callbacks from an older session are ignored.
type Connection struct {
	cfg       Config
	backoff   Backoff
	logger    *zap.Logger
	afterFunc func(time.Duration, func()) timer

	wg sync.WaitGroup

	mu        sync.Mutex
	parent    context.Context
	state     State
	attempts  int
	retryIn   time.Duration
	lastErr   error
	session   uint64
	transport Transport
	cancel    context.CancelFunc
	retry     timer
}

func NewConnection(cfg Config) (*Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("stream url is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("stream handler is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{EnableCompression: true}
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Connection{
		cfg:     cfg,
		backoff: cfg.Backoff.withDefaults(),
		logger:  cfg.Logger,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		parent: context.Background(),
	}, nil
}

// Connect dials and subscribes. It is a no-op while connecting or connected.
// A failed dial schedules a retry and is also returned to the caller.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.stopRetryLocked()
	c.parent = ctx
	c.attempts = 0
	c.session++
	session := c.session
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return c.dial(session)
}

// Disconnect closes the transport and cancels any pending retry without
// triggering a reconnect. It must not be called from a Handler.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.session++
	c.stopRetryLocked()
	c.teardownLocked()
	c.attempts = 0
	c.lastErr = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Connection) statusLocked() Status {
	status := Status{
		State:       c.state,
		StateName:   c.state.String(),
		Attempts:    c.attempts,
		MaxAttempts: c.backoff.MaxAttempts,
		RetryIn:     c.retryIn,
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

func (c *Connection) setStateLocked(state State) {
	c.state = state
	if state != StateReconnecting {
		c.retryIn = 0
	}
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(c.statusLocked())
	}
}

func (c *Connection) dial(session uint64) error {
	c.mu.Lock()
	parent := c.parent
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(parent, c.cfg.DialTimeout)
	transport, err := c.cfg.Dialer.Dial(dialCtx, c.cfg.URL)
	cancel()
	if err != nil {
		c.logger.Warn("stream dial failed", zap.String("url", c.cfg.URL), zap.Error(err))
		c.handleClose(session, err)
		return err
	}

	for i, topic := range c.cfg.Topics {
		if err := transport.WriteJSON(subscribeRequest(i+1, topic.Hex())); err != nil {
			_ = transport.Close()
			err = fmt.Errorf("subscribe: %w", err)
			c.handleClose(session, err)
			return err
		}
	}

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		_ = transport.Close()
		return nil
	}
	sessionCtx, sessionCancel := context.WithCancel(parent)
	c.transport = transport
	c.cancel = sessionCancel
	c.attempts = 0
	c.lastErr = nil
	c.setStateLocked(StateConnected)
	c.wg.Add(2)
	c.mu.Unlock()

	c.logger.Info("stream connected", zap.String("url", c.cfg.URL), zap.Int("subscriptions", len(c.cfg.Topics)))

	messages := make(chan []byte, messageBuffer)
	errs := make(chan error, 1)
	go c.readLoop(sessionCtx, transport, messages, errs)
	go c.dispatchLoop(sessionCtx, session, transport, messages, errs)
	return nil
}

func (c *Connection) readLoop(ctx context.Context, transport Transport, messages chan<- []byte, errs chan<- error) {
	defer c.wg.Done()
	for {
		data, err := transport.ReadMessage()
		if err != nil {
			errs <- err
			return
		}
		select {
		case messages <- data:
		case <-ctx.Done():
			return
		}
	}
}

// dispatchLoop is the single consumer of a session's inbound messages. It
// also owns keepalive pings.
func (c *Connection) dispatchLoop(ctx context.Context, session uint64, transport Transport, messages <-chan []byte, errs <-chan error) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-messages:
			c.handleMessage(ctx, data)
		case err := <-errs:
			c.handleClose(session, fmt.Errorf("read: %w", err))
			return
		case <-ticker.C:
			if err := transport.Ping(); err != nil {
				c.handleClose(session, fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

func (c *Connection) handleMessage(ctx context.Context, data []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("malformed stream message", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	switch {
	case msg.Method == methodSubscription && msg.Params != nil:
		record, err := msg.Params.Result.toLogRecord(c.cfg.ChainID, c.cfg.Now())
		if err != nil {
			c.logger.Warn("invalid log notification", zap.String("subscription", msg.Params.Subscription), zap.Error(err))
			return
		}
		c.cfg.Handler.HandleLog(ctx, record)
	case msg.Error != nil:
		c.logger.Error("stream rpc error", zap.Int("code", msg.Error.Code), zap.String("message", msg.Error.Message))
	case msg.ID != nil:
		var subscription string
		_ = json.Unmarshal(msg.Result, &subscription)
		c.logger.Info("subscription confirmed", zap.Int("id", *msg.ID), zap.String("subscription", subscription))
	default:
		c.logger.Debug("ignored stream message", zap.String("method", msg.Method))
	}
}

// handleClose reacts to an unexpected transport failure of session.
func (c *Connection) handleClose(session uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session || c.state == StateDisconnected {
		return
	}

	c.teardownLocked()
	c.lastErr = cause

	if c.attempts >= c.backoff.MaxAttempts {
		c.setStateLocked(StateFailed)
		c.logger.Error("stream reconnect failed", zap.Int("attempts", c.attempts), zap.Error(cause))
		return
	}

	delay := c.backoff.Delay(c.attempts)
	c.attempts++
	c.session++
	next := c.session
	c.retryIn = delay
	c.setStateLocked(StateReconnecting)
	c.logger.Warn("stream closed, reconnecting",
		zap.Duration("delay", delay),
		zap.Int("attempt", c.attempts),
		zap.Int("max_attempts", c.backoff.MaxAttempts),
		zap.Error(cause),
	)
	c.retry = c.afterFunc(delay, func() {
		c.reconnect(next)
	})
}

func (c *Connection) reconnect(session uint64) {
	c.mu.Lock()
	if c.session != session || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	_ = c.dial(session)
}

func (c *Connection) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
}

func (c *Connection) stopRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}
