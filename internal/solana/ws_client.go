// Package solana implements the streaming transaction feed: a persistent
// transactionSubscribe WebSocket subscription filtered to a DEX program
// address set, with exponential-backoff reconnection.
package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"dexcharts/internal/domain"
	"dexcharts/internal/observability"
)

// StreamConfig configures the stream client.
type StreamConfig struct {
	// Endpoint is the WebSocket feed URL.
	Endpoint string
	// AuthToken, when set, is sent as a bearer token on the handshake.
	AuthToken string
	// Programs is the program address allow list for the subscription filter.
	Programs []string

	// BackoffBase is the backoff unit; after k consecutive failures the
	// next attempt is scheduled after min(BackoffBase*2^k, BackoffCap).
	BackoffBase time.Duration
	// BackoffCap is the maximum delay between reconnect attempts.
	BackoffCap time.Duration
	// MaxReconnectAttempts is the number of consecutive failures tolerated
	// before the client transitions to the terminal Failed state.
	MaxReconnectAttempts int

	// PingInterval is the interval for client keep-alive pings.
	PingInterval time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the deadline for subscribe and control writes.
	WriteTimeout time.Duration

	// EventBuffer sizes the outbound event channel.
	EventBuffer int

	// Metrics is optional; nil disables recording.
	Metrics *observability.Metrics

	Logger *log.Logger
}

// DefaultStreamConfig returns the default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		BackoffBase:          1 * time.Second,
		BackoffCap:           30 * time.Second,
		MaxReconnectAttempts: 10,
		PingInterval:         30 * time.Second,
		ReadTimeout:          60 * time.Second,
		WriteTimeout:         10 * time.Second,
		EventBuffer:          10000,
	}
}

// subscriptionError marks a feed rejection of the subscribe request
// (malformed filter, bad auth). Not retried.
type subscriptionError struct {
	code    int
	message string
}

func (e *subscriptionError) Error() string {
	return fmt.Sprintf("subscription rejected: code=%d msg=%s", e.code, e.message)
}

// StreamClient maintains one transactionSubscribe subscription and owns
// the reconnect state machine. Lifecycle: New → Connect → (Events, Fatal,
// State from any goroutine) → Disconnect.
type StreamClient struct {
	config  StreamConfig
	metrics *observability.Metrics
	logger  *log.Logger

	events chan *domain.RawTransactionEvent
	fatal  chan error

	conn   *websocket.Conn
	connMu sync.Mutex

	state      atomic.Int32
	reconnects atomic.Int64
	requestID  atomic.Uint64

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewStreamClient creates a stream client. Zero config fields fall back to
// DefaultStreamConfig values.
func NewStreamClient(config StreamConfig) *StreamClient {
	def := DefaultStreamConfig()
	if config.BackoffBase <= 0 {
		config.BackoffBase = def.BackoffBase
	}
	if config.BackoffCap <= 0 {
		config.BackoffCap = def.BackoffCap
	}
	if config.MaxReconnectAttempts <= 0 {
		config.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = def.EventBuffer
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &StreamClient{
		config:  config,
		metrics: config.Metrics,
		logger:  logger,
		events:  make(chan *domain.RawTransactionEvent, config.EventBuffer),
		fatal:   make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Connect starts the connection loop. Transport errors do not propagate to
// the caller; they feed the reconnect state machine. The only errors
// returned here are lifecycle misuse.
func (c *StreamClient) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("stream client closed")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("stream client already started")
	}

	c.wg.Add(2)
	go c.run(ctx)
	go c.pingLoop()
	return nil
}

// Events returns the transaction event channel. Closed on Disconnect and
// on terminal failure.
func (c *StreamClient) Events() <-chan *domain.RawTransactionEvent {
	return c.events
}

// Fatal delivers at most one terminal error (reconnect exhaustion or
// subscription rejection).
func (c *StreamClient) Fatal() <-chan error {
	return c.fatal
}

// State returns the current connection status.
func (c *StreamClient) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *StreamClient) setState(s ConnState) {
	c.state.Store(int32(s))
	if c.metrics != nil {
		c.metrics.ConnectionState.Set(float64(s))
	}
}

// ReconnectAttempts returns the cumulative reconnect attempt count.
func (c *StreamClient) ReconnectAttempts() int64 {
	return c.reconnects.Load()
}

// Disconnect tears down the subscription. Idempotent.
func (c *StreamClient) Disconnect() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		c.conn.Close()
	}
	c.connMu.Unlock()

	if c.started.Load() {
		c.wg.Wait()
	}
	c.setState(StateDisconnected)
	close(c.events)
	return nil
}

// backoffDelay computes the delay after the given number of consecutive
// failures: min(base*2^failures, limit).
func backoffDelay(base, limit time.Duration, failures int) time.Duration {
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= limit || delay <= 0 {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

// run drives the Disconnected → Connecting → Connected state machine,
// with Connected → Backoff → Connecting on errors and Backoff → Failed
// after exhausting the attempt budget.
func (c *StreamClient) run(ctx context.Context) {
	defer c.wg.Done()

	failures := 0
	for {
		if c.stopping(ctx) {
			c.setState(StateDisconnected)
			return
		}

		c.setState(StateConnecting)
		connected, err := c.connectAndStream(ctx)

		if c.stopping(ctx) {
			c.setState(StateDisconnected)
			return
		}

		if se, ok := err.(*subscriptionError); ok {
			c.fail(se)
			return
		}

		// Failures are counted consecutively: a full Connected transition
		// resets the budget, so only an unbroken run of failed attempts
		// can exhaust it.
		if connected {
			failures = 0
		}
		failures++
		c.reconnects.Add(1)
		if c.metrics != nil {
			c.metrics.ReconnectAttempts.Inc()
		}
		if failures >= c.config.MaxReconnectAttempts {
			c.fail(fmt.Errorf("reconnect exhausted after %d attempts: %w", failures, err))
			return
		}

		delay := backoffDelay(c.config.BackoffBase, c.config.BackoffCap, failures)
		c.logger.Printf("[stream] connection lost (attempt %d/%d, retry in %v): %v",
			failures, c.config.MaxReconnectAttempts, delay, err)

		c.setState(StateBackoff)
		select {
		case <-c.done:
			c.setState(StateDisconnected)
			return
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-time.After(delay):
		}
	}
}

// connectAndStream dials, subscribes, and pumps messages until the
// connection drops. connected reports whether the full Connected
// transition happened; a nil error only happens on shutdown.
func (c *StreamClient) connectAndStream(ctx context.Context) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	var header http.Header
	if c.config.AuthToken != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.config.AuthToken}}
	}

	conn, _, err := dialer.DialContext(ctx, c.config.Endpoint, header)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		conn.Close()
	}()

	// Feed pings are acknowledged at the control-frame level so dispatch
	// is never blocked behind a pong write.
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData),
			time.Now().Add(c.config.WriteTimeout))
	})
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	if err := c.subscribe(conn); err != nil {
		return false, err
	}

	c.setState(StateConnected)
	c.logger.Printf("[stream] connected, watching %d programs", len(c.config.Programs))

	return true, c.readLoop(conn)
}

// subscribe sends the transactionSubscribe filter and waits for the
// confirmation. A feed error response is terminal.
func (c *StreamClient) subscribe(conn *websocket.Conn) error {
	reqID := c.requestID.Add(1)
	req := streamRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "transactionSubscribe",
		Params: []interface{}{
			map[string]interface{}{
				"programIds":    c.config.Programs,
				"includeFailed": false,
				"includeVotes":  false,
			},
			map[string]interface{}{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	// The feed may interleave notifications from a prior subscription with
	// the confirmation; skip anything that is not our response.
	deadline := time.Now().Add(30 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read subscribe confirm: %w", err)
		}

		var resp streamResponse
		if err := json.Unmarshal(message, &resp); err != nil || resp.ID != reqID {
			continue
		}
		if resp.Error != nil {
			return &subscriptionError{code: resp.Error.Code, message: resp.Error.Message}
		}
		return nil
	}
}

// readLoop pumps transaction notifications into the event channel.
func (c *StreamClient) readLoop(conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}

		var notif streamNotification
		if err := json.Unmarshal(message, &notif); err != nil {
			continue
		}
		if notif.Method != "transactionNotification" {
			continue
		}
		ev := notif.toRawEvent()
		if ev == nil {
			continue
		}

		// Blocking send; the buffer absorbs bursts and slow consumers
		// apply backpressure instead of losing events.
		select {
		case c.events <- ev:
		case <-c.done:
			return nil
		}
	}
}

// pingLoop keeps the connection alive with client-side pings. WriteControl
// is safe to call concurrently with other writes.
func (c *StreamClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil,
					time.Now().Add(c.config.WriteTimeout))
			}
		}
	}
}

// fail enters the terminal Failed state and raises the fatal signal.
// The process keeps running; consumers fall back to stale data.
func (c *StreamClient) fail(err error) {
	c.setState(StateFailed)
	c.logger.Printf("[stream] FATAL: %v", err)
	select {
	case c.fatal <- err:
	default:
	}
}

func (c *StreamClient) stopping(ctx context.Context) bool {
	select {
	case <-c.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
