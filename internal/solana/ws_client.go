package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
	// SubscribeTimeout bounds waiting for a subscription confirmation.
	SubscribeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// BufferSize is the capacity of the notification channel.
	BufferSize int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		HandshakeTimeout: 10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     10 * time.Second,
		BufferSize:       1024,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// filters maps subscription ID to its filter
	filters   map[int64]LogsFilter
	filtersMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan subscribeResult
	pendingSubsMu sync.Mutex

	notifications chan LogNotification

	// done signals shutdown
	done chan struct{}
	// lost is closed on connection loss or shutdown
	lost     chan struct{}
	lostOnce sync.Once
	lostErr  atomic.Value
	wg       sync.WaitGroup
}

var _ WSClient = (*WSClientImpl)(nil)

type subscribeResult struct {
	id  int64
	err error
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWSConfig().BufferSize
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSClientImpl{
		endpoint:      endpoint,
		config:        cfg,
		conn:          conn,
		filters:       make(map[int64]LogsFilter),
		pendingSubs:   make(map[uint64]chan subscribeResult),
		notifications: make(chan LogNotification, cfg.BufferSize),
		done:          make(chan struct{}),
		lost:          make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Notifications delivers notifications of every subscription.
func (c *WSClientImpl) Notifications() <-chan LogNotification {
	return c.notifications
}

// Done is closed when the connection is lost or closed.
func (c *WSClientImpl) Done() <-chan struct{} {
	return c.lost
}

// Err returns the reason Done was closed, or nil while connected.
func (c *WSClientImpl) Err() error {
	if v := c.lostErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (c *WSClientImpl) markLost(err error) {
	c.lostOnce.Do(func() {
		c.lostErr.Store(err)
		close(c.lost)
	})
}

// SubscribeLogs subscribes to logs matching the filter.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}
	select {
	case <-c.lost:
		return 0, c.Err()
	default:
	}

	reqID := c.requestID.Add(1)

	mentionsFilter := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentionsFilter["mentions"] = filter.Mentions
	} else {
		mentionsFilter["all"] = nil
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentionsFilter,
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan subscribeResult, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()
	defer func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}()

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case res := <-confirmCh:
		if res.err != nil {
			return 0, res.err
		}
		c.filtersMu.Lock()
		c.filters[res.id] = filter
		c.filtersMu.Unlock()
		return res.id, nil
	case <-timer.C:
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.lost:
		return 0, c.Err()
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)
	c.markLost(fmt.Errorf("client closed"))

	c.connMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.notifications)
	return nil
}

// readLoop reads messages until the connection fails. It never reconnects.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.markLost(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			}
			return
		}

		if !c.handleMessage(message) {
			return
		}
	}
}

// handleMessage processes an incoming message. It returns false on shutdown.
func (c *WSClientImpl) handleMessage(message []byte) bool {
	var envelope struct {
		ID     *uint64         `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Params *wsNotificationParams `json:"params"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return true
	}

	if envelope.ID != nil {
		res := subscribeResult{}
		if envelope.Error != nil {
			res.err = fmt.Errorf("subscribe rejected: code=%d msg=%s", envelope.Error.Code, envelope.Error.Message)
		} else if err := json.Unmarshal(envelope.Result, &res.id); err != nil {
			return true
		}
		c.handleSubscribeResponse(*envelope.ID, res)
		return true
	}

	if envelope.Method == "logsNotification" && envelope.Params != nil {
		return c.handleLogsNotification(envelope.Params)
	}
	return true
}

// handleSubscribeResponse handles subscription confirmation.
func (c *WSClientImpl) handleSubscribeResponse(id uint64, res subscribeResult) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[id]
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- res:
		default:
		}
	}
}

// handleLogsNotification dispatches a log notification.
func (c *WSClientImpl) handleLogsNotification(params *wsNotificationParams) bool {
	value := params.Result.Value

	c.filtersMu.RLock()
	filter := c.filters[params.Subscription]
	c.filtersMu.RUnlock()

	n := LogNotification{
		Subscription: params.Subscription,
		Mentions:     filter.Mentions,
		Signature:    value.Signature,
		Logs:         value.Logs,
		Err:          value.Err,
	}
	if params.Result.Context != nil {
		n.Slot = params.Result.Context.Slot
	}

	// Block until the consumer reads; never drop events
	select {
	case c.notifications <- n:
		return true
	case <-c.done:
		return false
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.lost:
			return
		case <-ticker.C:
			c.connMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.connMu.Unlock()
			if err != nil {
				c.markLost(fmt.Errorf("%w: ping: %v", ErrConnectionLost, err))
				c.conn.Close()
				return
			}
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
