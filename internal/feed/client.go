package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"token-forge/internal/domain"
)

// ClientConfig configures WebSocket client behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// Buffer is the receipt channel capacity.
	Buffer int
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		Buffer:            1024,
	}
}

// Client follows a node's receipt feed and reconnects with exponential backoff.
type Client struct {
	endpoint string
	config   ClientConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	receipts chan *domain.Receipt
	done     chan struct{}
	wg       sync.WaitGroup
}

// Dial connects to endpoint (e.g. ws://localhost:8545/ws) with filter applied server side.
func Dial(ctx context.Context, endpoint string, filter Filter, config *ClientConfig) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse feed endpoint: %w", err)
	}
	q := u.Query()
	if filter.Contract != "" {
		q.Set("contract", string(filter.Contract))
	}
	if filter.Sender != "" {
		q.Set("sender", string(filter.Sender))
	}
	u.RawQuery = q.Encode()

	c := &Client{
		endpoint: u.String(),
		config:   cfg,
		receipts: make(chan *domain.Receipt, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// Receipts returns the receipt stream. It is closed by Close.
func (c *Client) Receipts() <-chan *domain.Receipt {
	return c.receipts
}

// connect establishes WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	// Hub pings keep an idle stream alive.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		conn.Close()
		return nil
	}
	c.conn = conn
	return nil
}

// Close closes the WebSocket connection and the receipt stream.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.receipts)
	return nil
}

// readLoop reads notifications and reconnects on connection errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(reconnectDelay) {
				reconnectDelay = min(reconnectDelay*2, c.config.MaxReconnectDelay)
			} else {
				reconnectDelay = c.config.ReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.connMu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		c.handleMessage(message)
	}
}

// reconnect waits delay and dials again. Returns false if the dial failed.
func (c *Client) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return c.connect(ctx) == nil
}

func (c *Client) handleMessage(message []byte) {
	var n Notification
	if err := json.Unmarshal(message, &n); err != nil || n.Type != NotificationReceipt || n.Receipt == nil {
		return
	}

	select {
	case c.receipts <- n.Receipt:
	case <-c.done:
	}
}
