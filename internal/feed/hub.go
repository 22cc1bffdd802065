// Package feed streams committed and aborted receipts to websocket subscribers.
package feed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"token-forge/internal/domain"
	"token-forge/internal/observability"
)

// Notification is one message on the feed.
type Notification struct {
	Type    string          `json:"type"`
	Receipt *domain.Receipt `json:"receipt"`
}

// NotificationReceipt is the Type of receipt notifications.
const NotificationReceipt = "receipt"

// Filter selects receipts; empty fields match everything.
type Filter struct {
	Contract domain.Principal
	Sender   domain.Principal
}

// Match reports whether r passes the filter.
func (f Filter) Match(r *domain.Receipt) bool {
	if f.Contract != "" && r.Contract != f.Contract {
		return false
	}
	if f.Sender != "" && r.Sender != f.Sender {
		return false
	}
	return true
}

// HubConfig configures the hub.
type HubConfig struct {
	// Buffer is the per-subscriber queue length. Receipts are dropped when it is full.
	Buffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// ReadTimeout is how long a subscriber may stay silent, including pongs.
	ReadTimeout time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Buffer:       64,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

type subscriber struct {
	filter Filter
	send   chan *domain.Receipt
}

// Hub fans receipts out to websocket subscribers. It implements chain.Publisher.
type Hub struct {
	config   HubConfig
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewHub creates a hub.
func NewHub(config HubConfig, logger zerolog.Logger) *Hub {
	defaults := DefaultHubConfig()
	if config.Buffer <= 0 {
		config.Buffer = defaults.Buffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	return &Hub{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Publish queues r for every matching subscriber without blocking.
func (h *Hub) Publish(r *domain.Receipt) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.filter.Match(r) {
			continue
		}
		select {
		case sub.send <- r:
		default:
			observability.RecordFeedDrop()
			h.logger.Warn().Str("tx_id", r.TxID).Msg("subscriber queue full, receipt dropped")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	observability.UpdateFeedSubscribers(n)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()
	observability.UpdateFeedSubscribers(n)
}

// ServeHTTP upgrades the request and streams receipts until the peer disconnects.
// Query parameters contract and sender narrow the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Contract: domain.Principal(r.URL.Query().Get("contract")),
		Sender:   domain.Principal(r.URL.Query().Get("sender")),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{filter: filter, send: make(chan *domain.Receipt, h.config.Buffer)}
	h.add(sub)
	defer h.remove(sub)

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, sub, done)
}

// readLoop discards client frames and closes done when the peer goes away.
func (h *Hub) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case r := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(Notification{Type: NotificationReceipt, Receipt: r}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
