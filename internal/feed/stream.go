package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-autotrader/internal/observability"
)

// StreamConfig configures the live price stream.
type StreamConfig struct {
	// URL is the WebSocket endpoint (Birdeye public socket message format).
	URL string
	// Header is sent with the handshake (API key, origin, subprotocol).
	Header http.Header
	// Freshness is how long a pushed price is preferred over HTTP lookups.
	Freshness time.Duration
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Freshness:         10 * time.Second,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

type livePrice struct {
	price      float64
	receivedAt time.Time
}

// Stream keeps a WebSocket subscription per watched token and caches the
// latest pushed price. It implements Watcher and PriceSource.
type Stream struct {
	cfg    StreamConfig
	logger zerolog.Logger
	now    func() time.Time

	connMu sync.Mutex
	conn   *websocket.Conn

	mu      sync.RWMutex
	watched map[string]int // address -> watcher count
	prices  map[string]livePrice
}

// NewStream creates a stream; Run must be called to connect.
func NewStream(cfg StreamConfig, logger zerolog.Logger) *Stream {
	def := DefaultStreamConfig()
	if cfg.Freshness <= 0 {
		cfg.Freshness = def.Freshness
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Stream{
		cfg:     cfg,
		logger:  logger.With().Str("component", "price_stream").Logger(),
		now:     time.Now,
		watched: make(map[string]int),
		prices:  make(map[string]livePrice),
	}
}

// Watch subscribes to live prices for address.
func (s *Stream) Watch(address string) {
	s.mu.Lock()
	s.watched[address]++
	first := s.watched[address] == 1
	s.mu.Unlock()

	if first {
		if err := s.send(subscriptionMessage("SUBSCRIBE_PRICE", address)); err != nil {
			s.logger.Debug().Err(err).Str("mint", address).Msg("subscribe deferred until connected")
		}
	}
}

// Unwatch drops one watcher; the subscription ends with the last one.
func (s *Stream) Unwatch(address string) {
	s.mu.Lock()
	n, ok := s.watched[address]
	if !ok {
		s.mu.Unlock()
		return
	}
	last := n <= 1
	if last {
		delete(s.watched, address)
		delete(s.prices, address)
	} else {
		s.watched[address] = n - 1
	}
	s.mu.Unlock()

	if last {
		_ = s.send(subscriptionMessage("UNSUBSCRIBE_PRICE", address))
	}
}

// Price returns the last pushed price if it is still fresh.
func (s *Stream) Price(address string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lp, ok := s.prices[address]
	if !ok || s.now().Sub(lp.receivedAt) > s.cfg.Freshness {
		return 0, false
	}
	return lp.price, true
}

// Run connects and reads until ctx is done, reconnecting with exponential
// backoff and resubscribing every watched token.
func (s *Stream) Run(ctx context.Context) error {
	delay := s.cfg.ReconnectDelay
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("price stream disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (s *Stream) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()
	}()

	s.resubscribeAll()

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(message)
	}
}

func (s *Stream) resubscribeAll() {
	s.mu.RLock()
	addrs := make([]string, 0, len(s.watched))
	for addr := range s.watched {
		addrs = append(addrs, addr)
	}
	s.mu.RUnlock()

	for _, addr := range addrs {
		if err := s.send(subscriptionMessage("SUBSCRIBE_PRICE", addr)); err != nil {
			s.logger.Warn().Err(err).Str("mint", addr).Msg("resubscribe failed")
		}
	}
}

func (s *Stream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Stream) send(msg interface{}) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *Stream) handleMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type != "PRICE_DATA" || msg.Data == nil || msg.Data.Address == "" || msg.Data.Close <= 0 {
		return
	}
	observability.RecordStreamMessage()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[msg.Data.Address]; !ok {
		return
	}
	s.prices[msg.Data.Address] = livePrice{price: msg.Data.Close, receivedAt: s.now()}
}

// WebSocket message types

type subscription struct {
	Type string           `json:"type"`
	Data subscriptionData `json:"data"`
}

type subscriptionData struct {
	QueryType string `json:"queryType"`
	ChartType string `json:"chartType"`
	Address   string `json:"address"`
	Currency  string `json:"currency"`
}

func subscriptionMessage(kind, address string) subscription {
	return subscription{
		Type: kind,
		Data: subscriptionData{QueryType: "simple", ChartType: "1s", Address: address, Currency: "usd"},
	}
}

type streamMessage struct {
	Type string `json:"type"`
	Data *struct {
		Address  string  `json:"address"`
		Close    float64 `json:"c"`
		UnixTime int64   `json:"unixTime"`
	} `json:"data"`
}

var (
	_ Watcher     = (*Stream)(nil)
	_ PriceSource = (*Stream)(nil)
)
