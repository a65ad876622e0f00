package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// priceServer answers every SUBSCRIBE_PRICE with one PRICE_DATA message.
func priceServer(t *testing.T, price float64, subs chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg subscription
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			subs <- msg.Type + ":" + msg.Data.Address
			if msg.Type != "SUBSCRIBE_PRICE" {
				continue
			}
			out, _ := json.Marshal(map[string]interface{}{
				"type": "PRICE_DATA",
				"data": map[string]interface{}{"address": msg.Data.Address, "c": price, "unixTime": 1700000000},
			})
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStream_SubscribesWatchedTokensOnConnect(t *testing.T) {
	subs := make(chan string, 8)
	srv := priceServer(t, 1.25, subs)
	defer srv.Close()

	s := NewStream(StreamConfig{URL: wsURL(srv)}, zerolog.Nop())
	s.Watch("MintA")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case got := <-subs:
		assert.Equal(t, "SUBSCRIBE_PRICE:MintA", got)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription received")
	}

	require.Eventually(t, func() bool {
		p, ok := s.Price("MintA")
		return ok && p == 1.25
	}, 2*time.Second, 10*time.Millisecond)

	s.Unwatch("MintA")
	select {
	case got := <-subs:
		assert.Equal(t, "UNSUBSCRIBE_PRICE:MintA", got)
	case <-time.After(2 * time.Second):
		t.Fatal("no unsubscribe received")
	}
	_, ok := s.Price("MintA")
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStream_PriceExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewStream(StreamConfig{Freshness: 5 * time.Second}, zerolog.Nop())
	s.now = func() time.Time { return now }
	s.Watch("MintA")

	s.handleMessage([]byte(`{"type":"PRICE_DATA","data":{"address":"MintA","c":3.5}}`))
	p, ok := s.Price("MintA")
	require.True(t, ok)
	assert.Equal(t, 3.5, p)

	now = now.Add(6 * time.Second)
	_, ok = s.Price("MintA")
	assert.False(t, ok)
}

func TestStream_IgnoresUnwatchedAndMalformed(t *testing.T) {
	s := NewStream(StreamConfig{}, zerolog.Nop())
	s.handleMessage([]byte(`{"type":"PRICE_DATA","data":{"address":"MintX","c":1}}`))
	s.handleMessage([]byte(`not json`))
	s.handleMessage([]byte(`{"type":"WELCOME"}`))

	_, ok := s.Price("MintX")
	assert.False(t, ok)
}

func TestStream_WatchIsRefCounted(t *testing.T) {
	s := NewStream(StreamConfig{}, zerolog.Nop())
	s.Watch("MintA")
	s.Watch("MintA")
	s.Unwatch("MintA")

	s.handleMessage([]byte(`{"type":"PRICE_DATA","data":{"address":"MintA","c":2}}`))
	_, ok := s.Price("MintA")
	assert.True(t, ok)

	s.Unwatch("MintA")
	_, ok = s.Price("MintA")
	assert.False(t, ok)
}
