package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKrakenTicker(t *testing.T) {
	message := []byte(`[340,{"a":["60001.50000",1,"1.000"],"b":["60000.40000",2,"2.500"],"c":["60001.00000","0.1"]},"ticker","XBT/USD"]`)

	tob, ok, err := parseKrakenTicker(message)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, tob.Bid)
	require.NotNil(t, tob.Ask)
	assert.Equal(t, 60000.4, *tob.Bid)
	assert.Equal(t, 60001.5, *tob.Ask)
}

func TestParseKrakenTickerIgnoresEvents(t *testing.T) {
	for _, message := range []string{
		`{"event":"subscriptionStatus","status":"subscribed","pair":"XBT/USD"}`,
		`{"event":"heartbeat"}`,
	} {
		_, ok, err := parseKrakenTicker([]byte(message))
		assert.NoError(t, err)
		assert.False(t, ok, "event message should not produce a quote: %s", message)
	}
}

func TestParseKrakenTickerShortFrame(t *testing.T) {
	_, ok, err := parseKrakenTicker([]byte(`[340,"heartbeat"]`))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestKrakenLoadInstrumentResolvesNativePair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/AssetPairs", r.URL.Path)
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("pair"))
		fmt.Fprint(w, `{"error":[],"result":{"XETHZUSD":{"altname":"ETHUSD"},"XXBTZUSD":{"altname":"XBTUSD"}}}`)
	}))
	defer srv.Close()

	client := NewKrakenClient(discardLogger(), Credentials{})
	client.restURL = srv.URL
	client.wsURL = "ws://127.0.0.1:1"
	defer client.Close()

	native, err := client.LoadInstrument(context.Background(), "XBT/USD")
	require.NoError(t, err)
	assert.Equal(t, "XXBTZUSD", native)
}

func TestKrakenLoadInstrumentUnmatchedPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":[],"result":{"XETHZUSD":{"altname":"ETHUSD"},"XXBTZUSD":{"altname":"XBTUSD"}}}`)
	}))
	defer srv.Close()

	client := NewKrakenClient(discardLogger(), Credentials{})
	client.restURL = srv.URL

	_, err := client.LoadInstrument(context.Background(), "DOGE/USD")
	assert.ErrorIs(t, err, ErrInstrumentNotAvailable)
}

func TestKrakenCloseReturnsOnQuietStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Consume the subscription, then hold the connection open silently.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewKrakenClient(discardLogger(), Credentials{})
	client.wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	client.streamCancel = cancel
	go client.runStream(ctx, "XBT/USD")
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, client.Close())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after a quiet stream was canceled")
	}
}
