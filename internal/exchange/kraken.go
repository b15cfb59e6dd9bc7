package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"arbot/internal/model"
)

const (
	krakenRESTURL = "https://api.kraken.com"
	krakenWSURL   = "wss://ws.kraken.com"
)

// KrakenClient implements the Client interface for Kraken. Quotes come from
// the public ticker websocket; private REST calls are signed per Kraken's
// HMAC-SHA512 scheme.
type KrakenClient struct {
	logger  *slog.Logger
	creds   Credentials
	http    *http.Client
	restURL string
	wsURL   string

	book bookCache

	streamOnce   sync.Once
	streamCancel context.CancelFunc
	streamDone   chan struct{}
}

// NewKrakenClient creates a new KrakenClient.
func NewKrakenClient(logger *slog.Logger, creds Credentials) *KrakenClient {
	return &KrakenClient{
		logger:     logger,
		creds:      creds,
		http:       &http.Client{Timeout: 30 * time.Second},
		restURL:    krakenRESTURL,
		wsURL:      krakenWSURL,
		streamDone: make(chan struct{}),
	}
}

func (k *KrakenClient) Name() string {
	return "kraken"
}

// LoadInstrument resolves the Kraken pair name (e.g. XXBTZUSD for XBT/USD)
// and starts the ticker stream using the websocket pair form.
func (k *KrakenClient) LoadInstrument(ctx context.Context, symbolHint string) (string, error) {
	compact := strings.ReplaceAll(symbolHint, "/", "")
	endpoint := k.restURL + "/0/public/AssetPairs?pair=" + url.QueryEscape(compact)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := k.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("kraken: asset pairs: %w", err)
	}
	defer resp.Body.Close()

	var pairs struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Altname string `json:"altname"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pairs); err != nil {
		return "", fmt.Errorf("kraken: decode asset pairs: %w", err)
	}
	if len(pairs.Error) > 0 || len(pairs.Result) == 0 {
		return "", fmt.Errorf("kraken: symbol %s: %w", symbolHint, ErrInstrumentNotAvailable)
	}
	// Match the requested pair explicitly: the native key for XBT/USD is
	// XXBTZUSD with altname XBTUSD.
	var native string
	for name, pair := range pairs.Result {
		if name == compact || pair.Altname == compact {
			native = name
			break
		}
	}
	if native == "" && len(pairs.Result) == 1 {
		for name := range pairs.Result {
			native = name
		}
	}
	if native == "" {
		return "", fmt.Errorf("kraken: symbol %s: %w", symbolHint, ErrInstrumentNotAvailable)
	}

	k.streamOnce.Do(func() {
		streamCtx, cancel := context.WithCancel(context.Background())
		k.streamCancel = cancel
		go k.runStream(streamCtx, symbolHint)
	})
	return native, nil
}

// runStream keeps the ticker subscription alive and feeds the quote cache,
// reconnecting with capped exponential backoff.
func (k *KrakenClient) runStream(ctx context.Context, wsPair string) {
	defer close(k.streamDone)
	backoff := time.Second
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, k.wsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			k.logger.Error("kraken: websocket connection failed", "error", err)
			if !waitReconnect(ctx, &backoff) {
				return
			}
			continue
		}
		backoff = time.Second

		// Closing the connection on cancel unblocks a pending ReadMessage,
		// otherwise a quiet stream would keep Close waiting forever.
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-readDone:
			}
		}()

		subscription := map[string]any{
			"event": "subscribe",
			"pair":  []string{wsPair},
			"subscription": map[string]string{
				"name": "ticker",
			},
		}
		if err := conn.WriteJSON(subscription); err != nil {
			if ctx.Err() == nil {
				k.logger.Error("kraken: failed to send subscription", "error", err)
			}
			close(readDone)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			if !waitReconnect(ctx, &backoff) {
				return
			}
			continue
		}
		k.logger.Info("kraken: websocket connected, subscription sent", "pair", wsPair)

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					k.logger.Error("kraken: failed to read message", "error", err)
				}
				break
			}
			tob, ok, err := parseKrakenTicker(message)
			if err != nil {
				k.logger.Warn("kraken: failed to parse ticker", "error", err)
				continue
			}
			if ok {
				k.book.set(tob)
			}
		}
		close(readDone)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if !waitReconnect(ctx, &backoff) {
			return
		}
	}
}

// parseKrakenTicker extracts the best bid/ask from a ticker channel message.
// Event messages (subscription status, heartbeat) return ok=false.
func parseKrakenTicker(message []byte) (model.TopOfBook, bool, error) {
	trimmed := strings.TrimSpace(string(message))
	if !strings.HasPrefix(trimmed, "[") {
		return model.TopOfBook{}, false, nil
	}
	// Ticker frames are [channelID, data, channelName, pair].
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return model.TopOfBook{}, false, err
	}
	if len(frame) < 4 {
		return model.TopOfBook{}, false, nil
	}
	// Prices arrive as strings inside mixed-type arrays: ["60000.4", 2, "2.5"].
	var data struct {
		Bid []any `json:"b"`
		Ask []any `json:"a"`
	}
	if err := json.Unmarshal(frame[1], &data); err != nil {
		return model.TopOfBook{}, false, err
	}
	var tob model.TopOfBook
	if bid := firstPrice(data.Bid); bid > 0 {
		tob.Bid = model.Float(bid)
	}
	if ask := firstPrice(data.Ask); ask > 0 {
		tob.Ask = model.Float(ask)
	}
	if tob.Bid == nil && tob.Ask == nil {
		return model.TopOfBook{}, false, nil
	}
	return tob, true, nil
}

func firstPrice(level []any) float64 {
	if len(level) == 0 {
		return 0
	}
	switch v := level[0].(type) {
	case string:
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return price
	case float64:
		return v
	default:
		return 0
	}
}

func (k *KrakenClient) FetchTopOfBook(ctx context.Context, symbol string) (model.TopOfBook, error) {
	return k.book.get()
}

func (k *KrakenClient) FetchBalance(ctx context.Context, currency string) (float64, error) {
	var balances map[string]string
	if err := k.signedRequest(ctx, "/0/private/Balance", url.Values{}, &balances); err != nil {
		return 0, err
	}
	// Kraken prefixes fiat with Z and crypto with X (ZUSD, XXBT).
	for _, key := range []string{currency, "Z" + currency, "X" + currency} {
		if raw, ok := balances[key]; ok {
			amount, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return 0, fmt.Errorf("kraken: parse balance: %w", err)
			}
			return amount, nil
		}
	}
	return 0, nil
}

func (k *KrakenClient) PlaceLimitOrder(ctx context.Context, symbol string, side model.Side, amount, price float64) (string, error) {
	params := url.Values{}
	params.Set("pair", symbol)
	params.Set("type", string(side))
	params.Set("ordertype", "limit")
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	params.Set("volume", strconv.FormatFloat(amount, 'f', -1, 64))
	params.Set("cl_ord_id", uuid.NewString())

	var placed struct {
		TxID []string `json:"txid"`
	}
	if err := k.signedRequest(ctx, "/0/private/AddOrder", params, &placed); err != nil {
		return "", err
	}
	if len(placed.TxID) == 0 {
		return "", fmt.Errorf("kraken: no transaction id returned")
	}
	return placed.TxID[0], nil
}

func (k *KrakenClient) FetchOrderStatus(ctx context.Context, orderID, symbol string) (model.OrderStatus, error) {
	params := url.Values{}
	params.Set("txid", orderID)

	var orders map[string]struct {
		Status string `json:"status"`
	}
	if err := k.signedRequest(ctx, "/0/private/QueryOrders", params, &orders); err != nil {
		return model.OrderUnknown, err
	}
	order, ok := orders[orderID]
	if !ok {
		return model.OrderUnknown, fmt.Errorf("kraken: order %s not found", orderID)
	}
	switch order.Status {
	case "pending", "open":
		return model.OrderOpen, nil
	case "closed":
		return model.OrderClosed, nil
	case "canceled", "expired":
		return model.OrderCanceled, nil
	default:
		return model.OrderUnknown, nil
	}
}

func (k *KrakenClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("txid", orderID)
	return k.signedRequest(ctx, "/0/private/CancelOrder", params, nil)
}

func (k *KrakenClient) Close() error {
	if k.streamCancel != nil {
		k.streamCancel()
		<-k.streamDone
	}
	return nil
}

// signedRequest performs a private API call: the signature is
// HMAC-SHA512(path + SHA256(nonce + postdata)) keyed with the decoded secret.
func (k *KrakenClient) signedRequest(ctx context.Context, path string, params url.Values, out any) error {
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	params.Set("nonce", nonce)
	postData := params.Encode()

	secret, err := base64.StdEncoding.DecodeString(k.creds.Secret)
	if err != nil {
		return fmt.Errorf("kraken: decode secret: %w", err)
	}
	digest := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(digest[:])
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.restURL+path, strings.NewReader(postData))
	if err != nil {
		return err
	}
	req.Header.Set("API-Key", k.creds.Key)
	req.Header.Set("API-Sign", signature)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.http.Do(req)
	if err != nil {
		return fmt.Errorf("kraken: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kraken: read response: %w", err)
	}
	var envelope struct {
		Error  []string        `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("kraken: decode response: %w", err)
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("kraken: %s: %s", path, strings.Join(envelope.Error, "; "))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}
