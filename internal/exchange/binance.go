package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	binanceRESTURL = "https://api.binance.com"
	binanceWSURL   = "wss://stream.binance.com:9443/ws"
)

// BinanceClient implements the Client interface for Binance. Top-of-book
// quotes come from the bookTicker websocket stream; balance and order
// operations use signed REST calls.
type BinanceClient struct {
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

// NewBinanceClient creates a new BinanceClient.
func NewBinanceClient(logger *slog.Logger, creds Credentials) *BinanceClient {
	return &BinanceClient{
		logger:     logger,
		creds:      creds,
		http:       &http.Client{Timeout: 30 * time.Second},
		restURL:    binanceRESTURL,
		wsURL:      binanceWSURL,
		streamDone: make(chan struct{}),
	}
}

func (b *BinanceClient) Name() string {
	return "binance"
}

// LoadInstrument verifies the symbol is listed and starts the ticker stream.
func (b *BinanceClient) LoadInstrument(ctx context.Context, symbolHint string) (string, error) {
	symbol := strings.ReplaceAll(symbolHint, "/", "")

	endpoint := b.restURL + "/api/v3/exchangeInfo?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("binance: exchange info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("binance: symbol %s: %w", symbol, ErrInstrumentNotAvailable)
	}
	var info struct {
		Symbols []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"symbols"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("binance: decode exchange info: %w", err)
	}
	if len(info.Symbols) == 0 || info.Symbols[0].Status != "TRADING" {
		return "", fmt.Errorf("binance: symbol %s: %w", symbol, ErrInstrumentNotAvailable)
	}

	b.streamOnce.Do(func() {
		streamCtx, cancel := context.WithCancel(context.Background())
		b.streamCancel = cancel
		go b.runStream(streamCtx, symbol)
	})
	return symbol, nil
}

// runStream keeps a bookTicker websocket connection alive and feeds the
// quote cache, reconnecting with capped exponential backoff.
func (b *BinanceClient) runStream(ctx context.Context, symbol string) {
	defer close(b.streamDone)
	wsURL := b.wsURL + "/" + strings.ToLower(symbol) + "@bookTicker"
	backoff := time.Second
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("binance: websocket connection failed", "error", err)
			if !waitReconnect(ctx, &backoff) {
				return
			}
			continue
		}
		backoff = time.Second
		b.logger.Info("binance: websocket connected", "url", wsURL)

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

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Error("binance: failed to read message", "error", err)
				}
				break
			}
			tob, err := parseBinanceBookTicker(message)
			if err != nil {
				b.logger.Warn("binance: failed to parse ticker", "error", err)
				continue
			}
			b.book.set(tob)
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

// parseBinanceBookTicker extracts the best bid/ask from a bookTicker message.
// A zero price means that book side is empty and is carried through as absent.
func parseBinanceBookTicker(message []byte) (model.TopOfBook, error) {
	var tick struct {
		Bid string `json:"b"`
		Ask string `json:"a"`
	}
	if err := json.Unmarshal(message, &tick); err != nil {
		return model.TopOfBook{}, err
	}
	var tob model.TopOfBook
	if bid, err := strconv.ParseFloat(tick.Bid, 64); err == nil && bid > 0 {
		tob.Bid = model.Float(bid)
	}
	if ask, err := strconv.ParseFloat(tick.Ask, 64); err == nil && ask > 0 {
		tob.Ask = model.Float(ask)
	}
	if tob.Bid == nil && tob.Ask == nil {
		return model.TopOfBook{}, fmt.Errorf("no prices in message")
	}
	return tob, nil
}

func (b *BinanceClient) FetchTopOfBook(ctx context.Context, symbol string) (model.TopOfBook, error) {
	return b.book.get()
}

func (b *BinanceClient) FetchBalance(ctx context.Context, currency string) (float64, error) {
	var account struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := b.signedRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{}, &account); err != nil {
		return 0, err
	}
	for _, bal := range account.Balances {
		if bal.Asset == currency {
			free, err := strconv.ParseFloat(bal.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("binance: parse balance: %w", err)
			}
			return free, nil
		}
	}
	return 0, nil
}

func (b *BinanceClient) PlaceLimitOrder(ctx context.Context, symbol string, side model.Side, amount, price float64) (string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", strconv.FormatFloat(amount, 'f', -1, 64))
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	params.Set("newClientOrderId", uuid.NewString())

	var placed struct {
		OrderID int64 `json:"orderId"`
	}
	if err := b.signedRequest(ctx, http.MethodPost, "/api/v3/order", params, &placed); err != nil {
		return "", err
	}
	return strconv.FormatInt(placed.OrderID, 10), nil
}

func (b *BinanceClient) FetchOrderStatus(ctx context.Context, orderID, symbol string) (model.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var order struct {
		Status string `json:"status"`
	}
	if err := b.signedRequest(ctx, http.MethodGet, "/api/v3/order", params, &order); err != nil {
		return model.OrderUnknown, err
	}
	switch order.Status {
	case "NEW", "PARTIALLY_FILLED":
		return model.OrderOpen, nil
	case "FILLED":
		return model.OrderClosed, nil
	case "CANCELED", "EXPIRED", "REJECTED":
		return model.OrderCanceled, nil
	default:
		return model.OrderUnknown, nil
	}
}

func (b *BinanceClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	return b.signedRequest(ctx, http.MethodDelete, "/api/v3/order", params, nil)
}

func (b *BinanceClient) Close() error {
	if b.streamCancel != nil {
		b.streamCancel()
		<-b.streamDone
	}
	return nil
}

// signedRequest performs an HMAC-SHA256 signed API call and decodes the JSON
// response into out when out is non-nil.
func (b *BinanceClient) signedRequest(ctx context.Context, method, path string, params url.Values, out any) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()

	mac := hmac.New(sha256.New, []byte(b.creds.Secret))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, b.restURL+path+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", b.creds.Key)

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("binance: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("binance: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("binance: %s %s: status %d: %s", method, path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
