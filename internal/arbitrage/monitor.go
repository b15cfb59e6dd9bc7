package arbitrage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"arbot/internal/exchange"
	"arbot/internal/model"
)

var (
	// ErrOrderCanceled reports that the venue canceled the tracked order.
	ErrOrderCanceled = errors.New("order was canceled")

	// ErrNotFilled reports that the order did not reach a terminal status
	// within the monitoring timeout.
	ErrNotFilled = errors.New("order not filled within timeout")

	errOrderStillOpen = errors.New("order still open")
)

// Monitor polls a single order at a fixed interval until it closes, is
// canceled, or the timeout elapses. Transient status-fetch errors are logged
// and polling continues; the timeout is the only bound.
type Monitor struct {
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewMonitor creates a Monitor polling every interval with the given overall
// timeout. The timeout is mandatory and finite.
func NewMonitor(logger *slog.Logger, interval, timeout time.Duration) *Monitor {
	return &Monitor{logger: logger, interval: interval, timeout: timeout}
}

// Track polls the order to a terminal status. It returns nil when the order
// fully filled, ErrOrderCanceled when the venue canceled it, and ErrNotFilled
// when the timeout elapsed first.
func (m *Monitor) Track(ctx context.Context, client exchange.Client, orderID, symbol string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	poll := backoff.WithContext(backoff.NewConstantBackOff(m.interval), ctx)
	err := backoff.Retry(func() error {
		status, err := client.FetchOrderStatus(ctx, orderID, symbol)
		if err != nil {
			m.logger.Error("error fetching order status",
				"venue", client.Name(), "order_id", orderID, "error", err)
			return err
		}
		switch status {
		case model.OrderClosed:
			return nil
		case model.OrderCanceled:
			return backoff.Permanent(ErrOrderCanceled)
		default:
			return errOrderStillOpen
		}
	}, poll)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrOrderCanceled):
		m.logger.Warn("order was canceled", "venue", client.Name(), "order_id", orderID)
		return ErrOrderCanceled
	default:
		m.logger.Warn("order not filled within timeout",
			"venue", client.Name(), "order_id", orderID, "timeout", m.timeout)
		return ErrNotFilled
	}
}
