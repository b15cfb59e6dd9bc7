package exchange

import (
	"context"
	"sync"
	"time"

	"arbot/internal/model"
)

// maxQuoteAge bounds how long a streamed quote stays usable. A venue whose
// stream has gone quiet must drop out of the snapshot rather than serve a
// stale price.
const maxQuoteAge = 30 * time.Second

// bookCache holds the latest top-of-book received from a venue's ticker
// stream. The stream goroutine is the only writer.
type bookCache struct {
	mu         sync.RWMutex
	tob        model.TopOfBook
	receivedAt time.Time
}

func (c *bookCache) set(tob model.TopOfBook) {
	c.mu.Lock()
	c.tob = tob
	c.receivedAt = time.Now()
	c.mu.Unlock()
}

// get returns the cached quote, or ErrNoQuote if nothing fresh has arrived.
func (c *bookCache) get() (model.TopOfBook, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.receivedAt.IsZero() || time.Since(c.receivedAt) > maxQuoteAge {
		return model.TopOfBook{}, ErrNoQuote
	}
	return c.tob, nil
}

// waitReconnect sleeps for the current backoff before the next connection
// attempt, doubling it up to a 16s cap. Returns false when the context is
// canceled during the wait.
func waitReconnect(ctx context.Context, backoff *time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(*backoff):
		*backoff = min(*backoff*2, 16*time.Second)
		return true
	}
}
