package marketdata

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"arbot/internal/exchange"
	"arbot/internal/model"
)

// Aggregator fans out top-of-book requests to all venues concurrently and
// collects whatever came back into a snapshot. A slow or failing venue never
// blocks or poisons the others.
type Aggregator struct {
	logger *slog.Logger
	venues map[string]*exchange.Venue
}

// NewAggregator creates an Aggregator over the initialized venues.
func NewAggregator(logger *slog.Logger, venues map[string]*exchange.Venue) *Aggregator {
	return &Aggregator{logger: logger, venues: venues}
}

type venueQuote struct {
	name string
	tob  model.TopOfBook
	err  error
}

// Snapshot issues one concurrent fetch per venue and returns the quotes that
// arrived. Per-venue failures are logged and omitted; an empty snapshot is a
// valid result, not an error.
func (a *Aggregator) Snapshot(ctx context.Context) model.Snapshot {
	p := pool.NewWithResults[venueQuote]()
	for _, v := range a.venues {
		v := v
		p.Go(func() venueQuote {
			tob, err := v.Client.FetchTopOfBook(ctx, v.Symbol)
			return venueQuote{name: v.Name, tob: tob, err: err}
		})
	}

	snapshot := make(model.Snapshot, len(a.venues))
	for _, q := range p.Wait() {
		if q.err != nil {
			a.logger.Error("failed to fetch top of book", "venue", q.name, "error", q.err)
			continue
		}
		if q.tob.Bid == nil && q.tob.Ask == nil {
			a.logger.Warn("venue returned empty book", "venue", q.name)
			continue
		}
		snapshot[q.name] = q.tob
	}
	return snapshot
}
