package app

import (
	"context"
	"fmt"
	"time"

	"cfdjournal/internal/ports"
)

// QuoteRefresher periodically pulls the latest price for every active
// symbol from the quote API and stores it on the symbol row. Snapshots
// pick the stored value up on their next read; nothing in the engine
// talks to the quote API directly.
type QuoteRefresher struct {
	logger   ports.Logger
	symbols  ports.SymbolRepository
	quotes   ports.QuoteClient
	interval time.Duration
}

// NewQuoteRefresher creates a refresher ticking at the given interval.
func NewQuoteRefresher(logger ports.Logger, symbols ports.SymbolRepository, quotes ports.QuoteClient, interval time.Duration) (*QuoteRefresher, error) {
	if logger == nil || symbols == nil || quotes == nil {
		return nil, fmt.Errorf("missing required dependencies for QuoteRefresher")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive")
	}
	return &QuoteRefresher{
		logger:   logger,
		symbols:  symbols,
		quotes:   quotes,
		interval: interval,
	}, nil
}

// Start runs the refresh loop until the context is done. One round runs
// immediately so symbols are priced right after startup.
func (r *QuoteRefresher) Start(ctx context.Context) {
	r.logger.Info(ctx, "quote refresher started", map[string]interface{}{"interval": r.interval.String()})

	r.RefreshAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "quote refresher stopped")
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll fetches and stores a quote for every active symbol. Failures
// are logged per symbol and never abort the round.
func (r *QuoteRefresher) RefreshAll(ctx context.Context) {
	symbols, err := r.symbols.FindActiveSymbols(ctx)
	if err != nil {
		r.logger.Error(ctx, err, "failed to list active symbols for refresh")
		return
	}

	updated := 0
	for _, sym := range symbols {
		price, err := r.quotes.GetTickerPrice(ctx, sym.Ticker)
		if err != nil {
			r.logger.Warn(ctx, "quote fetch failed", map[string]interface{}{"ticker": sym.Ticker, "error": err.Error()})
			continue
		}
		if price <= 0 {
			r.logger.Warn(ctx, "ignoring non-positive quote", map[string]interface{}{"ticker": sym.Ticker, "price": price})
			continue
		}
		if err := r.symbols.UpdateLatestPrice(ctx, sym.ID, price, time.Now().UTC()); err != nil {
			r.logger.Error(ctx, err, "failed to store quote", map[string]interface{}{"ticker": sym.Ticker})
			continue
		}
		updated++
	}
	r.logger.Debug(ctx, "quote refresh round finished", map[string]interface{}{
		"symbols": len(symbols), "updated": updated,
	})
}
