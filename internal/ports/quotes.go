package ports

import "context"

// QuoteClient defines the interface for fetching the latest traded price
// of a ticker from an external quote API. The engine never calls this
// directly; only the quote refresher does, writing results back through
// the SymbolRepository.
type QuoteClient interface {
	// GetTickerPrice retrieves the last price for a ticker.
	GetTickerPrice(ctx context.Context, ticker string) (float64, error)
}
