package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cfdjournal/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// Client implements the ports.QuoteClient interface using the go-binance
// spot API. Only public endpoints are used, so API keys are optional.
type Client struct {
	spot   *binance.Client
	logger ports.Logger
}

// Config holds configuration specific to the Binance quote adapter.
type Config struct {
	APIKey    string
	SecretKey string
	Logger    ports.Logger
}

// New creates a new Binance quote adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	return &Client{
		spot:   binance.NewClient(cfg.APIKey, cfg.SecretKey),
		logger: cfg.Logger,
	}, nil
}

// GetTickerPrice retrieves the last traded price for a ticker.
func (c *Client) GetTickerPrice(ctx context.Context, ticker string) (float64, error) {
	prices, err := c.spot.NewListPricesService().Symbol(ticker).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "GetTickerPrice", ticker)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s: %w", ticker, ports.ErrUnknownTicker)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q for %s: %w", prices[0].Price, ticker, ports.ErrQuoteUnavailable)
	}
	c.logger.Debug(ctx, "ticker price fetched", map[string]interface{}{"ticker": ticker, "price": price})
	return price, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation, ticker string) error {
	fields := map[string]interface{}{"operation": operation, "ticker": ticker, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1100, -1121: // Illegal characters / invalid symbol
			mappedErr = ports.ErrUnknownTicker
		default:
			mappedErr = ports.ErrQuoteUnavailable
		}
		c.logger.Error(ctx, err, "Binance API error", fields)
		return fmt.Errorf("binance %s failed (code %d): %w", operation, apiErr.Code, mappedErr)
	}

	c.logger.Error(ctx, err, "Binance request failed", fields)
	return fmt.Errorf("binance %s failed: %w: %w", operation, ports.ErrQuoteUnavailable, err)
}
