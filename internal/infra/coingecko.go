package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ObservationRecorder receives price ticks from the refresh path.
type ObservationRecorder interface {
	RecordObservation(symbol string, price decimal.Decimal, ts time.Time) error
}

// CoinGeckoClient polls the CoinGecko simple/price endpoint and pushes
// quotes into the price store. A failed fetch leaves stored state
// untouched; the last known rate stays authoritative until the next tick.
type CoinGeckoClient struct {
	client       *resty.Client
	recorder     ObservationRecorder
	metrics      *Metrics
	symbols      map[string]string // base symbol -> coingecko coin id
	vsCurrency   string
	pollInterval time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewCoinGeckoClient creates a refresh client from configuration
func NewCoinGeckoClient(cfg *Config, recorder ObservationRecorder) *CoinGeckoClient {
	client := resty.New().
		SetBaseURL(cfg.Prices.APIURL).
		SetTimeout(20 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", DefaultUserAgent)

	return &CoinGeckoClient{
		client:       client,
		recorder:     recorder,
		metrics:      GlobalMetrics,
		symbols:      cfg.Prices.Symbols,
		vsCurrency:   cfg.Prices.VsCurrency,
		pollInterval: time.Duration(cfg.Prices.PollIntervalSec) * time.Second,
	}
}

// Start begins polling for price updates
func (c *CoinGeckoClient) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := c.RefreshOnce(ctx); err != nil {
		slog.Warn("Initial price fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Price polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Price polling stopped")
				return
			case <-ticker.C:
				if err := c.RefreshOnce(ctx); err != nil {
					slog.Warn("Price fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// Stop stops the polling
func (c *CoinGeckoClient) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}

// RefreshOnce fetches current quotes for all configured symbols and records
// one observation per pair. Callable on demand as well as from the poll loop.
func (c *CoinGeckoClient) RefreshOnce(ctx context.Context) error {
	ids := make([]string, 0, len(c.symbols))
	for _, id := range c.symbols {
		ids = append(ids, id)
	}

	// json.Number keeps the quoted precision intact for decimal parsing
	var payload map[string]map[string]json.Number
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("ids", strings.Join(ids, ",")).
		SetQueryParam("vs_currencies", c.vsCurrency).
		SetResult(&payload).
		Get("/simple/price")
	if err != nil {
		c.metrics.RecordRefreshFailure()
		return err
	}
	if resp.IsError() {
		c.metrics.RecordRefreshFailure()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	now := time.Now().UTC()
	for symbol, coinID := range c.symbols {
		quote, ok := payload[coinID]
		if !ok {
			slog.Warn("Quote missing from response", slog.String("symbol", symbol))
			continue
		}
		raw, ok := quote[c.vsCurrency]
		if !ok {
			slog.Warn("Currency missing from quote", slog.String("symbol", symbol))
			continue
		}

		price, err := decimal.NewFromString(raw.String())
		if err != nil {
			slog.Warn("Unparseable price", slog.String("symbol", symbol), slog.String("raw", raw.String()))
			continue
		}

		if err := c.recorder.RecordObservation(symbol, price, now); err != nil {
			c.metrics.RecordRefreshFailure()
			return fmt.Errorf("record %s: %w", symbol, err)
		}
		slog.Debug("Price updated",
			slog.String("symbol", symbol),
			slog.String("price", price.String()),
		)
	}

	c.metrics.RecordRefreshTick()
	return nil
}
