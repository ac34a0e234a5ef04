// Package price resolves daily BTC/USD close prices for interest deposits
// that arrive without one. Absence of a price for a date is not an error;
// the ledger decides what to do with an unpriced deposit.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Oracle returns the daily BTC/USD price for a date, or ok=false when no
// price is resolvable for that date.
type Oracle interface {
	DailyUSDPrice(ctx context.Context, day time.Time) (price float64, ok bool, err error)
}

// Client queries a CoinGecko-style history endpoint:
// GET {base}/coins/bitcoin/history?date=DD-MM-YYYY.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type historyResponse struct {
	MarketData *struct {
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
}

func (c *Client) DailyUSDPrice(ctx context.Context, day time.Time) (float64, bool, error) {
	url := fmt.Sprintf("%s/coins/bitcoin/history?date=%s", c.BaseURL, day.UTC().Format("02-01-2006"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	if c.APIKey != "" {
		req.Header.Set("x-cg-api-key", c.APIKey)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("price api returned %d", resp.StatusCode)
	}

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false, fmt.Errorf("decode price response: %w", err)
	}
	if body.MarketData == nil {
		return 0, false, nil
	}
	usd, ok := body.MarketData.CurrentPrice["usd"]
	if !ok || usd <= 0 {
		return 0, false, nil
	}
	return usd, true, nil
}

// CachedOracle caches resolved prices in Redis, keyed by UTC day. Historical
// closes never change, so entries do not expire. Cache failures degrade to
// the upstream oracle.
type CachedOracle struct {
	Next Oracle
	Rdb  *redis.Client
}

const cacheKeyPrefix = "price:btcusd:"

func (o *CachedOracle) DailyUSDPrice(ctx context.Context, day time.Time) (float64, bool, error) {
	key := cacheKeyPrefix + day.UTC().Format("2006-01-02")

	if o.Rdb != nil {
		if s, err := o.Rdb.Get(ctx, key).Result(); err == nil {
			if cached, parseErr := strconv.ParseFloat(s, 64); parseErr == nil {
				return cached, true, nil
			}
		}
	}

	usd, ok, err := o.Next.DailyUSDPrice(ctx, day)
	if err != nil || !ok {
		return usd, ok, err
	}

	if o.Rdb != nil {
		if err := o.Rdb.Set(ctx, key, strconv.FormatFloat(usd, 'f', -1, 64), 0).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("price cache write failed")
		}
	}
	return usd, true, nil
}
