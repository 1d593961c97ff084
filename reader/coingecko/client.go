package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptodash/config"
	"cryptodash/logger"
	"cryptodash/models"
	"cryptodash/processor"

	"golang.org/x/time/rate"
)

const apiKeyHeader = "x-cg-demo-api-key"

// Client talks to the CoinGecko REST API. Each panel owns one.
type Client struct {
	baseURL    string
	apiKey     string
	vsCurrency string
	httpClient *http.Client
	limiter    *rate.Limiter
	loc        *time.Location
	log        *logger.Log
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// NewClient builds a client from the source section of the config. Date labels
// are rendered in loc (UTC when nil).
func NewClient(cfg config.SourceConfig, loc *time.Location, log *logger.Log) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if loc == nil {
		loc = time.UTC
	}

	limit := rate.Inf
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RateLimit.RequestsPerMinute) / 60)
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = userAgentTransport{agent: cfg.UserAgent, base: transport}
	}

	vs := cfg.VsCurrency
	if vs == "" {
		vs = "usd"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		vsCurrency: vs,
		httpClient: &http.Client{Transport: rt, Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		loc:        loc,
		log:        log,
	}
}

// FetchPriceHistory loads the market chart for r and normalizes it.
func (c *Client) FetchPriceHistory(ctx context.Context, r models.PriceRange) ([]models.PricePoint, error) {
	log := c.log.WithComponent("coingecko").WithFields(logger.Fields{
		"operation": "market_chart",
		"coin":      r.CoinID,
		"days":      r.Days,
	})

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(r.Days))
	if r.Interval != "" {
		q.Set("interval", r.Interval)
	}

	var chart models.MarketChart
	if err := c.get(ctx, "/coins/"+url.PathEscape(r.CoinID)+"/market_chart", q, &chart); err != nil {
		log.WithError(err).Warn("failed to fetch market chart")
		return nil, err
	}

	points, err := processor.PriceHistory(chart.Prices, r, c.loc)
	if err != nil {
		log.WithError(err).Warn("failed to normalize market chart")
		return nil, classify(err)
	}

	logger.LogDataFlowEntry(log, "coingecko_api", "price_history", len(points), "price_points")
	return points, nil
}

// FetchTopCoins loads the n largest coins by market cap.
func (c *Client) FetchTopCoins(ctx context.Context, n int) ([]models.CoinSummary, error) {
	log := c.log.WithComponent("coingecko").WithFields(logger.Fields{
		"operation": "coins_markets",
		"limit":     n,
	})

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(n))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var raw []models.CoinMarket
	if err := c.get(ctx, "/coins/markets", q, &raw); err != nil {
		log.WithError(err).Warn("failed to fetch coin markets")
		return nil, err
	}

	coins, err := processor.TopCoins(raw, n)
	if err != nil {
		log.WithError(err).Warn("failed to normalize coin markets")
		return nil, classify(err)
	}

	logger.LogDataFlowEntry(log, "coingecko_api", "top_coins", len(coins), "coin_summaries")
	return coins, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &FetchError{Kind: KindNetwork, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Err: err}
	}
	defer res.Body.Close()

	logger.LogPerformanceEntry(c.log.WithComponent("coingecko"), "coingecko", "http_get", time.Since(start), logger.Fields{
		"path":   path,
		"status": res.StatusCode,
	})

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, res.Body)
		return &FetchError{
			Kind:       KindRateLimited,
			StatusCode: res.StatusCode,
			RetryAfter: parseRetryAfter(res.Header.Get("Retry-After"), time.Now()),
		}
	case res.StatusCode < 200 || res.StatusCode > 299:
		_, _ = io.Copy(io.Discard, res.Body)
		return &FetchError{Kind: KindHTTP, StatusCode: res.StatusCode}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &FetchError{Kind: KindMalformed, StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, processor.ErrMalformedPayload) {
		return &FetchError{Kind: KindMalformed, Err: err}
	}
	return err
}

// parseRetryAfter accepts either delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
