package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptodash/config"
	"cryptodash/models"
	"cryptodash/processor"
)

func testSource(baseURL string) config.SourceConfig {
	return config.SourceConfig{
		BaseURL:    baseURL,
		VsCurrency: "usd",
		UserAgent:  "cryptodash-test",
		RateLimit:  config.RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 10},
	}
}

func TestFetchPriceHistory(t *testing.T) {
	var gotPath, gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotAgent = r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prices":[[0,100.4],[3600000,101.6]],"market_caps":[],"total_volumes":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testSource(srv.URL+"/"), time.UTC, nil)
	points, err := c.FetchPriceHistory(context.Background(), models.SevenDayHourly)
	if err != nil {
		t.Fatalf("FetchPriceHistory returned error: %v", err)
	}

	if gotPath != "/coins/bitcoin/market_chart" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotQuery != "days=7&interval=hourly&vs_currency=usd" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotAgent != "cryptodash-test" {
		t.Fatalf("unexpected user agent %q", gotAgent)
	}
	if len(points) != 2 || points[0].Price != 100 || points[1].Price != 102 || points[0].Timestamp != "Jan 1, 1970" {
		t.Fatalf("unexpected points: %+v", points)
	}
}

func TestFetchTopCoins(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery, gotKey = r.URL.RawQuery, r.Header.Get(apiKeyHeader)
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png","current_price":67123.45,"market_cap":1,"total_volume":2500000000,"price_change_percentage_24h":-3.456},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","image":"https://img/eth.png","current_price":3500,"market_cap":1,"total_volume":null,"price_change_percentage_24h":null}
		]`))
	}))
	defer srv.Close()

	cfg := testSource(srv.URL)
	cfg.APIKey = "demo-key"
	coins, err := NewClient(cfg, nil, nil).FetchTopCoins(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchTopCoins returned error: %v", err)
	}

	if gotQuery != "order=market_cap_desc&page=1&per_page=5&sparkline=false&vs_currency=usd" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotKey != "demo-key" {
		t.Fatalf("api key header not sent: %q", gotKey)
	}
	if len(coins) != 2 {
		t.Fatalf("expected 2 coins, got %d", len(coins))
	}
	btc := coins[0]
	if btc.VolumeDisplay != "2.5B" || btc.ChangeDisplay != "3.46%" || btc.Direction != models.DirectionDown || btc.PriceDisplay != "67,123.45" {
		t.Fatalf("unexpected bitcoin row: %+v", btc)
	}
	if coins[1].VolumeDisplay != "0.0B" || coins[1].Direction != models.DirectionUp {
		t.Fatalf("unexpected ethereum row: %+v", coins[1])
	}
}

func TestFetchErrors(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		header     map[string]string
		wantKind   Kind
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			header:     map[string]string{"Retry-After": "30"},
			wantKind:   KindRateLimited,
			wantStatus: 429,
			wantMsg:    "Rate limit exceeded. Please wait a moment.",
		},
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			wantKind:   KindHTTP,
			wantStatus: 500,
			wantMsg:    "Failed to fetch data: 500",
		},
		{
			name:       "not found",
			status:     http.StatusNotFound,
			wantKind:   KindHTTP,
			wantStatus: 404,
			wantMsg:    "Failed to fetch data: 404",
		},
		{
			name:     "invalid json",
			status:   http.StatusOK,
			body:     `{"prices":`,
			wantKind: KindMalformed,
			wantMsg:  "",
		},
		{
			name:     "wrong shape",
			status:   http.StatusOK,
			body:     `{"prices":[[1,2,3]]}`,
			wantKind: KindMalformed,
			wantMsg:  "",
		},
		{
			name:     "null prices",
			status:   http.StatusOK,
			body:     `{}`,
			wantKind: KindMalformed,
			wantMsg:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(testSource(srv.URL), time.UTC, nil).FetchPriceHistory(context.Background(), models.HalfYearDaily)
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fe.Kind != tc.wantKind {
				t.Fatalf("kind = %v, want %v", fe.Kind, tc.wantKind)
			}
			if tc.wantStatus != 0 && fe.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", fe.StatusCode, tc.wantStatus)
			}
			if fe.UserMessage() != tc.wantMsg {
				t.Fatalf("message = %q, want %q", fe.UserMessage(), tc.wantMsg)
			}
			if tc.wantKind == KindRateLimited && fe.RetryAfter != 30*time.Second {
				t.Fatalf("retry after = %v", fe.RetryAfter)
			}
			if tc.name == "wrong shape" && !errors.Is(err, processor.ErrMalformedPayload) {
				t.Fatalf("normalizer error not wrapped: %v", err)
			}
		})
	}
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(testSource(url), time.UTC, nil).FetchTopCoins(context.Background(), 5)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindNetwork {
		t.Fatalf("expected network failure, got %v", err)
	}
	if fe.UserMessage() != "" {
		t.Fatalf("network failure should use the panel fallback, got %q", fe.UserMessage())
	}
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(testSource(srv.URL), time.UTC, nil).FetchTopCoins(ctx, 5); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"":                              0,
		"12":                            12 * time.Second,
		"-3":                            0,
		"garbage":                       0,
		"Mon, 01 Jan 2024 00:01:00 GMT": time.Minute,
	}
	for in, want := range cases {
		if got := parseRetryAfter(in, now); got != want {
			t.Fatalf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindRateLimited.String() != "rate_limited" || Kind(9).String() != "unknown" {
		t.Fatal("unexpected kind names")
	}
}
