package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/hub/internal/domain"
)

func TestCoinGeckoFetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin": {"usd": 50000}, "ethereum": {"usd": 3000}}`))
	}))
	defer srv.Close()

	p := NewCoinGecko(srv.URL, "USD", []string{"BTC", "ETH"}, map[string]string{
		"BTC": "bitcoin",
		"ETH": "ethereum",
	}, srv.Client())

	results, err := p.FetchRates(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	btc := results["BTC_USD"]
	require.True(t, btc.Rate.Equal(decimal.NewFromInt(50000)))
	require.Equal(t, "coingecko", btc.Source)
	require.Equal(t, "bitcoin", btc.Meta["raw_id"])
	require.Equal(t, 200, btc.Meta["status_code"])
}

func TestCoinGeckoSkipsNonPositiveRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin": {"usd": 0}, "ethereum": {"usd": 3000}}`))
	}))
	defer srv.Close()

	p := NewCoinGecko(srv.URL, "USD", []string{"BTC", "ETH"}, map[string]string{
		"BTC": "bitcoin",
		"ETH": "ethereum",
	}, srv.Client())

	results, err := p.FetchRates(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results, "ETH_USD")
}

func TestCoinGeckoStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "rate limit", status: http.StatusTooManyRequests},
		{name: "access denied", status: http.StatusForbidden},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewCoinGecko(srv.URL, "USD", []string{"BTC"}, map[string]string{"BTC": "bitcoin"}, srv.Client())

			_, err := p.FetchRates(context.Background())
			var providerErr *domain.ProviderRequestError
			require.ErrorAs(t, err, &providerErr)
			require.Equal(t, "coingecko", providerErr.Source)
		})
	}
}

func TestCoinGeckoRejectsNonUSDBase(t *testing.T) {
	p := NewCoinGecko("http://unused", "EUR", []string{"BTC"}, map[string]string{"BTC": "bitcoin"}, http.DefaultClient)

	_, err := p.FetchRates(context.Background())
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestExchangeRateFetchInvertsQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/test-key/latest/USD", r.URL.Path)
		w.Write([]byte(`{"conversion_rates": {"USD": 1, "EUR": 0.5, "GBP": 0.8}, "time_last_update_utc": "Wed, 01 Oct 2025 12:00:01 +0000"}`))
	}))
	defer srv.Close()

	p := NewExchangeRate(srv.URL, "test-key", "USD", []string{"EUR", "GBP"}, srv.Client())

	results, err := p.FetchRates(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Upstream quotes USD->EUR 0.5, the cache stores EUR->USD 2.
	eur := results["EUR_USD"]
	require.True(t, eur.Rate.Equal(decimal.NewFromInt(2)), "got %s", eur.Rate)
	require.Equal(t, "exchangerate", eur.Source)
	require.Equal(t, "Wed, 01 Oct 2025 12:00:01 +0000", eur.Meta["time_last_update_utc"])
}

func TestExchangeRateRequiresAPIKey(t *testing.T) {
	p := NewExchangeRate("http://unused", "", "USD", []string{"EUR"}, http.DefaultClient)

	_, err := p.FetchRates(context.Background())
	var providerErr *domain.ProviderRequestError
	require.ErrorAs(t, err, &providerErr)
}

func TestExchangeRateRejectsUnexpectedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": "success"}`))
	}))
	defer srv.Close()

	p := NewExchangeRate(srv.URL, "test-key", "USD", []string{"EUR"}, srv.Client())

	_, err := p.FetchRates(context.Background())
	var providerErr *domain.ProviderRequestError
	require.ErrorAs(t, err, &providerErr)
}

func TestGetJSONHonorsContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := getJSON(ctx, srv.Client(), srv.URL, "coingecko")
	var providerErr *domain.ProviderRequestError
	require.ErrorAs(t, err, &providerErr)
}
