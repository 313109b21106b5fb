package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
)

const exchangeRateSource = "exchangerate"

// ExchangeRate fetches fiat rates from ExchangeRate-API. The upstream
// returns BASE->C quotes, which get inverted to the C->BASE direction
// the cache stores.
type ExchangeRate struct {
	baseURL string
	apiKey  string
	base    string
	codes   []string
	client  *http.Client
}

// NewExchangeRate builds the provider. The API key is required at fetch
// time, not construction time, so a keyless setup still lists the source.
func NewExchangeRate(baseURL, apiKey, baseCurrency string, codes []string, client *http.Client) *ExchangeRate {
	return &ExchangeRate{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		base:    baseCurrency,
		codes:   codes,
		client:  client,
	}
}

func (e *ExchangeRate) Source() string {
	return exchangeRateSource
}

type exchangeRatePayload struct {
	Rates             map[string]float64 `json:"rates"`
	ConversionRates   map[string]float64 `json:"conversion_rates"`
	TimeLastUpdateUTC string             `json:"time_last_update_utc"`
}

// FetchRates queries /latest/{base} and normalizes every configured
// fiat code into a C_BASE entry.
func (e *ExchangeRate) FetchRates(ctx context.Context) (map[string]RatePayload, error) {
	if e.apiKey == "" {
		return nil, &domain.ProviderRequestError{
			Source: exchangeRateSource,
			Err:    fmt.Errorf("EXCHANGERATE_API_KEY is not set"),
		}
	}

	base, err := domain.NormalizeCode(e.base)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/latest/%s", e.baseURL, e.apiKey, base)

	res, err := getJSON(ctx, e.client, endpoint, exchangeRateSource)
	if err != nil {
		return nil, err
	}

	var payload exchangeRatePayload
	if err := decodeObject(res, exchangeRateSource, &payload); err != nil {
		return nil, err
	}

	ratesMap := payload.Rates
	if len(ratesMap) == 0 {
		ratesMap = payload.ConversionRates
	}
	if len(ratesMap) == 0 {
		return nil, &domain.ProviderRequestError{
			Source: exchangeRateSource,
			Err:    fmt.Errorf("unexpected API response shape: no rates"),
		}
	}

	updatedAt := time.Now().UTC().Truncate(time.Second)
	one := decimal.NewFromInt(1)

	results := make(map[string]RatePayload)
	for _, code := range e.codes {
		normalized, err := domain.NormalizeCode(code)
		if err != nil {
			return nil, err
		}
		if normalized == base {
			continue
		}

		direct, ok := ratesMap[normalized]
		if !ok || direct == 0 {
			continue
		}

		meta := res.meta(normalized)
		if payload.TimeLastUpdateUTC != "" {
			meta["time_last_update_utc"] = payload.TimeLastUpdateUTC
		}

		pair := domain.Pair{From: normalized, To: base}
		results[pair.Key()] = RatePayload{
			Rate:      one.Div(decimal.NewFromFloat(direct)),
			UpdatedAt: updatedAt,
			Source:    exchangeRateSource,
			Meta:      meta,
		}
	}

	if len(results) == 0 {
		return nil, &domain.ProviderRequestError{
			Source: exchangeRateSource,
			Err:    fmt.Errorf("no usable rates in API response"),
		}
	}

	return results, nil
}
