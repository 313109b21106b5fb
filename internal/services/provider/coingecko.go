package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
)

const coinGeckoSource = "coingecko"

// CoinGecko fetches crypto->USD rates from the CoinGecko public API.
type CoinGecko struct {
	baseURL string
	base    string
	codes   []string
	idMap   map[string]string
	client  *http.Client
}

// NewCoinGecko builds the provider. idMap translates currency codes to
// CoinGecko asset identifiers (BTC -> bitcoin).
func NewCoinGecko(baseURL, baseCurrency string, codes []string, idMap map[string]string, client *http.Client) *CoinGecko {
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    baseCurrency,
		codes:   codes,
		idMap:   idMap,
		client:  client,
	}
}

func (c *CoinGecko) Source() string {
	return coinGeckoSource
}

// FetchRates queries /simple/price for every mapped crypto code.
func (c *CoinGecko) FetchRates(ctx context.Context) (map[string]RatePayload, error) {
	base, err := domain.NormalizeCode(c.base)
	if err != nil {
		return nil, err
	}
	if base != "USD" {
		return nil, domain.NewValidationError("coingecko provider supports only USD base, got %s", base)
	}

	var ids []string
	codeToID := make(map[string]string, len(c.codes))
	for _, code := range c.codes {
		normalized, err := domain.NormalizeCode(code)
		if err != nil {
			return nil, err
		}
		rawID, ok := c.idMap[normalized]
		if !ok || rawID == "" {
			continue
		}
		ids = append(ids, rawID)
		codeToID[normalized] = rawID
	}
	if len(ids) == 0 {
		return nil, domain.NewValidationError("no crypto currencies configured for coingecko")
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", strings.ToLower(base))
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, query.Encode())

	res, err := getJSON(ctx, c.client, endpoint, coinGeckoSource)
	if err != nil {
		return nil, err
	}

	var payload map[string]map[string]float64
	if err := decodeObject(res, coinGeckoSource, &payload); err != nil {
		return nil, err
	}

	updatedAt := time.Now().UTC().Truncate(time.Second)

	results := make(map[string]RatePayload)
	for code, rawID := range codeToID {
		entry, ok := payload[rawID]
		if !ok {
			continue
		}
		rate, ok := entry[strings.ToLower(base)]
		if !ok || rate <= 0 {
			continue
		}

		pair := domain.Pair{From: code, To: base}
		results[pair.Key()] = RatePayload{
			Rate:      decimal.NewFromFloat(rate),
			UpdatedAt: updatedAt,
			Source:    coinGeckoSource,
			Meta:      res.meta(rawID),
		}
	}

	if len(results) == 0 {
		return nil, &domain.ProviderRequestError{
			Source: coinGeckoSource,
			Err:    fmt.Errorf("no usable rates in API response"),
		}
	}

	return results, nil
}
