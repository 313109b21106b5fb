package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
)

const binanceSource = "binance"

// Binance fetches crypto spot prices from the Binance public API
// without authentication. USDT quotes are treated as USD; the original
// symbol is kept in meta for provenance.
type Binance struct {
	client *binance.Client
	base   string
	codes  []string
}

// NewBinance builds the provider over an unauthenticated client.
func NewBinance(client *binance.Client, baseCurrency string, codes []string) *Binance {
	return &Binance{client: client, base: baseCurrency, codes: codes}
}

func (b *Binance) Source() string {
	return binanceSource
}

// FetchRates lists all spot prices once and picks the configured
// CRYPTO/USDT symbols out of the response.
func (b *Binance) FetchRates(ctx context.Context) (map[string]RatePayload, error) {
	base, err := domain.NormalizeCode(b.base)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	prices, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, &domain.ProviderRequestError{Source: binanceSource, Err: err}
	}
	requestMS := time.Since(start).Milliseconds()

	priceBySymbol := make(map[string]string, len(prices))
	for _, p := range prices {
		priceBySymbol[p.Symbol] = p.Price
	}

	updatedAt := time.Now().UTC().Truncate(time.Second)

	results := make(map[string]RatePayload)
	for _, code := range b.codes {
		normalized, err := domain.NormalizeCode(code)
		if err != nil {
			return nil, err
		}

		symbol := normalized + "USDT"
		raw, ok := priceBySymbol[symbol]
		if !ok {
			continue
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			continue
		}

		pair := domain.Pair{From: normalized, To: base}
		results[pair.Key()] = RatePayload{
			Rate:      rate,
			UpdatedAt: updatedAt,
			Source:    binanceSource,
			Meta: map[string]any{
				"raw_id":     symbol,
				"request_ms": requestMS,
				"quote":      "USDT",
			},
		}
	}

	if len(results) == 0 {
		return nil, &domain.ProviderRequestError{
			Source: binanceSource,
			Err:    fmt.Errorf("binance API returned no prices for configured symbols"),
		}
	}

	return results, nil
}
