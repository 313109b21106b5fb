package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// CurrencyKind distinguishes fiat from crypto currencies.
type CurrencyKind string

const (
	KindFiat   CurrencyKind = "fiat"
	KindCrypto CurrencyKind = "crypto"
)

// Currency is a static registry entry describing a tradable currency.
type Currency struct {
	Code           string
	Name           string
	Kind           CurrencyKind
	IssuingCountry string // fiat only
	Algorithm      string // crypto only
	MarketCap      float64
}

// DisplayInfo renders the registry line shown by the CLI.
func (c Currency) DisplayInfo() string {
	if c.Kind == KindCrypto {
		return fmt.Sprintf("[CRYPTO] %s — %s (Algo: %s, MCAP: %.2e)", c.Code, c.Name, c.Algorithm, c.MarketCap)
	}
	return fmt.Sprintf("[FIAT] %s — %s (Issuing: %s)", c.Code, c.Name, c.IssuingCountry)
}

// Decimals returns the display precision for the currency.
func (c Currency) Decimals() int32 {
	if c.Kind == KindCrypto {
		return 4
	}
	return 2
}

var currencyRegistry = map[string]Currency{
	"USD": {Code: "USD", Name: "US Dollar", Kind: KindFiat, IssuingCountry: "United States"},
	"EUR": {Code: "EUR", Name: "Euro", Kind: KindFiat, IssuingCountry: "European Union"},
	"GBP": {Code: "GBP", Name: "British Pound", Kind: KindFiat, IssuingCountry: "United Kingdom"},
	"RUB": {Code: "RUB", Name: "Russian Ruble", Kind: KindFiat, IssuingCountry: "Russia"},
	"BTC": {Code: "BTC", Name: "Bitcoin", Kind: KindCrypto, Algorithm: "SHA-256", MarketCap: 1.12e12},
	"ETH": {Code: "ETH", Name: "Ethereum", Kind: KindCrypto, Algorithm: "Ethash", MarketCap: 4.50e11},
	"SOL": {Code: "SOL", Name: "Solana", Kind: KindCrypto, Algorithm: "PoH/PoS", MarketCap: 7.50e10},
}

// GetCurrency resolves a code against the registry.
func GetCurrency(code string) (Currency, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return Currency{}, err
	}
	c, ok := currencyRegistry[normalized]
	if !ok {
		return Currency{}, &CurrencyNotFoundError{Code: normalized}
	}
	return c, nil
}

// ListCurrencies returns all registered currencies sorted by code.
func ListCurrencies() []Currency {
	out := make([]Currency, 0, len(currencyRegistry))
	for _, c := range currencyRegistry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FormatAmount renders an amount with the currency's display precision.
// Unknown codes fall back to two decimals.
func FormatAmount(code string, amount decimal.Decimal) string {
	decimals := int32(2)
	if c, err := GetCurrency(code); err == nil {
		decimals = c.Decimals()
	}
	return amount.StringFixed(decimals)
}
