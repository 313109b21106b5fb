package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	defaultDataDir        = "./data"
	defaultTTL            = 3600 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultRefresh        = 5 * time.Minute
)

// Config carries every setting the application needs. It is constructed
// once at startup and passed into component constructors explicitly.
type Config struct {
	RatesPath      string
	HistoryPath    string
	UsersPath      string
	PortfoliosPath string
	SessionPath    string
	TradeLogDir    string

	RatesTTL        time.Duration
	RequestTimeout  time.Duration
	RefreshInterval time.Duration

	BaseCurrency     string
	FiatCurrencies   []string
	CryptoCurrencies []string
	CryptoIDMap      map[string]string

	CoinGeckoBaseURL    string
	ExchangeRateBaseURL string
	ExchangeRateAPIKey  string

	// FallbackRates backs portfolio valuation when the snapshot lacks a
	// direct pair, keyed FROM_TO.
	FallbackRates map[string]decimal.Decimal
}

type configTmp struct {
	DataDir          string            `yaml:"data_dir,omitempty"`
	RatesTTLSeconds  int               `yaml:"rates_ttl_seconds,omitempty"`
	RequestTimeout   time.Duration     `yaml:"request_timeout,omitempty"`
	RefreshInterval  time.Duration     `yaml:"refresh_interval,omitempty"`
	BaseCurrency     string            `yaml:"base_currency,omitempty"`
	FiatCurrencies   []string          `yaml:"fiat_currencies,omitempty"`
	CryptoCurrencies []string          `yaml:"crypto_currencies,omitempty"`
	CryptoIDMap      map[string]string `yaml:"crypto_id_map,omitempty"`
	CoinGeckoBaseURL string            `yaml:"coingecko_base_url,omitempty"`
	ExchangeRateURL  string            `yaml:"exchangerate_base_url,omitempty"`
	FallbackRatesRaw map[string]string `yaml:"fallback_rates,omitempty"`
}

// Get loads the configuration: built-in defaults, then the YAML file at
// path (if given), then environment overrides. A .env file is honored
// when present.
func Get(path string) (*Config, error) {
	// Missing .env just means plain environment variables are used.
	_ = godotenv.Load()

	cfg := &Config{
		RatesTTL:        defaultTTL,
		RequestTimeout:  defaultRequestTimeout,
		RefreshInterval: defaultRefresh,
		BaseCurrency:    "USD",
		FiatCurrencies:  []string{"EUR", "GBP", "RUB"},
		CryptoCurrencies: []string{
			"BTC", "ETH", "SOL",
		},
		CryptoIDMap: map[string]string{
			"BTC": "bitcoin",
			"ETH": "ethereum",
			"SOL": "solana",
		},
		CoinGeckoBaseURL:    "https://api.coingecko.com/api/v3",
		ExchangeRateBaseURL: "https://v6.exchangerate-api.com/v6",
		FallbackRates:       make(map[string]decimal.Decimal),
	}

	dataDir := defaultDataDir

	if path != "" {
		tmp, err := readYaml(path)
		if err != nil {
			return nil, err
		}
		if tmp.DataDir != "" {
			dataDir = tmp.DataDir
		}
		if tmp.RatesTTLSeconds > 0 {
			cfg.RatesTTL = time.Duration(tmp.RatesTTLSeconds) * time.Second
		}
		if tmp.RequestTimeout > 0 {
			cfg.RequestTimeout = tmp.RequestTimeout
		}
		if tmp.RefreshInterval > 0 {
			cfg.RefreshInterval = tmp.RefreshInterval
		}
		if tmp.BaseCurrency != "" {
			base, err := domain.NormalizeCode(tmp.BaseCurrency)
			if err != nil {
				return nil, errors.Wrap(err, "incorrect 'base_currency' param in yaml config")
			}
			cfg.BaseCurrency = base
		}
		if len(tmp.FiatCurrencies) > 0 {
			cfg.FiatCurrencies = tmp.FiatCurrencies
		}
		if len(tmp.CryptoCurrencies) > 0 {
			cfg.CryptoCurrencies = tmp.CryptoCurrencies
		}
		if len(tmp.CryptoIDMap) > 0 {
			cfg.CryptoIDMap = tmp.CryptoIDMap
		}
		if tmp.CoinGeckoBaseURL != "" {
			cfg.CoinGeckoBaseURL = tmp.CoinGeckoBaseURL
		}
		if tmp.ExchangeRateURL != "" {
			cfg.ExchangeRateBaseURL = tmp.ExchangeRateURL
		}
		for key, raw := range tmp.FallbackRatesRaw {
			rate, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "incorrect 'fallback_rates' entry %q in yaml config", key)
			}
			cfg.FallbackRates[key] = rate
		}
	}

	if dir := os.Getenv("VALUTAHUB_DATA_DIR"); dir != "" {
		dataDir = dir
	}
	if raw := os.Getenv("RATES_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrap(err, "RATES_TTL_SECONDS must be an integer")
		}
		cfg.RatesTTL = time.Duration(seconds) * time.Second
	}
	cfg.ExchangeRateAPIKey = os.Getenv("EXCHANGERATE_API_KEY")

	cfg.RatesPath = filepath.Join(dataDir, "rates.json")
	cfg.HistoryPath = filepath.Join(dataDir, "exchange_rates.json")
	cfg.UsersPath = filepath.Join(dataDir, "users.json")
	cfg.PortfoliosPath = filepath.Join(dataDir, "portfolios.json")
	cfg.SessionPath = filepath.Join(dataDir, "session.json")
	cfg.TradeLogDir = filepath.Join(dataDir, "tradelog")

	return cfg, nil
}

func readYaml(path string) (*configTmp, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read yaml config")
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return nil, errors.Wrap(err, "parse yaml config")
	}

	return &tmp, nil
}
