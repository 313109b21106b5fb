package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adshao/go-binance/v2"
	"github.com/valutatrade/hub/config"
	"github.com/valutatrade/hub/internal/cli"
	"github.com/valutatrade/hub/internal/services/provider"
	"github.com/valutatrade/hub/internal/services/rates"
	"github.com/valutatrade/hub/internal/services/trading"
	"github.com/valutatrade/hub/internal/services/updater"
	"github.com/valutatrade/hub/internal/session"
	"github.com/valutatrade/hub/internal/storage/ratestore"
	"github.com/valutatrade/hub/internal/storage/tradelog"
	"github.com/valutatrade/hub/internal/storage/userstore"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.Get(*configPath)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rateStore := ratestore.NewStore(cfg.RatesPath, cfg.HistoryPath)
	userStore := userstore.NewStore(cfg.UsersPath, cfg.PortfoliosPath)
	sessions := session.NewStore(cfg.SessionPath)

	tradeLog, err := tradelog.NewWALStore(cfg.TradeLogDir)
	if err != nil {
		logger.Error("failed to open trade audit log", zap.Error(err))
		return 1
	}
	defer tradeLog.Close()

	httpClient := provider.NewHTTPClient(cfg.RequestTimeout)
	providers := []provider.Provider{
		provider.NewCoinGecko(cfg.CoinGeckoBaseURL, cfg.BaseCurrency, cfg.CryptoCurrencies, cfg.CryptoIDMap, httpClient),
		provider.NewExchangeRate(cfg.ExchangeRateBaseURL, cfg.ExchangeRateAPIKey, cfg.BaseCurrency, cfg.FiatCurrencies, httpClient),
		provider.NewBinance(binance.NewClient("", ""), cfg.BaseCurrency, cfg.CryptoCurrencies),
	}

	aggregator := updater.NewAggregator(providers, rateStore, logger)
	scheduler, err := updater.NewScheduler(aggregator, cfg.RefreshInterval, logger)
	if err != nil {
		logger.Error("failed to create scheduler", zap.Error(err))
		return 1
	}

	resolver := rates.NewResolver(cfg.RatesTTL)
	tradingSvc := trading.NewService(userStore, rateStore, resolver, tradeLog, cfg.FallbackRates, cfg.BaseCurrency, logger)

	app := cli.New(tradingSvc, aggregator, scheduler, sessions, logger, os.Stdout)

	return app.Run(ctx, flag.Args())
}
