package di

import (
	"context"
	"fmt"

	"github.com/aristath/divtrack/internal/clientdata"
	"github.com/aristath/divtrack/internal/clients/exchangerate"
	"github.com/aristath/divtrack/internal/clients/marketdata"
	"github.com/aristath/divtrack/internal/config"
	"github.com/aristath/divtrack/internal/database"
	"github.com/aristath/divtrack/internal/domain"
	"github.com/aristath/divtrack/internal/modules/cash_flows"
	"github.com/aristath/divtrack/internal/modules/currency"
	"github.com/aristath/divtrack/internal/modules/dividends"
	"github.com/aristath/divtrack/internal/modules/portfolio"
	"github.com/aristath/divtrack/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates repositories, clients and services on top of
// the open databases. Clients already set on the container are kept.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	initializeRepositories(container, log)

	if container.ExchangeRateClient == nil {
		container.ExchangeRateClient = exchangerate.NewClient(cfg.FXAPIURL, cfg.FXTimeout, log)
	}
	if container.MarketDataClient == nil {
		container.MarketDataClient = marketdata.NewClient(marketdata.Config{
			BaseURL:   cfg.MarketDataURL,
			Timeout:   cfg.ProviderTimeout,
			RateLimit: cfg.ProviderRateLimit,
		}, container.ClientDataRepo, log)
	}

	return initializeServices(ctx, container, cfg, container.ExchangeRateClient, container.MarketDataClient, log)
}

func initializeRepositories(container *Container, log zerolog.Logger) {
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.HoldingRepo = portfolio.NewHoldingRepository(container.PortfolioDB.Conn(), log)
	container.DividendRepo = dividends.NewDividendRepository(container.LedgerDB.Conn(), container.PortfolioDB.Conn(), log)
	container.CashRepo = cash_flows.NewRepository(container.LedgerDB.Conn(), log)
}

func initializeServices(
	ctx context.Context,
	container *Container,
	cfg *config.Config,
	rateFetcher domain.RateFetcher,
	provider domain.MarketDataProvider,
	log zerolog.Logger,
) error {
	clock := domain.SystemClock{}

	container.RateCache = currency.NewRateCache(rateFetcher, currency.RateCacheConfig{
		Base:            cfg.BaseCurrency,
		DefaultCurrency: cfg.FXDefaultCurrency,
		TTL:             cfg.FXRateTTL,
		Timeout:         cfg.FXTimeout,
	}, clock, log)
	container.Converter = currency.NewConverter(container.RateCache)

	container.CashService = cash_flows.NewService(container.CashRepo, container.Converter, log)

	container.PortfolioService = portfolio.NewService(
		container.HoldingRepo,
		portfolio.NewEngine(container.Converter, cfg.MissingPricePolicy),
		provider,
		container.CashService,
		container.RateCache,
		log,
	)

	container.DividendService = dividends.NewService(dividends.ServiceConfig{
		Repo:        container.DividendRepo,
		Holdings:    container.HoldingRepo,
		Cash:        container.CashService,
		Provider:    provider,
		Rates:       container.RateCache,
		Converter:   container.Converter,
		Clock:       clock,
		Concurrency: cfg.ProviderConcurrency,
	}, log)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewR2Client(ctx, reliability.R2Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		// client_data is a cache and is not backed up
		container.BackupService = reliability.NewBackupService(
			store,
			[]*database.DB{container.PortfolioDB, container.LedgerDB},
			cfg.DataDir,
			clock,
			log,
		)
	}

	return nil
}
