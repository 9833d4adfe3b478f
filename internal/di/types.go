// Package di wires databases, clients, services and jobs into a Container.
package di

import (
	"github.com/aristath/divtrack/internal/clientdata"
	"github.com/aristath/divtrack/internal/clients/exchangerate"
	"github.com/aristath/divtrack/internal/clients/marketdata"
	"github.com/aristath/divtrack/internal/database"
	"github.com/aristath/divtrack/internal/modules/cash_flows"
	"github.com/aristath/divtrack/internal/modules/currency"
	"github.com/aristath/divtrack/internal/modules/dividends"
	"github.com/aristath/divtrack/internal/modules/portfolio"
	"github.com/aristath/divtrack/internal/reliability"
	"github.com/aristath/divtrack/internal/scheduler"
)

// Container holds all dependencies for the application. It is built by Wire
// and handed to the server.
type Container struct {
	// Databases
	PortfolioDB  *database.DB // Holdings and expected dividends
	LedgerDB     *database.DB // Cash entries and received dividends
	ClientDataDB *database.DB // Provider response cache, safe to delete

	// Clients
	ExchangeRateClient *exchangerate.Client
	MarketDataClient   *marketdata.Client

	// Repositories
	ClientDataRepo *clientdata.Repository
	HoldingRepo    *portfolio.HoldingRepository
	DividendRepo   *dividends.DividendRepository
	CashRepo       *cash_flows.Repository

	// Services
	RateCache        *currency.RateCache
	Converter        *currency.Converter
	CashService      *cash_flows.Service
	PortfolioService *portfolio.Service
	DividendService  *dividends.Service
	BackupService    *reliability.BackupService // nil when backups are not configured

	Scheduler *scheduler.Scheduler
}

// Databases returns every open database keyed by name
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		database.NamePortfolio:  c.PortfolioDB,
		database.NameLedger:     c.LedgerDB,
		database.NameClientData: c.ClientDataDB,
	}
}

// Close closes every database that was opened
func (c *Container) Close() error {
	var firstErr error
	for _, db := range []*database.DB{c.PortfolioDB, c.LedgerDB, c.ClientDataDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
