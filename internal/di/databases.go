package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/divtrack/internal/config"
	"github.com/aristath/divtrack/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the three databases and applies their schemas.
// On failure every database opened so far is closed.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		{database.NamePortfolio, database.ProfileStandard, &container.PortfolioDB},
		{database.NameLedger, database.ProfileLedger, &container.LedgerDB},
		{database.NameClientData, database.ProfileCache, &container.ClientDataDB},
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target = db

		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply %s schema: %w", spec.name, err)
		}

		log.Debug().Str("database", spec.name).Str("profile", string(spec.profile)).Msg("Database ready")
	}

	return container, nil
}
