package cmd

import (
	"fmt"

	"campusagent/db"
	"campusagent/internal/config"
	"campusagent/internal/log"
)

// runMigrate applies pending database migrations and exits. Useful for
// deployment pipelines that migrate out-of-band before rolling the server.
func runMigrate(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("running database migrations", "database", cfg.PostgresDBName)
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations complete")
	return nil
}
