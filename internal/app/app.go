// Package app wires the application together: configuration, database pool,
// migrations, Genkit, the tool catalog and the conversational agent. Setup
// builds everything once at process start; Close releases it in reverse.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusagent/internal/agent"
	"campusagent/internal/config"
	"campusagent/internal/store"
	"campusagent/internal/thread"
	"campusagent/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit  *genkit.Genkit
	DBPool  *pgxpool.Pool
	Store   *store.Store
	Threads *thread.Store
	Catalog *tools.Catalog
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}

// CreateAgent builds the conversational agent from the container's
// components.
func (a *App) CreateAgent() (*agent.Agent, error) {
	return agent.New(agent.Config{
		Genkit:       a.Genkit,
		Threads:      a.Threads,
		Logger:       a.Logger,
		ModelName:    a.Config.FullModelName(),
		MaxTurns:     a.Config.MaxTurns,
		HistoryLimit: config.NormalizeMaxHistoryMessages(a.Config.MaxHistoryMessages),
	})
}
