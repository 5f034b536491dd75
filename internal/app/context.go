package app

import (
	"database/sql"
	"fmt"

	"github.com/JaligamRishitha/renewmart-sub002/internal/config"
	"github.com/JaligamRishitha/renewmart-sub002/internal/db"
	"github.com/JaligamRishitha/renewmart-sub002/internal/engine"
	"github.com/JaligamRishitha/renewmart-sub002/internal/migrate"
)

// App bundles the opened database, loaded config, and engine for one
// workspace. CLI commands and the server both boot through here.
type App struct {
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
	Workspace string
}

// Open resolves the workspace: opens (or creates) the database, runs
// migrations, and loads renewmart.yml, falling back to the built-in defaults
// when no file exists.
func Open(workspace string) (*App, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &App{
		DB:        conn,
		Config:    cfg,
		Engine:    engine.New(conn, cfg),
		Workspace: workspace,
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
