package core

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/panicsense/panicsense-go/internal/config"
	"github.com/panicsense/panicsense-go/internal/db"
	"github.com/panicsense/panicsense-go/internal/jobs"
	"github.com/panicsense/panicsense-go/internal/websocket"
	"github.com/panicsense/panicsense-go/migrations"
)

// App holds the core components of the application that are shared across
// the server, the ingestion pipeline and the background jobs.
type App struct {
	cfg         *config.Config
	database    *sql.DB
	hub         *websocket.Hub
	jobManager  *jobs.JobManager
	fingerprint string
	version     string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running
// migrations. The fingerprint is unique to this process lifetime and is
// stamped onto every session this process creates, so clients can tell
// "the server restarted mid-upload" apart from "this session is stale."
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, migrations.FS); err != nil {
		// We can't proceed without a valid database schema.
		// Close the DB connection before failing.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	app := &App{
		cfg:         cfg,
		database:    database,
		hub:         hub,
		fingerprint: uuid.New().String(),
		version:     version,
	}
	app.jobManager = jobs.NewManager(app)

	log.Printf("Core application setup complete (fingerprint %s).", app.fingerprint)
	return app, nil
}

// NewFromComponents assembles an App from pre-built parts. Used by tests.
func NewFromComponents(cfg *config.Config, database *sql.DB, hub *websocket.Hub, version string) *App {
	app := &App{
		cfg:         cfg,
		database:    database,
		hub:         hub,
		fingerprint: uuid.New().String(),
		version:     version,
	}
	app.jobManager = jobs.NewManager(app)
	return app
}

func (a *App) Config() *config.Config       { return a.cfg }
func (a *App) DB() *sql.DB                  { return a.database }
func (a *App) Hub() *websocket.Hub          { return a.hub }
func (a *App) JobManager() *jobs.JobManager { return a.jobManager }
func (a *App) Fingerprint() string          { return a.fingerprint }
func (a *App) Version() string              { return a.version }

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
}
