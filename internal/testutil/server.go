// Shared test server setup, which simplifies all API and pipeline tests.

package testutil

import (
	"database/sql"
	"testing"

	"github.com/panicsense/panicsense-go/internal/api"
	"github.com/panicsense/panicsense-go/internal/config"
	"github.com/panicsense/panicsense-go/internal/core"
	"github.com/panicsense/panicsense-go/internal/websocket"
)

// TestConfig returns a config with sane defaults for tests.
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ingest.BatchSize = 20
	cfg.Sessions.StaleAfterMinutes = 10
	cfg.Sessions.SweepIntervalMinutes = 5
	return cfg
}

// SetupTestApp initializes a core.App backed by an in-memory database.
func SetupTestApp(t *testing.T) *core.App {
	t.Helper()
	db := SetupTestDB(t)

	hub := websocket.NewHub()
	go hub.Run()

	return core.NewFromComponents(TestConfig(), db, hub, "test")
}

// SetupTestServer initializes a full core.App and api.Server for
// integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *sql.DB) {
	t.Helper()

	app := SetupTestApp(t)
	server := api.NewServer(app)
	server.SetClassifier(&StubClassifier{})
	return server, app.DB()
}
