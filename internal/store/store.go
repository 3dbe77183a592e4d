// To handle all database interactions. This is our
// data access layer, keeping SQL queries separate from business logic.

package store

import (
	"database/sql"
	"errors"
)

var (
	// ErrSessionConflict is returned when a session id already denotes an
	// active session.
	ErrSessionConflict = errors.New("an active session with this id already exists")
	// ErrSessionNotFound is returned when a specific session id was requested
	// and no session exists for it.
	ErrSessionNotFound = errors.New("session not found")
)

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}
