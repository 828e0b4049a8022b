// Package storage persists session artifacts across process restarts.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/pauljones0/skynet-bot/internal/models"
)

var ErrUnknownBackend = errors.New("unknown session store backend")

// Backend names accepted by Open.
const (
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// SessionStore loads and saves the session. Load on a store that holds
// nothing returns an empty Session and no error.
type SessionStore interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, s models.Session) error
	Close() error
}

// Options selects and configures a back end.
type Options struct {
	Backend         string
	Dir             string
	SQLitePath      string
	ProjectID       string
	CredentialsFile string
	SessionID       string
}

// Open builds the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (SessionStore, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Dir), nil
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	case BackendFirestore:
		return NewFirestoreStore(ctx, opts.ProjectID, opts.SessionID, opts.CredentialsFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
