package repository

import (
	"context"
	"database/sql"

	"github.com/penne-app/penne/internal/remote"
)

// StoreCloser is a remote.Store that owns a database connection
type StoreCloser interface {
	remote.Store
	Ping(ctx context.Context) error
	Close() error
	DB() *sql.DB
}

// Ensure Repository implements all interfaces
var _ StoreCloser = (*Repository)(nil)
