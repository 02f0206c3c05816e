package repository

import "github.com/penne-app/penne/internal/errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQLite, Postgres)
// from the service layer.
var ErrNotFound = errors.NotFound("record not found")
