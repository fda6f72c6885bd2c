package storage

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"feedreader/internal/domain"
)

// wrapErr is the storage boundary's translation layer: it classifies a
// raw driver/engine error and either reclassifies it into the error
// taxonomy or lets it propagate unchanged because it looks like a bug
// in our own SQL rather than an environment fault.
//
// Go's database/sql driver interface doesn't expose a
// programming-error-vs-operational-error split; the closest equivalent
// is the sqlite3 result code attached to *sqlite3.Error, which is what
// we switch on below.
func wrapErr(err error, message string) error {
	if err == nil {
		return nil
	}

	if strings.Contains(strings.ToLower(err.Error()), "cannot operate on a closed database") {
		return domain.NewStorageError("operation on closed database", nil)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked,
			sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrCantOpen,
			sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrNotADB,
			sqlite3.ErrCorrupt, sqlite3.ErrNoLFS, sqlite3.ErrProtocol:
			return domain.NewStorageError(message, err)
		default:
			// Constraint violations, syntax errors, and the like are
			// ours to fix; let them propagate so tests/callers see the
			// real cause instead of a misleading StorageError.
			return err
		}
	}

	// Not a sqlite3 driver error (e.g. a context cancellation) -- still
	// an environment fault from the caller's point of view.
	return domain.NewStorageError(message, err)
}

// isForeignKeyViolation reports whether err is a SQLite foreign key
// constraint failure, the signal that a write named a feed URL with no
// matching row in feeds.
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
