package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"feedreader/internal/domain"
)

// minSQLiteVersion is the lowest SQLite version this schema is known
// to work against (it needs json1, present since 3.9, and the
// ON CONFLICT upsert clause, present since 3.24).
var minSQLiteVersion = [3]int{3, 24, 0}

var requiredFunctions = []string{"json_array_length"}

// options configures Open. Open sets timeout to 5 seconds before
// applying any Option; a nil walEnabled leaves the journal mode alone;
// appIDOff false keeps the application-id gate on.
type options struct {
	timeout    time.Duration
	walEnabled *bool
	appIDOff   bool
}

// Option configures a Storage at Open time.
type Option func(*options)

// WithTimeout sets the busy_timeout SQLite waits for a write lock
// before giving up. The default is 5 seconds; 0 disables waiting.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithWAL switches the database to WAL (true) or DELETE (false)
// journal mode at open time. If never called, the engine's existing
// journal mode (or its own default for a new file) is left alone.
func WithWAL(enabled bool) Option {
	return func(o *options) { o.walEnabled = &enabled }
}

// withoutApplicationID disables the application-id gate. It exists
// only for tests exercising the migration framework against a bare
// schema family with no application identity to check.
func withoutApplicationID() Option {
	return func(o *options) { o.appIDOff = true }
}

// Storage is the caller-facing handle bound to a single database path.
// Every exported method delegates connection acquisition to its
// ConnFactory and translates driver errors into the taxonomy in
// internal/domain/errors.go.
type Storage struct {
	path  string
	conns *ConnFactory
}

// Open creates or opens the database at path, running schema creation
// or migration exactly once, then returns a Storage bound to it.
func Open(path string, opts ...Option) (*Storage, error) {
	cfg := options{timeout: 5 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}

	open := func() (*sql.DB, error) {
		dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1", path, cfg.timeout.Milliseconds())
		if path == ":memory:" || path == "" {
			dsn = fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=1", path, cfg.timeout.Milliseconds())
		}
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	factory, err := NewConnFactory(path, open, nil)
	if err != nil {
		return nil, wrapErr(err, "unexpected error")
	}

	conn, err := factory.Get()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	if err := requireVersion(ctx, conn, minSQLiteVersion); err != nil {
		factory.Close()
		return nil, domain.NewRequirementError(err.Error())
	}
	if err := requireFunctions(ctx, conn, requiredFunctions); err != nil {
		factory.Close()
		return nil, domain.NewRequirementError(err.Error())
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		factory.Close()
		return nil, wrapErr(err, "unexpected error")
	}
	if cfg.walEnabled != nil {
		mode := "DELETE"
		if *cfg.walEnabled {
			mode = "WAL"
		}
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode = "+mode+";"); err != nil {
			factory.Close()
			return nil, wrapErr(err, "unexpected error")
		}
	}

	spec := currentSchema()
	if cfg.appIDOff {
		spec.appID = 0
	}
	if err := migrate(ctx, conn, spec); err != nil {
		factory.Close()
		return nil, err
	}

	return &Storage{path: path, conns: factory}, nil
}

// Close releases the Storage's persistent connection. Only the
// goroutine that called Open may call Close.
func (s *Storage) Close() error {
	return s.conns.Close()
}

// Path returns the database path the Storage was opened with.
func (s *Storage) Path() string { return s.path }

// conn returns the connection for use by the calling goroutine: the
// persistent one if it is the creator, or a freshly scoped one
// otherwise. The returned release func must always be called.
func (s *Storage) conn() (*sql.DB, func(), error) {
	if db, err := s.conns.Get(); err == nil {
		return db, func() {}, nil
	}
	scoped, err := s.conns.Acquire()
	if err != nil {
		return nil, func() {}, err
	}
	return scoped.DB(), func() { scoped.Release() }, nil
}
