package storage

import (
	"bytes"
	"database/sql"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"feedreader/internal/domain"
)

// Owner identifies a logical "thread" for the connection factory's
// usage discipline. Go has no first-class thread handle the way the
// source's per-thread storage does; goroutines are the closest analog,
// and currentOwner below extracts a stable-for-its-lifetime numeric id
// from runtime.Stack, the same trick several goroutine-local-storage
// shims in the wider Go ecosystem use (e.g. petermattis/goid). This
// keeps Storage's public methods free of any extra "which thread am I"
// parameter while still enforcing the per-thread rules automatically.
type Owner uint64

func currentOwner() Owner {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:\n..."
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return Owner(id)
}

// openFunc opens one fresh physical connection to the factory's
// database. It is called once eagerly for the creating goroutine and
// once per Acquire from any other goroutine.
type openFunc func() (*sql.DB, error)

// ConnFactory maintains one persistent connection for its creating
// goroutine and hands out short-lived scoped connections to any other
// goroutine.
type ConnFactory struct {
	path        string
	private     bool
	open        openFunc
	beforeClose func(*sql.DB) error

	mainOwner Owner
	main      *sql.DB

	mu     sync.Mutex
	scoped map[Owner]struct{}
	closed bool
}

// NewConnFactory opens a persistent connection owned by the calling
// goroutine.
func NewConnFactory(path string, open openFunc, beforeClose func(*sql.DB) error) (*ConnFactory, error) {
	db, err := open()
	if err != nil {
		return nil, err
	}
	f := &ConnFactory{
		path:        path,
		private:     isPrivate(path),
		open:        open,
		beforeClose: beforeClose,
		mainOwner:   currentOwner(),
		main:        db,
		scoped:      make(map[Owner]struct{}),
	}
	return f, nil
}

func isPrivate(path string) bool {
	return path == "" || path == ":memory:"
}

// Get returns the factory's persistent connection. It may only be
// called from the creating goroutine; any other caller gets
// UsageError, mirroring "direct get() outside the creating thread".
func (f *ConnFactory) Get() (*sql.DB, error) {
	if currentOwner() != f.mainOwner {
		return nil, domain.NewUsageError("must use Acquire when not the creating goroutine")
	}
	return f.main, nil
}

// ScopedConn is a checked-out connection obtained via Acquire. Release
// must be called exactly once, regardless of success or failure of the
// work done with it.
type ScopedConn struct {
	factory  *ConnFactory
	owner    Owner
	db       *sql.DB
	isMain   bool
	released bool
}

// DB returns the underlying connection for the duration of the scope.
func (c *ScopedConn) DB() *sql.DB { return c.db }

// Release returns the connection. For the creating goroutine this is a
// no-op beyond clearing the reentrancy guard; for any other goroutine
// it closes the short-lived connection opened for this scope.
func (c *ScopedConn) Release() error {
	if c.released {
		return nil
	}
	c.released = true

	c.factory.mu.Lock()
	delete(c.factory.scoped, c.owner)
	c.factory.mu.Unlock()

	if c.isMain {
		return nil
	}
	return closeConn(c.db, c.factory.beforeClose)
}

// Acquire checks out a connection usable from the calling goroutine,
// whether or not it is the factory's creator. Acquisition is
// non-reentrant per goroutine. Acquiring a private database from any
// goroutine other than the creator fails, because a fresh connection
// to "" or ":memory:" addresses an unrelated, empty database rather
// than the one the creator is using.
func (f *ConnFactory) Acquire() (*ScopedConn, error) {
	owner := currentOwner()

	if f.private && owner != f.mainOwner {
		return nil, domain.NewUsageError("cannot use a private database from a goroutine other than the creator")
	}

	f.mu.Lock()
	if _, busy := f.scoped[owner]; busy {
		f.mu.Unlock()
		return nil, domain.NewUsageError("scoped acquisition is not reentrant")
	}
	f.scoped[owner] = struct{}{}
	f.mu.Unlock()

	if owner == f.mainOwner {
		return &ScopedConn{factory: f, owner: owner, db: f.main, isMain: true}, nil
	}

	db, err := f.open()
	if err != nil {
		f.mu.Lock()
		delete(f.scoped, owner)
		f.mu.Unlock()
		return nil, err
	}
	return &ScopedConn{factory: f, owner: owner, db: db}, nil
}

// Close closes the factory's persistent connection. Only the creating
// goroutine may call Close directly; everyone else must use Acquire.
func (f *ConnFactory) Close() error {
	if currentOwner() != f.mainOwner {
		return domain.NewUsageError("cannot close from a goroutine other than the creator, use Acquire instead")
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()
	return closeConn(f.main, f.beforeClose)
}

func closeConn(db *sql.DB, beforeClose func(*sql.DB) error) error {
	if beforeClose != nil {
		if err := beforeClose(db); err != nil {
			if !isClosedDBMessage(err) {
				return err
			}
		}
	}
	return db.Close()
}

func isClosedDBMessage(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "cannot operate on a closed database")
}
