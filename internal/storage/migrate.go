package storage

import (
	"context"
	"database/sql"
	"fmt"

	"feedreader/internal/domain"
)

// Migration is one numbered step in the schema's evolution: Apply
// brings a database at schema version N up to N+1.
type Migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// schemaSpec describes a schema family: a creation function for a
// brand new database, the version that function produces, and the
// chain of migrations needed to walk an older database up to it.
type schemaSpec struct {
	create     func(ctx context.Context, tx *sql.Tx) error
	version    int
	migrations map[int]Migration
	appID      int
}

// migrate runs spec against db, gated on PRAGMA user_version and (when
// spec.appID is set) PRAGMA application_id.
//
// Go's database/sql with github.com/mattn/go-sqlite3 commits DDL
// correctly inside a transaction, so db.BeginTx/tx.Commit/tx.Rollback
// wrap the whole migration step directly. We still disable foreign
// keys outside the transaction (SQLite refuses to toggle the pragma
// mid-transaction) and restore it unconditionally on exit.
func migrate(ctx context.Context, db *sql.DB, spec schemaSpec) error {
	fkEnabled, err := getBoolPragma(ctx, db, "foreign_keys")
	if err != nil {
		return wrapErr(err, "unexpected error")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = OFF;"); err != nil {
		return wrapErr(err, "unexpected error")
	}
	defer func() {
		state := 0
		if fkEnabled {
			state = 1
		}
		db.ExecContext(ctx, fmt.Sprintf("PRAGMA foreign_keys = %d;", state))
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err, "unexpected error")
	}
	defer tx.Rollback()

	if err := runMigration(ctx, tx, spec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(err, "unexpected error")
	}
	return nil
}

func runMigration(ctx context.Context, tx *sql.Tx, spec schemaSpec) error {
	if spec.appID != 0 {
		id, err := getIntPragma(ctx, tx, "application_id")
		if err != nil {
			return wrapErr(err, "unexpected error")
		}
		if id != 0 && id != spec.appID {
			return domain.NewIdError(fmt.Sprintf("invalid id: 0x%x", id))
		}
	}

	version, err := getIntPragma(ctx, tx, "user_version")
	if err != nil {
		return wrapErr(err, "unexpected error")
	}

	if version == 0 {
		n, err := tableCount(ctx, tx)
		if err != nil {
			return wrapErr(err, "unexpected error")
		}
		if n != 0 {
			return domain.NewStorageError("database with no version already has tables", nil)
		}
		if err := spec.create(ctx, tx); err != nil {
			return wrapErr(err, "unexpected error")
		}
		if err := setIntPragma(ctx, tx, "user_version", spec.version); err != nil {
			return wrapErr(err, "unexpected error")
		}
		if err := setIntPragma(ctx, tx, "application_id", spec.appID); err != nil {
			return wrapErr(err, "unexpected error")
		}
		return nil
	}

	if version == spec.version {
		if spec.appID != 0 {
			id, err := getIntPragma(ctx, tx, "application_id")
			if err != nil {
				return wrapErr(err, "unexpected error")
			}
			if id == 0 {
				return domain.NewIdError("database with version has missing id")
			}
		}
		return nil
	}

	if version > spec.version {
		return domain.NewSchemaVersionError(fmt.Sprintf("invalid version: %d", version))
	}

	for from := version; from < spec.version; from++ {
		to := from + 1
		m, ok := spec.migrations[from]
		if !ok {
			return domain.NewSchemaVersionError(fmt.Sprintf(
				"no migration from %d to %d; expected migrations for all versions later than %d",
				from, to, version,
			))
		}

		if err := setIntPragma(ctx, tx, "user_version", to); err != nil {
			return wrapErr(err, "unexpected error")
		}
		if err := m.Apply(ctx, tx); err != nil {
			return wrapErr(err, "unexpected error")
		}

		if err := foreignKeyCheck(ctx, tx); err != nil {
			return domain.NewIntegrityError(fmt.Sprintf("after migrating to version %d: %s", to, err))
		}
	}

	if spec.appID != 0 {
		id, err := getIntPragma(ctx, tx, "application_id")
		if err != nil {
			return wrapErr(err, "unexpected error")
		}
		if id != spec.appID {
			return domain.NewIdError(fmt.Sprintf("missing or invalid id after migration: 0x%x", id))
		}
	}

	return nil
}

// foreignKeyCheck reports a descriptive error if PRAGMA foreign_key_check
// finds any violations.
func foreignKeyCheck(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check;")
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		return fmt.Errorf("FOREIGN KEY constraint failed")
	}
	return rows.Err()
}
