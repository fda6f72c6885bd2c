package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting pragma and
// schema helpers run against either a bare connection or an
// in-progress migration transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getIntPragma(ctx context.Context, db execer, pragma string) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA "+pragma+";").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func setIntPragma(ctx context.Context, db execer, pragma string, value int) error {
	if value < 0 {
		return fmt.Errorf("%s must be >= 0, got %d", pragma, value)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %d;", pragma, value))
	return err
}

func getBoolPragma(ctx context.Context, db execer, pragma string) (bool, error) {
	v, err := getIntPragma(ctx, db, pragma)
	return v != 0, err
}

func tableCount(ctx context.Context, db execer) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master;").Scan(&n)
	return n, err
}

// requireVersion fails unless the connected SQLite engine is at least
// minVersion, compared component-wise (major, minor, patch).
func requireVersion(ctx context.Context, db execer, minVersion [3]int) error {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version();").Scan(&version); err != nil {
		return err
	}
	var got [3]int
	fmt.Sscanf(version, "%d.%d.%d", &got[0], &got[1], &got[2])
	if got[0] < minVersion[0] ||
		(got[0] == minVersion[0] && got[1] < minVersion[1]) ||
		(got[0] == minVersion[0] && got[1] == minVersion[1] && got[2] < minVersion[2]) {
		return fmt.Errorf(
			"at least SQLite version %d.%d.%d required, %s installed",
			minVersion[0], minVersion[1], minVersion[2], version,
		)
	}
	return nil
}

// functionProbes maps a required SQL function name to a sentinel
// statement that fails with "no such function" when it's missing.
var functionProbes = map[string]string{
	"json_array_length": "SELECT json_array_length('[]');",
	"json":               "SELECT json(1);",
	"json_object":        "SELECT json_object('key', 1);",
	"json_group_array":   "SELECT json_group_array(1);",
	"json_each":          "SELECT * FROM json_each('[1]');",
}

func requireFunctions(ctx context.Context, db execer, names []string) error {
	var missing []string
	for _, name := range names {
		probe, ok := functionProbes[name]
		if !ok {
			return fmt.Errorf("no probe registered for function: %s", name)
		}
		rows, err := db.QueryContext(ctx, probe)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "no such function") {
				missing = append(missing, name)
				continue
			}
			return err
		}
		rows.Close()
	}
	if len(missing) > 0 {
		return fmt.Errorf("required SQLite functions missing: %v", missing)
	}
	return nil
}
