package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/keegancsmith/sqlf"

	"feedreader/internal/domain"
)

// maxSQLVariablesPerQuery is how many (feed, id) pairs each chunk of
// GetEntriesForUpdate's fallback packs into one VALUES list; the first,
// unchunked attempt sends every key at once. SQLite's compiled-in
// default SQLITE_MAX_VARIABLE_NUMBER is 32766 since 3.32.0 and 999
// before that; 500 pairs (1000 bind params) stays well under either.
const maxSQLVariablesPerQuery = 500

func scanEntry(rows *sql.Rows) (domain.Entry, error) {
	var e domain.Entry
	var content, enclosures *string
	var read, important int
	if err := rows.Scan(
		&e.ID, &e.FeedURL, &e.Title, &e.Link, &e.UpdatedAt, &e.PublishedAt,
		&e.Summary, &content, &enclosures, &read, &important,
		&e.LastUpdated, &e.FirstUpdatedEpoch, &e.FeedOrder,
	); err != nil {
		return domain.Entry{}, err
	}
	e.Read = read != 0
	e.Important = important != 0

	var err error
	if e.Content, err = unmarshalContent(content); err != nil {
		return domain.Entry{}, err
	}
	if e.Enclosures, err = unmarshalEnclosures(enclosures); err != nil {
		return domain.Entry{}, err
	}
	return e, nil
}

// AddOrUpdateEntry inserts e, or updates it in place if (e.FeedURL, e.ID)
// already exists. Read and Important are left out of the ON CONFLICT
// clause's SET list, and FirstUpdatedEpoch keeps its stored value via
// COALESCE, so all three survive an update; a fetch must never clear
// flags the user has set.
func (s *Storage) AddOrUpdateEntry(ctx context.Context, e domain.Entry) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()
	return addOrUpdateEntry(ctx, db, e)
}

// AddOrUpdateEntries applies AddOrUpdateEntry's semantics to every
// entry in entries inside a single transaction, so a fetch batch is
// all-or-nothing from a reader's point of view.
func (s *Storage) AddOrUpdateEntries(ctx context.Context, entries []domain.Entry) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err, "add or update entries")
	}
	defer tx.Rollback()

	for _, e := range entries {
		if err := addOrUpdateEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(err, "add or update entries")
	}
	return nil
}

func addOrUpdateEntry(ctx context.Context, db execer, e domain.Entry) error {
	content, err := marshalJSONColumn(e.Content)
	if err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}
	enclosures, err := marshalJSONColumn(e.Enclosures)
	if err != nil {
		return fmt.Errorf("encoding enclosures: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO entries (
			id, feed, title, link, updated, published, summary,
			content, enclosures, read, important, last_updated,
			first_updated_epoch, feed_order
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?)
		ON CONFLICT (id, feed) DO UPDATE SET
			title = excluded.title,
			link = excluded.link,
			updated = excluded.updated,
			published = excluded.published,
			summary = excluded.summary,
			content = excluded.content,
			enclosures = excluded.enclosures,
			last_updated = excluded.last_updated,
			first_updated_epoch = coalesce(entries.first_updated_epoch, excluded.first_updated_epoch),
			feed_order = excluded.feed_order`,
		e.ID, e.FeedURL, e.Title, e.Link, e.UpdatedAt, e.PublishedAt, e.Summary,
		content, enclosures, e.LastUpdated, e.FirstUpdatedEpoch, e.FeedOrder,
	)
	if isForeignKeyViolation(err) {
		return domain.NewFeedNotFoundError(e.FeedURL)
	}
	return wrapErr(err, "add or update entry")
}

// GetEntries returns every entry matching filter, newest first, up to
// limit rows (0 meaning unbounded). For large result sets prefer
// RunPaginated, which walks the same ordering in bounded pages.
func (s *Storage) GetEntries(ctx context.Context, filter EntryFilter, limit int) ([]domain.Entry, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	q := buildEntriesQuery(filter, nil, limit)
	rows, err := db.QueryContext(ctx, q.Query(sqlf.SimpleBindVar), q.Args()...)
	if err != nil {
		return nil, wrapErr(err, "get entries")
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrapErr(err, "get entries")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "get entries")
	}
	return out, nil
}

// GetEntriesForUpdate resolves the current updated timestamp for each
// requested key, for a fetcher deciding which entries in a parsed feed
// document are new or changed. A key with no matching row maps to nil.
//
// The whole batch is attempted as one VALUES-list/LEFT JOIN query
// first; if SQLite rejects it for exceeding its bound parameter limit,
// it is retried in chunks of maxSQLVariablesPerQuery pairs, so very
// large feeds don't fail the whole update just because of a parameter
// ceiling.
func (s *Storage) GetEntriesForUpdate(ctx context.Context, keys []domain.EntryKey) (map[domain.EntryKey]*domain.EntryForUpdate, error) {
	if len(keys) == 0 {
		return map[domain.EntryKey]*domain.EntryForUpdate{}, nil
	}

	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	out, err := entriesForUpdate(ctx, db, keys)
	if err == nil {
		return out, nil
	}
	if !isTooManyVariables(err) {
		return nil, wrapErr(err, "get entries for update")
	}

	out = make(map[domain.EntryKey]*domain.EntryForUpdate, len(keys))
	for start := 0; start < len(keys); start += maxSQLVariablesPerQuery {
		end := start + maxSQLVariablesPerQuery
		if end > len(keys) {
			end = len(keys)
		}
		batch, err := entriesForUpdate(ctx, db, keys[start:end])
		if err != nil {
			return nil, wrapErr(err, "get entries for update")
		}
		for k, v := range batch {
			out[k] = v
		}
	}
	return out, nil
}

func entriesForUpdate(ctx context.Context, db execer, keys []domain.EntryKey) (map[domain.EntryKey]*domain.EntryForUpdate, error) {
	q := buildEntriesForUpdateQuery(keys)
	rows, err := db.QueryContext(ctx, q.Query(sqlf.SimpleBindVar), q.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.EntryKey]*domain.EntryForUpdate, len(keys))
	for rows.Next() {
		var key domain.EntryKey
		var updated sql.NullTime
		if err := rows.Scan(&key.FeedURL, &key.ID, &updated); err != nil {
			return nil, err
		}
		if updated.Valid {
			out[key] = &domain.EntryForUpdate{UpdatedAt: updated.Time}
		} else {
			out[key] = nil
		}
	}
	return out, rows.Err()
}

func isTooManyVariables(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "too many sql variables")
}

// MarkAsReadUnread sets the Read flag of (feedURL, id).
func (s *Storage) MarkAsReadUnread(ctx context.Context, feedURL, id string, read bool) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()
	return mustAffectEntry(ctx, db, feedURL, id,
		`UPDATE entries SET read = ? WHERE feed = ? AND id = ?`, boolToInt(read), feedURL, id)
}

// MarkAsImportantUnimportant sets the Important flag of (feedURL, id).
func (s *Storage) MarkAsImportantUnimportant(ctx context.Context, feedURL, id string, important bool) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()
	return mustAffectEntry(ctx, db, feedURL, id,
		`UPDATE entries SET important = ? WHERE feed = ? AND id = ?`, boolToInt(important), feedURL, id)
}

func mustAffectEntry(ctx context.Context, db *sql.DB, feedURL, id, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(err, "update entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "update entry")
	}
	if n == 0 {
		return domain.NewEntryNotFoundError(feedURL, id)
	}
	return nil
}
