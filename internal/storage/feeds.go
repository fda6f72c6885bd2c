package storage

import (
	"context"
	"database/sql"
	"time"

	"feedreader/internal/domain"
)

// AddFeed registers url as a subscribed feed. Re-adding an
// already-known URL fails with the driver's UNIQUE constraint error,
// returned as is rather than as a StorageError (see wrapErr).
func (s *Storage) AddFeed(ctx context.Context, url string) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	_, err = db.ExecContext(ctx,
		`INSERT INTO feeds (url, added) VALUES (?, ?)`,
		url, time.Now().UTC(),
	)
	return wrapErr(err, "add feed")
}

// RemoveFeed deletes url and, via ON DELETE CASCADE, every entry and
// metadata row belonging to it.
func (s *Storage) RemoveFeed(ctx context.Context, url string) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	res, err := db.ExecContext(ctx, `DELETE FROM feeds WHERE url = ?`, url)
	if err != nil {
		return wrapErr(err, "remove feed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "remove feed")
	}
	if n == 0 {
		return domain.NewFeedNotFoundError(url)
	}
	return nil
}

// GetFeeds returns every subscribed feed, ordered by url for a stable
// iteration order across calls.
func (s *Storage) GetFeeds(ctx context.Context) ([]domain.Feed, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `
		SELECT url, title, link, updated, user_title, http_etag,
		       http_last_modified, stale, last_updated, added
		FROM feeds ORDER BY url`,
	)
	if err != nil {
		return nil, wrapErr(err, "get feeds")
	}
	defer rows.Close()

	var out []domain.Feed
	for rows.Next() {
		var f domain.Feed
		var stale int
		if err := rows.Scan(
			&f.URL, &f.Title, &f.Link, &f.UpdatedAt, &f.UserTitle,
			&f.HTTPETag, &f.HTTPLastModified, &stale, &f.LastUpdated, &f.AddedAt,
		); err != nil {
			return nil, wrapErr(err, "get feeds")
		}
		f.Stale = stale != 0
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "get feeds")
	}
	return out, nil
}

// GetFeedsForUpdate returns the conditional-GET projection of every
// subscribed feed, for a fetcher deciding what to refetch.
func (s *Storage) GetFeedsForUpdate(ctx context.Context) ([]domain.FeedForUpdate, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `
		SELECT url, updated, http_etag, http_last_modified, stale, last_updated
		FROM feeds ORDER BY url`,
	)
	if err != nil {
		return nil, wrapErr(err, "get feeds for update")
	}
	defer rows.Close()

	var out []domain.FeedForUpdate
	for rows.Next() {
		var f domain.FeedForUpdate
		var stale int
		if err := rows.Scan(&f.URL, &f.UpdatedAt, &f.HTTPETag, &f.HTTPLastModified, &stale, &f.LastUpdated); err != nil {
			return nil, wrapErr(err, "get feeds for update")
		}
		f.Stale = stale != 0
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "get feeds for update")
	}
	return out, nil
}

// SetFeedUserTitle sets or, if title is nil, clears the local display
// title for url.
func (s *Storage) SetFeedUserTitle(ctx context.Context, url string, title *string) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()
	return s.mustAffectFeed(ctx, db, url,
		`UPDATE feeds SET user_title = ? WHERE url = ?`, title, url)
}

// MarkAsStale forces the next fetch of url to ignore any cached
// conditional-GET headers.
func (s *Storage) MarkAsStale(ctx context.Context, url string) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()
	return s.mustAffectFeed(ctx, db, url,
		`UPDATE feeds SET stale = 1 WHERE url = ?`, url)
}

// UpdateFeed writes the result of a successful fetch of url: the
// feed-reported fields and the conditional-GET cache headers, clearing
// Stale and stamping LastUpdated at the caller-supplied time. A nil
// Title, Link, UpdatedAt, HTTPETag or HTTPLastModified in f preserves
// the value already stored; LastUpdated is always written, so a nil
// LastUpdated clears it.
func (s *Storage) UpdateFeed(ctx context.Context, url string, f domain.Feed) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()
	return s.mustAffectFeed(ctx, db, url, `
		UPDATE feeds SET
			title = coalesce(?, title),
			link = coalesce(?, link),
			updated = coalesce(?, updated),
			http_etag = coalesce(?, http_etag),
			http_last_modified = coalesce(?, http_last_modified),
			stale = 0,
			last_updated = ?
		WHERE url = ?`,
		f.Title, f.Link, f.UpdatedAt, f.HTTPETag, f.HTTPLastModified, f.LastUpdated, url,
	)
}

func (s *Storage) mustAffectFeed(ctx context.Context, db *sql.DB, url, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(err, "update feed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "update feed")
	}
	if n == 0 {
		return domain.NewFeedNotFoundError(url)
	}
	return nil
}
