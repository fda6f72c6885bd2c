package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"feedreader/internal/domain"
)

// IterFeedMetadata returns every (key, value) pair stored against
// feedURL, as a plain slice since the result set is bounded by how
// much metadata one feed reasonably carries.
func (s *Storage) IterFeedMetadata(ctx context.Context, feedURL string) ([]domain.FeedMetadata, error) {
	db, release, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx,
		`SELECT feed, key, value FROM feed_metadata WHERE feed = ? ORDER BY key`, feedURL)
	if err != nil {
		return nil, wrapErr(err, "iter feed metadata")
	}
	defer rows.Close()

	var out []domain.FeedMetadata
	for rows.Next() {
		var m domain.FeedMetadata
		var raw *string
		if err := rows.Scan(&m.FeedURL, &m.Key, &raw); err != nil {
			return nil, wrapErr(err, "iter feed metadata")
		}
		if raw != nil {
			if err := json.Unmarshal([]byte(*raw), &m.Value); err != nil {
				return nil, fmt.Errorf("decoding metadata value for key %q: %w", m.Key, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iter feed metadata")
	}
	return out, nil
}

// SetFeedMetadata sets feedURL's key to value, creating the row if
// absent. value must be JSON-serializable.
func (s *Storage) SetFeedMetadata(ctx context.Context, feedURL, key string, value any) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding metadata value for key %q: %w", key, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO feed_metadata (feed, key, value) VALUES (?, ?, ?)
		ON CONFLICT (feed, key) DO UPDATE SET value = excluded.value`,
		feedURL, key, string(raw),
	)
	if isForeignKeyViolation(err) {
		return domain.NewFeedNotFoundError(feedURL)
	}
	return wrapErr(err, "set feed metadata")
}

// DeleteFeedMetadata removes feedURL's key.
func (s *Storage) DeleteFeedMetadata(ctx context.Context, feedURL, key string) error {
	db, release, err := s.conn()
	if err != nil {
		return err
	}
	defer release()

	res, err := db.ExecContext(ctx,
		`DELETE FROM feed_metadata WHERE feed = ? AND key = ?`, feedURL, key)
	if err != nil {
		return wrapErr(err, "delete feed metadata")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "delete feed metadata")
	}
	if n == 0 {
		return domain.NewMetadataNotFoundError(feedURL, key)
	}
	return nil
}
