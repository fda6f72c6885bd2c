package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keegancsmith/sqlf"

	"feedreader/internal/domain"
)

// entryColumns lists the projection used by every entries read, in the
// order scanEntry expects them back.
var entryColumns = []*sqlf.Query{
	sqlf.Sprintf("id"),
	sqlf.Sprintf("feed"),
	sqlf.Sprintf("title"),
	sqlf.Sprintf("link"),
	sqlf.Sprintf("updated"),
	sqlf.Sprintf("published"),
	sqlf.Sprintf("summary"),
	sqlf.Sprintf("content"),
	sqlf.Sprintf("enclosures"),
	sqlf.Sprintf("read"),
	sqlf.Sprintf("important"),
	sqlf.Sprintf("last_updated"),
	sqlf.Sprintf("first_updated_epoch"),
	sqlf.Sprintf("feed_order"),
}

// EntryFilter narrows a GetEntries call. A nil pointer field means "no
// filter on that dimension". FeedURL empty means "all feeds".
type EntryFilter struct {
	FeedURL   string
	Read      *bool
	Important *bool
}

// buildEntriesQuery composes the SELECT behind GetEntries, ordering by
// coalesce(published, updated) descending (newest first) with
// (feed, id) as the tie-break, same direction, so the ORDER BY and the
// cursor comparison below stay a single consistent tuple comparison.
// after, when non-nil, restricts to rows strictly past that cursor --
// the pagination boundary condition EntryIterator relies on.
func buildEntriesQuery(filter EntryFilter, after *domain.Cursor, limit int) *sqlf.Query {
	conds := []*sqlf.Query{sqlf.Sprintf("1 = 1")}

	if filter.FeedURL != "" {
		conds = append(conds, sqlf.Sprintf("feed = %s", filter.FeedURL))
	}
	if filter.Read != nil {
		conds = append(conds, sqlf.Sprintf("read = %s", boolToInt(*filter.Read)))
	}
	if filter.Important != nil {
		conds = append(conds, sqlf.Sprintf("important = %s", boolToInt(*filter.Important)))
	}
	if after != nil {
		conds = append(conds, sqlf.Sprintf(
			`(coalesce(published, updated), feed, id) < (%s, %s, %s)`,
			time.UnixMicro(after.Order).UTC(), after.FeedURL, after.ID,
		))
	}

	q := sqlf.Sprintf(
		`SELECT %s FROM entries WHERE %s ORDER BY coalesce(published, updated) DESC, feed DESC, id DESC`,
		sqlf.Join(entryColumns, ", "),
		sqlf.Join(conds, " AND "),
	)
	if limit > 0 {
		q = sqlf.Sprintf("%s LIMIT %d", q, limit)
	}
	return q
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// buildEntriesForUpdateQuery composes the single VALUES-list/LEFT JOIN
// query behind GetEntriesForUpdate: for each (feed, id) pair supplied,
// it returns one row with the entry's current updated timestamp, or
// with a NULL updated if the entry doesn't exist yet. keys must be
// non-empty.
func buildEntriesForUpdateQuery(keys []domain.EntryKey) *sqlf.Query {
	values := make([]*sqlf.Query, len(keys))
	for i, k := range keys {
		values[i] = sqlf.Sprintf("(%s, %s)", k.FeedURL, k.ID)
	}
	return sqlf.Sprintf(
		`WITH pairs(feed, id) AS (VALUES %s)
		 SELECT pairs.feed, pairs.id, entries.updated
		 FROM pairs
		 LEFT JOIN entries ON entries.feed = pairs.feed AND entries.id = pairs.id`,
		sqlf.Join(values, ", "),
	)
}

func marshalJSONColumn(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalContent(s *string) ([]domain.Content, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var out []domain.Content
	if err := json.Unmarshal([]byte(*s), &out); err != nil {
		return nil, fmt.Errorf("decoding content column: %w", err)
	}
	return out, nil
}

func unmarshalEnclosures(s *string) ([]domain.Enclosure, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var out []domain.Enclosure
	if err := json.Unmarshal([]byte(*s), &out); err != nil {
		return nil, fmt.Errorf("decoding enclosures column: %w", err)
	}
	return out, nil
}
