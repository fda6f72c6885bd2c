package domain

import "time"

// Content is a single representation of an entry's body, e.g. the
// "content:encoded" or Atom <content> element of a feed entry.
type Content struct {
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Language string `json:"language,omitempty"`
}

// Enclosure is a media attachment referenced by an entry.
type Enclosure struct {
	Href   string  `json:"href"`
	Type   *string `json:"type,omitempty"`
	Length *int64  `json:"length,omitempty"`
}

// Entry is a single item within a Feed, identified by (FeedURL, ID).
type Entry struct {
	FeedURL string
	ID      string

	Title *string
	Link  *string
	// UpdatedAt is required: every entry has an updated timestamp, even
	// if it had to be synthesized by the fetcher from other fields.
	UpdatedAt   time.Time
	PublishedAt *time.Time
	Summary     *string
	Content     []Content
	Enclosures  []Enclosure

	// Read and Important persist across add_or_update_entry calls; a
	// fetch must never clear them.
	Read      bool
	Important bool

	// LastUpdated is the local clock value at the time this row was
	// last written.
	LastUpdated time.Time
	// FirstUpdatedEpoch is preserved across updates once set; it marks
	// when the entry was first seen by this reader instance.
	FirstUpdatedEpoch *time.Time

	// FeedOrder is the position assigned within a single fetch batch,
	// monotonically increasing and inverse to the feed's own published
	// order, so "newest first" iteration over a batch is stable.
	FeedOrder int
}

// EntryForUpdate is the projection of an Entry used by the
// update-for-fetch protocol.
type EntryForUpdate struct {
	UpdatedAt time.Time
}

// EntryKey identifies an Entry by its composite primary key.
type EntryKey struct {
	FeedURL string
	ID      string
}

// Cursor is the opaque ordering-key tuple of the last row yielded by a
// paginated query; passing it back resumes iteration after that row.
type Cursor struct {
	// Order is coalesce(published, updated) of the last yielded entry,
	// as a Unix microsecond timestamp for stable comparison.
	Order int64
	// FeedURL and ID break ties on equal Order, descending, the same
	// direction as Order itself.
	FeedURL string
	ID      string
}
