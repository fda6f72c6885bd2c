package domain

import "time"

// Feed is a subscribable source identified by its URL.
//
// Fields sourced from the feed document itself (Title, Link, UpdatedAt,
// HTTPETag, HTTPLastModified) are written by UpdateFeed after a
// successful fetch; a nil value there keeps the stored one. UpdateFeed
// also clears Stale. UserTitle and AddedAt are local state UpdateFeed
// never writes.
type Feed struct {
	URL string

	Title *string
	Link  *string
	// UpdatedAt is the timestamp the feed document itself reports.
	UpdatedAt *time.Time

	// UserTitle overrides Title for display purposes; set via
	// SetFeedUserTitle, never by a fetch.
	UserTitle *string

	HTTPETag         *string
	HTTPLastModified *string

	// Stale forces the next fetch to ignore HTTPETag/HTTPLastModified.
	Stale bool

	// LastUpdated is the local clock value of the last successful fetch.
	LastUpdated *time.Time

	// AddedAt is the local clock value at which the feed was added.
	AddedAt time.Time
}

// FeedForUpdate is the projection of a Feed used by the update-for-fetch
// protocol: just enough state for the fetcher to build a conditional GET.
type FeedForUpdate struct {
	URL              string
	UpdatedAt        *time.Time
	HTTPETag         *string
	HTTPLastModified *string
	Stale            bool
	LastUpdated      *time.Time
}
