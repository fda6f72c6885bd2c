package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStorageError_FormatsWithoutCause(t *testing.T) {
	err := NewStorageError("disk full", nil)
	require.Equal(t, "storage error: disk full", err.Error())
}

func TestStorageError_FormatsWithCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := NewStorageError("write failed", cause)
	require.Equal(t, "storage error: write failed: *errors.fundamental: database is locked", err.Error())
}

func TestStorageError_UnwrapAndCauseReturnCause(t *testing.T) {
	cause := errors.New("disk i/o error")
	err := NewStorageError("read failed", cause)
	require.Equal(t, cause, err.Unwrap())
	require.Equal(t, cause, errors.Cause(err))
}

func TestFeedNotFoundError_CarriesURL(t *testing.T) {
	err := NewFeedNotFoundError("https://example.com/feed.xml")
	require.Equal(t, "https://example.com/feed.xml", err.URL)
	require.Contains(t, err.Error(), "feed not found error")
}

func TestEntryNotFoundError_CarriesKey(t *testing.T) {
	err := NewEntryNotFoundError("https://example.com/feed.xml", "entry-1")
	require.Equal(t, "https://example.com/feed.xml", err.FeedURL)
	require.Equal(t, "entry-1", err.ID)
}

func TestMetadataNotFoundError_CarriesKey(t *testing.T) {
	err := NewMetadataNotFoundError("https://example.com/feed.xml", "last-sync")
	require.Equal(t, "last-sync", err.Key)
}
