package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"feedreader/internal/domain"
)

func TestFeedMetadata_SetGetDeleteLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	url := "https://example.com/feed.xml"
	mustAddFeed(t, s, ctx, url)

	require.NoError(t, s.SetFeedMetadata(ctx, url, "etag-salt", "abc123"))
	require.NoError(t, s.SetFeedMetadata(ctx, url, "poll-interval", float64(3600)))

	all, err := s.IterFeedMetadata(ctx, url)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "etag-salt", all[0].Key)
	require.Equal(t, "abc123", all[0].Value)
	require.Equal(t, "poll-interval", all[1].Key)
	require.Equal(t, float64(3600), all[1].Value)

	require.NoError(t, s.DeleteFeedMetadata(ctx, url, "etag-salt"))
	all, err = s.IterFeedMetadata(ctx, url)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSetFeedMetadata_OverwritesExistingKey(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	url := "https://example.com/feed.xml"
	mustAddFeed(t, s, ctx, url)

	require.NoError(t, s.SetFeedMetadata(ctx, url, "k", "v1"))
	require.NoError(t, s.SetFeedMetadata(ctx, url, "k", "v2"))

	all, err := s.IterFeedMetadata(ctx, url)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "v2", all[0].Value)
}

func TestDeleteFeedMetadata_NotFound(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	url := "https://example.com/feed.xml"
	mustAddFeed(t, s, ctx, url)

	err := s.DeleteFeedMetadata(ctx, url, "missing")
	var notFound *domain.MetadataNotFoundError
	require.ErrorAs(t, err, &notFound)
}
