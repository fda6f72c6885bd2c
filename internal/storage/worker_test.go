package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"feedreader/internal/domain"
)

func TestRunPaginated_VisitsEveryRowInPages(t *testing.T) {
	const n = 23
	url := "https://example.com/feed.xml"
	s := newTestFileStorage(t)
	ctx := context.Background()
	seedEntries(t, s, ctx, url, n)

	it := s.GetEntriesPaginated(EntryFilter{FeedURL: url}, 3)

	var pageSizes []int
	seen := map[string]bool{}
	err := RunPaginated(ctx, it, 5, func(_ context.Context, page []domain.Entry) error {
		pageSizes = append(pageSizes, len(page))
		for _, e := range page {
			seen[e.ID] = true
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, n)
	for _, size := range pageSizes[:len(pageSizes)-1] {
		require.Equal(t, 5, size)
	}
}

func TestRunPaginated_StopsOnPageFuncError(t *testing.T) {
	const n = 10
	url := "https://example.com/feed.xml"
	s := newTestFileStorage(t)
	ctx := context.Background()
	seedEntries(t, s, ctx, url, n)

	it := s.GetEntriesPaginated(EntryFilter{FeedURL: url}, 2)

	boom := errString("boom")
	calls := 0
	err := RunPaginated(ctx, it, 2, func(_ context.Context, page []domain.Entry) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

type errString string

func (e errString) Error() string { return string(e) }
