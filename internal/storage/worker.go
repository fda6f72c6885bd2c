package storage

import (
	"context"

	"feedreader/internal/domain"
)

// PageFunc processes one page of entries. Returning an error stops
// RunPaginated and surfaces the error to its caller.
type PageFunc func(ctx context.Context, page []domain.Entry) error

// RunPaginated drives it to exhaustion on its own goroutine, batching
// consecutive entries into pages of at most pageSize (the iterator's
// own chunkSize governs how often the underlying connection is
// released; pageSize here only governs how many entries pageFn sees at
// once) and calling pageFn once per page. It stops early, with ctx's
// error, if ctx is cancelled between pages.
//
// Running the walk on a dedicated goroutine guarantees every call
// into it, including its connection acquisition, happens from the
// same goroutine for the walk's whole lifetime -- required because
// EntryIterator's scoped connections are goroutine-bound.
func RunPaginated(ctx context.Context, it *EntryIterator, pageSize int, pageFn PageFunc) error {
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		defer close(done)
		done <- runPages(ctx, it, pageSize, pageFn, stop)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		close(stop)
		<-done
		return ctx.Err()
	}
}

func runPages(ctx context.Context, it *EntryIterator, pageSize int, pageFn PageFunc, stop <-chan struct{}) error {
	var page []domain.Entry
	flush := func() error {
		if len(page) == 0 {
			return nil
		}
		err := pageFn(ctx, page)
		page = page[:0]
		return err
	}

	for {
		select {
		case <-stop:
			return flush()
		default:
		}

		e, ok := it.Next(ctx)
		if !ok {
			if err := flush(); err != nil {
				return err
			}
			return it.Err()
		}

		page = append(page, e)
		if pageSize > 0 && len(page) >= pageSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
