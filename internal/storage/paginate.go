package storage

import (
	"context"

	"github.com/keegancsmith/sqlf"

	"feedreader/internal/domain"
)

// EntryIterator walks a GetEntries result set in bounded pages,
// releasing its connection between pages so a long iteration never
// holds the database lock a writer needs. It is the Go analogue of the
// source's join_paginated_iter: an explicit cursor object rather than
// a generator, since Go has no generator syntax and this package
// avoids range-over-func (iter.Seq) to keep Next's error path plain.
type EntryIterator struct {
	storage   *Storage
	filter    EntryFilter
	chunkSize int

	buf  []domain.Entry
	pos  int
	last *domain.Cursor

	exhausted bool
	err       error
}

// GetEntriesPaginated returns an EntryIterator over filter's matching
// entries, newest first. chunkSize controls how many rows are fetched
// (and how many connection acquisitions happen) per page; 0 means the
// whole result set is fetched as a single page, same as GetEntries.
func (s *Storage) GetEntriesPaginated(filter EntryFilter, chunkSize int) *EntryIterator {
	return &EntryIterator{storage: s, filter: filter, chunkSize: chunkSize}
}

// Next advances the iterator and reports whether e is valid. Once Next
// returns false, call Err to distinguish exhaustion from failure.
func (it *EntryIterator) Next(ctx context.Context) (domain.Entry, bool) {
	if it.pos >= len(it.buf) {
		if it.exhausted || it.err != nil {
			return domain.Entry{}, false
		}
		if !it.fetchPage(ctx) {
			return domain.Entry{}, false
		}
	}
	if it.pos >= len(it.buf) {
		return domain.Entry{}, false
	}
	e := it.buf[it.pos]
	it.pos++
	order := e.UpdatedAt
	if e.PublishedAt != nil {
		order = *e.PublishedAt
	}
	it.last = &domain.Cursor{Order: order.UnixMicro(), FeedURL: e.FeedURL, ID: e.ID}
	return e, true
}

// Err returns the first error encountered, if any.
func (it *EntryIterator) Err() error { return it.err }

func (it *EntryIterator) fetchPage(ctx context.Context) bool {
	db, release, err := it.storage.conn()
	if err != nil {
		it.err = err
		return false
	}
	defer release()

	pageSize := it.chunkSize
	q := buildEntriesQuery(it.filter, it.last, pageSize)
	rows, err := db.QueryContext(ctx, q.Query(sqlf.SimpleBindVar), q.Args()...)
	if err != nil {
		it.err = wrapErr(err, "get entries")
		return false
	}
	defer rows.Close()

	var page []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			it.err = wrapErr(err, "get entries")
			return false
		}
		page = append(page, e)
	}
	if err := rows.Err(); err != nil {
		it.err = wrapErr(err, "get entries")
		return false
	}

	it.buf = page
	it.pos = 0

	if pageSize <= 0 || len(page) < pageSize {
		it.exhausted = true
	}
	return len(page) > 0
}
