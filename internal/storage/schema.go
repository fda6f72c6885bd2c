package storage

import (
	"context"
	"database/sql"
)

// applicationID stamps databases created by this package, distinct
// from the schema version. It's the ASCII bytes of "READ" read as a
// big-endian 32-bit integer, a readable magic constant rather than an
// arbitrary one.
const applicationID = 0x52454144

// currentSchemaVersion is the schema version this build creates new
// databases at and upgrades existing ones to.
const currentSchemaVersion = 1

const createSchemaSQL = `
CREATE TABLE feeds (
    url TEXT PRIMARY KEY,
    title TEXT,
    link TEXT,
    updated TIMESTAMP,
    user_title TEXT,
    http_etag TEXT,
    http_last_modified TEXT,
    stale INTEGER NOT NULL DEFAULT 0,
    last_updated TIMESTAMP,
    added TIMESTAMP NOT NULL
);

CREATE TABLE entries (
    id TEXT NOT NULL,
    feed TEXT NOT NULL,
    title TEXT,
    link TEXT,
    updated TIMESTAMP NOT NULL,
    published TIMESTAMP,
    summary TEXT,
    content TEXT,
    enclosures TEXT,
    read INTEGER NOT NULL DEFAULT 0,
    important INTEGER NOT NULL DEFAULT 0,
    last_updated TIMESTAMP NOT NULL,
    first_updated_epoch TIMESTAMP,
    feed_order INTEGER NOT NULL,
    PRIMARY KEY (id, feed),
    FOREIGN KEY (feed) REFERENCES feeds(url) ON DELETE CASCADE
);

CREATE TABLE feed_metadata (
    feed TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT,
    PRIMARY KEY (feed, key),
    FOREIGN KEY (feed) REFERENCES feeds(url) ON DELETE CASCADE
);

CREATE INDEX entries_by_feed ON entries(feed);
CREATE INDEX entries_by_read ON entries(read);
CREATE INDEX entries_by_important ON entries(important);
`

func createSchema(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, createSchemaSQL)
	return err
}

// currentSchema is the production schema family: one version, no
// migrations yet. Migrations accumulate in the migrations map as the
// schema evolves, rather than rewriting createSchemaSQL in place.
func currentSchema() schemaSpec {
	return schemaSpec{
		create:     createSchema,
		version:    currentSchemaVersion,
		migrations: map[int]Migration{},
		appID:      applicationID,
	}
}
