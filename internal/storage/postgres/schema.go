// Package postgres provides a PostgreSQL implementation of storage.BlobStore.
package postgres

// Schema creates the blobs table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS thinkgraph_blobs (
    namespace   TEXT        NOT NULL,
    key         TEXT        NOT NULL,
    data        BYTEA       NOT NULL,
    size        BIGINT      NOT NULL,
    modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (namespace, key)
);
`
