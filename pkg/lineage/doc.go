// Package lineage provides versioned content storage: an item registry, an
// append-only version store and pluggable content backends tied together by
// one set of lineage operations (create, update, restore, delete).
//
// The same Service implementation manages binary files and text documents.
// What differs is the ContentBackend it is built with: NewBlobBackend keeps
// bytes in a BlobStore (filesystem, memory, S3) addressed by a generated key,
// NewInlineBackend keeps the text on the record itself.
//
// Snapshot Strategy
//
// Every content-changing operation first appends a Version capturing the
// item's pre-operation state and only then repoints the item. The superseded
// content stays reachable through that Version until the item is deleted.
// Content is written to the backend before the per-item metadata transaction
// starts, so slow I/O never runs while the item is locked.
package lineage
