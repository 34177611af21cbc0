// Package status persists the build status of derived files in SQLite.
//
// Each record is keyed by the derived file path and carries the metadata
// pathmeta recovers from that path. The store is a cache of what was last
// observed on disk: it may be deleted at any time and rebuilt by re-stating
// the tracked files, and a built record can go stale if a file is removed
// out of band.
//
// Reads are safe from any goroutine or process. Writes go through
// UpsertBatch, which only the status writer calls.
package status
