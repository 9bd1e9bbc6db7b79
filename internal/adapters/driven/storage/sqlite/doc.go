// Package sqlite provides a SQLite-backed implementation of driven.VectorIndex.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Collections, documents and chunks live in
// a single database file; embeddings are stored as little-endian float32 BLOBs.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Search
//
// Search is a brute-force cosine scan over the collection. Policy corpora are small
// enough that a full scan stays well inside the search timeout.
//
// # Data Location
//
// By default, the database is stored at ~/.verity/data/index.db
//
// # Thread Safety
//
// All operations are thread-safe. Every mutation runs in one transaction, and
// WAL mode lets readers see either the state before or after it.
package sqlite
