package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/verity/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/verity/internal/adapters/driven/storage/vectors"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// DatabaseFile is the file name of the index inside the data directory.
const DatabaseFile = "index.db"

// Verify interface compliance.
var _ driven.VectorIndex = (*Store)(nil)

// Store is a SQLite-backed vector index.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the index in the specified data directory.
// If dataDir is empty, defaults to ~/.verity/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".verity", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL lets searches read while an ingest transaction is open.
	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	all, err := migrations.All()
	if err == nil {
		err = s.migrate(all)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies every migration newer than the recorded schema
// version. Each version commits together with its schema_migrations row.
func (s *Store) migrate(all []migrations.Migration) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range all {
		if m.Version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %03d_%s: %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Collections ====================

// EnsureCollection creates the collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name, model string, dimension int) error {
	if err := domain.ValidateCollectionName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, model, dimension) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, model, dimension)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	existingModel, existingDim, err := s.collection(ctx, s.db, name)
	if err != nil {
		return err
	}
	if existingModel != model || existingDim != dimension {
		return fmt.Errorf("%w: collection %q was built with %s (%d dimensions), embedder is %s (%d dimensions)",
			domain.ErrEmbedderMismatch, name, existingModel, existingDim, model, dimension)
	}
	return nil
}

// DropCollection deletes a collection and everything in it.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		"DELETE FROM chunks WHERE collection = ?",
		"DELETE FROM documents WHERE collection = ?",
		"DELETE FROM collections WHERE name = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, name); err != nil {
			return fmt.Errorf("dropping collection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Collections lists collection names in ascending order.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return names, nil
}

// Stats summarises a collection. Unknown collections yield zero stats.
func (s *Store) Stats(ctx context.Context, collection string) (domain.CollectionStats, error) {
	stats := domain.CollectionStats{Name: collection}

	model, dim, err := s.collection(ctx, s.db, collection)
	if errors.Is(err, domain.ErrNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	stats.Model = model
	stats.Dimension = dim

	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents WHERE collection = ?),
			(SELECT COUNT(*) FROM chunks WHERE collection = ?)
	`, collection, collection).Scan(&stats.DocumentCount, &stats.ChunkCount)
	if err != nil {
		return stats, fmt.Errorf("counting collection: %w", err)
	}
	return stats, nil
}

// ==================== Documents and chunks ====================

// Upsert inserts or replaces chunks in one transaction. Parent documents
// missing from the index are created from chunk metadata.
func (s *Store) Upsert(ctx context.Context, collection string, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, dim, err := s.collection(ctx, tx, collection)
	if err != nil {
		return err
	}
	if err := checkDimensions(records, dim); err != nil {
		return err
	}

	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, title, document_type, department)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO NOTHING
		`, collection, r.Chunk.DocumentID, r.Chunk.MetadataString(domain.MetaTitle),
			documentTypeOrDefault(domain.DocumentType(r.Chunk.MetadataString(domain.MetaDocumentType))),
			r.Chunk.Department)
		if err != nil {
			return fmt.Errorf("saving parent document: %w", err)
		}
	}

	if err := insertChunks(ctx, tx, collection, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ReplaceDocument swaps every chunk of a document in one transaction and
// returns the new document version.
func (s *Store) ReplaceDocument(ctx context.Context, collection string, doc domain.DocumentRecord, records []driven.VectorRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, dim, err := s.collection(ctx, tx, collection)
	if err != nil {
		return 0, err
	}
	if err := checkDimensions(records, dim); err != nil {
		return 0, err
	}

	version := 1
	var current int
	err = tx.QueryRowContext(ctx,
		"SELECT version FROM documents WHERE collection = ? AND id = ?", collection, doc.ID).Scan(&current)
	switch {
	case err == nil:
		version = current + 1
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("reading document version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, uri, title, document_type, department, content_hash, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			uri = excluded.uri,
			title = excluded.title,
			document_type = excluded.document_type,
			department = excluded.department,
			content_hash = excluded.content_hash,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, collection, doc.ID, doc.URI, doc.Title, documentTypeOrDefault(doc.DocumentType),
		doc.Department, doc.ContentHash, version)
	if err != nil {
		return 0, fmt.Errorf("saving document: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND document_id = ?", collection, doc.ID); err != nil {
		return 0, fmt.Errorf("deleting stale chunks: %w", err)
	}

	for _, r := range records {
		if r.Chunk.DocumentID != doc.ID {
			return 0, fmt.Errorf("%w: chunk %s belongs to %q, not %q",
				domain.ErrInvalidInput, r.Chunk.ID, r.Chunk.DocumentID, doc.ID)
		}
	}
	if err := insertChunks(ctx, tx, collection, records); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return version, nil
}

// DocumentHash returns the stored content hash and chunk count of a document.
func (s *Store) DocumentHash(ctx context.Context, collection, documentID string) (string, int, error) {
	var hash string
	var chunks int
	err := s.db.QueryRowContext(ctx, `
		SELECT d.content_hash, (SELECT COUNT(*) FROM chunks c WHERE c.collection = d.collection AND c.document_id = d.id)
		FROM documents d WHERE d.collection = ? AND d.id = ?
	`, collection, documentID).Scan(&hash, &chunks)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading document hash: %w", err)
	}
	return hash, chunks, nil
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, collection, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, documentID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// Delete removes a single chunk.
func (s *Store) Delete(ctx context.Context, collection, chunkID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND id = ?", collection, chunkID)
	if err != nil {
		return fmt.Errorf("deleting chunk: %w", err)
	}
	return nil
}

// ==================== Search ====================

// Search scans the collection and ranks chunks by cosine similarity.
func (s *Store) Search(ctx context.Context, collection string, query []float32, topK int) ([]domain.RetrievedEvidence, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, topK)
	}

	_, dim, err := s.collection(ctx, s.db, collection)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.RetrievedEvidence{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q has %d",
			domain.ErrDimensionMismatch, len(query), collection, dim)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.position, c.content, c.section, c.department,
		       c.content_hash, c.metadata, c.embedding, d.title, d.document_type
		FROM chunks c
		JOIN documents d ON d.collection = c.collection AND d.id = c.document_id
		WHERE c.collection = ?
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	queryMag := vectors.Magnitude(query)
	results := []domain.RetrievedEvidence{}
	for rows.Next() {
		ev, embedding, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		ev.Similarity = vectors.Cosine(query, embedding, queryMag, vectors.Magnitude(embedding))
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return vectors.Top(results, topK), nil
}

// ==================== Helper Functions ====================

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) collection(ctx context.Context, q queryer, name string) (string, int, error) {
	var model string
	var dim int
	err := q.QueryRowContext(ctx,
		"SELECT model, dimension FROM collections WHERE name = ?", name).Scan(&model, &dim)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading collection: %w", err)
	}
	return model, dim, nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, collection string, records []driven.VectorRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, document_id, position, content, section, department,
		                    content_hash, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			position = excluded.position,
			content = excluded.content,
			section = excluded.section,
			department = excluded.department,
			content_hash = excluded.content_hash,
			metadata = excluded.metadata,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		metadataJSON, err := json.Marshal(r.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		c := r.Chunk
		if _, err := stmt.ExecContext(ctx, collection, c.ID, c.DocumentID, c.Position, c.Content,
			c.Section, c.Department, c.ContentHash, string(metadataJSON), vectors.Encode(r.Embedding)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

func scanEvidence(rows *sql.Rows) (domain.RetrievedEvidence, []float32, error) {
	var ev domain.RetrievedEvidence
	var metadataJSON sql.NullString
	var blob []byte
	var docType string

	c := &ev.Chunk
	if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content, &c.Section, &c.Department,
		&c.ContentHash, &metadataJSON, &blob, &ev.Title, &docType); err != nil {
		return ev, nil, fmt.Errorf("scanning chunk: %w", err)
	}
	ev.DocumentType = domain.DocumentType(docType)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return ev, nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
		}
	}

	embedding, err := vectors.Decode(blob)
	if err != nil {
		return ev, nil, fmt.Errorf("decoding chunk %s: %w", c.ID, err)
	}
	return ev, embedding, nil
}

func checkDimensions(records []driven.VectorRecord, dim int) error {
	for _, r := range records {
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Embedding), dim)
		}
	}
	return nil
}

func documentTypeOrDefault(t domain.DocumentType) string {
	if t.IsValid() {
		return string(t)
	}
	return string(domain.DocumentTypeGeneral)
}
