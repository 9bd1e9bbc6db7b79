package domain

// IngestStatus is the per-document outcome of an ingestion run.
type IngestStatus string

// Ingestion outcomes.
const (
	IngestCreated   IngestStatus = "created"
	IngestUpdated   IngestStatus = "updated"
	IngestUnchanged IngestStatus = "unchanged"
	IngestSkipped   IngestStatus = "skipped"
)

// IngestOptions modifies ingestion behaviour.
type IngestOptions struct {
	// Force re-chunks and re-embeds documents whose content is unchanged.
	Force bool

	// Reindex drops and recreates the collection before ingesting.
	Reindex bool
}

// SkippedDocument records a document that could not be ingested.
type SkippedDocument struct {
	DocumentID string `json:"document_id"`
	URI        string `json:"uri,omitempty"`
	Reason     string `json:"reason"`
}

// DocumentResult records the outcome for one document.
type DocumentResult struct {
	DocumentID string       `json:"document_id"`
	Status     IngestStatus `json:"status"`
	Chunks     int          `json:"chunks"`
	Version    int          `json:"version,omitempty"`
}

// IngestReport summarises an ingestion run.
type IngestReport struct {
	RunID              string            `json:"run_id"`
	Collection         string            `json:"collection"`
	DocumentsIngested  int               `json:"documents_ingested"`
	DocumentsUnchanged int               `json:"documents_unchanged"`
	ChunksCreated      int               `json:"chunks_created"`
	ChunksSkipped      int               `json:"chunks_skipped"`
	Skipped            []SkippedDocument `json:"skipped,omitempty"`
	Warnings           []string          `json:"warnings,omitempty"`
	Results            []DocumentResult  `json:"results"`
}

// DocumentRecord is the document-level row stored alongside its chunks.
type DocumentRecord struct {
	ID           string
	URI          string
	Title        string
	DocumentType DocumentType
	Department   string
	ContentHash  string
}
