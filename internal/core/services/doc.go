// Package services holds the retrieval engine: ingestion, querying,
// grounding checks, complaint routing and collection info.
//
// Ingestion is the only writer to the vector index. The other services
// only read and may run alongside it. An embedder or index failure never
// escapes as a bare error from a query; it becomes an explicit ERRORED or
// ungrounded result.
package services
