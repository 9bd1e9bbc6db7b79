// Package driven lists what the services need from infrastructure:
// an EmbeddingService and a VectorIndex to answer anything at all, a
// PostProcessorPipeline to chunk documents, and a ConfigStore for settings.
//
// EmbeddingCache is optional; without it every question is embedded
// afresh. Connector and NormaliserRegistry are needed only when ingesting
// from paths instead of in-memory documents.
//
// Adapters implement these interfaces. This package may import domain and
// nothing else from internal/.
package driven
