// Package domain holds Verity's value types and error sentinels: policy
// documents and their chunks, retrieved evidence, cited query results,
// grounding verdicts, routes and the validated engine Config.
//
// Nothing here performs I/O, and the package imports only the standard
// library so every other layer can depend on it.
package domain
