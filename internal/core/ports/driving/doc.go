// Package driving declares what the CLI and MCP adapters may ask of the
// core: ingest a corpus, answer questions, check grounding, route
// complaints and describe collections. internal/core/services implements
// every interface here.
package driving
