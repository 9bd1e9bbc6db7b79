package filesystem

import (
	"path/filepath"
	"strings"
)

const uriScheme = "file://"

// URIFromPath converts a filesystem path to the file:// URI stored on documents.
func URIFromPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uriScheme + filepath.ToSlash(path)
}

// LocalPath converts a document URI back to a local path.
// Handles file:// URIs and bare paths.
func LocalPath(uri string) string {
	if strings.HasPrefix(uri, uriScheme) {
		return filepath.FromSlash(strings.TrimPrefix(uri, uriScheme))
	}
	// Bare paths pass through unchanged
	return uri
}
