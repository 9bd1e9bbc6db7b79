// Package connectors reads policy corpora. The filesystem connector walks
// local directories and watches them for edits.
package connectors
