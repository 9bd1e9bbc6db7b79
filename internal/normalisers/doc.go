// Package normalisers decodes policy files (plain text, Markdown, HTML)
// into domain.Document values. Registry picks the decoder by MIME type.
package normalisers
