// Package html normalises HTML policy pages. Headings become Markdown
// headings and bold runs keep their ** markers, so section and department
// detection works the same as for Markdown sources.
package html
