package lang

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Default is the tag used when none is given and the fallback for unknown
// tags when a file suffix is needed.
const Default = "plaintext"

// Language describes a tag the editor understands.
type Language struct {
	ID        string
	Label     string
	Extension string
}

var catalogue = []Language{
	{ID: "plaintext", Label: "Plain Text", Extension: "txt"},
	{ID: "javascript", Label: "JavaScript", Extension: "js"},
	{ID: "typescript", Label: "TypeScript", Extension: "ts"},
	{ID: "jsx", Label: "JSX", Extension: "jsx"},
	{ID: "tsx", Label: "TSX", Extension: "tsx"},
	{ID: "python", Label: "Python", Extension: "py"},
	{ID: "go", Label: "Go", Extension: "go"},
	{ID: "c", Label: "C", Extension: "c"},
	{ID: "cpp", Label: "C++", Extension: "cpp"},
	{ID: "java", Label: "Java", Extension: "java"},
	{ID: "bash", Label: "Bash", Extension: "sh"},
	{ID: "html", Label: "HTML", Extension: "html"},
	{ID: "css", Label: "CSS", Extension: "css"},
	{ID: "json", Label: "JSON", Extension: "json"},
	{ID: "markdown", Label: "Markdown", Extension: "md"},
	{ID: "sql", Label: "SQL", Extension: "sql"},
	{ID: "xml", Label: "XML", Extension: "xml"},
	{ID: "yaml", Label: "YAML", Extension: "yaml"},
}

var byID = func() map[string]Language {
	m := make(map[string]Language, len(catalogue))
	for _, l := range catalogue {
		m[l.ID] = l
	}
	return m
}()

// All returns the known languages in display order.
func All() []Language {
	out := make([]Language, len(catalogue))
	copy(out, catalogue)
	return out
}

// Known reports whether id is in the catalogue.
func Known(id string) bool {
	_, ok := byID[id]
	return ok
}

// Lookup returns the language for id, falling back to plain text.
func Lookup(id string) Language {
	if l, ok := byID[id]; ok {
		return l
	}
	return byID[Default]
}

// Normalize trims and lowercases a tag; empty becomes Default. Unknown tags
// are kept since they only influence presentation.
func Normalize(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Default
	}
	return id
}

// Label returns a human readable name for id.
func Label(id string) string {
	if l, ok := byID[id]; ok {
		return l.Label
	}
	if id == "" {
		return byID[Default].Label
	}
	r, size := utf8.DecodeRuneInString(id)
	return string(unicode.ToUpper(r)) + id[size:]
}

// FileExtension maps a tag to a conventional file suffix without the dot.
func FileExtension(id string) string {
	return Lookup(id).Extension
}
