// Package source provides the bibliographic object model produced by the
// parsers in source/parser and consumed by the validation engine.
package source

import "strings"

// Document is a parsed bibliography file.
type Document struct {
	// Path is the file the document was read from.
	Path string `json:"path"`

	// Entries are the successfully parsed records, in file order.
	Entries []*Entry `json:"entries"`

	// FailedBlocks are the raw fragments the parser could not interpret.
	FailedBlocks []FailedBlock `json:"failed_blocks,omitempty"`

	// Strings holds resolved @string macros by lowercase name.
	Strings map[string]string `json:"strings,omitempty"`
}

// Entry is one bibliographic record such as an article or a book chapter.
type Entry struct {
	// ID is the citation key, unique within the document.
	ID string `json:"id"`

	// Type is the entry type tag as written (article, InCollection, ...).
	Type string `json:"type"`

	// Fields are the key/value pairs in source order.
	Fields []Field `json:"fields"`

	// Raw is the unmodified source text of the entry, from the leading @
	// through the closing delimiter and the line break that follows it.
	Raw string `json:"raw"`

	// Line is the 1-based line on which the entry starts.
	Line int `json:"line"`
}

// Field is a named value attached to an entry.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FailedBlock is raw text that could not be read as an entry.
type FailedBlock struct {
	// Raw is the unparsed text.
	Raw string `json:"raw"`

	// Line is the 1-based line on which the block starts.
	Line int `json:"line"`

	// Reason is a short parser explanation. It is diagnostic only.
	Reason string `json:"reason,omitempty"`
}

// Get returns the value of the first field whose key equals key.
// Keys are compared exactly; run the field-key normalizer first when the
// entry may carry mixed-case keys.
func (e *Entry) Get(key string) (string, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Has reports whether a field with the given key exists.
func (e *Entry) Has(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// HasAny reports whether at least one of keys is present.
func (e *Entry) HasAny(keys ...string) bool {
	for _, k := range keys {
		if e.Has(k) {
			return true
		}
	}
	return false
}

// TypeName returns the lowercase entry type.
func (e *Entry) TypeName() string {
	return strings.ToLower(e.Type)
}
