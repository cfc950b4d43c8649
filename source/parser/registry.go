package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/c360studio/verifybib/source"
)

// ErrNoParser is returned when no registered parser handles a file type.
var ErrNoParser = errors.New("no parser for file type")

// Parser defines the interface for bibliography parsers.
type Parser interface {
	// Parse parses a document and returns structured data.
	Parse(filename string, content []byte) (*source.Document, error)

	// CanParse returns true if this parser handles the given MIME type.
	CanParse(mimeType string) bool

	// MimeType returns the primary MIME type for this parser.
	MimeType() string
}

// Registry manages bibliography parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // keyed by primary MIME type
}

// DefaultRegistry is the global parser registry with default parsers.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new parser registry with default parsers.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}

	r.Register(NewBibTeXParser())

	return r
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.MimeType()] = p
}

// GetByMimeType returns a parser for the given MIME type.
func (r *Registry) GetByMimeType(mimeType string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.parsers[mimeType]; ok {
		return p
	}

	for _, p := range r.parsers {
		if p.CanParse(mimeType) {
			return p
		}
	}

	return nil
}

// GetByExtension returns a parser for a file based on its extension.
func (r *Registry) GetByExtension(filename string) Parser {
	return r.GetByMimeType(MimeTypeFromExtension(filepath.Ext(filename)))
}

// Parse parses a document using the appropriate parser.
func (r *Registry) Parse(filename string, content []byte) (*source.Document, error) {
	parser := r.GetByExtension(filename)
	if parser == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoParser, filepath.Ext(filename))
	}
	return parser.Parse(filename, content)
}

// ParseFile reads and parses the file at path. Files with an unknown
// extension are read as BibTeX.
func (r *Registry) ParseFile(path string) (*source.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	parser := r.GetByExtension(path)
	if parser == nil {
		parser = r.GetByMimeType(BibTeXMimeType)
	}
	if parser == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoParser, filepath.Ext(path))
	}
	return parser.Parse(path, content)
}

// MimeTypeFromExtension returns the MIME type for a file extension.
func MimeTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".bib", ".bibtex":
		return BibTeXMimeType
	case ".biblatex":
		return "text/x-biblatex"
	default:
		return "application/octet-stream"
	}
}

// IsBibliographyFile reports whether path has a bibliography extension.
func IsBibliographyFile(path string) bool {
	return MimeTypeFromExtension(filepath.Ext(path)) != "application/octet-stream"
}
