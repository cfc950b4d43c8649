package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetByMimeType(t *testing.T) {
	r := NewRegistry()

	t.Run("direct match", func(t *testing.T) {
		p := r.GetByMimeType(BibTeXMimeType)
		require.NotNil(t, p)
		assert.Equal(t, BibTeXMimeType, p.MimeType())
	})

	t.Run("CanParse fallback", func(t *testing.T) {
		assert.NotNil(t, r.GetByMimeType("application/x-bibtex"))
		assert.NotNil(t, r.GetByMimeType("text/x-biblatex"))
	})

	t.Run("no parser for unknown type", func(t *testing.T) {
		assert.Nil(t, r.GetByMimeType("text/markdown"))
	})
}

func TestRegistry_GetByExtension(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		filename string
		wantNil  bool
	}{
		{"refs.bib", false},
		{"refs.BIB", false},
		{"refs.bibtex", false},
		{"refs.biblatex", false},
		{"refs.md", true},
		{"noextension", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			p := r.GetByExtension(tt.filename)
			if tt.wantNil {
				assert.Nil(t, p)
			} else {
				assert.NotNil(t, p)
			}
		})
	}
}

func TestRegistry_Parse(t *testing.T) {
	r := NewRegistry()

	t.Run("success with bibtex", func(t *testing.T) {
		doc, err := r.Parse("refs.bib", []byte("@misc{a,\n  title = {T},\n}\n"))
		require.NoError(t, err)
		require.Len(t, doc.Entries, 1)
		assert.Equal(t, "a", doc.Entries[0].ID)
	})

	t.Run("error when no parser", func(t *testing.T) {
		_, err := r.Parse("refs.txt", []byte("content"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoParser))
	})
}

func TestRegistry_ParseFile(t *testing.T) {
	r := NewRegistry()
	dir := t.TempDir()

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(dir, "refs.bib")
		require.NoError(t, os.WriteFile(path, []byte("@book{b, title={T}}"), 0644))

		doc, err := r.ParseFile(path)
		require.NoError(t, err)
		assert.Equal(t, path, doc.Path)
		assert.Len(t, doc.Entries, 1)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := r.ParseFile(filepath.Join(dir, "missing.bib"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestIsBibliographyFile(t *testing.T) {
	assert.True(t, IsBibliographyFile("a/b/refs.bib"))
	assert.False(t, IsBibliographyFile("a/b/refs.bib.bak"))
	assert.False(t, IsBibliographyFile("README.md"))
}
