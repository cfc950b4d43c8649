// Package parser provides bibliography parsing functionality.
package parser

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/verifybib/source"
)

// ErrInvalidEncoding is returned when the input is not valid UTF-8.
var ErrInvalidEncoding = errors.New("input is not valid UTF-8")

// BibTeXMimeType is the MIME type handled by BibTeXParser.
const BibTeXMimeType = "text/x-bibtex"

// BibTeXParser parses BibTeX and BibLaTeX files into a source.Document.
//
// Blocks that cannot be read are not fatal: they are collected as
// source.FailedBlock values and parsing resumes at the next line that starts
// with '@'. Only unreadable input (bad encoding) is reported as an error.
type BibTeXParser struct{}

// NewBibTeXParser creates a new BibTeX parser.
func NewBibTeXParser() *BibTeXParser {
	return &BibTeXParser{}
}

// CanParse returns true if this parser can handle the given MIME type.
func (p *BibTeXParser) CanParse(mimeType string) bool {
	switch mimeType {
	case BibTeXMimeType, "application/x-bibtex", "text/x-biblatex":
		return true
	default:
		return false
	}
}

// MimeType returns the primary MIME type for this parser.
func (p *BibTeXParser) MimeType() string {
	return BibTeXMimeType
}

// Parse parses BibTeX content.
func (p *BibTeXParser) Parse(filename string, content []byte) (*source.Document, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("parse %s: %w", filename, ErrInvalidEncoding)
	}

	s := newScanner(string(content))
	doc := &source.Document{
		Path:    filename,
		Strings: make(map[string]string),
	}
	seen := make(map[string]bool)

	for {
		start := s.nextAt()
		if start < 0 {
			break
		}
		blk := s.readBlock(start)
		if blk.err != nil {
			doc.FailedBlocks = append(doc.FailedBlocks, source.FailedBlock{
				Raw:    blk.raw,
				Line:   s.lineAt(start),
				Reason: blk.err.Error(),
			})
			continue
		}

		switch strings.ToLower(blk.kind) {
		case "comment", "preamble":
			continue
		case "string":
			name, value, err := parseStringDef(blk.body, doc.Strings)
			if err != nil {
				doc.FailedBlocks = append(doc.FailedBlocks, source.FailedBlock{
					Raw: blk.raw, Line: s.lineAt(start), Reason: err.Error(),
				})
				continue
			}
			doc.Strings[strings.ToLower(name)] = value
		default:
			entry, err := parseEntry(blk, doc.Strings)
			if err == nil && seen[entry.ID] {
				err = fmt.Errorf("duplicate entry key %q", entry.ID)
			}
			if err != nil {
				doc.FailedBlocks = append(doc.FailedBlocks, source.FailedBlock{
					Raw: blk.raw, Line: s.lineAt(start), Reason: err.Error(),
				})
				continue
			}
			seen[entry.ID] = true
			entry.Line = s.lineAt(start)
			doc.Entries = append(doc.Entries, entry)
		}
	}

	return doc, nil
}

// block is one @-delimited unit of the input.
type block struct {
	kind string
	body string
	raw  string
	err  error
}

type scanner struct {
	src        string
	pos        int
	lineStarts []int
}

func newScanner(src string) *scanner {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &scanner{src: src, lineStarts: starts}
}

// lineAt returns the 1-based line number of offset.
func (s *scanner) lineAt(offset int) int {
	return sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	})
}

// nextAt returns the offset of the next '@' at or after pos, or -1.
// Text between blocks is implicit comment and is skipped.
func (s *scanner) nextAt() int {
	if s.pos >= len(s.src) {
		return -1
	}
	idx := strings.IndexByte(s.src[s.pos:], '@')
	if idx < 0 {
		s.pos = len(s.src)
		return -1
	}
	return s.pos + idx
}

// skipBroken advances past a broken block to the next line starting with '@'
// and returns the raw text that was skipped.
func (s *scanner) skipBroken(start int) string {
	end := len(s.src)
	for i := start + 1; i < len(s.src); i++ {
		if s.src[i] == '\n' && startsBlock(s.src[i+1:]) {
			end = i + 1
			break
		}
	}
	s.pos = end
	return s.src[start:end]
}

func (s *scanner) readBlock(start int) block {
	i := start + 1
	for i < len(s.src) && isIdentChar(s.src[i]) {
		i++
	}
	kind := s.src[start+1 : i]
	if kind == "" {
		return block{raw: s.skipBroken(start), err: errors.New("missing entry type after '@'")}
	}
	i = skipSpace(s.src, i)
	if i >= len(s.src) || (s.src[i] != '{' && s.src[i] != '(') {
		return block{kind: kind, raw: s.skipBroken(start), err: fmt.Errorf("expected '{' or '(' after @%s", kind)}
	}

	opener := s.src[i]
	closer := byte('}')
	if opener == '(' {
		closer = ')'
	}
	bodyStart := i + 1

	depth := 0
	for j := bodyStart; j < len(s.src); j++ {
		c := s.src[j]
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closer && depth == 0:
			end := j + 1
			end = consumeLineBreak(s.src, end)
			s.pos = end
			return block{kind: kind, body: s.src[bodyStart:j], raw: s.src[start:end]}
		case c == '\n' && startsBlock(s.src[j+1:]):
			// The next block begins before this one was closed.
			s.pos = j + 1
			return block{kind: kind, raw: s.src[start : j+1], err: fmt.Errorf("unterminated @%s block", kind)}
		}
	}

	s.pos = len(s.src)
	return block{kind: kind, raw: s.src[start:], err: fmt.Errorf("unterminated @%s block", kind)}
}

// consumeLineBreak extends end over trailing blanks and one line break.
func consumeLineBreak(src string, end int) int {
	k := end
	for k < len(src) && (src[k] == ' ' || src[k] == '\t') {
		k++
	}
	if k < len(src) && src[k] == '\r' {
		k++
	}
	if k < len(src) && src[k] == '\n' {
		return k + 1
	}
	return end
}

// startsBlock reports whether s begins, after blanks, with "@name{" or
// "@name(".
func startsBlock(s string) bool {
	s = strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(s, "@") {
		return false
	}
	i := 1
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	if i == 1 {
		return false
	}
	i = skipSpace(s, i)
	return i < len(s) && (s[i] == '{' || s[i] == '(')
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_-:.+/", c) >= 0
}
