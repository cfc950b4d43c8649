package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c360studio/verifybib/validation"
)

// Format identifies a report serialization.
type Format string

// Supported report formats.
const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// FormatInfo provides metadata about a report format.
type FormatInfo struct {
	Name        Format
	MIMEType    string
	Extension   string
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatMarkdown: {
		Name:        FormatMarkdown,
		MIMEType:    "text/markdown",
		Extension:   ".md",
		Description: "Markdown report for humans",
	},
	FormatJSON: {
		Name:        FormatJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "JSON report for tooling",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat resolves a format name, accepting "md" for Markdown.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "md":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatJSON:
		return f, nil
	default:
		names := make([]string, 0, len(FormatRegistry))
		for k := range FormatRegistry {
			names = append(names, string(k))
		}
		sort.Strings(names)
		return "", fmt.Errorf("unknown report format %q (supported: %s)", name, strings.Join(names, ", "))
	}
}

// Meta carries run details that only the JSON report includes.
type Meta struct {
	RunID string
	Path  string
}

// jsonReport is the JSON document layout.
type jsonReport struct {
	Tool       string               `json:"tool"`
	Version    string               `json:"version"`
	RunID      string               `json:"run_id,omitempty"`
	Path       string               `json:"path,omitempty"`
	ErrorCount int                  `json:"error_count"`
	General    []validation.Finding `json:"general"`
	Entries    []jsonEntry          `json:"entries"`
}

type jsonEntry struct {
	ID       string               `json:"id"`
	Critical []validation.Finding `json:"critical"`
	Warning  []validation.Finding `json:"warning"`
}

// JSON renders the store as an indented JSON document. Entries without
// findings are omitted, as in the Markdown report. The result is checked
// against the published schema.
func JSON(s *validation.Store, meta Meta) ([]byte, error) {
	doc := jsonReport{
		Tool:       ToolName,
		Version:    ToolVersion,
		RunID:      meta.RunID,
		Path:       meta.Path,
		ErrorCount: s.ErrorCount,
		General:    nonNil(s.General),
		Entries:    []jsonEntry{},
	}
	for _, d := range s.Entries() {
		if d.Empty() {
			continue
		}
		doc.Entries = append(doc.Entries, jsonEntry{
			ID:       d.ID,
			Critical: nonNil(d.Critical),
			Warning:  nonNil(d.Warning),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("report does not match schema: %w", err)
	}
	return append(data, '\n'), nil
}

func nonNil(f []validation.Finding) []validation.Finding {
	if f == nil {
		return []validation.Finding{}
	}
	return f
}

// Render serializes the store in the given format.
func Render(format Format, s *validation.Store, meta Meta) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(Markdown(s)), nil
	case FormatJSON:
		return JSON(s, meta)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile writes a rendered report, creating the parent directory.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
