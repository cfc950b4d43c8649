package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/verifybib/report"
	"github.com/c360studio/verifybib/source/parser"
)

// resolveInputs expands glob patterns to bibliography files.
// Supports both single-level wildcards (*) and recursive wildcards (**).
//
// Plain paths are kept as given, even when they do not exist, so the run
// reports them as "<path> is not a file." instead of failing the command.
// A glob only yields files with a bibliography extension and must match at
// least one.
func resolveInputs(patterns []string) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)

	add := func(p string) {
		key := filepath.Clean(p)
		if !seen[key] {
			seen[key] = true
			resolved = append(resolved, p)
		}
	}

	for _, pattern := range patterns {
		if !containsGlob(pattern) {
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}

		var found int
		for _, m := range matches {
			if parser.IsBibliographyFile(m) {
				add(m)
				found++
			}
		}
		if found == 0 {
			return nil, fmt.Errorf("no bibliography files match pattern: %s", pattern)
		}
	}

	return resolved, nil
}

// containsGlob checks if a pattern contains glob characters.
func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// reportPath returns where the report for input goes. The extension of a
// .md or .json base follows the format. With several inputs the input's
// base name is prefixed to the file name.
func reportPath(base, input string, format report.Format, multi bool) string {
	if info, ok := report.GetFormatInfo(format); ok {
		if ext := filepath.Ext(base); ext == ".md" || ext == ".json" {
			base = strings.TrimSuffix(base, ext) + info.Extension
		}
	}
	if !multi {
		return base
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(base), stem+"-"+filepath.Base(base))
}
