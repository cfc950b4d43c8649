package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/c360studio/verifybib/validation"
)

var (
	criticalColor = color.New(color.FgRed, color.Bold)
	warningColor  = color.New(color.FgYellow)
	generalColor  = color.New(color.FgMagenta)
	cleanColor    = color.New(color.FgGreen)
)

// Counts tallies the findings of a store by severity.
type Counts struct {
	Critical int
	Warning  int
	General  int
}

// CountFindings tallies s.
func CountFindings(s *validation.Store) Counts {
	var c Counts
	for _, f := range s.Findings() {
		switch f.Severity {
		case validation.SeverityCritical:
			c.Critical++
		case validation.SeverityWarning:
			c.Warning++
		default:
			c.General++
		}
	}
	return c
}

// Summary writes a one-line colored summary of a run to w.
func Summary(w io.Writer, path, reportPath string, s *validation.Store) {
	if s.ErrorCount == 0 {
		fmt.Fprintf(w, "%s: %s -> %s\n", path, cleanColor.Sprint("no findings"), reportPath)
		return
	}

	c := CountFindings(s)
	fmt.Fprintf(w, "%s: %s, %s, %s (%d errors) -> %s\n",
		path,
		criticalColor.Sprintf("%d critical", c.Critical),
		warningColor.Sprintf("%d warning", c.Warning),
		generalColor.Sprintf("%d general", c.General),
		s.ErrorCount,
		reportPath)
}
