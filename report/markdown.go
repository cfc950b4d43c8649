// Package report renders a validation.Store into the report artifacts.
package report

import (
	"fmt"
	"strings"

	"github.com/c360studio/verifybib/validation"
)

const (
	// ToolName is the literal tool name in report headers.
	ToolName = "VerifyBibTex"
	// ToolVersion is the report format version.
	ToolVersion = "1.0.0"
)

// Markdown renders the store as a Markdown document.
//
// The General section lists every general message followed by the total
// error count. The Entries section has one subsection per entry with at
// least one finding, in the order entries were first recorded.
func Markdown(s *validation.Store) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s Report (%s)\n\n", ToolName, ToolVersion))
	sb.WriteString("## General\n")
	writeList(&sb, s.General)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Found %d errors.\n", s.ErrorCount))

	sb.WriteString("\n")
	sb.WriteString("## Entries\n")
	for _, d := range s.Entries() {
		if d.Empty() {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n", d.ID))
		if len(d.Critical) > 0 {
			sb.WriteString("#### Important warnings\n")
			writeList(&sb, d.Critical)
			sb.WriteString("\n")
		}
		if len(d.Warning) > 0 {
			sb.WriteString("#### Other warnings\n")
			writeList(&sb, d.Warning)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func writeList(sb *strings.Builder, findings []validation.Finding) {
	for i, f := range findings {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.Message))
	}
}
