// Package validation checks parsed bibliography entries against a fixed
// battery of correctness and style rules and collects the findings in a
// Store for rendering.
package validation

// Severity classifies a finding.
type Severity string

const (
	// SeverityCritical marks entry findings that will likely break a build.
	SeverityCritical Severity = "critical"
	// SeverityWarning marks entry findings that should be reviewed.
	SeverityWarning Severity = "warning"
	// SeverityGeneral marks document-level findings with no entry.
	SeverityGeneral Severity = "general"
	// SeverityInfo marks general notices that are not findings.
	SeverityInfo Severity = "info"
)

// Finding is one message appended to the store.
type Finding struct {
	Rule     RuleID   `json:"rule,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// EntryDiagnostics holds the findings recorded for one entry.
type EntryDiagnostics struct {
	ID       string    `json:"id"`
	Critical []Finding `json:"critical"`
	Warning  []Finding `json:"warning"`
}

// Empty reports whether no finding was recorded for the entry.
func (d *EntryDiagnostics) Empty() bool {
	return len(d.Critical) == 0 && len(d.Warning) == 0
}

// Store accumulates the findings of a single validation run.
//
// It is append-only: findings are never edited or removed. ErrorCount is
// incremented exactly once per finding; informational notices (see AddNotice)
// are listed with the general messages but are not counted.
type Store struct {
	General    []Finding
	ErrorCount int

	order   []string
	entries map[string]*EntryDiagnostics
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*EntryDiagnostics),
	}
}

// AddGeneral appends a document-level finding.
func (s *Store) AddGeneral(rule RuleID, msg string) {
	s.General = append(s.General, Finding{Rule: rule, Severity: SeverityGeneral, Message: msg})
	s.ErrorCount++
}

// AddNotice appends a general message that does not count as a finding.
func (s *Store) AddNotice(msg string) {
	s.General = append(s.General, Finding{Severity: SeverityInfo, Message: msg})
}

// AddCritical appends a critical finding for entryID.
func (s *Store) AddCritical(entryID string, rule RuleID, msg string) {
	d := s.entry(entryID)
	d.Critical = append(d.Critical, Finding{Rule: rule, Severity: SeverityCritical, Message: msg})
	s.ErrorCount++
}

// AddWarning appends a warning finding for entryID.
func (s *Store) AddWarning(entryID string, rule RuleID, msg string) {
	d := s.entry(entryID)
	d.Warning = append(d.Warning, Finding{Rule: rule, Severity: SeverityWarning, Message: msg})
	s.ErrorCount++
}

// entry returns the record for id, creating it on first use.
func (s *Store) entry(id string) *EntryDiagnostics {
	if d, ok := s.entries[id]; ok {
		return d
	}
	d := &EntryDiagnostics{ID: id}
	s.entries[id] = d
	s.order = append(s.order, id)
	return d
}

// Entry returns the record for id if any finding was recorded for it.
func (s *Store) Entry(id string) (*EntryDiagnostics, bool) {
	d, ok := s.entries[id]
	return d, ok
}

// Entries returns the entry records in the order they were first created.
func (s *Store) Entries() []*EntryDiagnostics {
	out := make([]*EntryDiagnostics, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Findings returns every counted finding: general ones first, then per
// entry critical before warning.
func (s *Store) Findings() []Finding {
	var out []Finding
	for _, f := range s.General {
		if f.Severity != SeverityInfo {
			out = append(out, f)
		}
	}
	for _, d := range s.Entries() {
		out = append(out, d.Critical...)
		out = append(out, d.Warning...)
	}
	return out
}
