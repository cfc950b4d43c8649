package validation

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/c360studio/verifybib/source"
	"github.com/c360studio/verifybib/source/parser"
)

// Options tunes a Validator.
type Options struct {
	// Disabled lists entry rule IDs that never run.
	Disabled []RuleID

	// IgnoredBraceFields overrides DefaultIgnoredBraceFields when non-nil.
	IgnoredBraceFields []string
}

// Validator dispatches the rule table over a parsed document.
type Validator struct {
	rules    []Rule
	disabled map[RuleID]bool
	sets     map[EntryKind][]Rule
	registry *parser.Registry
	logger   *slog.Logger
}

// NewValidator builds the per-kind rule sets. It fails on an unknown or
// document-level rule ID in opts.Disabled.
func NewValidator(opts Options, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ignored := opts.IgnoredBraceFields
	if ignored == nil {
		ignored = DefaultIgnoredBraceFields
	}

	v := &Validator{
		rules:    defaultRules(ignored),
		disabled: make(map[RuleID]bool),
		sets:     make(map[EntryKind][]Rule, len(kinds)),
		registry: parser.DefaultRegistry,
		logger:   logger,
	}

	known := make(map[RuleID]bool, len(v.rules))
	for _, r := range v.rules {
		known[r.ID] = true
	}
	for _, id := range opts.Disabled {
		if !known[id] {
			return nil, fmt.Errorf("unknown or non-disableable rule %q", id)
		}
		v.disabled[id] = true
	}

	for _, k := range kinds {
		for _, r := range v.rules {
			if r.AppliesTo(k) && !v.disabled[r.ID] {
				v.sets[k] = append(v.sets[k], r)
			}
		}
	}

	return v, nil
}

// WithRegistry sets the parser registry used by CheckFile.
func (v *Validator) WithRegistry(r *parser.Registry) *Validator {
	v.registry = r
	return v
}

// Rules returns the full rule table in execution order, disabled rules
// included.
func (v *Validator) Rules() []Rule {
	return v.rules
}

// Disabled reports whether a rule was switched off.
func (v *Validator) Disabled(id RuleID) bool {
	return v.disabled[id]
}

// RulesFor returns the enabled rules applied to entries of kind k, in
// execution order.
func (v *Validator) RulesFor(k EntryKind) []Rule {
	return v.sets[k]
}

// Run validates every entry and failed block of doc into store.
func (v *Validator) Run(doc *source.Document, store *Store) {
	v.CheckFailedBlocks(doc.FailedBlocks, store)
	for _, e := range doc.Entries {
		v.CheckEntry(e, store)
	}

	v.logger.Debug("Validation pass complete",
		slog.String("path", doc.Path),
		slog.Int("entries", len(doc.Entries)),
		slog.Int("failed_blocks", len(doc.FailedBlocks)),
		slog.Int("errors", store.ErrorCount))
}

// CheckEntry normalizes e and runs the rules of its kind.
func (v *Validator) CheckEntry(e *source.Entry, store *Store) {
	NormalizeFieldKeys(e)
	kind := KindOf(e.TypeName())
	for _, r := range v.sets[kind] {
		r.Check(e, store)
	}
}

// CheckFailedBlocks reports each failed block as a general finding, or a
// single success notice when there are none.
func (v *Validator) CheckFailedBlocks(blocks []source.FailedBlock, store *Store) {
	if len(blocks) == 0 {
		store.AddNotice("All blocks parsed successfully.")
		return
	}
	for _, b := range blocks {
		store.AddGeneral(RuleParseFailure, fmt.Sprintf("Parsing error occurred here: %s", b.Raw))
		v.logger.Debug("Failed block", slog.Int("line", b.Line), slog.String("reason", b.Reason))
	}
}

// CheckFile reads, parses and validates the file at path into a new store.
// A missing file, a parse error or a document without entries each yield
// a store holding one general finding, and the rules are not run.
func (v *Validator) CheckFile(path string) (*Store, *source.Document) {
	store := NewStore()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		store.AddGeneral(RuleInput, fmt.Sprintf("%s is not a file.", path))
		return store, nil
	}

	doc, err := v.registry.ParseFile(path)
	if err != nil {
		v.logger.Warn("Parse failed", slog.String("path", path), slog.String("error", err.Error()))
		store.AddGeneral(RuleInput, "No valid bibtex file!")
		return store, nil
	}

	if len(doc.Entries) == 0 {
		store.AddGeneral(RuleInput, fmt.Sprintf("No bibliographical entries found in %s.", path))
		return store, doc
	}

	v.Run(doc, store)
	return store, doc
}
