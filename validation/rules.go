package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/verifybib/source"
)

// RuleID identifies a rule in configuration, metrics and JSON output.
type RuleID string

// Entry rule IDs, in execution order.
const (
	RuleMissingComma       RuleID = "missing-comma"
	RuleUnescapedChars     RuleID = "unescaped-chars"
	RuleEscapableChars     RuleID = "escapable-chars"
	RuleDOIOrURLMissing    RuleID = "doi-url-missing"
	RuleDOIMalformed       RuleID = "doi-malformed"
	RuleDOITrailingStop    RuleID = "doi-trailing-stop"
	RuleArticlePages       RuleID = "article-pages-missing"
	RuleIncollectionFields RuleID = "incollection-fields"
	RuleTypeField          RuleID = "type-field"
	RuleAuthorAbbreviated  RuleID = "author-abbreviated"
	RuleTitleMissing       RuleID = "title-missing"
	RuleTitleBraces        RuleID = "title-braces"
	RuleDoubleBraces       RuleID = "double-braces"
)

// Document-level rule IDs. These cannot be disabled.
const (
	RuleParseFailure RuleID = "parse-failure"
	RuleInput        RuleID = "input"
)

// DefaultIgnoredBraceFields are the fields the double-braces rule skips.
var DefaultIgnoredBraceFields = []string{
	"pages", "volume", "number", "year", "date", "pubstate", "doi", "publisher", "address",
}

var (
	doiRe          = regexp.MustCompile(`^10.*?/[-._;()/:A-Za-z0-9]+$`)
	abbreviationRe = regexp.MustCompile(`(?i)et al|and others`)
	wrappedRe      = regexp.MustCompile(`^\{.*\}$`)

	// Whitespace includes \v, the separators \x1c-\x1f, NEL and every
	// Unicode space or line separator, not only ASCII \s.
	unescapedRe = regexp.MustCompile(`[\s\v\x1c-\x1f\p{Z}\x{85}](?:&|#|%)`)
	escapableRe = regexp.MustCompile(`[\s\v\x1c-\x1f\p{Z}\x{85}](?:\$|\^|_|~)`)
)

// matchEnd reports whether re matches s, letting a trailing '$' in re also
// match just before one final newline.
func matchEnd(re *regexp.Regexp, s string) bool {
	return re.MatchString(s) || re.MatchString(strings.TrimSuffix(s, "\n"))
}

// Check inspects one entry and appends findings to the store.
type Check func(e *source.Entry, s *Store)

// Rule is one entry check with the entry kinds it applies to.
type Rule struct {
	ID          RuleID
	Description string
	AppliesTo   func(EntryKind) bool
	Check       Check
}

// defaultRules returns the rule table in execution order.
func defaultRules(ignoredBraceFields []string) []Rule {
	ignored := make(map[string]bool, len(ignoredBraceFields))
	for _, f := range ignoredBraceFields {
		ignored[strings.ToLower(f)] = true
	}

	return []Rule{
		{RuleMissingComma, "Field lines ending in '}' must end with a comma", anyKind, checkMissingComma},
		{RuleUnescapedChars, "Fields must not contain unescaped &, # or %", anyKind, checkUnescapedChars},
		{RuleEscapableChars, "Fields containing $, ^, _ or ~ may need escaping", anyKind, checkEscapableChars},
		{RuleDOIOrURLMissing, "Articles need a DOI or URL", only(KindArticle), checkDOIOrURL},
		{RuleDOIMalformed, "Article DOIs must be a bare 10.x/... identifier", only(KindArticle), checkDOIFormat},
		{RuleDOITrailingStop, "Article DOIs must not end with a full stop", only(KindArticle), checkDOITrailingStop},
		{RuleArticlePages, "Articles need a page range", only(KindArticle), checkArticlePages},
		{RuleIncollectionFields, "Chapters need editor, booktitle, date, pages and publisher", only(KindIncollection), checkIncollection},
		{RuleTypeField, "Entries other than theses should not carry a type field", except(KindThesis), checkTypeField},
		{RuleAuthorAbbreviated, "Author and editor lists must not be abbreviated", anyKind, checkAuthorField},
		{RuleTitleMissing, "Entries need a title", anyKind, checkTitlePresent},
		{RuleTitleBraces, "Titles should not contain several {} groups", anyKind, checkTitleBraces},
		{RuleDoubleBraces, "Fields should not be wrapped in double curly braces", anyKind, doubleBracesCheck(ignored)},
	}
}

// checkMissingComma re-reads the raw entry line by line. The raw text is
// treated as newline terminated so that the last two lines are always the
// closing delimiter and the blank remainder.
func checkMissingComma(e *source.Entry, s *Store) {
	lines := strings.Split(e.Raw, "\n")
	if !strings.HasSuffix(e.Raw, "\n") {
		lines = append(lines, "")
	}
	if len(lines) <= 3 {
		return
	}
	for _, line := range lines[:len(lines)-2] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasSuffix(trimmed, ",") && strings.HasSuffix(trimmed, "}") {
			s.AddCritical(e.ID, RuleMissingComma, fmt.Sprintf(
				"The following line does not end with a comma (which leads to parsing errors): %s",
				strings.TrimRight(line, "\r")))
		}
	}
}

func checkUnescapedChars(e *source.Entry, s *Store) {
	for _, f := range e.Fields {
		if unescapedRe.MatchString(f.Value) {
			s.AddCritical(e.ID, RuleUnescapedChars, fmt.Sprintf(
				"%s field contains unescaped characters (& or # or %%). Please make sure to escape these characters using a backslash.",
				f.Key))
		}
	}
}

func checkEscapableChars(e *source.Entry, s *Store) {
	for _, f := range e.Fields {
		if escapableRe.MatchString(f.Value) {
			s.AddWarning(e.ID, RuleEscapableChars, fmt.Sprintf(
				"%s field contains characters that might need to be escaped ($ or ^ or _ or ~). Please check if this is correct.",
				f.Key))
		}
	}
}

func checkDOIOrURL(e *source.Entry, s *Store) {
	if !e.HasAny("doi", "url") {
		s.AddCritical(e.ID, RuleDOIOrURLMissing, "No DOI or URL could be found!")
	}
}

func checkDOIFormat(e *source.Entry, s *Store) {
	doi, ok := e.Get("doi")
	if ok && !matchEnd(doiRe, doi) {
		s.AddCritical(e.ID, RuleDOIMalformed, fmt.Sprintf("This entry seems to have malformatted DOI: %s.", doi))
	}
}

func checkDOITrailingStop(e *source.Entry, s *Store) {
	doi, ok := e.Get("doi")
	if ok && strings.HasSuffix(doi, ".") {
		s.AddCritical(e.ID, RuleDOITrailingStop, fmt.Sprintf(
			"This entries' DOI ends with a full stop, which might cause problems: %s", doi))
	}
}

func checkArticlePages(e *source.Entry, s *Store) {
	if !e.Has("pages") {
		s.AddCritical(e.ID, RuleArticlePages, "Article has no indicated page range. Please check if this is correct.")
	}
}

func checkIncollection(e *source.Entry, s *Store) {
	if !e.Has("editor") {
		s.AddCritical(e.ID, RuleIncollectionFields, "This chapter has no editors. Is that correct?")
	}
	if !e.Has("booktitle") {
		s.AddCritical(e.ID, RuleIncollectionFields, "This chapter has no book title.")
	}
	if !e.HasAny("year", "date", "pubstate") {
		s.AddCritical(e.ID, RuleIncollectionFields, "This chapter has no date of publication.")
	}
	if !e.Has("pages") {
		s.AddWarning(e.ID, RuleIncollectionFields, "This chapter has no indicated page range. Please check if this is correct.")
	}
	if !e.Has("publisher") {
		s.AddWarning(e.ID, RuleIncollectionFields, "This chapter has no publisher.")
	}
}

func checkTypeField(e *source.Entry, s *Store) {
	if e.Has("type") {
		s.AddWarning(e.ID, RuleTypeField, "This entry contains a type field, which should generally be avoided.")
	}
}

func checkAuthorField(e *source.Entry, s *Store) {
	if author, ok := e.Get("author"); ok && abbreviationRe.MatchString(author) {
		s.AddWarning(e.ID, RuleAuthorAbbreviated,
			"Author field contains 'et al' or 'and others'. Please avoid using these abbreviations and list all authors instead. Individual authors should be separated by 'and'.")
	}
	if editor, ok := e.Get("editor"); ok && abbreviationRe.MatchString(editor) {
		s.AddWarning(e.ID, RuleAuthorAbbreviated,
			"Editor field contains 'et al' or 'and others'. Please avoid using these abbreviations and list all editors instead. Individual editors should be separated by 'and'.")
	}
}

func checkTitlePresent(e *source.Entry, s *Store) {
	if !e.Has("title") {
		s.AddCritical(e.ID, RuleTitleMissing, "Entry has no title.")
	}
}

func checkTitleBraces(e *source.Entry, s *Store) {
	title, ok := e.Get("title")
	if ok && strings.Count(title, "{") > 1 {
		s.AddWarning(e.ID, RuleTitleBraces, "Found several {} groups in title. Please check if this is correct.")
	}
}

// doubleBracesCheck flags values that are still wrapped in a single brace
// group after the parser removed the outer delimiters. The shape match and
// the balance check on the interior are two separate steps: "{a} and {b}"
// matches the shape but its interior "a} and {b" is not balanced, so it is
// two groups rather than one redundant wrapper. A value ending in a
// newline matches the shape, but the newline stays part of the interior.
func doubleBracesCheck(ignored map[string]bool) Check {
	return func(e *source.Entry, s *Store) {
		for _, f := range e.Fields {
			if ignored[f.Key] || !matchEnd(wrappedRe, f.Value) {
				continue
			}
			if utf8.RuneCountInString(f.Value) < 4 || BracesBalanced(f.Value[1:len(f.Value)-1]) {
				s.AddCritical(e.ID, RuleDoubleBraces, fmt.Sprintf("%s field is wrapped in double curly braces.", f.Key))
			}
		}
	}
}
