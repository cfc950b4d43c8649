package validation

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/verifybib/source"
)

// newEntry builds an entry from key/value pairs with a single-line raw
// text, so the missing-comma rule stays quiet unless a test sets Raw.
func newEntry(typ string, kv ...string) *source.Entry {
	e := &source.Entry{ID: "e", Type: typ}
	parts := []string{"e"}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Fields = append(e.Fields, source.Field{Key: kv[i], Value: kv[i+1]})
		parts = append(parts, fmt.Sprintf("%s = {%s}", kv[i], kv[i+1]))
	}
	e.Raw = fmt.Sprintf("@%s{%s}\n", typ, strings.Join(parts, ", "))
	return e
}

func newTestValidator(t *testing.T, opts Options) *Validator {
	t.Helper()
	v, err := NewValidator(opts, nil)
	require.NoError(t, err)
	return v
}

func fieldKeys(e *source.Entry) []string {
	var keys []string
	for _, f := range e.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

func ruleIDs(findings []Finding) []RuleID {
	var ids []RuleID
	for _, f := range findings {
		ids = append(ids, f.Rule)
	}
	return ids
}

func TestRules(t *testing.T) {
	tests := []struct {
		name         string
		entry        *source.Entry
		wantCritical []RuleID
		wantWarning  []RuleID
	}{
		{
			name:  "clean misc entry",
			entry: newEntry("misc", "title", "T"),
		},
		{
			name:         "missing title",
			entry:        newEntry("misc"),
			wantCritical: []RuleID{RuleTitleMissing},
		},
		{
			name:  "article with doi and pages",
			entry: newEntry("article", "title", "T", "doi", "10.1000/xyz123", "pages", "1--2"),
		},
		{
			name:  "article with url only",
			entry: newEntry("Article", "title", "T", "url", "https://example.org", "pages", "1--2"),
		},
		{
			name:         "article without doi or url",
			entry:        newEntry("article", "title", "T", "pages", "1--2"),
			wantCritical: []RuleID{RuleDOIOrURLMissing},
		},
		{
			name:         "article with doi as url",
			entry:        newEntry("article", "title", "T", "doi", "https://doi.org/10.1/abc", "pages", "1"),
			wantCritical: []RuleID{RuleDOIMalformed},
		},
		{
			name:         "article doi ending with full stop",
			entry:        newEntry("article", "title", "T", "doi", "10.1000/abc.", "pages", "1"),
			wantCritical: []RuleID{RuleDOITrailingStop},
		},
		{
			name:         "empty doi is malformed",
			entry:        newEntry("article", "title", "T", "doi", "", "pages", "1"),
			wantCritical: []RuleID{RuleDOIMalformed},
		},
		{
			name:         "article without pages",
			entry:        newEntry("article", "title", "T", "doi", "10.1000/abc"),
			wantCritical: []RuleID{RuleArticlePages},
		},
		{
			name:  "doi rules only apply to articles",
			entry: newEntry("book", "title", "T", "doi", "not a doi."),
		},
		{
			name:         "incomplete incollection",
			entry:        newEntry("incollection", "title", "T"),
			wantCritical: []RuleID{RuleIncollectionFields, RuleIncollectionFields, RuleIncollectionFields},
			wantWarning:  []RuleID{RuleIncollectionFields, RuleIncollectionFields},
		},
		{
			name: "complete incollection",
			entry: newEntry("InCollection", "title", "T", "editor", "E", "booktitle", "B",
				"date", "2020", "pages", "1--9", "publisher", "P"),
		},
		{
			name:  "incollection dated by pubstate",
			entry: newEntry("incollection", "title", "T", "editor", "E", "booktitle", "B", "pubstate", "forthcoming", "pages", "1", "publisher", "P"),
		},
		{
			name:        "type field",
			entry:       newEntry("misc", "title", "T", "type", "Report"),
			wantWarning: []RuleID{RuleTypeField},
		},
		{
			name:  "type field allowed on thesis",
			entry: newEntry("thesis", "title", "T", "type", "PhD thesis"),
		},
		{
			name:        "author and others",
			entry:       newEntry("misc", "title", "T", "author", "Smith, J. and Others"),
			wantWarning: []RuleID{RuleAuthorAbbreviated},
		},
		{
			name:        "author and editor et al",
			entry:       newEntry("misc", "title", "T", "author", "Smith et al.", "editor", "Doe ET AL"),
			wantWarning: []RuleID{RuleAuthorAbbreviated, RuleAuthorAbbreviated},
		},
		{
			name:        "several brace groups in title",
			entry:       newEntry("misc", "title", "Going {n}owhere: {A} journey"),
			wantWarning: []RuleID{RuleTitleBraces},
		},
		{
			name:  "one brace group in title",
			entry: newEntry("misc", "title", "About {NASA}"),
		},
		{
			name:         "double wrapped title",
			entry:        newEntry("misc", "title", "{Whole Title}"),
			wantCritical: []RuleID{RuleDoubleBraces},
		},
		{
			name:         "short double wrapped value",
			entry:        newEntry("misc", "title", "T", "note", "{}"),
			wantCritical: []RuleID{RuleDoubleBraces},
		},
		{
			name:        "two groups are not a wrapper",
			entry:       newEntry("misc", "title", "{A} and {B}"),
			wantWarning: []RuleID{RuleTitleBraces},
		},
		{
			name:  "ignored field may be wrapped",
			entry: newEntry("misc", "title", "T", "publisher", "{ACM}"),
		},
		{
			name:         "unescaped ampersand",
			entry:        newEntry("misc", "title", "Q & A"),
			wantCritical: []RuleID{RuleUnescapedChars},
		},
		{
			name:         "unescaped percent and hash in two fields",
			entry:        newEntry("misc", "title", "T", "note", "50 %", "howpublished", "issue #4"),
			wantCritical: []RuleID{RuleUnescapedChars, RuleUnescapedChars},
		},
		{
			name:  "escaped ampersand",
			entry: newEntry("misc", "title", `R\&D and more`),
		},
		{
			name:        "escapable dollar",
			entry:       newEntry("misc", "title", "T", "note", "costs $5"),
			wantWarning: []RuleID{RuleEscapableChars},
		},
		{
			name:        "escapable tilde",
			entry:       newEntry("misc", "title", "T", "url", "https://example.org/ ~user"),
			wantWarning: []RuleID{RuleEscapableChars},
		},
	}

	v := newTestValidator(t, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			v.CheckEntry(tt.entry, s)

			d, ok := s.Entry(tt.entry.ID)
			if len(tt.wantCritical) == 0 && len(tt.wantWarning) == 0 {
				assert.False(t, ok, "unexpected findings: %+v", d)
				assert.Equal(t, 0, s.ErrorCount)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantCritical, ruleIDs(d.Critical))
			assert.Equal(t, tt.wantWarning, ruleIDs(d.Warning))
			assert.Equal(t, len(tt.wantCritical)+len(tt.wantWarning), s.ErrorCount)
		})
	}
}

func TestRules_Messages(t *testing.T) {
	v := newTestValidator(t, Options{})

	t.Run("doi", func(t *testing.T) {
		s := NewStore()
		v.CheckEntry(newEntry("article", "title", "T", "doi", "doi:10.1/x.", "pages", "1"), s)
		d, _ := s.Entry("e")
		require.Len(t, d.Critical, 2)
		assert.Equal(t, "This entry seems to have malformatted DOI: doi:10.1/x..", d.Critical[0].Message)
		assert.Equal(t, "This entries' DOI ends with a full stop, which might cause problems: doi:10.1/x.", d.Critical[1].Message)
	})

	t.Run("field name in message", func(t *testing.T) {
		s := NewStore()
		v.CheckEntry(newEntry("misc", "title", "T", "Journal", "{Nature}"), s)
		d, _ := s.Entry("e")
		require.Len(t, d.Critical, 1)
		assert.Equal(t, "journal field is wrapped in double curly braces.", d.Critical[0].Message)
	})
}

func TestMissingComma(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "last field without comma and no trailing newline",
			raw:  "@article{x,\n  title={T},\n  author={A}\n}",
			want: []string{"  author={A}"},
		},
		{
			name: "same entry with trailing newline",
			raw:  "@article{x,\n  title={T},\n  author={A}\n}\n",
			want: []string{"  author={A}"},
		},
		{
			name: "missing comma in the middle",
			raw:  "@misc{x,\n\ttitle={T}\n\tyear={2020},\n}\n",
			want: []string{"\ttitle={T}"},
		},
		{
			name: "all lines terminated",
			raw:  "@misc{x,\n  title={T},\n  year={2020},\n}\n",
		},
		{
			name: "lines not ending in a brace are ignored",
			raw:  "@misc{x,\n  year = 2020\n  title={T},\n}\n",
		},
		{
			name: "blank lines are skipped",
			raw:  "@misc{x,\n\n   \n  title={T},\n}\n",
		},
		{
			name: "short entries are not inspected",
			raw:  "@misc{x,\n  title={T}}\n",
		},
		{
			name: "windows line endings",
			raw:  "@misc{x,\r\n  title={T}\r\n  year={1},\r\n}\r\n",
			want: []string{"  title={T}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			checkMissingComma(&source.Entry{ID: "x", Raw: tt.raw}, s)

			var got []string
			if d, ok := s.Entry("x"); ok {
				for _, f := range d.Critical {
					assert.Equal(t, RuleMissingComma, f.Rule)
					got = append(got, strings.TrimPrefix(f.Message,
						"The following line does not end with a comma (which leads to parsing errors): "))
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDoubleBraces_NeverFiresOnIgnoredFields(t *testing.T) {
	v := newTestValidator(t, Options{})
	values := []string{"{}", "{1}", "{12--34}", "{{x}}", "{Springer {Verlag}}", "{a} {b}"}

	for _, field := range DefaultIgnoredBraceFields {
		for _, value := range values {
			s := NewStore()
			v.CheckEntry(newEntry("misc", "title", "T", field, value), s)
			if d, ok := s.Entry("e"); ok {
				assert.NotContains(t, ruleIDs(d.Critical), RuleDoubleBraces, "%s = %s", field, value)
			}
		}
	}
}

func TestDoubleBraces_CustomIgnoredFields(t *testing.T) {
	v := newTestValidator(t, Options{IgnoredBraceFields: []string{"Title"}})

	s := NewStore()
	v.CheckEntry(newEntry("misc", "title", "{Whole}", "pages", "{12}"), s)

	d, ok := s.Entry("e")
	require.True(t, ok)
	assert.Equal(t, []RuleID{RuleDoubleBraces}, ruleIDs(d.Critical))
	assert.Equal(t, "pages field is wrapped in double curly braces.", d.Critical[0].Message)
}

func TestCharacterRules_UnicodeWhitespace(t *testing.T) {
	tests := []struct {
		name          string
		value         string
		wantUnescaped bool
		wantEscapable bool
	}{
		{"no-break space before ampersand", "Tom\u00a0& Jerry", true, false},
		{"vertical tab before ampersand", "a\v& b", true, false},
		{"thin space before tilde", "x\u2009~y", false, true},
		{"next line before percent", "50\u0085% off", true, false},
		{"line separator before dollar", "costs\u2028$5", false, true},
		{"unit separator before hash", "no\x1f#1", true, false},
		{"escaped ampersand", `Tom \& Jerry`, false, false},
		{"zero width space is not whitespace", "x\u200b~y", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &source.Entry{ID: "e", Fields: []source.Field{{Key: "note", Value: tt.value}}}

			s := NewStore()
			checkUnescapedChars(e, s)
			checkEscapableChars(e, s)

			d, _ := s.Entry("e")
			var critical, warning []RuleID
			if d != nil {
				critical, warning = ruleIDs(d.Critical), ruleIDs(d.Warning)
			}
			assert.Equal(t, tt.wantUnescaped, slices.Contains(critical, RuleUnescapedChars))
			assert.Equal(t, tt.wantEscapable, slices.Contains(warning, RuleEscapableChars))
		})
	}
}

func TestEndAnchoredRules_TrailingNewline(t *testing.T) {
	t.Run("doi followed by a newline is well formed", func(t *testing.T) {
		s := NewStore()
		checkDOIFormat(&source.Entry{ID: "e", Fields: []source.Field{{Key: "doi", Value: "10.1/abc\n"}}}, s)
		assert.Equal(t, 0, s.ErrorCount)
	})

	t.Run("only one newline is allowed", func(t *testing.T) {
		s := NewStore()
		checkDOIFormat(&source.Entry{ID: "e", Fields: []source.Field{{Key: "doi", Value: "10.1/abc\n\n"}}}, s)
		assert.Equal(t, 1, s.ErrorCount)
	})

	check := doubleBracesCheck(map[string]bool{})
	tests := []struct {
		value string
		want  bool
	}{
		{"{}\n", true},
		{"{ab}\n", false},
		{"{ab}\n\n", false},
		{"{ab}", true},
	}
	for _, tt := range tests {
		s := NewStore()
		check(&source.Entry{ID: "e", Fields: []source.Field{{Key: "note", Value: tt.value}}}, s)
		assert.Equal(t, tt.want, s.ErrorCount == 1, "%q", tt.value)
	}
}
