package validation

import "strings"

// EntryKind is the closed set of entry-type categories that select rules.
type EntryKind int

// Entry kinds. Every type tag without a dedicated rule set maps to KindOther.
const (
	KindOther EntryKind = iota
	KindArticle
	KindIncollection
	KindThesis
)

// kinds lists every EntryKind, used to build the per-kind rule sets.
var kinds = []EntryKind{KindOther, KindArticle, KindIncollection, KindThesis}

// KindOf maps an entry type tag to its kind, ignoring case.
func KindOf(entryType string) EntryKind {
	switch strings.ToLower(strings.TrimSpace(entryType)) {
	case "article":
		return KindArticle
	case "incollection":
		return KindIncollection
	case "thesis":
		return KindThesis
	default:
		return KindOther
	}
}

func (k EntryKind) String() string {
	switch k {
	case KindArticle:
		return "article"
	case KindIncollection:
		return "incollection"
	case KindThesis:
		return "thesis"
	default:
		return "other"
	}
}

// anyKind applies to every entry.
func anyKind(EntryKind) bool { return true }

// only returns a predicate matching exactly k.
func only(k EntryKind) func(EntryKind) bool {
	return func(got EntryKind) bool { return got == k }
}

// except returns a predicate matching everything but k.
func except(k EntryKind) func(EntryKind) bool {
	return func(got EntryKind) bool { return got != k }
}
