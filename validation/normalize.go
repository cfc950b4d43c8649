package validation

import (
	"strings"

	"github.com/c360studio/verifybib/source"
)

// NormalizeFieldKeys lowercases every field key of e in place. Order and
// values are preserved. Rules look fields up by lowercase key, so this must
// run before any of them.
func NormalizeFieldKeys(e *source.Entry) {
	for i := range e.Fields {
		e.Fields[i].Key = strings.ToLower(e.Fields[i].Key)
	}
}

// BracesBalanced reports whether every '}' in s closes an earlier '{' and
// no '{' is left open.
func BracesBalanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return false
			}
			depth--
		}
	}
	return depth == 0
}
