package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/verifybib/source"
)

// parseEntry reads "key, name = value, ..." from an entry body.
func parseEntry(blk block, macros map[string]string) (*source.Entry, error) {
	body := blk.body
	comma := strings.IndexByte(body, ',')
	keyPart := body
	rest := ""
	if comma >= 0 {
		keyPart = body[:comma]
		rest = body[comma+1:]
	}

	id := strings.TrimSpace(keyPart)
	if id == "" {
		return nil, errors.New("missing citation key")
	}
	if strings.ContainsAny(id, " \t\r\n={}\"") {
		return nil, fmt.Errorf("invalid citation key %q", id)
	}

	fields, err := parseFields(rest, macros)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", id, err)
	}

	return &source.Entry{
		ID:     id,
		Type:   blk.kind,
		Fields: fields,
		Raw:    blk.raw,
	}, nil
}

// parseStringDef reads the body of an @string block.
func parseStringDef(body string, macros map[string]string) (string, string, error) {
	fields, err := parseFields(body, macros)
	if err != nil {
		return "", "", fmt.Errorf("@string: %w", err)
	}
	if len(fields) != 1 {
		return "", "", fmt.Errorf("@string: expected one definition, got %d", len(fields))
	}
	return fields[0].Key, fields[0].Value, nil
}

// parseFields reads a comma separated list of "name = value" pairs.
// A missing comma between two pairs is tolerated so that the line can be
// reported by the validation rules instead of discarding the entry.
func parseFields(s string, macros map[string]string) ([]source.Field, error) {
	var fields []source.Field
	seen := make(map[string]bool)

	i := skipSpace(s, 0)
	for i < len(s) {
		nameStart := i
		for i < len(s) && isIdentChar(s[i]) {
			i++
		}
		name := s[nameStart:i]
		if name == "" {
			return nil, fmt.Errorf("unexpected %q where a field name was expected", s[i])
		}

		i = skipSpace(s, i)
		if i >= len(s) || s[i] != '=' {
			return nil, fmt.Errorf("field %s: expected '='", name)
		}
		i = skipSpace(s, i+1)

		value, next, err := parseValue(s, i, macros)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		i = skipSpace(s, next)

		lower := strings.ToLower(name)
		if seen[lower] {
			return nil, fmt.Errorf("duplicate field %q", name)
		}
		seen[lower] = true
		fields = append(fields, source.Field{Key: name, Value: value})

		if i < len(s) && s[i] == ',' {
			i = skipSpace(s, i+1)
			continue
		}
		if i < len(s) && !isIdentChar(s[i]) {
			return nil, fmt.Errorf("field %s: unexpected %q after value", name, s[i])
		}
	}

	return fields, nil
}

// parseValue reads one value made of parts joined by '#'. Macros are
// resolved and one level of enclosing braces or quotes is removed from each
// part. It returns the value and the offset just past it.
func parseValue(s string, i int, macros map[string]string) (string, int, error) {
	var sb strings.Builder
	for {
		if i >= len(s) {
			return "", i, errors.New("missing value")
		}

		var part string
		switch c := s[i]; {
		case c == '{':
			end, err := matchBrace(s, i)
			if err != nil {
				return "", i, err
			}
			part = s[i+1 : end]
			i = end + 1
		case c == '"':
			end, err := matchQuote(s, i)
			if err != nil {
				return "", i, err
			}
			part = s[i+1 : end]
			i = end + 1
		case isIdentChar(c):
			start := i
			for i < len(s) && isIdentChar(s[i]) {
				i++
			}
			word := s[start:i]
			if resolved, ok := macros[strings.ToLower(word)]; ok {
				part = resolved
			} else {
				part = word
			}
		default:
			return "", i, fmt.Errorf("unexpected %q at start of value", c)
		}
		sb.WriteString(part)

		j := skipSpace(s, i)
		if j < len(s) && s[j] == '#' {
			i = skipSpace(s, j+1)
			continue
		}
		return sb.String(), i, nil
	}
}

// matchBrace returns the offset of the '}' matching the '{' at open.
func matchBrace(s string, open int) (int, error) {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return -1, errors.New("unbalanced braces in value")
}

// matchQuote returns the offset of the '"' closing the quote at open.
// Quotes nested inside braces do not terminate the value.
func matchQuote(s string, open int) (int, error) {
	depth := 0
	for j := open + 1; j < len(s); j++ {
		switch s[j] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return -1, errors.New("unbalanced braces in quoted value")
			}
			depth--
		case '"':
			if depth == 0 {
				return j, nil
			}
		}
	}
	return -1, errors.New("unterminated quoted value")
}
