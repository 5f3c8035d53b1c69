// Package placeholder recognizes and replaces placeholder tokens in template
// paths and content.
//
// A token is a name wrapped in double braces, optionally followed by a chain
// of case filters:
//
//	{{projectName}}
//	{{ projectName | pascal }}
//	{{projectName|snake|upper}}
//
// Anything else between double braces is left untouched, so JSX object
// literals such as style={{ flex: 1 }} pass through as opaque content.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)((?:\s*\|\s*[A-Za-z]+)*)\s*\}\}`)

// Token is one placeholder occurrence.
type Token struct {
	Raw     string   // Exact text, e.g. "{{ name | pascal }}"
	Name    string   // Placeholder name, e.g. "name"
	Filters []string // Filters in application order, e.g. ["pascal"]
}

// UnresolvedError reports a token whose name has no value.
type UnresolvedError struct {
	Token string
	Name  string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholder %s", e.Token)
}

// UnknownFilterError reports a filter name that is not registered.
type UnknownFilterError struct {
	Token  string
	Filter string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter %q in %s", e.Filter, e.Token)
}

// Scan returns every token in s in order of appearance.
func Scan(s string) []Token {
	matches := tokenPattern.FindAllStringSubmatch(s, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, Token{
			Raw:     m[0],
			Name:    m[1],
			Filters: parseFilters(m[2]),
		})
	}
	return tokens
}

// Names returns the distinct placeholder names referenced in s, sorted.
func Names(s string) []string {
	seen := make(map[string]bool)
	for _, tok := range Scan(s) {
		seen[tok.Name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replace substitutes every token in s using lookup. The first token whose
// name lookup cannot resolve aborts the replacement with an
// *UnresolvedError; nothing is left half-substituted in the result.
func Replace(s string, lookup func(name string) (string, bool)) (string, error) {
	locs := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range locs {
		raw := s[loc[0]:loc[1]]
		name := s[loc[2]:loc[3]]

		value, ok := lookup(name)
		if !ok {
			return "", &UnresolvedError{Token: raw, Name: name}
		}

		value, err := ApplyFilters(value, parseFilters(s[loc[4]:loc[5]]))
		if err != nil {
			if fe, ok := err.(*UnknownFilterError); ok {
				fe.Token = raw
			}
			return "", err
		}

		b.WriteString(s[last:loc[0]])
		b.WriteString(value)
		last = loc[1]
	}
	b.WriteString(s[last:])

	return b.String(), nil
}

// ApplyFilters runs value through the named filters in order.
func ApplyFilters(value string, filters []string) (string, error) {
	for _, name := range filters {
		fn, ok := filterFuncs[name]
		if !ok {
			return "", &UnknownFilterError{Filter: name}
		}
		value = fn(value)
	}
	return value, nil
}

// parseFilters splits "| pascal | upper" into ["pascal", "upper"].
func parseFilters(chain string) []string {
	if strings.TrimSpace(chain) == "" {
		return nil
	}

	var filters []string
	for _, part := range strings.Split(chain, "|") {
		if part = strings.TrimSpace(part); part != "" {
			filters = append(filters, part)
		}
	}
	return filters
}
