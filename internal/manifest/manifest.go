// Package manifest parses mergeable manifest files into fragments, merges
// fragments contributed by a template and its add-ons, and serializes the
// merged result.
//
// # Model
//
// A fragment is an ordered list of items. A value item maps a merge key
// (a path such as dependencies › react) to a scalar. A registration item is
// one element of an ordered list (an array in package.json, a line in a
// barrel file). Container items record that an object or array exists at a
// path, so empty sections survive a round trip.
//
// # Formats
//
//   - json: package.json, app.json, tsconfig.json (comments and trailing
//     commas accepted)
//   - yaml: pubspec.yaml and similar
//   - env: KEY=VALUE lines; comment lines are registrations
//   - lines: every non-blank line is a registration (.gitignore, barrels)
//
// # Merging
//
// Merge never picks a winner. Identical values collapse; differing values
// for one key are a *ConflictError listing every competing value.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects the parser and serializer for a manifest file.
type Format string

const (
	JSON  Format = "json"
	YAML  Format = "yaml"
	Env   Format = "env"
	Lines Format = "lines"
)

// ParseFormat validates a format name from a template descriptor.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := codecs[f]; !ok {
		return "", fmt.Errorf("unknown manifest format %q (supported: json, yaml, env, lines)", s)
	}
	return f, nil
}

// Kind classifies an Item.
type Kind int

const (
	KindValue Kind = iota + 1
	KindRegistration
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindRegistration:
		return "registration"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Item is one merge-relevant element of a manifest, in document order.
//
// For KindValue, Path is the merge key and Value the canonical scalar.
// For KindRegistration, Path is the list the entry belongs to, Value the
// canonical entry and Ident its identity key ("" when the entry has none).
// For KindObject and KindArray, Path is the container itself.
type Item struct {
	Kind  Kind
	Path  []string
	Ident string
	Value string
}

// Fragment is the parsed, merge-ready form of one manifest file.
type Fragment struct {
	Origin string // where the fragment came from, e.g. "nestjs+auth:package.json"
	Format Format
	Items  []Item
}

// Parse decodes data in the given format into a fragment.
func Parse(format Format, origin string, data []byte) (*Fragment, error) {
	c, ok := codecs[format]
	if !ok {
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}

	items, err := c.decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s manifest %s: %w", format, origin, err)
	}

	return &Fragment{Origin: origin, Format: format, Items: items}, nil
}

// Manifest is the merged union of one or more fragments.
type Manifest struct {
	Path   string // output path relative to the project root
	Format Format
	Items  []Item
}

// Encode serializes the manifest deterministically.
func (m *Manifest) Encode() ([]byte, error) {
	c, ok := codecs[m.Format]
	if !ok {
		return nil, fmt.Errorf("unknown manifest format %q", m.Format)
	}
	return c.encode(m.Items)
}

// Get returns the canonical value stored at path.
func (m *Manifest) Get(path ...string) (string, bool) {
	for _, it := range m.Items {
		if it.Kind == KindValue && pathEqual(it.Path, path) {
			return it.Value, true
		}
	}
	return "", false
}

// Strings returns the values directly under section, keyed by their last
// path element. JSON and YAML string values are unquoted, so
// Strings("dependencies") yields {"react": "^18.2.0"}.
func (m *Manifest) Strings(section ...string) map[string]string {
	out := make(map[string]string)
	for _, it := range m.Items {
		if it.Kind != KindValue || len(it.Path) != len(section)+1 || !pathEqual(it.Path[:len(section)], section) {
			continue
		}
		out[it.Path[len(section)]] = m.scalar(it.Value)
	}
	return out
}

// Registrations returns the entries of the list at section in merged order.
func (m *Manifest) Registrations(section ...string) []string {
	var out []string
	for _, it := range m.Items {
		if it.Kind == KindRegistration && pathEqual(it.Path, section) {
			out = append(out, m.scalar(it.Value))
		}
	}
	return out
}

func (m *Manifest) scalar(v string) string {
	if m.Format != JSON && m.Format != YAML {
		return v
	}
	var s string
	if strings.HasPrefix(v, `"`) && json.Unmarshal([]byte(v), &s) == nil {
		return s
	}
	return v
}

// DisplayKey renders a merge key for messages: dependencies.react,
// expo.plugins[expo-font].
func DisplayKey(path []string, ident string) string {
	key := strings.Join(path, ".")
	if key == "" {
		key = "(root)"
	}
	if ident != "" {
		key += "[" + ident + "]"
	}
	return key
}

type codec interface {
	decode(data []byte) ([]Item, error)
	encode(items []Item) ([]byte, error)
}

var codecs = map[Format]codec{
	JSON:  jsonCodec{},
	YAML:  yamlCodec{},
	Env:   envCodec{},
	Lines: linesCodec{},
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pathKey joins a path with a separator that cannot occur in JSON keys
// produced by templates, for use as a map key.
func pathKey(path []string) string {
	return strings.Join(path, "\x1f")
}
