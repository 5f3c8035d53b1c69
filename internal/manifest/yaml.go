package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlCodec handles YAML manifests such as pubspec.yaml. Keyed scalars are
// stored as JSON text: strings quoted, other scalars as their literal YAML
// value, so `version: 1.0` and `version: "1.0"` stay distinct and survive a
// round trip. List entries are stored as real JSON so their identities can
// be compared.
type yamlCodec struct{}

func (yamlCodec) decode(data []byte) ([]Item, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	var items []Item
	if err := walkYAML(doc.Content[0], nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func walkYAML(n *yaml.Node, path []string, items *[]Item) error {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}

	switch n.Kind {
	case yaml.MappingNode:
		if len(path) > 0 {
			*items = append(*items, Item{Kind: KindObject, Path: path})
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if err := walkYAML(n.Content[i+1], appendPath(path, key), items); err != nil {
				return err
			}
		}
		return nil

	case yaml.SequenceNode:
		if len(path) > 0 {
			*items = append(*items, Item{Kind: KindArray, Path: path})
		}
		for _, elem := range n.Content {
			var buf bytes.Buffer
			if err := yamlToJSON(&buf, elem); err != nil {
				return err
			}
			*items = append(*items, Item{
				Kind:  KindRegistration,
				Path:  path,
				Ident: identOf(buf.Bytes()),
				Value: buf.String(),
			})
		}
		return nil

	case yaml.ScalarNode:
		if len(path) == 0 {
			return fmt.Errorf("manifest root must be a mapping or a sequence")
		}
		*items = append(*items, Item{Kind: KindValue, Path: path, Value: yamlScalar(n)})
		return nil

	default:
		return fmt.Errorf("unsupported YAML node at %s", DisplayKey(path, ""))
	}
}

// yamlScalar renders a scalar node as canonical JSON-compatible text.
func yamlScalar(n *yaml.Node) string {
	switch n.ShortTag() {
	case "!!str", "!!binary", "!!timestamp":
		encoded, _ := json.Marshal(n.Value)
		return string(encoded)
	case "!!null":
		return "null"
	default:
		return n.Value
	}
}

// jsonScalar renders a scalar as valid JSON. Literals JSON does not share
// with YAML (.5, 0x1F, +1) are decoded and re-encoded; values JSON cannot
// hold at all (.inf, .nan) become strings.
func jsonScalar(n *yaml.Node) (string, error) {
	v := yamlScalar(n)
	if json.Valid([]byte(v)) {
		return v, nil
	}
	var decoded any
	if err := n.Decode(&decoded); err != nil {
		return "", fmt.Errorf("line %d: %w", n.Line, err)
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		encoded, _ = json.Marshal(n.Value)
	}
	return string(encoded), nil
}

// yamlToJSON writes n as compact JSON, preserving mapping order.
func yamlToJSON(buf *bytes.Buffer, n *yaml.Node) error {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(n.Content[i].Value)
			buf.Write(key)
			buf.WriteByte(':')
			if err := yamlToJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, elem := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := yamlToJSON(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		v, err := jsonScalar(n)
		if err != nil {
			return err
		}
		buf.WriteString(v)
	default:
		return fmt.Errorf("unsupported YAML node kind %d", n.Kind)
	}
	return nil
}

func (yamlCodec) encode(items []Item) ([]byte, error) {
	root, err := buildTree(items)
	if err != nil {
		return nil, err
	}

	doc, err := toYAML(root, 0, "")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toYAML(n *node, depth int, name string) (*yaml.Node, error) {
	switch n.kind {
	case KindObject:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range n.orderedKeys(depth, name) {
			child, err := toYAML(n.fields[key], depth+1, key)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, child)
		}
		return out, nil
	case KindArray:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range n.elems {
			child, err := jsonToYAML(elem)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, child)
		}
		return out, nil
	default:
		return scalarToYAML(n.value)
	}
}

// scalarToYAML turns canonical scalar text back into a YAML scalar.
func scalarToYAML(v string) (*yaml.Node, error) {
	if strings.HasPrefix(v, `"`) {
		var s string
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			return nil, err
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}, nil
	}
	if v == "null" {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: ""}, nil
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}, nil
}

// jsonToYAML parses a canonical list entry (JSON is a YAML subset) and
// drops flow styling so entries print in block style.
func jsonToYAML(v string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(v), &doc); err != nil {
		return nil, err
	}
	n := doc.Content[0]
	clearStyle(n)
	return n, nil
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
