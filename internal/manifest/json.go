package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// jsonCodec handles package.json-style manifests. Input may be JSONC
// (comments, trailing commas); output is plain JSON indented with two
// spaces. Scalars keep their literal text, so "1.0" never becomes 1.
type jsonCodec struct{}

func (jsonCodec) decode(data []byte) ([]Item, error) {
	clean := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(clean)) == 0 {
		return nil, nil
	}
	if !json.Valid(clean) {
		return nil, fmt.Errorf("invalid JSON")
	}

	var items []Item
	if err := walkJSON(json.RawMessage(clean), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// walkJSON flattens raw into items, keeping object key order.
func walkJSON(raw json.RawMessage, path []string, items *[]Item) error {
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '{':
		if len(path) > 0 {
			*items = append(*items, Item{Kind: KindObject, Path: path})
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			name, ok := tok.(string)
			if !ok {
				return fmt.Errorf("unexpected object key %v", tok)
			}
			var child json.RawMessage
			if err := dec.Decode(&child); err != nil {
				return fmt.Errorf("decoding %s: %w", DisplayKey(appendPath(path, name), ""), err)
			}
			if err := walkJSON(child, appendPath(path, name), items); err != nil {
				return err
			}
		}
		return nil

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return err
		}
		if len(path) > 0 {
			*items = append(*items, Item{Kind: KindArray, Path: path})
		}
		for _, elem := range elems {
			var buf bytes.Buffer
			if err := json.Compact(&buf, elem); err != nil {
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

	default:
		if len(path) == 0 {
			return fmt.Errorf("manifest root must be an object or a list")
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		*items = append(*items, Item{Kind: KindValue, Path: path, Value: buf.String()})
		return nil
	}
}

// identOf derives the identity key of a list entry: the "name" or "id" of
// an object, or the leading string of a tuple such as
// ["expo-font", {"fonts": []}]. Plain scalars have no identity beyond their
// own value.
func identOf(elem []byte) string {
	switch elem[0] {
	case '{':
		var obj map[string]json.RawMessage
		if json.Unmarshal(elem, &obj) != nil {
			return ""
		}
		for _, field := range []string{"name", "id"} {
			var s string
			if raw, ok := obj[field]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	case '[':
		var tuple []json.RawMessage
		if json.Unmarshal(elem, &tuple) != nil || len(tuple) == 0 {
			return ""
		}
		var s string
		if json.Unmarshal(tuple[0], &s) == nil {
			return s
		}
	}
	return ""
}

func (jsonCodec) encode(items []Item) ([]byte, error) {
	root, err := buildTree(items)
	if err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := writeJSON(&compact, root, 0, ""); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("formatting manifest: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, n *node, depth int, name string) error {
	switch n.kind {
	case KindObject:
		buf.WriteByte('{')
		for i, key := range n.orderedKeys(depth, name) {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodedKey, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(encodedKey)
			buf.WriteByte(':')
			if err := writeJSON(buf, n.fields[key], depth+1, key); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, elem := range n.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(elem)
		}
		buf.WriteByte(']')
	case KindValue:
		buf.WriteString(n.value)
	default:
		buf.WriteString("null")
	}
	return nil
}

func appendPath(path []string, name string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = name
	return out
}
