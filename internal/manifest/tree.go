package manifest

import (
	"fmt"
	"sort"
)

// sortedSections are top-level objects whose keys are written sorted, the
// way npm and pub keep dependency maps.
var sortedSections = map[string]bool{
	"dependencies":         true,
	"devDependencies":      true,
	"peerDependencies":     true,
	"optionalDependencies": true,
	"dev_dependencies":     true,
}

// node is the document tree rebuilt from merged items for serialization.
type node struct {
	kind   Kind // KindObject, KindArray or KindValue; zero until first use
	keys   []string
	fields map[string]*node
	elems  []string // canonical registration values, for arrays
	value  string   // canonical scalar, for values
}

// buildTree rebuilds the document from items. The root is an object unless
// the first item makes it a list.
func buildTree(items []Item) (*node, error) {
	root := &node{}
	for _, it := range items {
		switch it.Kind {
		case KindValue:
			if len(it.Path) == 0 {
				return nil, fmt.Errorf("value without a key")
			}
			parent, err := root.ensure(it.Path[:len(it.Path)-1], KindObject)
			if err != nil {
				return nil, err
			}
			name := it.Path[len(it.Path)-1]
			if _, exists := parent.fields[name]; exists {
				return nil, fmt.Errorf("duplicate key %s", DisplayKey(it.Path, ""))
			}
			parent.addField(name, &node{kind: KindValue, value: it.Value})
		case KindObject, KindArray:
			if _, err := root.ensure(it.Path, it.Kind); err != nil {
				return nil, err
			}
		case KindRegistration:
			list, err := root.ensure(it.Path, KindArray)
			if err != nil {
				return nil, err
			}
			list.elems = append(list.elems, it.Value)
		}
	}
	if root.kind == 0 {
		root.kind = KindObject
	}
	return root, nil
}

// ensure walks path from n, creating objects along the way, and returns the
// node at path with the requested kind.
func (n *node) ensure(path []string, kind Kind) (*node, error) {
	cur := n
	for i, name := range path {
		if cur.kind == 0 {
			cur.kind = KindObject
		}
		if cur.kind != KindObject {
			return nil, fmt.Errorf("%s is not an object", DisplayKey(path[:i], ""))
		}
		child, ok := cur.fields[name]
		if !ok {
			child = &node{}
			cur.addField(name, child)
		}
		cur = child
	}
	if cur.kind == 0 {
		cur.kind = kind
	}
	if cur.kind != kind {
		return nil, fmt.Errorf("%s is a %s, not a %s", DisplayKey(path, ""), cur.kind, kind)
	}
	return cur, nil
}

func (n *node) addField(name string, child *node) {
	if n.fields == nil {
		n.fields = make(map[string]*node)
	}
	n.fields[name] = child
	n.keys = append(n.keys, name)
}

// orderedKeys returns the keys of an object in output order.
func (n *node) orderedKeys(depth int, name string) []string {
	if depth == 1 && sortedSections[name] {
		keys := append([]string(nil), n.keys...)
		sort.Strings(keys)
		return keys
	}
	return n.keys
}
