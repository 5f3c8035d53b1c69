package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMergeConflict is matched by every *ConflictError.
var ErrMergeConflict = errors.New("merge conflict")

// ConflictError reports a key that fragments assign irreconcilable values.
// Values and Origins are parallel and list each distinct competing value
// with the fragment that first contributed it, in merge order.
type ConflictError struct {
	Path    string // manifest output path, when known
	Key     string
	Values  []string
	Origins []string
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Values))
	for i := range e.Values {
		parts[i] = fmt.Sprintf("%s (from %s)", e.Values[i], e.Origins[i])
	}
	where := e.Key
	if e.Path != "" {
		where = e.Path + ": " + e.Key
	}
	return fmt.Sprintf("merge conflict at %s: %s", where, strings.Join(parts, " vs "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// Merge combines fragments in the order given. The first fragment is the
// baseline (the template's own manifest); the rest are add-ons in selection
// order.
//
// For every value key: a key seen once is kept, identical repeats collapse,
// and differing values fail with a *ConflictError. Registration lists are
// concatenated in fragment order with exact duplicates removed; two entries
// sharing an identity key but differing in content conflict. A key used as
// a scalar in one fragment and as an object or list in another conflicts
// too. Items keep first-seen order so output is deterministic.
func Merge(path string, fragments []*Fragment) (*Manifest, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("merging %s: no fragments", path)
	}

	format := fragments[0].Format
	for _, f := range fragments[1:] {
		if f.Format != format {
			return nil, formatConflict(path, fragments)
		}
	}

	m := &merger{
		document:   format == JSON || format == YAML,
		values:     make(map[string]int),
		containers: make(map[string]Kind),
		idents:     make(map[string]bool),
		exact:      make(map[string]bool),
	}

	for _, f := range fragments {
		for _, it := range f.Items {
			if conflict := m.add(it); conflict != nil {
				conflict.Path = path
				fillCompeting(conflict, it, fragments)
				return nil, conflict
			}
		}
	}

	return &Manifest{Path: path, Format: format, Items: m.items}, nil
}

type merger struct {
	items      []Item
	document   bool // the root is a single object or list
	root       Kind
	values     map[string]int  // value key → index in items
	containers map[string]Kind // container path → KindObject/KindArray
	idents     map[string]bool // list path + ident
	exact      map[string]bool // list path + value, for duplicate removal
}

// add merges one item. It returns a conflict shell (Key only) on failure.
func (m *merger) add(it Item) *ConflictError {
	if m.document {
		if err := m.claimRoot(it); err != nil {
			return err
		}
	}

	switch it.Kind {
	case KindValue:
		if err := m.claimParents(it.Path); err != nil {
			return err
		}
		key := pathKey(it.Path)
		if _, isContainer := m.containers[key]; isContainer {
			return &ConflictError{Key: DisplayKey(it.Path, "")}
		}
		if i, seen := m.values[key]; seen {
			if m.items[i].Value != it.Value {
				return &ConflictError{Key: DisplayKey(it.Path, "")}
			}
			return nil
		}
		m.values[key] = len(m.items)
		m.items = append(m.items, it)

	case KindObject, KindArray:
		if err := m.claimContainer(it.Path, it.Kind); err != nil {
			return err
		}

	case KindRegistration:
		if len(it.Path) > 0 {
			if err := m.claimContainer(it.Path, KindArray); err != nil {
				return err
			}
		}
		exactKey := pathKey(it.Path) + "\x00" + it.Value
		if m.exact[exactKey] {
			return nil
		}
		if it.Ident != "" {
			identKey := pathKey(it.Path) + "\x00" + it.Ident
			if m.idents[identKey] {
				return &ConflictError{Key: DisplayKey(it.Path, it.Ident)}
			}
			m.idents[identKey] = true
		}
		m.exact[exactKey] = true
		m.items = append(m.items, it)

	default:
		return &ConflictError{Key: DisplayKey(it.Path, "")}
	}
	return nil
}

// claimRoot records whether the document root is an object or a list.
// Only root-level list entries have an empty path.
func (m *merger) claimRoot(it Item) *ConflictError {
	kind := KindObject
	if len(it.Path) == 0 {
		kind = KindArray
	}
	if m.root == 0 {
		m.root = kind
		return nil
	}
	if m.root != kind {
		return &ConflictError{Key: DisplayKey(nil, "")}
	}
	return nil
}

// claimContainer records that path holds a container of the given kind.
func (m *merger) claimContainer(path []string, kind Kind) *ConflictError {
	if err := m.claimParents(path); err != nil {
		return err
	}
	key := pathKey(path)
	if _, isValue := m.values[key]; isValue {
		return &ConflictError{Key: DisplayKey(path, "")}
	}
	existing, seen := m.containers[key]
	if seen {
		if existing != kind {
			return &ConflictError{Key: DisplayKey(path, "")}
		}
		return nil
	}
	m.containers[key] = kind
	m.items = append(m.items, Item{Kind: kind, Path: path})
	return nil
}

// claimParents marks every proper prefix of path as an object.
func (m *merger) claimParents(path []string) *ConflictError {
	for i := 1; i < len(path); i++ {
		prefix := path[:i]
		key := pathKey(prefix)
		if _, isValue := m.values[key]; isValue {
			return &ConflictError{Key: DisplayKey(prefix, "")}
		}
		if kind, seen := m.containers[key]; seen && kind != KindObject {
			return &ConflictError{Key: DisplayKey(prefix, "")}
		}
		m.containers[key] = KindObject
	}
	return nil
}

// fillCompeting collects every distinct value fragments give the key that
// triggered c, in merge order.
func fillCompeting(c *ConflictError, trigger Item, fragments []*Fragment) {
	seen := make(map[string]bool)
	for _, f := range fragments {
		for _, it := range f.Items {
			v, ok := describeAt(it, trigger, c.Key)
			if !ok || seen[v] {
				continue
			}
			seen[v] = true
			c.Values = append(c.Values, v)
			c.Origins = append(c.Origins, f.Origin)
		}
	}
}

// describeAt renders what item it contributes at the conflicting key, if
// anything.
func describeAt(it, trigger Item, key string) (string, bool) {
	if key == DisplayKey(nil, "") {
		if len(it.Path) == 0 {
			return "<list>", true
		}
		return "<object>", true
	}

	if trigger.Kind == KindRegistration && trigger.Ident != "" {
		if it.Kind == KindRegistration && it.Ident == trigger.Ident && pathEqual(it.Path, trigger.Path) {
			return it.Value, true
		}
		return "", false
	}

	for depth := len(it.Path); depth >= 1; depth-- {
		if DisplayKey(it.Path[:depth], "") != key {
			continue
		}
		switch {
		case depth == len(it.Path) && it.Kind == KindValue:
			return it.Value, true
		case depth == len(it.Path) && it.Kind == KindArray, it.Kind == KindRegistration && depth == len(it.Path):
			return "<list>", true
		default:
			return "<object>", true
		}
	}
	return "", false
}

func formatConflict(path string, fragments []*Fragment) *ConflictError {
	c := &ConflictError{Path: path, Key: "(format)"}
	seen := make(map[Format]bool)
	for _, f := range fragments {
		if seen[f.Format] {
			continue
		}
		seen[f.Format] = true
		c.Values = append(c.Values, string(f.Format))
		c.Origins = append(c.Origins, f.Origin)
	}
	return c
}
