// Package variables turns a caller's answers into the closed set of
// placeholder values a generation run substitutes.
//
// Resolution is pure: no I/O, no clocks, no environment. The same declared
// placeholders and the same answers always produce the same Map, which is
// what makes regeneration reproducible.
package variables

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/simonhull/firebird-suite/hatch/internal/placeholder"
)

// Placeholder declares one variable a template or add-on references.
type Placeholder struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Default     string `yaml:"default,omitempty"`
	Required    bool   `yaml:"required,omitempty"` // empty answers count as missing
	Pattern     string `yaml:"pattern,omitempty"`  // regexp the final value must match
}

// HasDefault reports whether a default value is declared.
func (p Placeholder) HasDefault() bool {
	return p.Default != ""
}

// Validate checks value against the declared pattern.
func (p Placeholder) Validate(value string) error {
	return validate(p, value)
}

// Map is a resolved placeholder name → value mapping.
type Map map[string]string

// Lookup adapts the map for placeholder.Replace.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// ErrMissingVariable is matched by every *MissingVariableError.
var ErrMissingVariable = errors.New("missing variable")

// MissingVariableError reports a declared placeholder with no answer and no
// usable default.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing variable %q", e.Name)
}

func (e *MissingVariableError) Is(target error) bool {
	return target == ErrMissingVariable
}

// InvalidVariableError reports a value that does not match its declared
// pattern. Err is set instead when the declaration itself is unusable: a
// pattern that does not compile or a default using an unknown filter.
type InvalidVariableError struct {
	Name    string
	Value   string
	Pattern string
	Err     error
}

func (e *InvalidVariableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("variable %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("variable %q: value %q does not match %s", e.Name, e.Value, e.Pattern)
}

func (e *InvalidVariableError) Unwrap() error {
	return e.Err
}

// Merge combines declarations from several sources (template first, then
// add-ons). A name declared more than once keeps the first non-empty
// description, default and pattern; it is required if any declaration
// requires it.
func Merge(sets ...[]Placeholder) []Placeholder {
	index := make(map[string]int)
	var merged []Placeholder
	for _, set := range sets {
		for _, p := range set {
			i, ok := index[p.Name]
			if !ok {
				index[p.Name] = len(merged)
				merged = append(merged, p)
				continue
			}
			existing := &merged[i]
			existing.Required = existing.Required || p.Required
			if !existing.HasDefault() {
				existing.Default = p.Default
			}
			if existing.Description == "" {
				existing.Description = p.Description
			}
			if existing.Pattern == "" {
				existing.Pattern = p.Pattern
			}
		}
	}
	return merged
}

// Resolve produces a complete Map for the declared placeholders.
//
// An answer in supplied wins over the declared default. Defaults may
// reference other declared placeholders ("{{projectName|pascal}}"); they are
// resolved on demand, and a reference cycle is reported as missing. Names
// are processed in sorted order so the first error is deterministic.
// Supplied keys nobody declared are ignored.
func Resolve(declared []Placeholder, supplied map[string]string) (Map, error) {
	r := &resolver{
		declared: make(map[string]Placeholder, len(declared)),
		supplied: supplied,
		resolved: make(Map, len(declared)),
		visiting: make(map[string]bool),
	}
	for _, p := range Merge(declared) {
		r.declared[p.Name] = p
	}

	names := make([]string, 0, len(r.declared))
	for name := range r.declared {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := r.resolve(name); err != nil {
			return nil, err
		}
	}

	return r.resolved, nil
}

type resolver struct {
	declared map[string]Placeholder
	supplied map[string]string
	resolved Map
	visiting map[string]bool
}

func (r *resolver) resolve(name string) (string, error) {
	if v, ok := r.resolved[name]; ok {
		return v, nil
	}

	p, ok := r.declared[name]
	if !ok || r.visiting[name] {
		return "", &MissingVariableError{Name: name}
	}
	r.visiting[name] = true
	defer delete(r.visiting, name)

	value, answered := r.supplied[name]
	if answered && p.Required && value == "" {
		answered = false
	}

	if !answered {
		if !p.HasDefault() {
			return "", &MissingVariableError{Name: name}
		}
		v, err := r.expandDefault(p)
		if err != nil {
			return "", err
		}
		value = v
	}

	if p.Required && value == "" {
		return "", &MissingVariableError{Name: name}
	}
	if err := validate(p, value); err != nil {
		return "", err
	}

	r.resolved[name] = value
	return value, nil
}

// expandDefault substitutes references to other placeholders in a default.
func (r *resolver) expandDefault(p Placeholder) (string, error) {
	var refErr error
	out, err := placeholder.Replace(p.Default, func(ref string) (string, bool) {
		v, err := r.resolve(ref)
		if err != nil {
			refErr = err
			return "", false
		}
		return v, true
	})
	if refErr != nil {
		return "", refErr
	}
	if err != nil {
		return "", &InvalidVariableError{
			Name:  p.Name,
			Value: p.Default,
			Err:   fmt.Errorf("expanding default %q: %w", p.Default, err),
		}
	}
	return out, nil
}

func validate(p Placeholder, value string) error {
	if p.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return &InvalidVariableError{
			Name:    p.Name,
			Value:   value,
			Pattern: p.Pattern,
			Err:     fmt.Errorf("invalid pattern %q: %w", p.Pattern, err),
		}
	}
	if !re.MatchString(value) {
		return &InvalidVariableError{Name: p.Name, Value: value, Pattern: p.Pattern}
	}
	return nil
}
