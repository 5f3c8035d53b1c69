// Package materialize expands a template and its add-ons into a Plan: the
// exact files a generation would write.
//
// Materialize never touches the filesystem. Paths and contents are
// substituted with the resolved variables, manifest files from every layer
// are merged per output path, and verbatim files are checked for
// collisions. Any failure is reported before a single byte is written.
package materialize

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/placeholder"
	"github.com/simonhull/firebird-suite/hatch/internal/registry"
	"github.com/simonhull/firebird-suite/hatch/internal/variables"
)

// ErrSubstitution is matched by every *SubstitutionError.
var ErrSubstitution = errors.New("substitution failed")

// errUnsafePath marks a substituted path that would escape the project root.
var errUnsafePath = errors.New("path escapes the project directory")

// SubstitutionError reports a file whose path or content could not be
// expanded. Token is the offending placeholder, or the bad path.
type SubstitutionError struct {
	File  string // origin:path of the template file
	Token string
	Err   error
}

func (e *SubstitutionError) Error() string {
	if errors.Is(e.Err, errUnsafePath) {
		return fmt.Sprintf("%s: %q: %v", e.File, e.Token, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *SubstitutionError) Unwrap() error { return e.Err }

func (e *SubstitutionError) Is(target error) bool {
	return target == ErrSubstitution
}

// Materialize builds the plan for layers, baseline template first and
// add-ons in selection order. Only placeholders declared by one of the
// layers are substituted; anything else is a *SubstitutionError.
func Materialize(layers []registry.Layer, vars variables.Map) (*Plan, error) {
	declared := make(map[string]bool)
	for _, l := range layers {
		for _, p := range l.Placeholders {
			declared[p.Name] = true
		}
	}
	lookup := func(name string) (string, bool) {
		if !declared[name] {
			return "", false
		}
		return vars.Lookup(name)
	}

	b := &builder{
		verbatim:  make(map[string]*claim),
		fragments: make(map[string][]*manifest.Fragment),
	}

	for _, l := range layers {
		for _, f := range l.Files {
			if err := b.add(l.Origin, f, lookup); err != nil {
				return nil, err
			}
		}
	}

	return b.plan()
}

// claim records which layer first produced a verbatim path.
type claim struct {
	entry  Entry
	origin string
}

type builder struct {
	verbatim      map[string]*claim
	fragments     map[string][]*manifest.Fragment
	manifestOrder []string
}

func (b *builder) add(origin string, f registry.File, lookup func(string) (string, bool)) error {
	source := origin + ":" + f.Path

	target, err := placeholder.Replace(f.Path, lookup)
	if err != nil {
		return substitutionError(source, err)
	}
	target, err = cleanPath(target)
	if err != nil {
		return &SubstitutionError{File: source, Token: target, Err: err}
	}

	content := f.Content
	if f.Substitutable() {
		expanded, err := placeholder.Replace(string(f.Content), lookup)
		if err != nil {
			return substitutionError(source, err)
		}
		content = []byte(expanded)
	}

	if f.Kind == registry.Manifest {
		if c, ok := b.verbatim[target]; ok {
			return kindConflict(target, "verbatim", c.origin, origin)
		}
		frag, err := manifest.Parse(f.Format, origin, content)
		if err != nil {
			return &SubstitutionError{File: source, Err: err}
		}
		if _, seen := b.fragments[target]; !seen {
			b.manifestOrder = append(b.manifestOrder, target)
		}
		b.fragments[target] = append(b.fragments[target], frag)
		return nil
	}

	if frags, ok := b.fragments[target]; ok {
		return kindConflict(target, "manifest", frags[0].Origin, origin)
	}

	mode := fileMode
	if f.Executable {
		mode = executableMode
	}

	if c, ok := b.verbatim[target]; ok {
		if string(c.entry.Content) != string(content) {
			return &manifest.ConflictError{
				Path:    target,
				Key:     "(content)",
				Values:  []string{describe(c.entry.Content), describe(content)},
				Origins: []string{c.origin, origin},
			}
		}
		if mode == executableMode {
			c.entry.Mode = executableMode
		}
		return nil
	}

	b.verbatim[target] = &claim{
		entry:  Entry{Path: target, Content: content, Mode: mode},
		origin: origin,
	}
	return nil
}

func (b *builder) plan() (*Plan, error) {
	p := &Plan{}

	for _, c := range b.verbatim {
		p.Files = append(p.Files, c.entry)
	}

	for _, target := range b.manifestOrder {
		m, err := manifest.Merge(target, b.fragments[target])
		if err != nil {
			return nil, err
		}
		content, err := m.Encode()
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", target, err)
		}
		p.Manifests = append(p.Manifests, m)
		p.Files = append(p.Files, Entry{Path: target, Content: content, Mode: fileMode, Manifest: true})
	}

	sort.Slice(p.Files, func(i, j int) bool { return p.Files[i].Path < p.Files[j].Path })
	sort.Slice(p.Manifests, func(i, j int) bool { return p.Manifests[i].Path < p.Manifests[j].Path })

	if err := checkNesting(p.Files); err != nil {
		return nil, err
	}

	p.Digest = digest(p.Files)
	return p, nil
}

// checkNesting rejects a file whose path is also used as a directory by
// another file, e.g. "src" next to "src/main.ts".
func checkNesting(files []Entry) error {
	dirs := make(map[string]string)
	for _, f := range files {
		for dir := path.Dir(f.Path); dir != "."; dir = path.Dir(dir) {
			if _, ok := dirs[dir]; !ok {
				dirs[dir] = f.Path
			}
		}
	}
	for _, f := range files {
		if child, ok := dirs[f.Path]; ok {
			return &manifest.ConflictError{
				Path:    f.Path,
				Key:     "(kind)",
				Values:  []string{"file", "directory"},
				Origins: []string{f.Path, child},
			}
		}
	}
	return nil
}

// cleanPath normalizes a substituted path and keeps it inside the project.
func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	if p == "" || path.IsAbs(p) {
		return p, errUnsafePath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return p, errUnsafePath
	}
	return clean, nil
}

func substitutionError(source string, err error) error {
	var unresolved *placeholder.UnresolvedError
	if errors.As(err, &unresolved) {
		return &SubstitutionError{File: source, Token: unresolved.Token, Err: err}
	}
	var filter *placeholder.UnknownFilterError
	if errors.As(err, &filter) {
		return &SubstitutionError{File: source, Token: filter.Token, Err: err}
	}
	return &SubstitutionError{File: source, Err: err}
}

// kindConflict reports one path claimed as both a verbatim file and a
// manifest. firstKind is how the path was claimed first.
func kindConflict(target, firstKind, firstOrigin, secondOrigin string) error {
	values := []string{"verbatim", "manifest"}
	if firstKind == "manifest" {
		values = []string{"manifest", "verbatim"}
	}
	return &manifest.ConflictError{
		Path:    target,
		Key:     "(kind)",
		Values:  values,
		Origins: []string{firstOrigin, secondOrigin},
	}
}

func describe(content []byte) string {
	return fmt.Sprintf("%d bytes, blake3 %s", len(content), ContentHash(content)[:12])
}
