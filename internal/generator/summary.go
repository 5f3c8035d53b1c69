package generator

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// ChangeKind classifies one path of a change summary
type ChangeKind int

const (
	Added ChangeKind = iota
	Replaced
	Unchanged
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Replaced:
		return "replaced"
	case Unchanged:
		return "unchanged"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change describes what committing would do to one path.
type Change struct {
	Path    string
	Kind    ChangeKind
	OldHash string // BLAKE3 of the existing file; empty when added
	NewHash string // BLAKE3 of the generated file; empty when removed
	Size    int64  // size after commit, or the removed size
}

// Summary compares a generated tree with what is on disk at the target.
type Summary struct {
	Target  string
	Changes []Change // sorted by path
}

// Summarize compares files against the current content of target. A
// missing target yields only additions.
func Summarize(fsys afero.Fs, target string, files []File) (*Summary, error) {
	existing := make(map[string]string)
	sizes := make(map[string]int64)

	info, err := fsys.Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", target, err)
	case !info.IsDir():
		existing[filepath.Base(target)] = ""
		sizes[filepath.Base(target)] = info.Size()
	default:
		if err := afero.Walk(fsys, target, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(target, path)
			if err != nil {
				return err
			}
			content, err := afero.ReadFile(fsys, path)
			if err != nil {
				return err
			}
			existing[filepath.ToSlash(rel)] = hashContent(content)
			sizes[filepath.ToSlash(rel)] = info.Size()
			return nil
		}); err != nil {
			return nil, fmt.Errorf("reading %s: %w", target, err)
		}
	}

	s := &Summary{Target: target}
	for _, f := range files {
		c := Change{Path: f.Path, NewHash: hashContent(f.Content), Size: int64(len(f.Content))}
		old, ok := existing[f.Path]
		switch {
		case !ok:
			c.Kind = Added
		case old == c.NewHash:
			c.Kind = Unchanged
			c.OldHash = old
		default:
			c.Kind = Replaced
			c.OldHash = old
		}
		delete(existing, f.Path)
		s.Changes = append(s.Changes, c)
	}
	for path, old := range existing {
		s.Changes = append(s.Changes, Change{Path: path, Kind: Removed, OldHash: old, Size: sizes[path]})
	}

	sort.Slice(s.Changes, func(i, j int) bool { return s.Changes[i].Path < s.Changes[j].Path })
	return s, nil
}

// Occupied reports whether the target already holds any files.
func (s *Summary) Occupied() bool {
	return s.Count(Added) < len(s.Changes)
}

// Count returns how many changes are of kind k.
func (s *Summary) Count(k ChangeKind) int {
	n := 0
	for _, c := range s.Changes {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// Headline is a one-line description such as
// "3 added, 1 replaced, 2 removed, 10 unchanged".
func (s *Summary) Headline() string {
	var parts []string
	for _, k := range []ChangeKind{Added, Replaced, Removed, Unchanged} {
		if n := s.Count(k); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// Render formats the summary as styled lines, one per changed path.
// Unchanged files are omitted.
func (s *Summary) Render() string {
	var b strings.Builder
	for _, c := range s.Changes {
		var marker string
		switch c.Kind {
		case Added:
			marker = addedStyle.Render("+ added   ")
		case Replaced:
			marker = replacedStyle.Render("~ replaced")
		case Removed:
			marker = removedStyle.Render("- removed ")
		default:
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n", marker, c.Path, mutedStyle.Render(humanize.Bytes(uint64(c.Size))))
	}
	if b.Len() == 0 {
		return mutedStyle.Render("no changes") + "\n"
	}
	return b.String()
}

func hashContent(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
