package registry

import (
	"bytes"
	"unicode/utf8"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/variables"
)

// FileKind distinguishes files copied as-is from files merged with others
type FileKind int

const (
	Verbatim FileKind = iota
	Manifest
)

func (k FileKind) String() string {
	if k == Manifest {
		return "manifest"
	}
	return "verbatim"
}

// File is one entry of a template or add-on tree. Path and Content may
// contain placeholders.
type File struct {
	Path       string
	Content    []byte
	Kind       FileKind
	Format     manifest.Format // set for Manifest files
	Raw        bool            // copy content without substitution
	Executable bool
}

// Substitutable reports whether placeholders in the content are expanded.
// Raw files and binary payloads are copied byte for byte.
func (f File) Substitutable() bool {
	return !f.Raw && !isBinary(f.Content)
}

// isBinary sniffs the first 8000 bytes the way git does: a NUL byte or
// invalid UTF-8 marks the content as binary.
func isBinary(content []byte) bool {
	head := content
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	if len(content) > 8000 {
		// the cut may split a rune
		for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return !utf8.Valid(head)
}

// Template is a loaded framework template. Values handed out by the
// Registry are copies; mutating them does not affect later lookups.
type Template struct {
	ID           string
	Name         string
	Description  string
	Version      string
	Files        []File
	Placeholders []variables.Placeholder
	Addons       []string // sorted add-on ids
	References   []string // placeholder names the files use, sorted
}

// Addon is an optional fragment that layers files and manifest entries on
// top of its template.
type Addon struct {
	ID           string
	Template     string
	Description  string
	Files        []File
	Placeholders []variables.Placeholder
	References   []string
}

// Layer is the common view of a template or add-on used during
// materialization.
type Layer struct {
	Origin       string // "nestjs" or "nestjs+auth"
	Files        []File
	Placeholders []variables.Placeholder
}

// Layer returns the template's own files as the baseline layer.
func (t Template) Layer() Layer {
	return Layer{Origin: t.ID, Files: t.Files, Placeholders: t.Placeholders}
}

// Layer returns the add-on's files, labelled template+addon.
func (a Addon) Layer() Layer {
	return Layer{Origin: a.Template + "+" + a.ID, Files: a.Files, Placeholders: a.Placeholders}
}
