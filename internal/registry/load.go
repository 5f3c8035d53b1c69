package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/placeholder"
	"github.com/simonhull/firebird-suite/hatch/internal/variables"
)

const (
	templateDescriptor = "template.yml"
	addonDescriptor    = "addon.yml"
	filesDir           = "files"
	addonsDir          = "addons"
)

// descriptor is the on-disk form of template.yml and addon.yml.
type descriptor struct {
	Name         string                  `yaml:"name"`
	Description  string                  `yaml:"description"`
	Version      string                  `yaml:"version"`
	Placeholders []variables.Placeholder `yaml:"placeholders"`
	Manifests    []manifestDecl          `yaml:"manifests"`
	Raw          []string                `yaml:"raw"`
	Executable   []string                `yaml:"executable"`
}

type manifestDecl struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// LoadFS registers every template found at the top level of fsys. A
// directory is a template when it contains template.yml; other entries are
// ignored.
func (r *Registry) LoadFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading template root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, err := fs.Stat(fsys, path.Join(id, templateDescriptor)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading template %s: %w", id, err)
		}

		tmpl, addons, err := loadTemplate(fsys, id)
		if err != nil {
			return fmt.Errorf("loading template %s: %w", id, err)
		}
		if err := r.Register(tmpl, addons...); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir registers the templates stored under dir on the local disk.
func (r *Registry) LoadDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("templates directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("templates directory %s is not a directory", dir)
	}
	if err := r.LoadFS(os.DirFS(dir)); err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	return nil
}

func loadTemplate(fsys fs.FS, id string) (Template, []Addon, error) {
	desc, err := readDescriptor(fsys, path.Join(id, templateDescriptor))
	if err != nil {
		return Template{}, nil, err
	}

	files, err := loadFiles(fsys, path.Join(id, filesDir), desc)
	if err != nil {
		return Template{}, nil, err
	}

	tmpl := Template{
		ID:           id,
		Name:         desc.Name,
		Description:  desc.Description,
		Version:      desc.Version,
		Files:        files,
		Placeholders: desc.Placeholders,
		References:   references(files),
	}
	if tmpl.Name == "" {
		tmpl.Name = id
	}

	addonIDs, err := listDirs(fsys, path.Join(id, addonsDir))
	if err != nil {
		return Template{}, nil, err
	}

	var addons []Addon
	for _, addonID := range addonIDs {
		addon, err := loadAddon(fsys, id, addonID)
		if err != nil {
			return Template{}, nil, fmt.Errorf("add-on %s: %w", addonID, err)
		}
		addons = append(addons, addon)
	}

	return tmpl, addons, nil
}

func loadAddon(fsys fs.FS, templateID, addonID string) (Addon, error) {
	root := path.Join(templateID, addonsDir, addonID)
	desc, err := readDescriptor(fsys, path.Join(root, addonDescriptor))
	if err != nil {
		return Addon{}, err
	}

	files, err := loadFiles(fsys, path.Join(root, filesDir), desc)
	if err != nil {
		return Addon{}, err
	}

	return Addon{
		ID:           addonID,
		Template:     templateID,
		Description:  desc.Description,
		Files:        files,
		Placeholders: desc.Placeholders,
		References:   references(files),
	}, nil
}

func readDescriptor(fsys fs.FS, name string) (descriptor, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return descriptor{}, err
	}

	var desc descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil && !errors.Is(err, io.EOF) {
		return descriptor{}, fmt.Errorf("parsing %s: %w", path.Base(name), err)
	}

	seen := make(map[string]bool)
	for _, p := range desc.Placeholders {
		if p.Name == "" {
			return descriptor{}, fmt.Errorf("%s: placeholder without a name", path.Base(name))
		}
		if seen[p.Name] {
			return descriptor{}, fmt.Errorf("%s: placeholder %q declared twice", path.Base(name), p.Name)
		}
		seen[p.Name] = true
	}
	return desc, nil
}

// loadFiles reads every file below root. A missing root yields no files, so
// an add-on may consist of placeholders only.
func loadFiles(fsys fs.FS, root string, desc descriptor) ([]File, error) {
	formats := make(map[string]manifest.Format, len(desc.Manifests))
	for _, m := range desc.Manifests {
		if m.Path == "" {
			return nil, fmt.Errorf("manifest entry without a path")
		}
		format, err := manifestFormat(m)
		if err != nil {
			return nil, err
		}
		formats[m.Path] = format
	}

	var files []File
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel := strings.TrimPrefix(p, root+"/")
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		f := File{
			Path:       rel,
			Content:    content,
			Raw:        matchAny(desc.Raw, rel),
			Executable: matchAny(desc.Executable, rel),
		}
		if format, ok := formats[rel]; ok {
			f.Kind = Manifest
			f.Format = format
			delete(formats, rel)
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	if len(formats) > 0 {
		missing := make([]string, 0, len(formats))
		for p := range formats {
			missing = append(missing, p)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("declared manifests not found: %s", strings.Join(missing, ", "))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// manifestFormat returns the declared format, or infers one from the file
// name when none is given.
func manifestFormat(m manifestDecl) (manifest.Format, error) {
	if m.Format != "" {
		format, err := manifest.ParseFormat(m.Format)
		if err != nil {
			return "", fmt.Errorf("manifest %s: %w", m.Path, err)
		}
		return format, nil
	}

	base := path.Base(m.Path)
	switch {
	case strings.HasSuffix(base, ".json"):
		return manifest.JSON, nil
	case strings.HasSuffix(base, ".yaml"), strings.HasSuffix(base, ".yml"):
		return manifest.YAML, nil
	case strings.HasPrefix(base, ".env"):
		return manifest.Env, nil
	default:
		return manifest.Lines, nil
	}
}

// matchAny reports whether rel matches one of the globs. A pattern ending
// in /** matches everything below that directory; a pattern without a slash
// matches the base name at any depth.
func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		target := rel
		if !strings.Contains(pattern, "/") {
			target = path.Base(rel)
		}
		if ok, _ := path.Match(pattern, target); ok {
			return true
		}
	}
	return false
}

func listDirs(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// references collects the placeholder names used in paths and in the
// content of substitutable files.
func references(files []File) []string {
	set := make(map[string]bool)
	for _, f := range files {
		for _, name := range placeholder.Names(f.Path) {
			set[name] = true
		}
		if !f.Substitutable() {
			continue
		}
		for _, name := range placeholder.Names(string(f.Content)) {
			set[name] = true
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
