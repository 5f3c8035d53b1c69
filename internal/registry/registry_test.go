package registry

import (
	"errors"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
)

func sampleFS() fstest.MapFS {
	return fstest.MapFS{
		"api/template.yml": {Data: []byte(`name: API service
description: Minimal HTTP API
version: 1.2.0
placeholders:
  - name: projectName
    description: Directory and package name
    required: true
    pattern: "^[a-z][a-z0-9-]*$"
  - name: port
    default: "3000"
manifests:
  - path: package.json
    format: json
  - path: .env.example
raw:
  - assets/**
executable:
  - "*.sh"
`)},
		"api/files/package.json":           {Data: []byte(`{"name": "{{projectName}}", "dependencies": {"express": "^4.19.2"}}`)},
		"api/files/.env.example":           {Data: []byte("PORT={{port}}\n")},
		"api/files/src/{{projectName}}.ts": {Data: []byte("export const name = '{{ projectName | camel }}';\n")},
		"api/files/assets/logo.svg":        {Data: []byte("<svg>{{notAPlaceholder}}</svg>")},
		"api/files/scripts/dev.sh":         {Data: []byte("#!/bin/sh\nnode dist/main.js\n")},

		"api/addons/db/addon.yml": {Data: []byte(`description: Database pool
placeholders:
  - name: dbName
    default: "{{projectName|snake}}"
manifests:
  - path: package.json
`)},
		"api/addons/db/files/package.json":  {Data: []byte(`{"dependencies": {"mysql2": "^3.9.7"}}`)},
		"api/addons/db/files/src/db/pool.ts": {Data: []byte("export const database = '{{dbName}}';\n")},

		"api/addons/docs/addon.yml": {Data: []byte("description: Docs only\n")},

		"README.md":     {Data: []byte("not a template")},
		"scratch/notes": {Data: []byte("no descriptor here")},

		"web/template.yml":     {Data: []byte("description: Frontend\n")},
		"web/files/index.html": {Data: []byte("<title>{{projectName}}</title>")},
	}
}

func loadSample(t *testing.T) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, r.LoadFS(sampleFS()))
	return r
}

func TestLoadFS(t *testing.T) {
	r := loadSample(t)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "api", list[0].ID)
	assert.Equal(t, "web", list[1].ID)
	assert.Equal(t, "web", list[1].Name, "name defaults to the id")

	api, err := r.Lookup("api")
	require.NoError(t, err)
	assert.Equal(t, "API service", api.Name)
	assert.Equal(t, "1.2.0", api.Version)
	assert.Equal(t, []string{"db", "docs"}, api.Addons)
	require.Len(t, api.Placeholders, 2)
	assert.True(t, api.Placeholders[0].Required)
	assert.Equal(t, "3000", api.Placeholders[1].Default)
}

func TestLoadFS_FileKinds(t *testing.T) {
	r := loadSample(t)
	api, err := r.Lookup("api")
	require.NoError(t, err)

	byPath := make(map[string]File)
	var paths []string
	for _, f := range api.Files {
		byPath[f.Path] = f
		paths = append(paths, f.Path)
	}

	assert.Equal(t, []string{
		".env.example",
		"assets/logo.svg",
		"package.json",
		"scripts/dev.sh",
		"src/{{projectName}}.ts",
	}, paths)

	assert.Equal(t, Manifest, byPath["package.json"].Kind)
	assert.Equal(t, manifest.JSON, byPath["package.json"].Format)
	assert.Equal(t, manifest.Env, byPath[".env.example"].Format, "format inferred from the file name")
	assert.Equal(t, Verbatim, byPath["src/{{projectName}}.ts"].Kind)
	assert.True(t, byPath["assets/logo.svg"].Raw)
	assert.True(t, byPath["scripts/dev.sh"].Executable)
	assert.False(t, byPath["package.json"].Executable)
}

func TestLoadFS_References(t *testing.T) {
	r := loadSample(t)
	api, err := r.Lookup("api")
	require.NoError(t, err)

	// raw files are not scanned
	assert.Equal(t, []string{"port", "projectName"}, api.References)

	db, err := r.Addon("api", "db")
	require.NoError(t, err)
	assert.Equal(t, []string{"dbName"}, db.References)
}

func TestLoadFS_AddonWithoutFiles(t *testing.T) {
	r := loadSample(t)

	docs, err := r.Addon("api", "docs")
	require.NoError(t, err)
	assert.Empty(t, docs.Files)
	assert.Equal(t, "api", docs.Template)
}

func TestLoadFS_MissingManifest(t *testing.T) {
	fsys := fstest.MapFS{
		"api/template.yml":   {Data: []byte("manifests:\n  - path: package.json\n")},
		"api/files/index.ts": {Data: []byte("")},
	}

	err := New().LoadFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared manifests not found: package.json")
}

func TestLoadFS_RejectsUnknownDescriptorFields(t *testing.T) {
	fsys := fstest.MapFS{
		"api/template.yml": {Data: []byte("name: api\nplaceholder:\n  - name: x\n")},
	}

	err := New().LoadFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading template api")
}

func TestLoadFS_RejectsDuplicatePlaceholders(t *testing.T) {
	fsys := fstest.MapFS{
		"api/template.yml": {Data: []byte("placeholders:\n  - name: x\n  - name: x\n")},
	}

	err := New().LoadFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `placeholder "x" declared twice`)
}

func TestLoadFS_UnknownFormat(t *testing.T) {
	fsys := fstest.MapFS{
		"api/template.yml":     {Data: []byte("manifests:\n  - path: Cargo.toml\n    format: toml\n")},
		"api/files/Cargo.toml": {Data: []byte("")},
	}

	err := New().LoadFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown manifest format")
}

func TestLookup_Unknown(t *testing.T) {
	r := loadSample(t)

	_, err := r.Lookup("django")

	var unknown *UnknownTemplateError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "django", unknown.ID)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestAddon_Unknown(t *testing.T) {
	r := loadSample(t)

	_, err := r.Addon("api", "graphql")
	var unknown *UnknownTemplateError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "api/graphql", unknown.ID)

	_, err = r.Addon("django", "db")
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "django", unknown.ID)

	_, err = r.ListAddons("django")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Template{ID: "api"}))

	err := r.Register(Template{ID: "api", Name: "other"})
	require.Error(t, err)

	got, err := r.Lookup("api")
	require.NoError(t, err)
	assert.Empty(t, got.Name, "first registration wins")
}

func TestRegister_AddonOwnership(t *testing.T) {
	r := New()
	err := r.Register(Template{ID: "api"}, Addon{ID: "db", Template: "web"})
	assert.Error(t, err)

	err = r.Register(Template{ID: "api"}, Addon{ID: "db"}, Addon{ID: "db"})
	assert.Error(t, err)
}

func TestAccessorsReturnCopies(t *testing.T) {
	r := loadSample(t)

	first, err := r.Lookup("api")
	require.NoError(t, err)
	first.Files[0].Content[0] = 'X'
	first.Files = nil
	first.Placeholders[0].Name = "mutated"

	second, err := r.Lookup("api")
	require.NoError(t, err)
	assert.NotEmpty(t, second.Files)
	assert.Equal(t, "projectName", second.Placeholders[0].Name)
	assert.Equal(t, byte('P'), second.Files[0].Content[0])

	addons, err := r.ListAddons("api")
	require.NoError(t, err)
	addons[0] = "mutated"
	again, err := r.ListAddons("api")
	require.NoError(t, err)
	assert.Equal(t, "db", again[0])
}

func TestConcurrentLookups(t *testing.T) {
	r := loadSample(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl, err := r.Lookup("api")
			assert.NoError(t, err)
			assert.Len(t, tmpl.Files, 5)
		}()
	}
	wg.Wait()
}

func TestMatchAny(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"assets/**", "assets/fonts/Inter.ttf", true},
		{"assets/**", "src/assets/x.png", false},
		{"*.png", "assets/images/icon.png", true},
		{"scripts/*.sh", "scripts/dev.sh", true},
		{"scripts/*.sh", "tools/scripts/dev.sh", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, matchAny([]string{tt.pattern}, tt.path))
		})
	}
}

func TestFileSubstitutable(t *testing.T) {
	assert.True(t, File{Content: []byte("const x = 1")}.Substitutable())
	assert.False(t, File{Content: []byte("const x = 1"), Raw: true}.Substitutable())
	assert.False(t, File{Content: []byte{0x89, 'P', 'N', 'G', 0x00, 0x1a}}.Substitutable())
	assert.False(t, File{Content: []byte{0xff, 0xfe, 0xfd}}.Substitutable())
}
