package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/hatch/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	fsys := fstest.MapFS{
		"nestjs/template.yml": {Data: []byte(`name: NestJS
placeholders:
  - name: projectName
    required: true
    pattern: "^[a-z][a-z0-9-]*$"
  - name: port
    default: "3000"
manifests:
  - path: package.json
  - path: .env.example
  - path: src/app.modules.ts
    format: lines
`)},
		"nestjs/files/package.json":       {Data: []byte(`{"name": "{{projectName}}", "dependencies": {"x": "1.0"}}`)},
		"nestjs/files/.env.example":       {Data: []byte("PORT={{port}}\n")},
		"nestjs/files/src/app.modules.ts": {Data: []byte("export { UsersModule } from './users/users.module';\n")},
		"nestjs/files/src/main.ts":        {Data: []byte("// {{ projectName | pascal }}\n")},

		"nestjs/addons/database/addon.yml": {Data: []byte(`placeholders:
  - name: dbName
    default: "{{projectName|snake}}"
manifests:
  - path: package.json
  - path: .env.example
  - path: src/app.modules.ts
    format: lines
`)},
		"nestjs/addons/database/files/package.json":       {Data: []byte(`{"dependencies": {"x": "1.0", "y": "2.0"}}`)},
		"nestjs/addons/database/files/.env.example":       {Data: []byte("DB_NAME={{dbName}}\n")},
		"nestjs/addons/database/files/src/app.modules.ts": {Data: []byte("export { DatabaseModule } from './database/database.module';\n")},

		"nestjs/addons/legacy/addon.yml":          {Data: []byte("manifests:\n  - path: package.json\n")},
		"nestjs/addons/legacy/files/package.json": {Data: []byte(`{"dependencies": {"x": "0.9"}}`)},

		"nestjs/addons/broken/addon.yml":           {Data: []byte("description: references an undeclared placeholder\n")},
		"nestjs/addons/broken/files/src/broken.ts": {Data: []byte("export const who = '{{authorName}}';\n")},
	}

	reg := registry.New()
	require.NoError(t, reg.LoadFS(fsys))
	return reg
}

func baseRequest(target string) Request {
	return Request{
		TemplateID: "nestjs",
		Addons:     []string{"database"},
		Variables:  map[string]string{"projectName": "billing-api"},
		TargetDir:  target,
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func assertAbsent(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestGenerate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "billing-api")

	var transitions []State
	o := New(testRegistry(t), WithObserver(func(tr Transition) {
		transitions = append(transitions, tr.To)
	}))

	res, err := o.Generate(context.Background(), baseRequest(target))
	require.NoError(t, err)

	assert.Equal(t, []State{Resolving, Planning, Committing, Done}, transitions)
	assert.Equal(t, []string{".env.example", "package.json", "src/app.modules.ts", "src/main.ts"}, res.WrittenPaths)
	assert.Equal(t, target, res.TargetDir)
	assert.NotEmpty(t, res.Digest)

	tree := readTree(t, target)
	assert.Equal(t, "// BillingAPI\n", tree["src/main.ts"])
	assert.Equal(t, "PORT=3000\nDB_NAME=billing_api\n", tree[".env.example"])
	assert.Equal(t, "export { UsersModule } from './users/users.module';\n"+
		"export { DatabaseModule } from './database/database.module';\n", tree["src/app.modules.ts"])
	assert.JSONEq(t, `{"name": "billing-api", "dependencies": {"x": "1.0", "y": "2.0"}}`, tree["package.json"])

	require.Len(t, res.Manifests, 3)
	var deps map[string]string
	for _, m := range res.Manifests {
		if m.Path == "package.json" {
			deps = m.Strings("dependencies")
		}
	}
	if diff := cmp.Diff(map[string]string{"x": "1.0", "y": "2.0"}, deps); diff != "" {
		t.Errorf("merged dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	dir := t.TempDir()
	o := New(testRegistry(t))

	first, err := o.Generate(context.Background(), baseRequest(filepath.Join(dir, "one")))
	require.NoError(t, err)
	second, err := o.Generate(context.Background(), baseRequest(filepath.Join(dir, "two")))
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, readTree(t, filepath.Join(dir, "one")), readTree(t, filepath.Join(dir, "two")))
}

func TestGenerate_CompleteVariablesNeverMissing(t *testing.T) {
	o := New(testRegistry(t))

	for _, addons := range [][]string{nil, {"database"}} {
		req := Request{
			TemplateID: "nestjs",
			Addons:     addons,
			Variables:  map[string]string{"projectName": "app", "port": "8080", "dbName": "app"},
		}
		_, err := o.Plan(context.Background(), req)
		require.NoError(t, err)
		assert.NotEqual(t, KindMissingVariable, KindOf(err))
	}
}

func TestGenerate_MissingVariable(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")

	var last Transition
	o := New(testRegistry(t), WithObserver(func(tr Transition) { last = tr }))

	req := baseRequest(target)
	req.Variables = nil
	_, err := o.Generate(context.Background(), req)

	assert.Equal(t, KindMissingVariable, KindOf(err))
	assert.Equal(t, Failed, last.To)
	assert.Equal(t, Resolving, last.From)
	assert.Equal(t, err, last.Err)
	assertAbsent(t, target)
}

func TestGenerate_InvalidVariable(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	o := New(testRegistry(t))

	req := baseRequest(target)
	req.Variables = map[string]string{"projectName": "Billing API"}
	_, err := o.Generate(context.Background(), req)

	assert.Equal(t, KindInvalidVariable, KindOf(err))
	assertAbsent(t, target)
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	o := New(testRegistry(t))

	_, err := o.Generate(context.Background(), Request{TemplateID: "django", TargetDir: t.TempDir()})
	assert.Equal(t, KindUnknownTemplate, KindOf(err))

	req := baseRequest(filepath.Join(t.TempDir(), "app"))
	req.Addons = []string{"graphql"}
	_, err = o.Generate(context.Background(), req)
	assert.Equal(t, KindUnknownTemplate, KindOf(err))
	assert.Contains(t, err.Error(), "nestjs/graphql")
}

func TestGenerate_MergeConflictWritesNothing(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	o := New(testRegistry(t))

	req := baseRequest(target)
	req.Addons = []string{"database", "legacy"}
	_, err := o.Generate(context.Background(), req)

	assert.Equal(t, KindMergeConflict, KindOf(err))
	assert.Contains(t, err.Error(), "dependencies.x")
	assertAbsent(t, target)
	entries, _ := os.ReadDir(filepath.Dir(target))
	assert.Empty(t, entries)
}

func TestGenerate_UnresolvedTokenWritesNothing(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	o := New(testRegistry(t))

	req := baseRequest(target)
	req.Addons = []string{"broken"}
	req.Variables["authorName"] = "someone" // not declared anywhere
	_, err := o.Generate(context.Background(), req)

	assert.Equal(t, KindSubstitution, KindOf(err))
	assert.Contains(t, err.Error(), "{{authorName}}")
	assertAbsent(t, target)
}

func TestGenerate_TargetNotEmptyAndOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "notes.txt"), []byte("mine"), 0o644))

	o := New(testRegistry(t))

	_, err := o.Generate(context.Background(), baseRequest(target))
	assert.Equal(t, KindTargetNotEmpty, KindOf(err))
	assert.Equal(t, map[string]string{"notes.txt": "mine"}, readTree(t, target))

	req := baseRequest(target)
	req.Overwrite = true
	res, err := o.Generate(context.Background(), req)
	require.NoError(t, err)

	tree := readTree(t, target)
	assert.NotContains(t, tree, "notes.txt")
	assert.Len(t, tree, len(res.WrittenPaths))
}

// failingFs fails every file write below a given directory name.
type failingFs struct {
	afero.Fs
	match string
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if strings.Contains(filepath.ToSlash(name), f.match) && flag&os.O_CREATE != 0 {
		return nil, errors.New("no space left on device")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestGenerate_WriteFailureLeavesTargetUntouched(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep.txt"), []byte("precious"), 0o644))

	o := New(testRegistry(t), WithFs(&failingFs{Fs: afero.NewOsFs(), match: "/src/"}))

	req := baseRequest(target)
	req.Overwrite = true
	_, err := o.Generate(context.Background(), req)

	assert.Equal(t, KindWriteFailure, KindOf(err))
	assert.Equal(t, map[string]string{"keep.txt": "precious"}, readTree(t, target))
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory removed")
}

func TestGenerate_Cancelled(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testRegistry(t)).Generate(ctx, baseRequest(target))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindOther, KindOf(err))
	assertAbsent(t, target)
}

func TestGenerate_DuplicateAddonsCollapse(t *testing.T) {
	o := New(testRegistry(t))

	req := baseRequest("")
	req.Addons = []string{"database", "database"}
	preview, err := o.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, preview.Addons, 1)
}

func TestPlan_WritesNothing(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	var transitions []State
	o := New(testRegistry(t), WithObserver(func(tr Transition) { transitions = append(transitions, tr.To) }))

	preview, err := o.Plan(context.Background(), baseRequest(target))
	require.NoError(t, err)

	assert.Equal(t, []State{Resolving, Planning, Done}, transitions)
	assert.Equal(t, "billing_api", preview.Variables["dbName"])
	assert.Equal(t, "nestjs", preview.Template.ID)
	assert.Len(t, preview.Plan.Files, 4)
	assertAbsent(t, target)
}

func TestGenerate_ConcurrentRuns(t *testing.T) {
	dir := t.TempDir()
	o := New(testRegistry(t))

	var wg sync.WaitGroup
	digests := make([]string, 8)
	for i := range digests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := o.Generate(context.Background(), baseRequest(filepath.Join(dir, fmt.Sprintf("app-%d", i))))
			if assert.NoError(t, err) {
				digests[i] = res.Digest
			}
		}(i)
	}
	wg.Wait()

	for _, d := range digests[1:] {
		assert.Equal(t, digests[0], d)
	}
}

func TestGenerate_RequiresTarget(t *testing.T) {
	req := baseRequest("")
	_, err := New(testRegistry(t)).Generate(context.Background(), req)
	assert.Error(t, err)
	assert.Equal(t, KindOther, KindOf(err))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "committing", Committing.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
