package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hatch.yml", `
templates_dirs:
  - /srv/templates
interactive: false
defaults:
  authorName: Ada Lovelace
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/templates"}, cfg.TemplatesDirs)
	assert.False(t, cfg.Interactive)
	assert.Equal(t, "Ada Lovelace", cfg.Defaults["authorname"])
	assert.Equal(t, path, cfg.File)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Interactive)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.TemplatesDirs)
	assert.Empty(t, cfg.File)
}

func TestLoad_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hatch.yml", "verbose: true\n")
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HATCH_INTERACTIVE", "false")
	t.Setenv("HATCH_TEMPLATES_DIRS", "/a"+string(os.PathListSeparator)+"/b")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Interactive)
	assert.Equal(t, []string{"/a", "/b"}, cfg.TemplatesDirs)
}

func TestLoadAnswers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "answers.json", `{"projectName": "billing-api", "db": {"port": 3306}}`)

	answers, err := LoadAnswers(path)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"projectname": "billing-api",
		"db.port":     "3306",
	}, answers)
}

func TestLoadAnswers_Missing(t *testing.T) {
	_, err := LoadAnswers(filepath.Join(t.TempDir(), "answers.yml"))
	assert.Error(t, err)
}

func TestMergeAnswers(t *testing.T) {
	merged, err := MergeAnswers(
		map[string]string{"authorName": "Ada", "license": "MIT"},
		nil,
		map[string]string{"authorName": "Grace"},
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"authorName": "Grace", "license": "MIT"}, merged)
}

func TestCanonicalize(t *testing.T) {
	got := Canonicalize(
		map[string]string{"projectname": "billing-api", "extra": "x"},
		[]string{"projectName", "port"},
	)

	assert.Equal(t, map[string]string{"projectName": "billing-api", "extra": "x"}, got)
}
