// Package config loads hatch settings and answers files with viper.
//
// Settings come from an optional hatch.yml in the working directory or in
// $XDG_CONFIG_HOME/hatch, overridden by HATCH_* environment variables:
//
//	templates_dirs:
//	  - ~/templates
//	interactive: true
//	defaults:
//	  authorName: Ada Lovelace
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/viper"
)

// Config holds hatch settings.
type Config struct {
	TemplatesDirs []string
	Defaults      map[string]string
	Interactive   bool
	Verbose       bool
	File          string // config file that was read, if any
}

// Load reads settings. An explicit path must exist; otherwise a missing
// hatch.yml is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("interactive", true)
	v.SetDefault("verbose", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "hatch"))
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("HATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		TemplatesDirs: splitDirs(v.GetStringSlice("templates_dirs")),
		Defaults:      v.GetStringMapString("defaults"),
		Interactive:   v.GetBool("interactive"),
		Verbose:       v.GetBool("verbose"),
		File:          v.ConfigFileUsed(),
	}
	return cfg, nil
}

// splitDirs expands entries that hold several directories joined with the
// OS list separator, as HATCH_TEMPLATES_DIRS does.
func splitDirs(entries []string) []string {
	var dirs []string
	for _, e := range entries {
		for _, d := range filepath.SplitList(e) {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	return dirs
}

// LoadAnswers reads a flat answers file in any format viper understands.
// Nested keys are joined with dots.
func LoadAnswers(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read answers file %s: %w", path, err)
	}

	answers := make(map[string]string)
	for _, key := range v.AllKeys() {
		answers[key] = v.GetString(key)
	}
	return answers, nil
}

// MergeAnswers layers answer sets; later layers win.
func MergeAnswers(layers ...map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		if err := mergo.Merge(&merged, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging answers: %w", err)
		}
	}
	return merged, nil
}

// Canonicalize renames answer keys to the declared placeholder names they
// match case-insensitively. viper folds keys to lower case, so answers read
// from files and config would otherwise miss camelCase placeholders. Keys
// that match no declared name are kept as they are.
func Canonicalize(answers map[string]string, declared []string) map[string]string {
	byFold := make(map[string]string, len(declared))
	for _, name := range declared {
		byFold[strings.ToLower(name)] = name
	}

	out := make(map[string]string, len(answers))
	for key, value := range answers {
		if name, ok := byFold[strings.ToLower(key)]; ok {
			key = name
		}
		out[key] = value
	}
	return out
}
