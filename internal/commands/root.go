package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch"
	"github.com/simonhull/firebird-suite/hatch/internal/config"
	"github.com/simonhull/firebird-suite/hatch/internal/generator"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/simonhull/firebird-suite/hatch/internal/orchestrator"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/registry"
	"github.com/simonhull/firebird-suite/hatch/templates"
)

// App holds what the hatch commands share. The exported fields are the
// seams tests replace; NewApp wires them to the real terminal and disk.
type App struct {
	Fs         afero.Fs
	Templates  fs.FS
	Prompter   input.Prompter
	IsTerminal func() bool
	// Strategy decides about occupied targets; nil picks one from the flags.
	Strategy generator.TargetStrategy

	configPath string
	verbose    bool
	config     *config.Config
}

// NewApp creates an App backed by the OS filesystem and the built-in
// templates.
func NewApp() *App {
	return &App{
		Fs:         afero.NewOsFs(),
		Templates:  templates.FS(),
		Prompter:   input.Survey{},
		IsTerminal: generator.IsTerminal,
	}
}

// RootCmd creates and returns the root command for the hatch CLI
func (a *App) RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hatch",
		Short: "Generate project skeletons from layered templates",
		Long: `Hatch creates new projects from a base template plus optional add-ons.

Add-ons contribute files and merge into shared configuration such as
package.json, app.json or .env.example. Conflicting contributions are
reported before anything is written.

Example:
  hatch new nestjs billing-api --addon database --addon auth`,
		Version:       hatch.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.config = cfg
			output.SetVerbose(a.verbose || cfg.Verbose)
			if cfg.File != "" {
				output.Verbose(fmt.Sprintf("Using config %s", cfg.File))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output for debugging")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ./hatch.yml or $XDG_CONFIG_HOME/hatch/hatch.yml)")

	return cmd
}

// registry loads the built-in templates and every configured template
// directory.
func (a *App) registry() (*registry.Registry, error) {
	reg := registry.New()
	if a.Templates != nil {
		if err := reg.LoadFS(a.Templates); err != nil {
			return nil, fmt.Errorf("loading built-in templates: %w", err)
		}
	}
	if a.config == nil {
		return reg, nil
	}
	for _, dir := range a.config.TemplatesDirs {
		dir = expandHome(dir)
		output.Verbose(fmt.Sprintf("Loading templates from %s", dir))
		if err := reg.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("loading templates from %s: %w", dir, err)
		}
	}
	return reg, nil
}

func (a *App) interactive() bool {
	if a.config != nil && !a.config.Interactive {
		return false
	}
	return a.IsTerminal != nil && a.IsTerminal()
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	if errors.Is(err, input.ErrAborted) {
		return 130
	}
	return orchestrator.KindOf(err).ExitCode()
}
