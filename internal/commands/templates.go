package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/placeholder"
	"github.com/simonhull/firebird-suite/hatch/internal/registry"
)

// TemplatesCmd creates and returns the 'templates' command for inspecting
// the registry
func (a *App) TemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and inspect available templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available templates and their add-ons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			listTemplates(reg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <template>",
		Short: "Show a template's placeholders, add-ons and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			return showTemplate(reg, args[0])
		},
	})

	return cmd
}

func listTemplates(reg *registry.Registry) {
	list := reg.List()
	if len(list) == 0 {
		output.Warn("No templates found")
		return
	}

	output.Heading("Templates")
	for _, t := range list {
		line := fmt.Sprintf("%-12s %s", t.ID, t.Description)
		if len(t.Addons) > 0 {
			line += fmt.Sprintf(" [add-ons: %s]", strings.Join(t.Addons, ", "))
		}
		output.Step(line)
	}
}

func showTemplate(reg *registry.Registry, id string) error {
	t, err := reg.Lookup(id)
	if err != nil {
		return err
	}

	title := t.Name
	if t.Version != "" {
		title += " " + t.Version
	}
	output.Heading(title)
	if t.Description != "" {
		output.Plain(t.Description)
	}

	output.Info("Placeholders:")
	for _, p := range t.Placeholders {
		output.Step(describePlaceholder(p.Name, p.Description, p.Default, p.Required))
	}

	if len(t.Addons) > 0 {
		output.Info("Add-ons:")
		for _, aid := range t.Addons {
			addon, err := reg.Addon(id, aid)
			if err != nil {
				return err
			}
			output.Step(fmt.Sprintf("%-12s %s", addon.ID, addon.Description))
			for _, p := range addon.Placeholders {
				output.Step("  " + describePlaceholder(p.Name, p.Description, p.Default, p.Required))
			}
		}
	}

	output.Info("Files:")
	for _, f := range t.Files {
		line := f.Path
		if f.Kind == registry.Manifest {
			line += fmt.Sprintf(" (%s manifest)", f.Format)
		}
		output.Step(line)
	}

	output.Verbose(fmt.Sprintf("Filters: %s", strings.Join(placeholder.Filters(), ", ")))
	return nil
}

func describePlaceholder(name, description, def string, required bool) string {
	line := name
	if description != "" {
		line += " - " + description
	}
	switch {
	case def != "":
		line += fmt.Sprintf(" (default %s)", def)
	case required:
		line += " (required)"
	}
	return line
}
