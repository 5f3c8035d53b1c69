package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch/internal/config"
	"github.com/simonhull/firebird-suite/hatch/internal/generator"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/simonhull/firebird-suite/hatch/internal/orchestrator"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/registry"
	"github.com/simonhull/firebird-suite/hatch/internal/variables"
)

type newOptions struct {
	addons      []string
	sets        []string
	answersFile string
	overwrite   bool
	dryRun      bool
	yes         bool
	askAll      bool
}

// NewCmd creates and returns the 'new' command for generating projects
func (a *App) NewCmd() *cobra.Command {
	var opts newOptions

	cmd := &cobra.Command{
		Use:   "new <template> <directory>",
		Short: "Create a new project from a template",
		Long: `Creates a new project in <directory> from a template and its add-ons.

Answers are layered: config defaults, then --answers, then --set. On a
terminal hatch asks for anything still missing; --yes accepts defaults and
never prompts.

Examples:
  hatch new react storefront
  hatch new nestjs billing-api --addon database --addon auth --set port=8080
  hatch new expo field-app --addon nativewind --answers answers.yml --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runNew(cmd.Context(), args[0], args[1], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.addons, "addon", "a", nil, "Add-on to apply (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.sets, "set", "s", nil, "Answer a placeholder as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.answersFile, "answers", "", "File with placeholder answers (yaml, json, toml, env)")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace the target directory if it is not empty")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would be generated without writing")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Accept defaults and never prompt")
	cmd.Flags().BoolVar(&opts.askAll, "ask", false, "Prompt for every unanswered placeholder, offering its default")

	return cmd
}

func (a *App) runNew(ctx context.Context, templateID, dir string, opts newOptions) error {
	reg, err := a.registry()
	if err != nil {
		return err
	}

	declared, err := declaredPlaceholders(reg, templateID, opts.addons)
	if err != nil {
		return err
	}

	answers, err := a.answers(declared, opts)
	if err != nil {
		return err
	}

	interactive := a.interactive() && !opts.yes
	if interactive {
		answers, err = input.Collect(ctx, a.Prompter, declared, answers, opts.askAll)
		if err != nil {
			return err
		}
	}

	orch := orchestrator.New(reg, orchestrator.WithFs(a.Fs), orchestrator.WithObserver(logTransition))
	req := orchestrator.Request{
		TemplateID: templateID,
		Addons:     opts.addons,
		Variables:  answers,
		TargetDir:  dir,
		Overwrite:  opts.overwrite,
	}

	preview, err := orch.Plan(ctx, req)
	if err != nil {
		return err
	}

	if opts.dryRun {
		printPlan(preview, dir)
		return nil
	}

	proceed, err := a.confirmTarget(ctx, preview, &req, interactive)
	if err != nil || !proceed {
		return err
	}

	result, err := orch.Generate(ctx, req)
	if err != nil {
		return err
	}

	output.Success(fmt.Sprintf("Created %s from %s (%d files)", dir, describeSelection(preview), len(result.WrittenPaths)))
	output.Verbose(fmt.Sprintf("Digest %s", result.Digest))
	output.Info("Next steps:")
	output.Step(fmt.Sprintf("cd %s", dir))
	output.Step("npm install")
	return nil
}

// answers layers config defaults, the answers file and --set flags. Each
// layer is matched to the declared names before merging, since viper folds
// keys to lower case.
func (a *App) answers(declared []variables.Placeholder, opts newOptions) (map[string]string, error) {
	names := make([]string, len(declared))
	for i, p := range declared {
		names[i] = p.Name
	}

	var layers []map[string]string
	if a.config != nil {
		layers = append(layers, config.Canonicalize(a.config.Defaults, names))
	}
	if opts.answersFile != "" {
		file, err := config.LoadAnswers(opts.answersFile)
		if err != nil {
			return nil, err
		}
		layers = append(layers, config.Canonicalize(file, names))
	}
	sets, err := parseSets(opts.sets)
	if err != nil {
		return nil, err
	}
	layers = append(layers, sets)

	return config.MergeAnswers(layers...)
}

// confirmTarget decides what to do when the target already holds files.
// It sets req.Overwrite when the user chooses to replace them and reports
// false when generation should stop without an error.
func (a *App) confirmTarget(ctx context.Context, preview *orchestrator.Preview, req *orchestrator.Request, interactive bool) (bool, error) {
	target, err := filepath.Abs(req.TargetDir)
	if err != nil {
		return false, fmt.Errorf("resolving target directory: %w", err)
	}

	files := make([]generator.File, len(preview.Plan.Files))
	for i, e := range preview.Plan.Files {
		files[i] = generator.File{Path: e.Path, Content: e.Content, Mode: e.Mode}
	}
	summary, err := generator.Summarize(a.Fs, target, files)
	if err != nil {
		return false, err
	}
	if !summary.Occupied() {
		return true, nil
	}
	output.Verbose(fmt.Sprintf("%s is not empty: %s", target, summary.Headline()))

	if req.Overwrite {
		if !interactive {
			return true, nil
		}
		return a.Prompter.Confirm(ctx, fmt.Sprintf("Replace %s (%s)?", req.TargetDir, summary.Headline()), false)
	}

	strategy := a.Strategy
	if strategy == nil {
		if !interactive {
			// Generate reports TargetNotEmpty.
			return true, nil
		}
		strategy = &generator.InteractiveStrategy{}
	}

	resolution, err := generator.NewResolverWithStrategy(strategy).ResolveTarget(summary)
	if err != nil {
		return false, err
	}
	switch resolution {
	case generator.Replace:
		req.Overwrite = true
		return true, nil
	case generator.Keep:
		return false, &generator.TargetNotEmptyError{Path: target}
	default:
		output.Warn("Cancelled")
		return false, nil
	}
}

// declaredPlaceholders merges the placeholders of a template and the
// selected add-ons.
func declaredPlaceholders(reg *registry.Registry, templateID string, addonIDs []string) ([]variables.Placeholder, error) {
	tmpl, err := reg.Lookup(templateID)
	if err != nil {
		return nil, err
	}
	sets := [][]variables.Placeholder{tmpl.Placeholders}
	for _, id := range addonIDs {
		addon, err := reg.Addon(templateID, id)
		if err != nil {
			return nil, err
		}
		sets = append(sets, addon.Placeholders)
	}
	return variables.Merge(sets...), nil
}

// parseSets turns name=value flags into answers.
func parseSets(sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", s)
		}
		out[name] = value
	}
	return out, nil
}

func logTransition(t orchestrator.Transition) {
	if t.Err != nil {
		output.Verbose(fmt.Sprintf("%s → %s: %v", t.From, t.To, t.Err))
		return
	}
	output.Verbose(fmt.Sprintf("%s → %s", t.From, t.To))
}

func describeSelection(p *orchestrator.Preview) string {
	if len(p.Addons) == 0 {
		return p.Template.ID
	}
	ids := make([]string, len(p.Addons))
	for i, addon := range p.Addons {
		ids[i] = addon.ID
	}
	return fmt.Sprintf("%s + %s", p.Template.ID, strings.Join(ids, ", "))
}

func printPlan(p *orchestrator.Preview, dir string) {
	output.Heading(fmt.Sprintf("Plan for %s in %s", describeSelection(p), dir))
	for _, e := range p.Plan.Files {
		line := fmt.Sprintf("%-48s %8s", e.Path, humanize.Bytes(uint64(len(e.Content))))
		if e.Manifest {
			line += "  merged"
		}
		output.Step(line)
	}
	output.Info(fmt.Sprintf("%d files, %s, digest %s", len(p.Plan.Files), humanize.Bytes(uint64(p.Plan.Size())), shortDigest(p.Plan.Digest)))
	output.Plain("Dry run: nothing was written.")
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
