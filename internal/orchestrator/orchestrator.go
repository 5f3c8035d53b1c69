// Package orchestrator runs one generation end to end: resolve variables,
// build the plan, commit it to disk.
//
// Each run moves through Idle → Resolving → Planning → Committing → Done,
// or to Failed from any step. Resolving and Planning have no side effects;
// every error except a write failure is reported before the filesystem is
// touched. An Orchestrator holds no per-run state and may serve concurrent
// runs against the same registry.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/simonhull/firebird-suite/hatch/internal/generator"
	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/materialize"
	"github.com/simonhull/firebird-suite/hatch/internal/registry"
	"github.com/simonhull/firebird-suite/hatch/internal/variables"
)

// State is a step of a generation run.
type State int

const (
	Idle State = iota
	Resolving
	Planning
	Committing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Planning:
		return "planning"
	case Committing:
		return "committing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition is reported to an Observer on every state change. Err is set
// when To is Failed.
type Transition struct {
	From State
	To   State
	Err  error
}

// Observer receives the transitions of every run.
type Observer func(Transition)

// Request describes one generation.
type Request struct {
	TemplateID string
	Addons     []string // in selection order
	Variables  map[string]string
	TargetDir  string
	Overwrite  bool
}

// Result is what a successful run produced.
type Result struct {
	WrittenPaths []string // relative to TargetDir, sorted
	Manifests    []*manifest.Manifest
	Digest       string
	TargetDir    string // absolute
}

// Preview is the outcome of Resolving and Planning without a commit.
type Preview struct {
	Template  registry.Template
	Addons    []registry.Addon
	Variables variables.Map
	Plan      *materialize.Plan
}

// Orchestrator drives generation runs.
type Orchestrator struct {
	registry *registry.Registry
	fs       afero.Fs
	observer Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFs sets the filesystem runs commit to. The default is the OS
// filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(o *Orchestrator) { o.fs = fsys }
}

// WithObserver registers a callback for state transitions.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New creates an orchestrator over reg.
func New(reg *registry.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{registry: reg, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Plan resolves variables and builds the generation plan without writing
// anything.
func (o *Orchestrator) Plan(ctx context.Context, req Request) (*Preview, error) {
	r := o.newRun()
	preview, err := r.prepare(ctx, o.registry, req)
	if err != nil {
		return nil, r.fail(err)
	}
	r.transition(Done, nil)
	return preview, nil
}

// Generate runs the whole pipeline and commits the plan to req.TargetDir.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	r := o.newRun()

	if req.TargetDir == "" {
		return nil, r.fail(fmt.Errorf("no target directory given"))
	}
	target, err := filepath.Abs(req.TargetDir)
	if err != nil {
		return nil, r.fail(fmt.Errorf("resolving target directory: %w", err))
	}

	preview, err := r.prepare(ctx, o.registry, req)
	if err != nil {
		return nil, r.fail(err)
	}

	r.transition(Committing, nil)
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	tx := generator.NewTransaction(o.fs, target)
	defer tx.Rollback()
	for _, f := range preview.Plan.Files {
		tx.AddFile(f.Path, f.Content, f.Mode)
	}

	written, err := tx.Commit(ctx, req.Overwrite)
	if err != nil {
		return nil, r.fail(err)
	}

	r.transition(Done, nil)
	return &Result{
		WrittenPaths: written,
		Manifests:    preview.Plan.Manifests,
		Digest:       preview.Plan.Digest,
		TargetDir:    target,
	}, nil
}

// run tracks the state of one generation.
type run struct {
	state    State
	observer Observer
}

func (o *Orchestrator) newRun() *run {
	return &run{state: Idle, observer: o.observer}
}

func (r *run) transition(to State, err error) {
	from := r.state
	r.state = to
	if r.observer != nil {
		r.observer(Transition{From: from, To: to, Err: err})
	}
}

func (r *run) fail(err error) error {
	r.transition(Failed, err)
	return err
}

// prepare runs Resolving and Planning.
func (r *run) prepare(ctx context.Context, reg *registry.Registry, req Request) (*Preview, error) {
	r.transition(Resolving, nil)

	tmpl, err := reg.Lookup(req.TemplateID)
	if err != nil {
		return nil, err
	}

	layers := []registry.Layer{tmpl.Layer()}
	sets := [][]variables.Placeholder{tmpl.Placeholders}
	var addons []registry.Addon

	seen := make(map[string]bool)
	for _, id := range req.Addons {
		if seen[id] {
			continue
		}
		seen[id] = true

		addon, err := reg.Addon(req.TemplateID, id)
		if err != nil {
			return nil, err
		}
		addons = append(addons, addon)
		layers = append(layers, addon.Layer())
		sets = append(sets, addon.Placeholders)
	}

	vars, err := variables.Resolve(variables.Merge(sets...), req.Variables)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.transition(Planning, nil)

	plan, err := materialize.Materialize(layers, vars)
	if err != nil {
		return nil, err
	}

	return &Preview{Template: tmpl, Addons: addons, Variables: vars, Plan: plan}, nil
}
