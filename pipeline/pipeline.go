// Package pipeline runs a binding job in two phases.  Every header is
// parsed and scanned for struct returns first; only when the registry is
// complete are bindings and shims written.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"headerbind/clangast"
	"headerbind/config"
	"headerbind/ctype"
	"headerbind/detect"
	"headerbind/emit"
	"headerbind/emit/csharp"
	"headerbind/emit/gobind"
	"headerbind/emit/nature"
	"headerbind/ir"
	"headerbind/logging"
	"headerbind/shim"
)

// ErrNoIRDumpDir is returned by DumpIR when no dump directory is set.
var ErrNoIRDumpDir = errors.New("output.ir_dump_dir is not set")

// Unit is one parsed task.
type Unit struct {
	Task   *config.Task
	Module *ir.Module
	Types  *ctype.TypeSet
}

// Target pairs an emitter with the directory it writes to.
type Target struct {
	Emitter emit.Emitter
	Dir     string
}

// Pipeline holds the state of one run.  It is not reusable.
type Pipeline struct {
	cfg       *config.Config
	log       *logging.Logger
	overrides *ctype.Overrides

	// Frontend produces ASTs for tasks without a pre-dumped file.
	Frontend clangast.Frontend
	Targets  []Target
}

// New prepares a run over cfg.  The frontend and targets follow the
// configuration and may be replaced before Parse.
func New(cfg *config.Config, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.NoopLogger()
	}
	p := &Pipeline{
		cfg:       cfg,
		log:       log,
		overrides: cfg.BuildOverrides(),
		Frontend:  frontend(cfg),
	}

	out := cfg.Output
	if out.CSharp != "" {
		p.Targets = append(p.Targets, Target{&csharp.Emitter{Namespace: out.Namespace}, out.CSharp})
	}
	if out.Nature != "" {
		p.Targets = append(p.Targets, Target{nature.Emitter{}, out.Nature})
	}
	if out.Go != "" {
		p.Targets = append(p.Targets, Target{&gobind.Emitter{Package: out.GoPackage}, out.Go})
	}
	return p
}

func frontend(cfg *config.Config) clangast.Frontend {
	if cfg.Clang.Libclang {
		return &clangast.LibclangFrontend{Args: cfg.Clang.Args}
	}
	return &clangast.ClangFrontend{
		Command:       cfg.Clang.Command,
		Args:          cfg.Clang.Args,
		ParseComments: cfg.Clang.ParseComments,
		Dir:           cfg.Dir,
		CacheDir:      cfg.Clang.CacheDir,
	}
}

// Run executes both phases.
func (p *Pipeline) Run(ctx context.Context) error {
	units, reg, err := p.Parse(ctx)
	if err != nil {
		return err
	}
	if p.cfg.Output.IRDumpDir != "" {
		if err := p.DumpIR(ctx, units); err != nil {
			return err
		}
	}
	if err := p.Emit(ctx, units, reg); err != nil {
		return err
	}
	return p.Shims(ctx, reg)
}

// Parse is the first phase: it parses every task in order and returns the
// modules with the finished struct-return registry.
func (p *Pipeline) Parse(ctx context.Context) ([]*Unit, *detect.Registry, error) {
	units := make([]*Unit, 0, len(p.cfg.Tasks))
	inputs := make([]detect.Input, 0, len(p.cfg.Tasks))
	for _, t := range p.cfg.Tasks {
		u, err := p.parseTask(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, u)
		inputs = append(inputs, detect.Input{Module: u.Module, Types: u.Types})
	}

	reg, err := detect.Detect(ctx, inputs, p.overrides, p.log)
	if err != nil {
		return nil, nil, err
	}
	return units, reg, nil
}

func (p *Pipeline) parseTask(ctx context.Context, t *config.Task) (*Unit, error) {
	name := p.cfg.Module(t.Prefix)
	p.log.LogModule(ctx, t.Header, name, p.cfg.Library(t.Prefix))

	tu, err := p.ast(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Header, err)
	}
	source, err := os.ReadFile(t.Header)
	if err != nil {
		return nil, err
	}

	m, err := ir.NewParser(source, p.log.WithModule(name)).ParseModule(ctx, name, t.Prefix, t.Deps, tu)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Header, err)
	}

	ts := p.cfg.BuildTypeSet()
	ts.RegisterModule(m)
	return &Unit{Task: t, Module: m, Types: ts}, nil
}

func (p *Pipeline) ast(ctx context.Context, t *config.Task) (*clangast.Node, error) {
	if t.AST != "" {
		return clangast.LoadFile(t.AST)
	}
	return p.Frontend.Parse(ctx, t.Source)
}

// Env returns the emission environment of u.
func (p *Pipeline) Env(u *Unit, reg *detect.Registry) *emit.Env {
	imports := make([]string, 0, len(u.Task.Deps))
	for _, d := range u.Task.Deps {
		imports = append(imports, p.cfg.Module(d))
	}
	return &emit.Env{
		Module:    u.Module,
		Types:     u.Types,
		Overrides: p.overrides,
		Registry:  reg,
		Library:   p.cfg.Library(u.Task.Prefix),
		Imports:   imports,
		Log:       p.log.WithModule(u.Module.Name),
	}
}

// Emit is the second phase: it writes the bindings of every unit for
// every target.
func (p *Pipeline) Emit(ctx context.Context, units []*Unit, reg *detect.Registry) error {
	for _, u := range units {
		env := p.Env(u, reg)
		for _, t := range p.Targets {
			files, err := t.Emitter.Emit(ctx, env)
			if err != nil {
				return fmt.Errorf("%s bindings for %s: %w", t.Emitter.Language(), u.Module.Name, err)
			}
			for _, f := range files {
				if err := p.write(ctx, filepath.Join(t.Dir, f.Name), f.Data); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Shims writes the configured shim headers.
func (p *Pipeline) Shims(ctx context.Context, reg *detect.Registry) error {
	g := &shim.Generator{Artifacts: p.cfg.ShimArtifacts(), Overrides: p.overrides, Log: p.log}
	outs, err := g.Generate(ctx, reg)
	if err != nil {
		return err
	}
	for _, o := range outs {
		if err := p.write(ctx, o.Artifact.Path, o.Data); err != nil {
			return err
		}
	}
	return nil
}

// DumpIR writes <module>.json for every unit.
func (p *Pipeline) DumpIR(ctx context.Context, units []*Unit) error {
	dir := p.cfg.Output.IRDumpDir
	if dir == "" {
		return ErrNoIRDumpDir
	}
	for _, u := range units {
		data, err := json.MarshalIndent(u.Module, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding IR of %s: %w", u.Module.Name, err)
		}
		if err := p.write(ctx, filepath.Join(dir, u.Module.Name+".json"), data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) write(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	p.log.LogArtifact(ctx, path)
	return nil
}
