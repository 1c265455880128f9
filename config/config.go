// Package config loads the TOML file that describes a binding run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml"

	"headerbind/ctype"
	"headerbind/shim"
)

var (
	ErrNoTasks       = errors.New("no tasks configured")
	ErrUnknownPrefix = errors.New("prefix has no lookup entry")
)

// Task is one header to bind.  Tasks run in file order and a task may only
// depend on prefixes of earlier tasks.
type Task struct {
	Header string   `toml:"header"`
	Prefix string   `toml:"prefix"`
	Deps   []string `toml:"deps,omitempty"`
	// AST is a pre-dumped JSON AST, optionally zstd, gzip or lz4
	// compressed.  When empty the AST is produced from Source.
	AST string `toml:"ast,omitempty"`
	// Source is the translation unit handed to clang.  It falls back to
	// the prefix's lookup entry and then to Header.
	Source string `toml:"source,omitempty"`
}

// Prefix is the read-only lookup entry of a symbol prefix.
type Prefix struct {
	Module  string `toml:"module"`
	Library string `toml:"library"`
	Source  string `toml:"source,omitempty"`
}

type Overrides struct {
	Ignore []string          `toml:"ignore,omitempty"`
	Names  map[string]string `toml:"names,omitempty"`
	// Types is keyed by "<owner>.<member>"; member RESULT targets a
	// function's return type.
	Types         map[string]string `toml:"types,omitempty"`
	HandleReturns []string          `toml:"handle_returns,omitempty"`
}

type Types struct {
	// Aliases maps extra typedef names onto builtin primitives.
	Aliases map[string]string `toml:"aliases,omitempty"`
	// Opaque lists raw type strings handled as untyped pointers.
	Opaque []string `toml:"opaque,omitempty"`
}

type Clang struct {
	Command       string   `toml:"command,omitempty"`
	Args          []string `toml:"args,omitempty"`
	ParseComments bool     `toml:"parse_comments"`
	CacheDir      string   `toml:"cache_dir,omitempty"`
	// Libclang selects the in-process frontend when the binary supports it.
	Libclang bool `toml:"libclang"`
}

type Output struct {
	CSharp    string `toml:"csharp,omitempty"`
	Nature    string `toml:"nature,omitempty"`
	Go        string `toml:"go,omitempty"`
	GoPackage string `toml:"go_package,omitempty"`
	Namespace string `toml:"namespace,omitempty"`
	IRDumpDir string `toml:"ir_dump_dir,omitempty"`
}

type Shim struct {
	Name         string            `toml:"name"`
	Path         string            `toml:"path"`
	Guard        string            `toml:"guard"`
	Export       string            `toml:"export,omitempty"`
	DefineExport bool              `toml:"define_export"`
	Includes     []string          `toml:"includes,omitempty"`
	Prefixes     []string          `toml:"prefixes,omitempty"`
	Optional     map[string]string `toml:"optional,omitempty"`
}

// Config is a complete run description.
type Config struct {
	Tasks     []*Task           `toml:"task"`
	Prefixes  map[string]Prefix `toml:"prefix"`
	Overrides Overrides         `toml:"overrides"`
	Types     Types             `toml:"types"`
	Clang     Clang             `toml:"clang"`
	Output    Output            `toml:"output"`
	Shims     []*Shim           `toml:"shim"`

	// Dir is the directory of the loaded file.
	Dir string `toml:"-"`
}

// Load reads, resolves and validates the configuration at path.
func Load(path string) (*Config, error) {
	buff, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := toml.Unmarshal(buff, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(abs)
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// resolve makes every relative path absolute against Dir and fills in the
// task sources.
func (c *Config) resolve() {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.Dir, *p)
		}
	}

	for k, p := range c.Prefixes {
		abs(&p.Source)
		c.Prefixes[k] = p
	}
	for _, t := range c.Tasks {
		abs(&t.Header)
		abs(&t.AST)
		abs(&t.Source)
		if t.Source == "" {
			if p, ok := c.Prefixes[t.Prefix]; ok && p.Source != "" {
				t.Source = p.Source
			} else {
				t.Source = t.Header
			}
		}
	}
	abs(&c.Clang.CacheDir)
	abs(&c.Output.CSharp)
	abs(&c.Output.Nature)
	abs(&c.Output.Go)
	abs(&c.Output.IRDumpDir)
	for _, s := range c.Shims {
		abs(&s.Path)
	}
}

// Validate checks that every task prefix can be looked up and that
// dependencies only name earlier tasks.
func (c *Config) Validate() error {
	if len(c.Tasks) == 0 {
		return ErrNoTasks
	}

	var seen []string
	for i, t := range c.Tasks {
		if t.Header == "" {
			return fmt.Errorf("task %d: missing header", i)
		}
		if _, ok := c.Prefixes[t.Prefix]; !ok {
			return fmt.Errorf("task %s: %w: %q", t.Header, ErrUnknownPrefix, t.Prefix)
		}
		for _, d := range t.Deps {
			if !slices.Contains(seen, d) {
				return fmt.Errorf("task %s: dependency %q must be bound by an earlier task", t.Header, d)
			}
		}
		seen = append(seen, t.Prefix)
	}

	for _, s := range c.Shims {
		if s.Path == "" || s.Guard == "" {
			return fmt.Errorf("shim %q: path and guard are required", s.Name)
		}
		for _, p := range s.Prefixes {
			if _, ok := c.Prefixes[p]; !ok {
				return fmt.Errorf("shim %s: %w: %q", s.Name, ErrUnknownPrefix, p)
			}
		}
	}
	return nil
}

// Module returns the display name of prefix.
func (c *Config) Module(prefix string) string {
	if p, ok := c.Prefixes[prefix]; ok {
		return p.Module
	}
	return ""
}

// Library returns the native library of prefix.
func (c *Config) Library(prefix string) string {
	if p, ok := c.Prefixes[prefix]; ok {
		return p.Library
	}
	return ""
}

// BuildOverrides returns the override tables of the run.
func (c *Config) BuildOverrides() *ctype.Overrides {
	o := c.Overrides
	return ctype.NewOverrides(o.Ignore, o.Names, o.Types, o.HandleReturns)
}

// BuildTypeSet returns an empty type set carrying the configured aliases
// and opaque types.
func (c *Config) BuildTypeSet() *ctype.TypeSet {
	return ctype.NewTypeSet(c.Types.Aliases, c.Types.Opaque)
}

// ShimArtifacts converts the shim sections.
func (c *Config) ShimArtifacts() []shim.Artifact {
	out := make([]shim.Artifact, len(c.Shims))
	for i, s := range c.Shims {
		out[i] = shim.Artifact{
			Name:         s.Name,
			Path:         s.Path,
			Guard:        s.Guard,
			Export:       s.Export,
			DefineExport: s.DefineExport,
			Includes:     s.Includes,
			Prefixes:     s.Prefixes,
			Optional:     s.Optional,
		}
	}
	return out
}
