// Package shim writes the C headers that back the out-pointer functions the
// bindings declare.  Each shim calls a struct-returning function and stores
// its result through a pointer, which is the only form some runtimes can
// marshal.
package shim

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"headerbind/ctype"
	"headerbind/detect"
	"headerbind/emit"
	"headerbind/logging"
	orderedmap "headerbind/ordered_map"
)

// DefaultExport prefixes shim definitions in artifacts that do not define
// their own export macro.
const DefaultExport = "SOKOL_API_IMPL"

// Artifact describes one generated header.
type Artifact struct {
	Name string
	// Path is where the header is written.
	Path string
	// Guard is the include guard macro.
	Guard string
	// Export prefixes every shim definition.  With DefineExport set the
	// header defines it, as EMSCRIPTEN_KEEPALIVE under Emscripten.
	Export       string
	DefineExport bool
	Includes     []string
	// Prefixes routes modules to this artifact.  An artifact without
	// prefixes is the default and receives every module not routed
	// elsewhere.
	Prefixes []string
	// Optional maps a module name to the macro that guards its shims.
	Optional map[string]string
}

func (a *Artifact) isDefault() bool { return len(a.Prefixes) == 0 }

func (a *Artifact) export() string {
	if a.Export == "" {
		return DefaultExport
	}
	return a.Export
}

// Output is a rendered artifact.
type Output struct {
	Artifact *Artifact
	Data     []byte
}

// Generator renders shim headers from a finished registry.
type Generator struct {
	Artifacts []Artifact
	Overrides *ctype.Overrides
	Log       *logging.Logger
}

// route returns the artifact a module prefix belongs to, or nil.
func (g *Generator) route(prefix string) *Artifact {
	var def *Artifact
	for i := range g.Artifacts {
		a := &g.Artifacts[i]
		if slices.Contains(a.Prefixes, prefix) {
			return a
		}
		if a.isDefault() && def == nil {
			def = a
		}
	}
	return def
}

// Generate renders every artifact.  Artifacts are produced even when no
// module routes to them so that including code keeps compiling.
func (g *Generator) Generate(ctx context.Context, reg *detect.Registry) ([]Output, error) {
	log := g.Log
	if log == nil {
		log = logging.NoopLogger()
	}

	groups := orderedmap.NewOrderedMap[*Artifact, []detect.ModuleGroup]()
	for i := range g.Artifacts {
		groups.Set(&g.Artifacts[i], nil)
	}
	for _, mg := range reg.ByModule() {
		if len(mg.Entries) == 0 {
			continue
		}
		a := g.route(mg.Prefix)
		if a == nil {
			log.WarnContext(ctx, "no shim artifact for module", "module", mg.Module, "prefix", mg.Prefix)
			continue
		}
		prev, _ := groups.Get(a)
		groups.Set(a, append(prev, mg))
	}

	var out []Output
	var err error
	groups.Range(func(a *Artifact, mgs []detect.ModuleGroup) bool {
		var data []byte
		if data, err = g.render(a, mgs); err != nil {
			return false
		}
		out = append(out, Output{Artifact: a, Data: data})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Generator) render(a *Artifact, groups []detect.ModuleGroup) ([]byte, error) {
	if a.Guard == "" {
		return nil, fmt.Errorf("shim artifact %q: missing include guard", a.Name)
	}

	var w emit.Writer
	w.L("/*")
	w.L("    Machine generated by headerbind, do not edit.")
	w.L("")
	w.L("    Out-pointer wrappers for functions that return structs by value.")
	w.L("*/")
	w.L("")
	w.Lf("#ifndef %s", a.Guard)
	w.Lf("#define %s", a.Guard)
	w.L("")

	for _, inc := range a.Includes {
		w.Lf("#include %s", quoteInclude(inc))
	}
	if len(a.Includes) > 0 {
		w.L("")
	}

	if a.DefineExport {
		w.L("#ifdef __EMSCRIPTEN__")
		w.L("    #include <emscripten.h>")
		w.Lf("    #define %s EMSCRIPTEN_KEEPALIVE", a.export())
		w.L("#else")
		w.Lf("    #define %s", a.export())
		w.L("#endif")
		w.L("")
	}

	for _, mg := range groups {
		macro := a.Optional[mg.Module]
		if macro != "" {
			w.Lf("#if defined(%s)", macro)
		}
		w.Lf("// ========== %s (%s) ==========", mg.Module, mg.Prefix)
		w.L("")
		for _, e := range mg.Entries {
			g.shim(&w, a, e)
		}
		if macro != "" {
			w.Lf("#endif // %s", macro)
			w.L("")
		}
	}

	w.Lf("#endif // %s", a.Guard)
	return []byte(w.String()), nil
}

func (g *Generator) shim(w *emit.Writer, a *Artifact, e detect.Entry) {
	fn := e.Decl
	args := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		args[i] = p.Name
	}
	out := emit.OutName("result", args)

	params := []string{e.StructType + "* " + out}
	for _, p := range fn.Params {
		params = append(params, Declarator(g.Overrides.Type(fn.Name, p.Name, p.Type), p.Name))
	}

	w.Lf("%s void %s_internal(%s) {", a.export(), fn.Name, strings.Join(params, ", "))
	w.Lf("    *%s = %s(%s);", out, fn.Name, strings.Join(args, ", "))
	w.L("}")
	w.L("")
}

func quoteInclude(inc string) string {
	if strings.HasPrefix(inc, "<") || strings.HasPrefix(inc, `"`) {
		return inc
	}
	return `"` + inc + `"`
}

var arraySuffix = regexp.MustCompile(`^(.*?)\s*((?:\[\d+\])+)$`)

// Declarator places name inside a C type the way a declaration spells it:
// "int [4]" becomes "int name[4]" and "void (*)(int)" becomes
// "void (*name)(int)".
func Declarator(typ, name string) string {
	if i := strings.Index(typ, "(*)"); i >= 0 {
		return typ[:i] + "(*" + name + ")" + typ[i+3:]
	}
	if m := arraySuffix.FindStringSubmatch(typ); m != nil {
		return m[1] + " " + name + m[2]
	}
	if strings.HasSuffix(typ, "*") {
		return typ + name
	}
	return typ + " " + name
}
