// Package gobind renders Go bindings that call the native library through
// github.com/jupiterrider/ffi, one file per module in a shared package.
package gobind

import (
	"bytes"
	"context"
	"fmt"
	"go/token"
	"slices"
	"strings"
	"text/template"

	"github.com/golang-cz/textcase"

	"headerbind/ctype"
	"headerbind/emit"
	"headerbind/ir"
)

type goPrim struct {
	goType  string
	ffiType string
	// small results come back widened in an ffi.Arg
	small bool
}

var primTypes = map[string]goPrim{
	"bool":               {"bool", "&ffi.TypeUint8", true},
	"char":               {"int8", "&ffi.TypeSint8", true},
	"signed char":        {"int8", "&ffi.TypeSint8", true},
	"unsigned char":      {"uint8", "&ffi.TypeUint8", true},
	"short":              {"int16", "&ffi.TypeSint16", true},
	"unsigned short":     {"uint16", "&ffi.TypeUint16", true},
	"int":                {"int32", "&ffi.TypeSint32", true},
	"unsigned int":       {"uint32", "&ffi.TypeUint32", true},
	"long":               {"int64", "&ffi.TypeSint64", false},
	"unsigned long":      {"uint64", "&ffi.TypeUint64", false},
	"long long":          {"int64", "&ffi.TypeSint64", false},
	"unsigned long long": {"uint64", "&ffi.TypeUint64", false},
	"int8_t":             {"int8", "&ffi.TypeSint8", true},
	"uint8_t":            {"uint8", "&ffi.TypeUint8", true},
	"int16_t":            {"int16", "&ffi.TypeSint16", true},
	"uint16_t":           {"uint16", "&ffi.TypeUint16", true},
	"int32_t":            {"int32", "&ffi.TypeSint32", true},
	"uint32_t":           {"uint32", "&ffi.TypeUint32", true},
	"int64_t":            {"int64", "&ffi.TypeSint64", false},
	"uint64_t":           {"uint64", "&ffi.TypeUint64", false},
	"float":              {"float32", "&ffi.TypeFloat", false},
	"double":             {"float64", "&ffi.TypeDouble", false},
	"uintptr_t":          {"uintptr", "&ffi.TypePointer", false},
	"intptr_t":           {"int64", "&ffi.TypeSint64", false},
	"size_t":             {"uint64", "&ffi.TypeUint64", false},
}

const headerTmpl = `// Code generated by headerbind. DO NOT EDIT.

package {{.Package}}

import (
	"fmt"
	"unsafe"

	"github.com/jupiterrider/ffi"
	"golang.org/x/sys/unix"
)

var (
	_ = unix.BytePtrFromString
	_ = unsafe.Pointer(nil)
)

// Load{{.Module}} opens the {{.Library}} shared library at path and resolves
// the {{.Module}} functions.
func Load{{.Module}}(path string) error {
	lib, err := ffi.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	return load{{.Module}}Funcs(lib)
}
`

var header = template.Must(template.New("header").Parse(headerTmpl))

// Emitter writes <module>.go files into one Go package.
type Emitter struct {
	// Package is the generated package name; "bindings" when empty.
	Package string
}

func (*Emitter) Language() string { return "go" }

type gen struct {
	bytes.Buffer
	ctx context.Context
	env *emit.Env
}

func (e *Emitter) Emit(ctx context.Context, env *emit.Env) ([]emit.File, error) {
	pkg := e.Package
	if pkg == "" {
		pkg = "bindings"
	}
	g := &gen{ctx: ctx, env: env}
	m := env.Module

	err := header.Execute(&g.Buffer, map[string]any{
		"Package": pkg,
		"Module":  GoName(m.Name),
		"Library": env.Library,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering %s header: %w", m.Name, err)
	}
	fmt.Fprintf(g, "\n")

	var funcs []*ir.Func
	for _, d := range m.Decls {
		if !env.Emittable(d) {
			continue
		}
		switch d := d.(type) {
		case *ir.Consts:
			g.consts(d)
		case *ir.Enum:
			g.enum(d)
		case *ir.Struct:
			if !env.Superseded(d) {
				g.structDecl(d)
			}
		case *ir.Func:
			funcs = append(funcs, d)
		}
	}
	g.functions(GoName(m.Name), funcs)

	return []emit.File{{Name: strings.ToLower(m.Name) + ".go", Data: g.Bytes()}}, nil
}

// GoName turns a C identifier into an exported Go identifier.
func GoName(name string) string {
	return textcase.PascalCase(name)
}

// goParam turns a C parameter name into an unexported Go identifier.
func goParam(name string) string {
	n := textcase.CamelCase(name)
	if n == "" || token.IsKeyword(n) {
		return n + "_"
	}
	return n
}

func (g *gen) consts(c *ir.Consts) {
	items := g.env.ConstItems(c)
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(g, "const (\n")
	for _, it := range items {
		fmt.Fprintf(g, "\t%s = %d\n", GoName(it.Name), it.Value)
	}
	fmt.Fprintf(g, ")\n\n")
}

func (g *gen) enum(e *ir.Enum) {
	name := GoName(e.Name)
	fmt.Fprintf(g, "type %s int32\n\n", name)
	fmt.Fprintf(g, "const (\n")
	for _, v := range emit.EnumValues(e) {
		fmt.Fprintf(g, "\t%s %s = %d\n", GoName(v.Name), name, v.Value)
	}
	fmt.Fprintf(g, ")\n\n")
}

// goType maps a classified C type to Go.
func goType(sh ctype.Shape) string {
	switch sh.Category {
	case ctype.Void:
		return ""
	case ctype.Primitive:
		if p, ok := primTypes[sh.Base]; ok {
			return p.goType
		}
	case ctype.Struct, ctype.Enum:
		return GoName(sh.Base)
	case ctype.VoidPtr, ctype.ConstVoidPtr:
		return "unsafe.Pointer"
	case ctype.StringPtr:
		return "string"
	case ctype.ConstStructPtr, ctype.StructPtr, ctype.EnumPtr:
		return "*" + GoName(sh.Base)
	case ctype.StructPtrPtr:
		return "**" + GoName(sh.Base)
	case ctype.ConstPrimPtr, ctype.PrimPtr:
		if p, ok := primTypes[sh.Base]; ok {
			return "*" + p.goType
		}
	case ctype.FuncPtr:
		return "uintptr"
	case ctype.Array1D, ctype.Array2D:
		elem := goType(*sh.Elem)
		if sh.Elem.Category == ctype.StringPtr {
			elem = "*byte"
		}
		var b strings.Builder
		for _, d := range sh.Dims {
			fmt.Fprintf(&b, "[%d]", d)
		}
		return b.String() + elem
	}
	return emit.UnhandledDecl(sh.Raw)
}

// ffiType is the libffi descriptor of a value of the given shape.
func ffiType(sh ctype.Shape) string {
	switch sh.Category {
	case ctype.Void:
		return "&ffi.TypeVoid"
	case ctype.Primitive:
		if p, ok := primTypes[sh.Base]; ok {
			return p.ffiType
		}
	case ctype.Struct:
		return "&FFIType" + GoName(sh.Base)
	case ctype.Enum:
		return "&ffi.TypeSint32"
	case ctype.Unrecognized:
	default:
		return "&ffi.TypePointer"
	}
	return emit.UnhandledDecl(sh.Raw)
}

func (g *gen) structDecl(s *ir.Struct) {
	name := GoName(s.Name)
	if s.Opaque {
		fmt.Fprintf(g, "// %s is opaque.\ntype %s struct{}\n\n", name, name)
		return
	}

	shapes := make([]ctype.Shape, len(s.Fields))
	fmt.Fprintf(g, "type %s struct {\n", name)
	for i, f := range s.Fields {
		shapes[i] = g.env.Field(g.ctx, s, f)
		t := goType(shapes[i])
		if shapes[i].Category == ctype.StringPtr {
			t = "*byte"
		}
		fmt.Fprintf(g, "\t%s %s\n", GoName(g.env.Name(f.Name)), t)
	}
	fmt.Fprintf(g, "}\n\n")

	fmt.Fprintf(g, "var FFIType%s = ffi.NewType(\n", name)
	for _, sh := range shapes {
		if sh.Elem != nil {
			for i := 0; i < sh.Len(); i++ {
				fmt.Fprintf(g, "\t%s,\n", ffiType(*sh.Elem))
			}
			continue
		}
		fmt.Fprintf(g, "\t%s,\n", ffiType(sh))
	}
	fmt.Fprintf(g, ")\n\n")
}

func funcVar(name string) string {
	return textcase.CamelCase(name) + "Func"
}

func (g *gen) functions(module string, funcs []*ir.Func) {
	if len(funcs) > 0 {
		fmt.Fprintf(g, "var (\n")
		for _, fn := range funcs {
			fmt.Fprintf(g, "\t%s ffi.Fun\n", funcVar(fn.Name))
		}
		fmt.Fprintf(g, ")\n\n")
	}

	fmt.Fprintf(g, "func load%sFuncs(lib ffi.Lib) error {\n", module)
	if len(funcs) > 0 {
		fmt.Fprintf(g, "\tvar err error\n\n")
	}
	for _, fn := range funcs {
		symbol, ret := fn.Name, ffiType(g.env.Result(g.ctx, fn))
		var args []string
		if g.env.StructReturn(fn) {
			symbol, ret = fn.Name+"_internal", "&ffi.TypeVoid"
			args = append(args, "&ffi.TypePointer")
		}
		for _, p := range fn.Params {
			args = append(args, ffiType(g.env.Param(g.ctx, fn, p)))
		}
		prep := append([]string{fmt.Sprintf("%q", symbol), ret}, args...)
		fmt.Fprintf(g, "\tif %s, err = lib.Prep(%s); err != nil {\n", funcVar(fn.Name), strings.Join(prep, ", "))
		fmt.Fprintf(g, "\t\treturn fmt.Errorf(\"%s: %%w\", err)\n", symbol)
		fmt.Fprintf(g, "\t}\n\n")
	}
	fmt.Fprintf(g, "\treturn nil\n")
	fmt.Fprintf(g, "}\n\n")

	for _, fn := range funcs {
		g.wrapper(fn)
	}
}

func (g *gen) wrapper(fn *ir.Func) {
	res := g.env.Result(g.ctx, fn)
	retType := goType(res)
	structReturn := g.env.StructReturn(fn)

	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = goParam(g.env.Name(p.Name))
	}
	taken := slices.Clone(names)
	for i, p := range fn.Params {
		if g.env.Param(g.ctx, fn, p).Category == ctype.StringPtr {
			taken = append(taken, names[i]+"Ptr")
		}
	}
	result := emit.OutName("result", taken)
	resultPtr := emit.OutName("resultPtr", taken)

	var params, callArgs []string
	if structReturn {
		callArgs = append(callArgs, "unsafe.Pointer(&"+resultPtr+")")
	}
	var prologue []string
	for i, p := range fn.Params {
		name := names[i]
		sh := g.env.Param(g.ctx, fn, p)
		params = append(params, name+" "+goType(sh))
		if sh.Category == ctype.StringPtr {
			prologue = append(prologue, fmt.Sprintf("\t%sPtr, _ := unix.BytePtrFromString(%s)", name, name))
			callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%sPtr)", name))
			continue
		}
		callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%s)", name))
	}

	sig := fmt.Sprintf("func %s(%s)", GoName(g.env.Name(fn.Name)), strings.Join(params, ", "))
	if retType != "" {
		sig += " " + retType
	}
	fmt.Fprintf(g, "%s {\n", sig)
	for _, l := range prologue {
		fmt.Fprintf(g, "%s\n", l)
	}

	call := func(rvalue string) {
		all := append([]string{rvalue}, callArgs...)
		fmt.Fprintf(g, "\t%s.Call(%s)\n", funcVar(fn.Name), strings.Join(all, ", "))
	}

	switch {
	case structReturn:
		fmt.Fprintf(g, "\tvar %s %s\n", result, retType)
		fmt.Fprintf(g, "\t%s := &%s\n", resultPtr, result)
		call("nil")
		fmt.Fprintf(g, "\treturn %s\n", result)
	case res.Category == ctype.Void:
		call("nil")
	case res.Category == ctype.StringPtr:
		fmt.Fprintf(g, "\tvar %s *byte\n", resultPtr)
		call("unsafe.Pointer(&" + resultPtr + ")")
		fmt.Fprintf(g, "\tif %s == nil {\n", resultPtr)
		fmt.Fprintf(g, "\t\treturn \"\"\n")
		fmt.Fprintf(g, "\t}\n")
		fmt.Fprintf(g, "\treturn unix.BytePtrToString(%s)\n", resultPtr)
	case widened(res):
		fmt.Fprintf(g, "\tvar %s ffi.Arg\n", result)
		call("unsafe.Pointer(&" + result + ")")
		if res.Category == ctype.Primitive && res.Base == "bool" {
			fmt.Fprintf(g, "\treturn %s.Bool()\n", result)
		} else {
			fmt.Fprintf(g, "\treturn %s(%s)\n", retType, result)
		}
	default:
		fmt.Fprintf(g, "\tvar %s %s\n", result, retType)
		call("unsafe.Pointer(&" + result + ")")
		fmt.Fprintf(g, "\treturn %s\n", result)
	}
	fmt.Fprintf(g, "}\n\n")
}

// widened reports whether libffi returns the value in a full ffi.Arg slot.
func widened(sh ctype.Shape) bool {
	if sh.Category == ctype.Enum {
		return true
	}
	if sh.Category != ctype.Primitive {
		return false
	}
	p, ok := primTypes[sh.Base]
	return ok && p.small
}
