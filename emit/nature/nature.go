// Package nature renders bindings for the Nature language: `#linkid`
// annotated fn declarations and `type X = struct {}` layouts.
package nature

import (
	"context"
	"fmt"
	"strings"

	"headerbind/ctype"
	"headerbind/emit"
	"headerbind/ir"
)

// typeMappings is the C primitive to Nature type table.
var typeMappings = map[string]string{
	"void":               "void",
	"char":               "i8",
	"signed char":        "i8",
	"unsigned char":      "u8",
	"short":              "i16",
	"unsigned short":     "u16",
	"int":                "i32",
	"unsigned int":       "u32",
	"long":               "i64",
	"unsigned long":      "u64",
	"long long":          "i64",
	"unsigned long long": "u64",
	"float":              "f32",
	"double":             "f64",
	"size_t":             "uint",
	"uintptr_t":          "anyptr",
	"intptr_t":           "anyptr",
	"int8_t":             "i8",
	"uint8_t":            "u8",
	"int16_t":            "i16",
	"uint16_t":           "u16",
	"int32_t":            "i32",
	"uint32_t":           "u32",
	"int64_t":            "i64",
	"uint64_t":           "u64",
	"bool":               "bool",
}

// reservedKeywords are renamed by adding an underscore suffix.
var reservedKeywords = map[string]bool{
	"type":   true,
	"ptr":    true,
	"fn":     true,
	"var":    true,
	"import": true,
	"as":     true,
	"is":     true,
	"in":     true,
	"match":  true,
	"return": true,
	"string": true,
}

// Emitter writes one <module>.n file per module.
type Emitter struct{}

func (Emitter) Language() string { return "nature" }

type gen struct {
	emit.Writer
	ctx context.Context
	env *emit.Env
}

func (Emitter) Emit(ctx context.Context, env *emit.Env) ([]emit.File, error) {
	g := &gen{ctx: ctx, env: env}
	m := env.Module

	var consts []*ir.Consts
	var enums []*ir.Enum
	var structs []*ir.Struct
	var funcs []*ir.Func
	for _, d := range m.Decls {
		if !env.Emittable(d) {
			continue
		}
		switch d := d.(type) {
		case *ir.Consts:
			consts = append(consts, d)
		case *ir.Enum:
			enums = append(enums, d)
		case *ir.Struct:
			if !env.Superseded(d) {
				structs = append(structs, d)
			}
		case *ir.Func:
			funcs = append(funcs, d)
		}
	}

	g.L("// Generated Nature bindings")
	g.L("// This file was automatically generated by headerbind")
	g.L("")
	imports := env.Imports
	if returnsString(env, funcs) {
		imports = append([]string{"libc"}, imports...)
	}
	for _, imp := range imports {
		g.Lf("import %s", strings.ToLower(imp))
	}
	if len(imports) > 0 {
		g.L("")
	}

	if len(consts) > 0 {
		g.L("// Constants")
		for _, c := range consts {
			for _, it := range env.ConstItems(c) {
				g.Lf("int %s = %d", it.Name, it.Value)
			}
		}
		g.L("")
	}

	if len(enums) > 0 {
		g.L("// Enum constants")
		for _, e := range enums {
			g.Lf("type %s = int", e.Name)
			for _, v := range emit.EnumValues(e) {
				g.Lf("int %s_C_ENUM_%s = %d", e.Name, v.Name, v.Value)
			}
		}
		g.L("")
	}

	if len(structs) > 0 {
		g.L("// Struct definitions")
		for _, s := range structs {
			g.structDecl(s)
		}
	}

	if len(funcs) > 0 {
		g.L("// Function bindings")
		for _, fn := range funcs {
			g.function(fn)
		}
	}

	return []emit.File{{Name: strings.ToLower(m.Name) + ".n", Data: []byte(g.String())}}, nil
}

func returnsString(env *emit.Env, funcs []*ir.Func) bool {
	for _, fn := range funcs {
		raw := env.Overrides.Result(fn.Name, fn.Result)
		if !env.StructReturn(fn) && env.Types.Classify(raw).Category == ctype.StringPtr {
			return true
		}
	}
	return false
}

// natureType maps a classified C type.  Enums travel as int and every
// untyped pointer as anyptr.  Types without a mapping come back as
// emit.UnhandledDecl so they keep their slot in a struct layout.
func natureType(sh ctype.Shape) (string, bool) {
	switch sh.Category {
	case ctype.Void:
		return "void", true
	case ctype.Primitive:
		if t, ok := typeMappings[sh.Base]; ok {
			return t, true
		}
	case ctype.Struct:
		return sh.Base, true
	case ctype.Enum:
		return "int", true
	case ctype.VoidPtr, ctype.ConstVoidPtr, ctype.StringPtr, ctype.FuncPtr, ctype.StructPtrPtr:
		return "anyptr", true
	case ctype.ConstStructPtr, ctype.StructPtr:
		return fmt.Sprintf("rawptr<%s>", sh.Base), true
	case ctype.EnumPtr:
		return "rawptr<int>", true
	case ctype.ConstPrimPtr, ctype.PrimPtr:
		if t, ok := typeMappings[sh.Base]; ok {
			return fmt.Sprintf("rawptr<%s>", t), true
		}
	case ctype.Array1D, ctype.Array2D:
		elem, ok := natureType(*sh.Elem)
		if !ok {
			break
		}
		for i := len(sh.Dims) - 1; i >= 0; i-- {
			elem = fmt.Sprintf("[%s;%d]", elem, sh.Dims[i])
		}
		return elem, true
	}
	return emit.UnhandledDecl(sh.Raw), false
}

func (g *gen) mapType(owner, name string, sh ctype.Shape) string {
	t, ok := natureType(sh)
	if !ok {
		g.Lf("// %s", emit.Unhandled(owner+"."+name+": "+sh.Raw))
	}
	return t
}

func (g *gen) ident(name string) string {
	name = g.env.Name(name)
	if reservedKeywords[name] {
		return name + "_"
	}
	return name
}

func (g *gen) structDecl(s *ir.Struct) {
	var fields []string
	for _, f := range s.Fields {
		t := g.mapType(s.Name, f.Name, g.env.Field(g.ctx, s, f))
		fields = append(fields, fmt.Sprintf("    %s %s", t, g.ident(f.Name)))
	}

	g.Lf("type %s = struct {", s.Name)
	for _, f := range fields {
		g.L(f)
	}
	g.L("}")
	g.L("")
}

func (g *gen) params(fn *ir.Func) []string {
	out := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		t := g.mapType(fn.Name, p.Name, g.env.Param(g.ctx, fn, p))
		out[i] = fmt.Sprintf("%s %s", t, g.ident(p.Name))
	}
	return out
}

func (g *gen) args(fn *ir.Func) []string {
	out := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		out[i] = g.ident(p.Name)
	}
	return out
}

func (g *gen) function(fn *ir.Func) {
	name := g.env.Name(fn.Name)
	params := g.params(fn)
	args := g.args(fn)
	result := g.env.Result(g.ctx, fn)
	res := g.mapType(fn.Name, ctype.ResultKey, result)

	if g.env.StructReturn(fn) {
		out := emit.OutName("result", args)
		internal := append([]string{fmt.Sprintf("rawptr<%s> %s", res, out)}, params...)
		g.Lf("#linkid %s_internal", fn.Name)
		g.Lf("fn %s_internal(%s)", name, strings.Join(internal, ", "))
		g.L("")

		call := append([]string{"&" + out}, args...)
		g.Lf("fn %s(%s):%s {", name, strings.Join(params, ", "), res)
		g.Lf("    var %s = %s{}", out, res)
		g.Lf("    %s_internal(%s)", name, strings.Join(call, ", "))
		g.Lf("    return %s", out)
		g.L("}")
		g.L("")
		return
	}

	if result.Category == ctype.StringPtr {
		ptr := emit.OutName("ptr", args)
		g.Lf("#linkid %s", fn.Name)
		g.Lf("fn %s_native(%s):anyptr", name, strings.Join(params, ", "))
		g.L("")
		g.Lf("fn %s(%s):string {", name, strings.Join(params, ", "))
		g.Lf("    var %s = %s_native(%s)", ptr, name, strings.Join(args, ", "))
		g.Lf("    if %s == 0 as anyptr {", ptr)
		g.L("        return \"\"")
		g.L("    }")
		g.Lf("    return (%s as libc.cstr).to_string()", ptr)
		g.L("}")
		g.L("")
		return
	}

	g.Lf("#linkid %s", fn.Name)
	sig := fmt.Sprintf("fn %s(%s)", name, strings.Join(params, ", "))
	if res != "void" {
		sig += ":" + res
	}
	g.L(sig)
	g.L("")
}
