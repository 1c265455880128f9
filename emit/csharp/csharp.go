// Package csharp renders P/Invoke bindings.  Functions returning structs by
// value get a WEB wrapper that calls the out-pointer shim, since the
// WebAssembly runtime cannot marshal such returns.
package csharp

import (
	"context"
	"strings"

	"headerbind/ctype"
	"headerbind/emit"
	"headerbind/ir"
)

// primTypes maps C primitives to their C# spelling.
var primTypes = map[string]string{
	"bool":               "bool",
	"char":               "byte",
	"signed char":        "sbyte",
	"unsigned char":      "byte",
	"short":              "short",
	"unsigned short":     "ushort",
	"int":                "int",
	"unsigned int":       "uint",
	"long":               "long",
	"unsigned long":      "ulong",
	"long long":          "long",
	"unsigned long long": "ulong",
	"int8_t":             "sbyte",
	"uint8_t":            "byte",
	"int16_t":            "short",
	"uint16_t":           "ushort",
	"int32_t":            "int",
	"uint32_t":           "uint",
	"int64_t":            "long",
	"uint64_t":           "ulong",
	"float":              "float",
	"double":             "double",
	"uintptr_t":          "nuint",
	"intptr_t":           "nint",
	"size_t":             "nuint",
}

// Emitter writes one <Module>.cs file per module.
type Emitter struct {
	// Namespace wraps the generated class; "Sokol" when empty.
	Namespace string
}

func (*Emitter) Language() string { return "csharp" }

func (c *Emitter) namespace() string {
	if c.Namespace == "" {
		return "Sokol"
	}
	return c.Namespace
}

type gen struct {
	emit.Writer
	ctx context.Context
	env *emit.Env
}

func (c *Emitter) Emit(ctx context.Context, env *emit.Env) ([]emit.File, error) {
	g := &gen{ctx: ctx, env: env}

	g.L("// machine generated, do not edit")
	g.L("using System;")
	g.L("using System.Runtime.InteropServices;")
	g.L("using M = System.Runtime.InteropServices.MarshalAsAttribute;")
	g.L("using U = System.Runtime.InteropServices.UnmanagedType;")
	g.L("")
	for _, imp := range env.Imports {
		g.Lf("using static %s.%s;", c.namespace(), imp)
		g.L("")
	}
	g.Lf("namespace %s", c.namespace())
	g.L("{")
	g.Lf("public static unsafe partial class %s", env.Module.Name)
	g.L("{")

	for _, d := range env.Module.Decls {
		if !env.Emittable(d) {
			continue
		}
		switch d := d.(type) {
		case *ir.Consts:
			g.consts(d)
		case *ir.Struct:
			if !env.Superseded(d) {
				g.structDecl(d)
			}
		case *ir.Enum:
			g.enum(d)
		case *ir.Func:
			g.function(d)
		}
	}
	g.internalFunctions()

	g.L("}")
	g.L("}")

	return []emit.File{{Name: env.Module.Name + ".cs", Data: []byte(g.String())}}, nil
}

func (g *gen) consts(c *ir.Consts) {
	for _, it := range g.env.ConstItems(c) {
		g.Lf("public const int %s = %d;", it.Name, it.Value)
	}
}

func (g *gen) enum(e *ir.Enum) {
	g.Lf("public enum %s", e.Name)
	g.L("{")
	for _, v := range emit.EnumValues(e) {
		if v.Explicit {
			g.Lf("    %s = %d,", v.Name, v.Value)
		} else {
			g.Lf("    %s,", v.Name)
		}
	}
	g.L("}")
}

// prim maps a primitive shape's base type.
func prim(base string) string {
	if t, ok := primTypes[base]; ok {
		return t
	}
	return emit.UnhandledDecl(base)
}

// externType is the blittable spelling used inside function pointer
// signatures: everything that is not a scalar becomes a raw pointer.
func externType(sh ctype.Shape) string {
	switch sh.Category {
	case ctype.Void:
		return "void"
	case ctype.Primitive:
		return prim(sh.Base)
	case ctype.Struct, ctype.Enum:
		return sh.Base
	case ctype.StringPtr:
		return "byte*"
	case ctype.ConstStructPtr, ctype.StructPtr:
		return sh.Base + "*"
	case ctype.ConstPrimPtr, ctype.PrimPtr:
		return prim(sh.Base) + "*"
	}
	return "void*"
}

// funcPtrType renders delegate* unmanaged<A, B, R>.
func funcPtrType(sh ctype.Shape) string {
	var parts []string
	for _, p := range sh.Func.Params {
		parts = append(parts, externType(p))
	}
	parts = append(parts, externType(sh.Func.Result))
	return "delegate* unmanaged<" + strings.Join(parts, ", ") + ">"
}

// argType is the C# spelling of a parameter (result == false) or a return
// type (result == true).
func argType(sh ctype.Shape, result bool) string {
	switch sh.Category {
	case ctype.Void:
		return "void"
	case ctype.Primitive:
		return prim(sh.Base)
	case ctype.Struct, ctype.Enum:
		return sh.Base
	case ctype.VoidPtr, ctype.ConstVoidPtr:
		return "void*"
	case ctype.StringPtr:
		return "string"
	case ctype.ConstStructPtr:
		if result {
			return sh.Base + "*"
		}
		return "in " + sh.Base
	case ctype.StructPtr, ctype.EnumPtr:
		return sh.Base + "*"
	case ctype.StructPtrPtr:
		return sh.Base + "**"
	case ctype.PrimPtr:
		if result {
			return prim(sh.Base) + "*"
		}
		return "ref " + prim(sh.Base)
	case ctype.ConstPrimPtr:
		if result {
			return prim(sh.Base) + "*"
		}
		return "in " + prim(sh.Base)
	case ctype.FuncPtr:
		return funcPtrType(sh)
	}
	return emit.UnhandledDecl(sh.Raw)
}

func (g *gen) structDecl(s *ir.Struct) {
	g.L("[StructLayout(LayoutKind.Sequential)]")
	g.Lf("public struct %s", s.Name)
	g.L("{")
	for _, f := range s.Fields {
		g.field(s, f)
	}
	g.L("}")
}

func (g *gen) field(s *ir.Struct, f ir.Field) {
	name := g.env.Name(f.Name)
	sh := g.env.Field(g.ctx, s, f)

	switch sh.Category {
	case ctype.Primitive:
		if sh.Base == "bool" {
			g.L("#if WEB")
			g.Lf("    private byte _%s;", name)
			g.Lf("    public bool %[1]s { get => _%[1]s != 0; set => _%[1]s = value ? (byte)1 : (byte)0; }", name)
			g.L("#else")
			g.Lf("    [M(U.I1)] public bool %s;", name)
			g.L("#endif")
			return
		}
		g.Lf("    public %s %s;", prim(sh.Base), name)
	case ctype.Struct, ctype.Enum:
		g.Lf("    public %s %s;", sh.Base, name)
	case ctype.StringPtr:
		g.L("#if WEB")
		g.Lf("    private IntPtr _%s;", name)
		g.Lf("    public string %[1]s { get => Marshal.PtrToStringAnsi(_%[1]s);  set { if (_%[1]s != IntPtr.Zero) { Marshal.FreeHGlobal(_%[1]s); _%[1]s = IntPtr.Zero; } if (value != null) { _%[1]s = Marshal.StringToHGlobalAnsi(value); } } }", name)
		g.L("#else")
		g.Lf("    [M(U.LPUTF8Str)] public string %s;", name)
		g.L("#endif")
	case ctype.VoidPtr, ctype.ConstVoidPtr:
		g.Lf("    public void* %s;", name)
	case ctype.ConstPrimPtr, ctype.PrimPtr:
		g.Lf("    public %s* %s;", prim(sh.Base), name)
	case ctype.ConstStructPtr, ctype.StructPtr, ctype.EnumPtr:
		g.Lf("    public %s* %s;", sh.Base, name)
	case ctype.StructPtrPtr:
		g.Lf("    public %s** %s;", sh.Base, name)
	case ctype.FuncPtr:
		g.Lf("    public %s %s;", funcPtrType(sh), name)
	case ctype.Array1D, ctype.Array2D:
		g.array(name, sh)
	default:
		g.Lf("    public %s %s;", emit.UnhandledDecl(sh.Raw), name)
	}
}

// array renders a fixed array as a nested struct with one private slot per
// element and a ref-returning indexer, which keeps the layout blittable.
func (g *gen) array(name string, sh ctype.Shape) {
	elem := externType(*sh.Elem)
	switch sh.Elem.Category {
	case ctype.VoidPtr, ctype.ConstVoidPtr, ctype.StringPtr, ctype.FuncPtr:
		elem = "IntPtr"
	}

	g.L("    #pragma warning disable 169")
	g.Lf("    public struct %sCollection", name)
	g.L("    {")
	if sh.Category == ctype.Array1D {
		g.Lf("        public ref %s this[int index] => ref MemoryMarshal.CreateSpan(ref _item0, %d)[index];", elem, sh.Dims[0])
	} else {
		g.Lf("        public ref %[1]s this[int x, int y] { get { fixed (%[1]s* pTP = &_item0) return ref *(pTP + x + (y * %[2]d)); } }", elem, sh.Dims[0])
	}
	for i := 0; i < sh.Len(); i++ {
		g.Lf("        private %s _item%d;", elem, i)
	}
	g.L("    }")
	g.L("    #pragma warning restore 169")
	g.Lf("    public %sCollection %s;", name, name)
}

func (g *gen) dllImport(entryPoint string) {
	lib := g.env.Library
	g.L("#if __IOS__")
	g.Lf("[DllImport(\"@rpath/%[1]s.framework/%[1]s\", EntryPoint = \"%[2]s\", CallingConvention = CallingConvention.Cdecl)]", lib, entryPoint)
	g.L("#else")
	g.Lf("[DllImport(\"%s\", EntryPoint = \"%s\", CallingConvention = CallingConvention.Cdecl)]", lib, entryPoint)
	g.L("#endif")
}

// params renders the C# parameter list of fn.
func (g *gen) params(fn *ir.Func) string {
	parts := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		sh := g.env.Param(g.ctx, fn, p)
		s := ""
		if sh.Category == ctype.StringPtr {
			s = "[M(U.LPUTF8Str)] "
		}
		parts[i] = s + argType(sh, false) + " " + g.env.Name(p.Name)
	}
	return strings.Join(parts, ", ")
}

func (g *gen) function(fn *ir.Func) {
	name := g.env.Name(fn.Name)
	res := argType(g.env.Result(g.ctx, fn), true)
	params := g.params(fn)
	names := g.env.ParamNames(fn)
	args := strings.Join(names, ", ")

	switch {
	case g.env.HandleReturn(fn):
		id := emit.OutName("_id", names)
		g.dllImport(fn.Name)
		g.L("#if WEB")
		g.Lf("static extern uint %s_internal(%s);", name, params)
		g.Lf("public static %s %s(%s)", res, name, params)
		g.L("{")
		g.Lf("    uint %s = %s_internal(%s);", id, name, args)
		g.Lf("    return new %s { id = %s };", res, id)
		g.L("}")
		g.L("#else")
		g.external(name, res, params, names)
		g.L("#endif")
		g.L("")

	case g.env.StructReturn(fn):
		out := emit.OutName("result", names)
		g.L("#if WEB")
		g.Lf("public static %s %s(%s)", res, name, params)
		g.L("{")
		g.Lf("    %s %s = default;", res, out)
		if args != "" {
			g.Lf("    %s_internal(ref %s, %s);", name, out, args)
		} else {
			g.Lf("    %s_internal(ref %s);", name, out)
		}
		g.Lf("    return %s;", out)
		g.L("}")
		g.L("#else")
		g.dllImport(fn.Name)
		g.external(name, res, params, names)
		g.L("#endif")
		g.L("")

	default:
		g.dllImport(fn.Name)
		g.external(name, res, params, names)
		g.L("")
	}
}

// external writes the extern declaration itself.  String results go through
// an IntPtr-returning import and a wrapper that maps null to "".
func (g *gen) external(name, res, params string, names []string) {
	if res != "string" {
		g.Lf("public static extern %s %s(%s);", res, name, params)
		return
	}
	ptr := emit.OutName("ptr", names)
	g.Lf("private static extern IntPtr %s_native(%s);", name, params)
	g.L("")
	g.Lf("public static string %s(%s)", name, params)
	g.L("{")
	g.Lf("    IntPtr %s = %s_native(%s);", ptr, name, strings.Join(names, ", "))
	g.Lf("    if (%s == IntPtr.Zero)", ptr)
	g.L("        return \"\";")
	g.L("")
	g.L("    try")
	g.L("    {")
	g.Lf("        return Marshal.PtrToStringUTF8(%s) ?? \"\";", ptr)
	g.L("    }")
	g.L("    catch")
	g.L("    {")
	g.L("        return \"\";")
	g.L("    }")
	g.L("}")
}

// internalFunctions declares the out-pointer shims of the module's
// struct-returning functions.
func (g *gen) internalFunctions() {
	for _, fn := range g.env.Module.LocalFuncs() {
		if !g.env.StructReturn(fn) || g.env.Overrides.Ignored(fn.Name) {
			continue
		}
		name := g.env.Name(fn.Name)
		res := argType(g.env.Result(g.ctx, fn), true)
		out := emit.OutName("result", g.env.ParamNames(fn))

		g.dllImport(fn.Name + "_internal")
		if params := g.params(fn); params != "" {
			g.Lf("public static extern void %s_internal(ref %s %s, %s);", name, res, out, params)
		} else {
			g.Lf("public static extern void %s_internal(ref %s %s);", name, res, out)
		}
		g.L("")
	}
}
