package csharp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headerbind/ctype"
	"headerbind/detect"
	"headerbind/emit"
	"headerbind/ir"
)

func i64(v int64) *int64 { return &v }

func pointModule() *ir.Module {
	return &ir.Module{Name: "Point", Prefix: "pt_", Decls: []ir.Decl{
		&ir.Consts{Items: []ir.Const{{Name: "PT_MAX_POINTS", Value: 16}}},
		&ir.Enum{Name: "pt_mode", Items: []ir.EnumItem{
			{Name: "PT_MODE_DEFAULT"},
			{Name: "PT_MODE_FAST", Value: i64(4)},
			{Name: "PT_MODE_SLOW"},
			{Name: "_PT_MODE_FORCE_U32", Value: i64(0x7FFFFFFF)},
		}},
		&ir.Struct{Name: "pt_point", Fields: []ir.Field{
			{Name: "x", Type: "float"},
			{Name: "y", Type: "float"},
			{Name: "visible", Type: "bool"},
		}},
		&ir.Struct{Name: "pt_desc", Fields: []ir.Field{
			{Name: "label", Type: "const char *"},
			{Name: "points", Type: "pt_point [4]"},
			{Name: "blob", Type: "mystery_t"},
		}},
		&ir.Func{Name: "pt_make_point", Type: "pt_point (void)", Result: "pt_point"},
		&ir.Func{Name: "pt_add", Type: "int (int, int)", Result: "int", Params: []ir.Param{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}}},
		&ir.Func{Name: "pt_name", Type: "const char *(void)", Result: "const char *"},
		&ir.Func{Name: "pt_hidden", Type: "void (void)", Result: "void"},
	}}
}

func render(t *testing.T) string {
	t.Helper()
	return renderModule(t, pointModule(), ctype.NewOverrides([]string{"pt_hidden"}, nil, nil, nil))
}

func renderModule(t *testing.T, m *ir.Module, o *ctype.Overrides) string {
	t.Helper()
	ctx := context.Background()
	ts := ctype.NewTypeSet(nil, nil)
	ts.RegisterModule(m)

	r, err := detect.Detect(ctx, []detect.Input{{Module: m, Types: ts}}, o, nil)
	require.NoError(t, err)

	files, err := (&Emitter{}).Emit(ctx, &emit.Env{Module: m, Types: ts, Overrides: o, Registry: r, Library: "point"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Point.cs", files[0].Name)
	return string(files[0].Data)
}

func TestEmitStructReturn(t *testing.T) {
	out := render(t)

	assert.Contains(t, out, "public static extern void pt_make_point_internal(ref pt_point result);")
	assert.Contains(t, out, "EntryPoint = \"pt_make_point_internal\"")
	assert.Contains(t, out, "public static pt_point pt_make_point()\n{\n    pt_point result = default;\n    pt_make_point_internal(ref result);\n    return result;\n}")
	assert.Contains(t, out, "public static extern pt_point pt_make_point();")
}

func TestEmitPlainFunction(t *testing.T) {
	out := render(t)

	assert.Equal(t, 1, strings.Count(out, "pt_add("))
	assert.Contains(t, out, "public static extern int pt_add(int a, int b);")
	assert.NotContains(t, out, "pt_add_internal")
}

func TestEmitIgnoredSymbol(t *testing.T) {
	assert.NotContains(t, render(t), "pt_hidden")
}

func TestEmitStringResult(t *testing.T) {
	out := render(t)
	assert.Contains(t, out, "private static extern IntPtr pt_name_native();")
	assert.Contains(t, out, "if (ptr == IntPtr.Zero)\n        return \"\";")
}

func TestEmitEnumAndConsts(t *testing.T) {
	out := render(t)
	assert.Contains(t, out, "public const int PT_MAX_POINTS = 16;")
	assert.Contains(t, out, "public enum pt_mode\n{\n    PT_MODE_DEFAULT,\n    PT_MODE_FAST = 4,\n    PT_MODE_SLOW,\n}")
	assert.NotContains(t, out, "FORCE_U32")
}

func TestEmitStructFields(t *testing.T) {
	out := render(t)

	x := strings.Index(out, "public float x;")
	y := strings.Index(out, "public float y;")
	require.True(t, x >= 0 && y >= 0)
	assert.Less(t, x, y, "fields keep declaration order")

	assert.Contains(t, out, "[M(U.I1)] public bool visible;")
	assert.Contains(t, out, "[M(U.LPUTF8Str)] public string label;")
	assert.Contains(t, out, "public struct pointsCollection")
	assert.Contains(t, out, "private pt_point _item3;")
	assert.Contains(t, out, "public "+emit.UnhandledType+" /* mystery_t */ blob;")
}

func TestEmitUnhandledFieldKeepsLayout(t *testing.T) {
	m := &ir.Module{Name: "Point", Prefix: "pt_", Decls: []ir.Decl{
		&ir.Struct{Name: "pt_volume", Fields: []ir.Field{
			{Name: "cells", Type: "float [2][3][4]"},
			{Name: "n", Type: "int"},
		}},
	}}
	out := renderModule(t, m, nil)

	assert.Contains(t, out, "public struct pt_volume\n{\n    public FIXME_unhandled /* float [2][3][4] */ cells;\n    public int n;\n}")
}

func TestEmitParamsNamedLikeLocals(t *testing.T) {
	m := &ir.Module{Name: "Point", Prefix: "pt_", Decls: []ir.Decl{
		&ir.Struct{Name: "pt_point", Fields: []ir.Field{{Name: "x", Type: "float"}}},
		&ir.Func{Name: "pt_scale", Type: "pt_point (pt_point, float)", Result: "pt_point",
			Params: []ir.Param{{Name: "result", Type: "pt_point"}, {Name: "f", Type: "float"}}},
		&ir.Func{Name: "pt_label", Type: "const char *(int)", Result: "const char *",
			Params: []ir.Param{{Name: "ptr", Type: "int"}}},
	}}
	out := renderModule(t, m, nil)

	assert.Contains(t, out, "    pt_point _result = default;\n    pt_scale_internal(ref _result, result, f);\n    return _result;\n")
	assert.Contains(t, out, "public static extern void pt_scale_internal(ref pt_point _result, pt_point result, float f);")
	assert.Contains(t, out, "    IntPtr _ptr = pt_label_native(ptr);\n    if (_ptr == IntPtr.Zero)\n")
	assert.Contains(t, out, "return Marshal.PtrToStringUTF8(_ptr) ?? \"\";")
}

func TestEmitDependencyImports(t *testing.T) {
	m := &ir.Module{Name: "Shape", Prefix: "sh_"}
	files, err := (&Emitter{Namespace: "Gfx"}).Emit(context.Background(), &emit.Env{
		Module:  m,
		Types:   ctype.NewTypeSet(nil, nil),
		Imports: []string{"Point"},
	})
	require.NoError(t, err)

	out := string(files[0].Data)
	assert.Contains(t, out, "using static Gfx.Point;")
	assert.Contains(t, out, "namespace Gfx")
	assert.Contains(t, out, "public static unsafe partial class Shape")
}

func TestEmitHandleReturn(t *testing.T) {
	m := &ir.Module{Name: "Gfx", Prefix: "sg_", Decls: []ir.Decl{
		&ir.Struct{Name: "sg_buffer", Fields: []ir.Field{{Name: "id", Type: "uint32_t"}}},
		&ir.Func{Name: "sg_make_buffer", Type: "sg_buffer (void)", Result: "sg_buffer"},
	}}
	ts := ctype.NewTypeSet(nil, nil)
	ts.RegisterModule(m)
	o := ctype.NewOverrides(nil, nil, nil, []string{"sg_make_buffer"})
	r, err := detect.Detect(context.Background(), []detect.Input{{Module: m, Types: ts}}, o, nil)
	require.NoError(t, err)

	files, err := (&Emitter{}).Emit(context.Background(), &emit.Env{Module: m, Types: ts, Overrides: o, Registry: r, Library: "sokol"})
	require.NoError(t, err)

	out := string(files[0].Data)
	assert.Contains(t, out, "static extern uint sg_make_buffer_internal();")
	assert.Contains(t, out, "return new sg_buffer { id = _id };")
	assert.NotContains(t, out, "ref sg_buffer result")
}
