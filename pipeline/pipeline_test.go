package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headerbind/clangast"
	"headerbind/config"
	"headerbind/ir"
)

const configTmpl = `
[[task]]
header = %[1]q
prefix = "pt_"
%[2]s

[[task]]
header = %[3]q
prefix = "sh_"
deps = ["pt_"]
ast = %[4]q

[prefix."pt_"]
module = "Point"
library = "point"

[prefix."sh_"]
module = "Shape"
library = "shape"

[overrides]
ignore = ["pt_debug_dump"]

[output]
csharp = "out/cs"
nature = "out/nature"
go = "out/go"
ir_dump_dir = "out/ir"

[[shim]]
name = "default"
path = "out/wrappers.h"
guard = "WRAPPERS_H"
optional = { Shape = "SHAPE_INCLUDED" }
`

func testdata(t *testing.T, name string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return filepath.ToSlash(p)
}

// loadConfig writes a run configuration into a temp dir.  With pointAST
// false the point task has no pre-dumped AST and goes through the frontend.
func loadConfig(t *testing.T, pointAST bool) *config.Config {
	t.Helper()
	ast := ""
	if pointAST {
		ast = fmt.Sprintf("ast = %q", testdata(t, "point.json"))
	}
	body := fmt.Sprintf(configTmpl, testdata(t, "point.h"), ast, testdata(t, "shape.h"), testdata(t, "shape.json.gz"))

	path := filepath.Join(t.TempDir(), "bindgen.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func read(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Dir, rel))
	require.NoError(t, err)
	return string(data)
}

func TestParsePhase(t *testing.T) {
	p := New(loadConfig(t, true), nil)
	units, reg, err := p.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 2)

	point := units[0].Module
	assert.Equal(t, "Point", point.Name)
	assert.Contains(t, point.Comment, "Project URL")

	valid, ok := point.Func("pt_valid")
	require.True(t, ok)
	assert.Equal(t, "bool", valid.Result)

	shape := units[1].Module
	mk, ok := shape.Func("pt_make_point")
	require.True(t, ok)
	assert.True(t, mk.Own.IsDep)
	assert.Len(t, shape.LocalFuncs(), 2)

	assert.Equal(t, 2, reg.Len())
	e, ok := reg.Lookup("sh_center")
	require.True(t, ok)
	assert.Equal(t, "pt_point", e.StructType)
	assert.True(t, reg.Has("pt_make_point"))
	assert.False(t, reg.Has("sh_area"))
}

func TestRunWritesEveryArtifact(t *testing.T) {
	cfg := loadConfig(t, true)
	require.NoError(t, New(cfg, nil).Run(context.Background()))

	for _, rel := range []string{
		"out/cs/Point.cs", "out/cs/Shape.cs",
		"out/nature/point.n", "out/nature/shape.n",
		"out/go/point.go", "out/go/shape.go",
		"out/ir/Point.json", "out/ir/Shape.json",
		"out/wrappers.h",
	} {
		assert.FileExists(t, filepath.Join(cfg.Dir, rel))
	}

	pointCS := read(t, cfg, "out/cs/Point.cs")
	assert.Contains(t, pointCS, "public static extern void pt_make_point_internal(ref pt_point result, float x, float y);")
	assert.Contains(t, pointCS, "public static extern int pt_add(int a, int b);")
	assert.NotContains(t, pointCS, "pt_debug_dump")

	shapeCS := read(t, cfg, "out/cs/Shape.cs")
	assert.Contains(t, shapeCS, "using static Sokol.Point;")
	assert.Contains(t, shapeCS, "public struct sh_circle")
	assert.NotContains(t, shapeCS, "public struct pt_point", "dependency structs belong to their own module")
	assert.Contains(t, shapeCS, "sh_center_internal(ref result, c);")

	wrappers := read(t, cfg, "out/wrappers.h")
	assert.Contains(t, wrappers, "SOKOL_API_IMPL void pt_make_point_internal(pt_point* result, float x, float y) {")
	assert.Contains(t, wrappers, "#if defined(SHAPE_INCLUDED)")
	assert.Contains(t, wrappers, "SOKOL_API_IMPL void sh_center_internal(pt_point* result, const sh_circle *c) {")

	dump := read(t, cfg, "out/ir/Point.json")
	assert.Contains(t, dump, `"kind": "consts"`)
	assert.Contains(t, dump, `"name": "pt_make_point"`)
}

type fileFrontend struct {
	path  string
	calls []string
}

func (f *fileFrontend) Parse(_ context.Context, source string) (*clangast.Node, error) {
	f.calls = append(f.calls, source)
	return clangast.LoadFile(f.path)
}

func TestFrontendForTasksWithoutAST(t *testing.T) {
	cfg := loadConfig(t, false)
	fe := &fileFrontend{path: testdata(t, "point.json")}

	p := New(cfg, nil)
	p.Frontend = fe
	units, _, err := p.Parse(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{cfg.Tasks[0].Header}, fe.calls, "only the task without an AST file reaches the frontend")
	assert.Equal(t, "Point", units[0].Module.Name)
}

func TestDefaultFrontend(t *testing.T) {
	cfg := loadConfig(t, true)
	fe, ok := New(cfg, nil).Frontend.(*clangast.ClangFrontend)
	require.True(t, ok)
	assert.Equal(t, cfg.Dir, fe.Dir)

	cfg.Clang.Libclang = true
	_, ok = New(cfg, nil).Frontend.(*clangast.LibclangFrontend)
	assert.True(t, ok)
}

func TestParseErrorNamesSymbol(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"kind":"TranslationUnitDecl","inner":[
  {"kind":"EnumDecl","inner":[{"kind":"EnumConstantDecl","name":"PT_LIMIT"}]}
]}`), 0644))

	cfg := loadConfig(t, true)
	cfg.Tasks[0].AST = bad

	_, _, err := New(cfg, nil).Parse(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrMissingConstValue)

	var perr *ir.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "PT_LIMIT", perr.Symbol)
	assert.Contains(t, err.Error(), "point.h")
}

func TestDumpIRWithoutDir(t *testing.T) {
	cfg := loadConfig(t, true)
	cfg.Output.IRDumpDir = ""
	assert.ErrorIs(t, New(cfg, nil).DumpIR(context.Background(), nil), ErrNoIRDumpDir)
}
