package ir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headerbind/clangast"
	"headerbind/logging"
)

func tu(t *testing.T, inner string) *clangast.Node {
	t.Helper()
	root, err := clangast.Decode(strings.NewReader(`{"kind":"TranslationUnitDecl","inner":[` + inner + `]}`))
	require.NoError(t, err)
	return root
}

func parse(t *testing.T, prefix string, deps []string, inner string) (*Module, error) {
	t.Helper()
	p := NewParser(nil, nil)
	return p.ParseModule(context.Background(), "test", prefix, deps, tu(t, inner))
}

const pointDecls = `
{"kind":"RecordDecl","tagUsed":"struct","inner":[
  {"kind":"FieldDecl","name":"x","type":{"qualType":"float"}},
  {"kind":"FieldDecl","name":"y","type":{"qualType":"float"}}
]},
{"kind":"TypedefDecl","name":"pt_point","type":{"qualType":"struct pt_point"}},
{"kind":"FunctionDecl","name":"pt_make_point","type":{"qualType":"pt_point (void)"}},
{"kind":"FunctionDecl","name":"pt_add","type":{"qualType":"int (int, int)"},"inner":[
  {"kind":"ParmVarDecl","name":"a","type":{"qualType":"int"}},
  {"kind":"ParmVarDecl","name":"b","type":{"qualType":"int"}}
]},
{"kind":"FunctionDecl","name":"printf","type":{"qualType":"int (const char *, ...)"}}
`

func TestParseModuleStructsAndFuncs(t *testing.T) {
	m, err := parse(t, "pt_", nil, pointDecls)
	require.NoError(t, err)
	require.Len(t, m.Decls, 3)

	s, ok := m.Decls[0].(*Struct)
	require.True(t, ok)
	assert.Equal(t, "pt_point", s.Name)
	assert.Equal(t, []Field{{"x", "float"}, {"y", "float"}}, s.Fields)
	assert.False(t, s.Opaque)

	mk, ok := m.Func("pt_make_point")
	require.True(t, ok)
	assert.Equal(t, "pt_point", mk.Result)
	assert.Empty(t, mk.Params)

	add, ok := m.Func("pt_add")
	require.True(t, ok)
	assert.Equal(t, "int", add.Result)
	assert.Equal(t, []Param{{"a", "int"}, {"b", "int"}}, add.Params)

	assert.Len(t, m.LocalFuncs(), 2)
}

func TestParseAnonymousEnumIsConsts(t *testing.T) {
	m, err := parse(t, "col_", nil, `
{"kind":"EnumDecl","inner":[
  {"kind":"EnumConstantDecl","name":"COL_RED","inner":[
    {"kind":"ConstantExpr","valueCategory":"prvalue","value":"1","inner":[{"kind":"IntegerLiteral","value":"1"}]}]},
  {"kind":"EnumConstantDecl","name":"COL_GREEN","inner":[
    {"kind":"ConstantExpr","valueCategory":"rvalue","value":"2","inner":[{"kind":"IntegerLiteral","value":"2"}]}]}
]}`)
	require.NoError(t, err)
	require.Len(t, m.Decls, 1)

	c, ok := m.Decls[0].(*Consts)
	require.True(t, ok, "anonymous enum must become a Consts group")
	assert.Equal(t, []Const{{"COL_RED", 1}, {"COL_GREEN", 2}}, c.Items)
}

func TestParseAnonymousEnumMissingValue(t *testing.T) {
	_, err := parse(t, "col_", nil, `
{"kind":"EnumDecl","inner":[
  {"kind":"EnumConstantDecl","name":"COL_RED","inner":[
    {"kind":"ConstantExpr","valueCategory":"prvalue","inner":[{"kind":"IntegerLiteral","value":"1"}]}]},
  {"kind":"EnumConstantDecl","name":"COL_BLUE"}
]}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingConstValue)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "COL_BLUE", perr.Symbol)
	assert.Contains(t, err.Error(), "COL_BLUE")
}

func TestParseEnumValueShape(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"NotConstantExpr", `{"kind":"BinaryOperator","inner":[]}`},
		{"LvalueCategory", `{"kind":"ConstantExpr","valueCategory":"lvalue","inner":[{"kind":"IntegerLiteral","value":"1"}]}`},
		{"TwoLiterals", `{"kind":"ConstantExpr","valueCategory":"prvalue","inner":[{"kind":"IntegerLiteral","value":"1"},{"kind":"IntegerLiteral","value":"2"}]}`},
		{"NotLiteral", `{"kind":"ConstantExpr","valueCategory":"prvalue","inner":[{"kind":"BinaryOperator"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, "sg_", nil, `
{"kind":"EnumDecl","name":"sg_action","inner":[
  {"kind":"EnumConstantDecl","name":"SG_ACTION_CLEAR","inner":[`+tt.expr+`]}
]}`)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConstExprShape)
			assert.Contains(t, err.Error(), "SG_ACTION_CLEAR")
		})
	}
}

func TestParseNamedEnumImplicitValues(t *testing.T) {
	m, err := parse(t, "sg_", nil, `
{"kind":"EnumDecl","name":"sg_action","inner":[
  {"kind":"FullComment"},
  {"kind":"EnumConstantDecl","name":"_SG_ACTION_DEFAULT"},
  {"kind":"EnumConstantDecl","name":"SG_ACTION_CLEAR"},
  {"kind":"EnumConstantDecl","name":"_SG_ACTION_FORCE_U32","inner":[
    {"kind":"ConstantExpr","valueCategory":"prvalue","inner":[{"kind":"IntegerLiteral","value":"2147483647"}]}]}
]}`)
	require.NoError(t, err)

	e, ok := m.Decls[0].(*Enum)
	require.True(t, ok)
	require.Len(t, e.Items, 3)
	assert.Nil(t, e.Items[0].Value)
	assert.Nil(t, e.Items[1].Value)
	require.NotNil(t, e.Items[2].Value)
	assert.EqualValues(t, 0x7FFFFFFF, *e.Items[2].Value)
}

func TestParseDropsFunctionWithUnsupportedParam(t *testing.T) {
	var buf bytes.Buffer
	p := NewParser(nil, logging.NewTextLogger(&buf, slog.LevelDebug))

	m, err := p.ParseModule(context.Background(), "test", "pt_", nil, tu(t, `
{"kind":"FunctionDecl","name":"pt_log","type":{"qualType":"void (const char *, ...)"},"inner":[
  {"kind":"ParmVarDecl","name":"fmt","type":{"qualType":"const char *"}},
  {"kind":"VarArgsDecl"}
]},
{"kind":"FunctionDecl","name":"pt_shutdown","type":{"qualType":"void (void)"}}
`))
	require.NoError(t, err)
	require.Len(t, m.Decls, 1)
	assert.Equal(t, "pt_shutdown", m.Decls[0].DeclName())
	assert.Contains(t, buf.String(), "pt_log")
}

func TestParseStructSkipsUnsupportedMembers(t *testing.T) {
	m, err := parse(t, "pt_", nil, `
{"kind":"RecordDecl","name":"pt_rect","tagUsed":"struct","inner":[
  {"kind":"FieldDecl","name":"w","type":{"qualType":"int"}},
  {"kind":"StaticAssertDecl"},
  {"kind":"FieldDecl","name":"h","type":{"qualType":"_Bool"}},
  {"kind":"FieldDecl","name":"pos","type":{"qualType":"float[2]"}}
]}`)
	require.NoError(t, err)

	s := m.Decls[0].(*Struct)
	assert.Equal(t, []Field{{"w", "int"}, {"h", "bool"}, {"pos", "float[2]"}}, s.Fields)
}

func TestParseOpaqueStruct(t *testing.T) {
	m, err := parse(t, "pt_", nil, `
{"kind":"RecordDecl","name":"pt_handle_t","tagUsed":"struct"}`)
	require.NoError(t, err)

	s := m.Decls[0].(*Struct)
	assert.True(t, s.Opaque)
	assert.Empty(t, s.Fields)
}

func TestParseUnnamedParams(t *testing.T) {
	m, err := parse(t, "pt_", nil, `
{"kind":"FunctionDecl","name":"pt_set","type":{"qualType":"void (int, int)"},"inner":[
  {"kind":"ParmVarDecl","type":{"qualType":"int"}},
  {"kind":"ParmVarDecl","type":{"qualType":"int"}}
]}`)
	require.NoError(t, err)

	f, _ := m.Func("pt_set")
	assert.Equal(t, []Param{{"arg0", "int"}, {"arg1", "int"}}, f.Params)
}

func TestParseFunctionReturningFuncPtr(t *testing.T) {
	m, err := parse(t, "pt_", nil, `
{"kind":"FunctionDecl","name":"pt_handler","type":{"qualType":"void (*(int))(void)"},"inner":[
  {"kind":"ParmVarDecl","name":"slot","type":{"qualType":"int"}}
]}`)
	require.NoError(t, err)

	f, ok := m.Func("pt_handler")
	require.True(t, ok)
	assert.Equal(t, "void (*(int))(void)", f.Result)
}

func TestParseDependencyOrigin(t *testing.T) {
	m, err := parse(t, "sgl_", []string{"sg_"}, `
{"kind":"RecordDecl","name":"sg_image","tagUsed":"struct","inner":[
  {"kind":"FieldDecl","name":"id","type":{"qualType":"uint32_t"}}]},
{"kind":"FunctionDecl","name":"sgl_draw","type":{"qualType":"void (void)"}},
{"kind":"FunctionDecl","name":"sg_setup","type":{"qualType":"void (void)"}}
`)
	require.NoError(t, err)
	require.Len(t, m.Decls, 3)

	assert.Equal(t, Origin{IsDep: true, DepPrefix: "sg_"}, m.Decls[0].Origin())
	assert.Equal(t, Origin{}, m.Decls[1].Origin())
	assert.True(t, m.Decls[2].Origin().IsDep)

	funcs := m.LocalFuncs()
	require.Len(t, funcs, 1)
	assert.Equal(t, "sgl_draw", funcs[0].Name)
}

func TestParseComments(t *testing.T) {
	src := []byte("/* Project URL: example */\n/// a point\nstruct pt_point { int x; };\n")
	begin, end := 27, 37

	root := tu(t, `
{"kind":"RecordDecl","name":"pt_point","tagUsed":"struct","inner":[
  {"kind":"FullComment","range":{"begin":{"offset":`+strconv.Itoa(begin)+`},"end":{"offset":`+strconv.Itoa(end)+`}}},
  {"kind":"FieldDecl","name":"x","type":{"qualType":"int"}}]}`)

	m, err := NewParser(src, nil).ParseModule(context.Background(), "test", "pt_", nil, root)
	require.NoError(t, err)

	assert.Contains(t, m.Comment, "Project URL")
	assert.Equal(t, "/// a point", m.Decls[0].(*Struct).Comment)
}

func TestModuleJSON(t *testing.T) {
	m, err := parse(t, "pt_", nil, pointDecls)
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out struct {
		Module string           `json:"module"`
		Decls  []map[string]any `json:"decls"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "test", out.Module)
	require.Len(t, out.Decls, 3)
	assert.Equal(t, "struct", out.Decls[0]["kind"])
	assert.Equal(t, "func", out.Decls[1]["kind"])
	assert.Equal(t, false, out.Decls[1]["is_dep"])
}

func TestResultType(t *testing.T) {
	assert.Equal(t, "sg_desc", ResultType("sg_desc (void)"))
	assert.Equal(t, "const char *", ResultType("const char *(int)"))
	assert.Equal(t, "void", ResultType("void"))
	assert.Equal(t, "int", ResultType("int (void (*)(int), int)"))
	assert.Equal(t, "void (*(int))(void)", ResultType("void (*(int))(void)"))
	assert.Equal(t, "void (*(void))(void)", ResultType(" void (*(void))(void) "))
}
