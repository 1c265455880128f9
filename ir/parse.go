package ir

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"headerbind/clangast"
	"headerbind/logging"
)

// Parser converts the normalized, filtered AST of one translation unit
// into a Module.
type Parser struct {
	// Source is the header text, used to resolve comment byte ranges.
	Source []byte
	Log    *logging.Logger
}

// NewParser returns a parser over the given header text.
func NewParser(source []byte, log *logging.Logger) *Parser {
	if log == nil {
		log = logging.NoopLogger()
	}
	return &Parser{Source: source, Log: log}
}

// ParseModule builds the IR of one header.  A malformed constant item fails
// the whole module; unsupported functions and struct members are skipped
// with a warning.
func (p *Parser) ParseModule(ctx context.Context, name, prefix string, depPrefixes []string, tu *clangast.Node) (*Module, error) {
	m := &Module{
		Name:        name,
		Prefix:      prefix,
		DepPrefixes: append([]string(nil), depPrefixes...),
		Comment:     clangast.HeaderComment(p.Source),
	}

	nodes := clangast.Normalize(tu.Inner)
	for _, r := range Filter(nodes, prefix, depPrefixes) {
		d, err := p.ParseDecl(ctx, r.Node)
		if err != nil {
			return nil, err
		}
		if d == nil {
			continue
		}
		setOrigin(d, r.Origin)
		m.Decls = append(m.Decls, d)
	}
	return m, nil
}

func setOrigin(d Decl, o Origin) {
	switch d := d.(type) {
	case *Struct:
		d.Own = o
	case *Enum:
		d.Own = o
	case *Consts:
		d.Own = o
	case *Func:
		d.Own = o
	}
}

// ParseDecl converts one top-level node.  It returns nil, nil for node
// kinds that carry no API (typedefs, variables) and for dropped functions.
func (p *Parser) ParseDecl(ctx context.Context, n *clangast.Node) (Decl, error) {
	switch n.Kind {
	case clangast.KindRecord:
		return p.parseStruct(ctx, n), nil
	case clangast.KindEnum:
		return p.parseEnum(n)
	case clangast.KindFunction:
		if f := p.parseFunc(ctx, n); f != nil {
			return f, nil
		}
	}
	return nil, nil
}

// FilterTypes rewrites type spellings the bindings treat differently from
// the compiler.
func FilterTypes(s string) string {
	return strings.ReplaceAll(s, "_Bool", "bool")
}

func (p *Parser) parseStruct(ctx context.Context, n *clangast.Node) *Struct {
	s := &Struct{Name: n.Name, Fields: []Field{}, Opaque: n.Empty}
	if n.Empty {
		p.Log.LogSkippedDecl(ctx, n.Name, "struct has no inner declarations, kept as opaque")
	}

	for _, item := range n.Inner {
		switch item.Kind {
		case clangast.KindFullComment:
			s.Comment = clangast.CommentText(item, p.Source)
		case clangast.KindField:
			name := item.Name
			if name == "" {
				name = fmt.Sprintf("unnamed%d", len(s.Fields))
			}
			s.Fields = append(s.Fields, Field{Name: name, Type: FilterTypes(item.QualTypeString())})
		default:
			p.Log.WarnContext(ctx, "ignoring unsupported struct member",
				"struct", n.Name,
				"kind", item.Kind,
			)
		}
	}
	return s
}

func (p *Parser) parseEnum(n *clangast.Node) (Decl, error) {
	anonymous := n.Name == ""
	var comment string
	var items []EnumItem

	for _, item := range n.Inner {
		switch item.Kind {
		case clangast.KindFullComment:
			comment = clangast.CommentText(item, p.Source)
			continue
		case clangast.KindEnumConstant:
		default:
			continue
		}

		value, err := enumValue(item)
		if err != nil {
			return nil, err
		}
		if anonymous && value == nil {
			return nil, &ParseError{Symbol: item.Name, cause: ErrMissingConstValue}
		}
		items = append(items, EnumItem{Name: item.Name, Value: value})
	}

	if anonymous {
		c := &Consts{Comment: comment, Items: make([]Const, len(items))}
		for i, it := range items {
			c.Items[i] = Const{Name: it.Name, Value: *it.Value}
		}
		return c, nil
	}
	if items == nil {
		items = []EnumItem{}
	}
	return &Enum{Name: n.Name, Items: items, Comment: comment}, nil
}

// enumValue extracts the explicit value of an enum constant.  The only
// accepted shape is a single rvalue ConstantExpr wrapping exactly one
// IntegerLiteral; no initializer yields nil.
func enumValue(item *clangast.Node) (*int64, error) {
	exprs := item.Children()
	if len(exprs) == 0 {
		return nil, nil
	}

	expr := exprs[0]
	if expr.Kind != clangast.KindConstantExpr {
		return nil, &ParseError{Symbol: item.Name, Detail: "is " + expr.Kind, cause: ErrConstExprShape}
	}
	if expr.ValueCategory != "rvalue" && expr.ValueCategory != "prvalue" {
		return nil, &ParseError{Symbol: item.Name, Detail: "value category " + expr.ValueCategory, cause: ErrConstExprShape}
	}
	inner := expr.Children()
	if len(inner) != 1 || inner[0].Kind != clangast.KindIntegerLiteral {
		return nil, &ParseError{Symbol: item.Name, Detail: fmt.Sprintf("%d operands", len(inner)), cause: ErrConstExprShape}
	}

	v, err := strconv.ParseInt(inner[0].Value, 0, 64)
	if err != nil {
		return nil, &ParseError{Symbol: item.Name, Detail: "literal " + inner[0].Value, cause: err}
	}
	return &v, nil
}

func (p *Parser) parseFunc(ctx context.Context, n *clangast.Node) *Func {
	ftype := FilterTypes(n.QualTypeString())
	f := &Func{
		Name:   n.Name,
		Type:   ftype,
		Result: ResultType(ftype),
		Params: []Param{},
	}

	for _, item := range n.Inner {
		switch item.Kind {
		case clangast.KindFullComment:
			f.Comment = clangast.CommentText(item, p.Source)
		case clangast.KindParam:
			name := item.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", len(f.Params))
			}
			f.Params = append(f.Params, Param{Name: name, Type: FilterTypes(item.QualTypeString())})
		default:
			p.Log.LogSkippedDecl(ctx, n.Name, "unsupported parameter type "+item.Kind)
			return nil
		}
	}
	return f
}

// ResultType splits the return type off a clang function type spelling:
// "sg_desc (void)" yields "sg_desc".  When the first parenthesis opens a
// nested declarator, as in "void (*(int))(void)" for a function returning
// a function pointer, the whole spelling comes back so it classifies as
// unrecognized.
func ResultType(funcType string) string {
	funcType = strings.TrimSpace(funcType)
	i := strings.Index(funcType, "(")
	if i < 0 {
		return funcType
	}
	depth := 0
	for j := i; j < len(funcType); j++ {
		switch funcType[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && strings.TrimSpace(funcType[j+1:]) != "" {
				return funcType
			}
		}
		if depth == 0 {
			break
		}
	}
	return strings.TrimSpace(funcType[:i])
}
