// Package clangast models the JSON AST dump produced by
// `clang -Xclang -ast-dump=json` and turns it into a normalized top-level
// declaration list.
package clangast

// Node kinds the rest of the pipeline looks at.
const (
	KindTranslationUnit = "TranslationUnitDecl"
	KindRecord          = "RecordDecl"
	KindTypedef         = "TypedefDecl"
	KindEnum            = "EnumDecl"
	KindEnumConstant    = "EnumConstantDecl"
	KindField           = "FieldDecl"
	KindFunction        = "FunctionDecl"
	KindParam           = "ParmVarDecl"
	KindFullComment     = "FullComment"
	KindConstantExpr    = "ConstantExpr"
	KindIntegerLiteral  = "IntegerLiteral"
)

// Node is one entry of a clang JSON AST dump.  Only the members the
// pipeline consumes are decoded.
type Node struct {
	ID            string    `json:"id,omitempty"`
	Kind          string    `json:"kind"`
	Name          string    `json:"name,omitempty"`
	Type          *QualType `json:"type,omitempty"`
	TagUsed       string    `json:"tagUsed,omitempty"`
	Value         string    `json:"value,omitempty"`
	ValueCategory string    `json:"valueCategory,omitempty"`
	IsImplicit    bool      `json:"isImplicit,omitempty"`
	Range         *Range    `json:"range,omitempty"`
	Inner         []*Node   `json:"inner,omitempty"`

	// Text holds comment text already resolved by a frontend that does not
	// report byte ranges (libclang).  JSON dumps leave it empty.
	Text string `json:"-"`

	// Empty is set by the normalizer on aggregates without any members
	// (forward declarations or truly empty structs).
	Empty bool `json:"-"`
}

// QualType is the type annotation attached to typed nodes.
type QualType struct {
	QualType          string `json:"qualType"`
	DesugaredQualType string `json:"desugaredQualType,omitempty"`
}

// Range is the source extent of a node.
type Range struct {
	Begin Loc `json:"begin"`
	End   Loc `json:"end"`
}

// Loc is a source location.  Offsets are byte offsets into the file.
type Loc struct {
	Offset *int `json:"offset,omitempty"`
	Line   int  `json:"line,omitempty"`
	Col    int  `json:"col,omitempty"`
	TokLen int  `json:"tokLen,omitempty"`
}

// QualTypeString returns the node's qualified type or "".
func (n *Node) QualTypeString() string {
	if n.Type == nil {
		return ""
	}
	return n.Type.QualType
}

// IsComment reports whether the node is a documentation comment.
func (n *Node) IsComment() bool {
	return n.Kind == KindFullComment
}

// Children returns the inner nodes with documentation comments removed.
func (n *Node) Children() []*Node {
	return StripComments(n.Inner)
}

// StripComments returns items without FullComment nodes.
func StripComments(items []*Node) []*Node {
	out := make([]*Node, 0, len(items))
	for _, it := range items {
		if !it.IsComment() {
			out = append(out, it)
		}
	}
	return out
}

// FirstNonComment returns the first item that is not a FullComment, or nil.
func FirstNonComment(items []*Node) *Node {
	for _, it := range items {
		if !it.IsComment() {
			return it
		}
	}
	return nil
}
