//go:build libclang

package clangast

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-clang/clang-v13/clang"
)

// LibclangFrontend parses translation units in-process through libclang and
// converts the cursor tree into the same node shape as a JSON dump.
type LibclangFrontend struct {
	Args []string
}

// LibclangAvailable reports whether this binary was built with libclang.
const LibclangAvailable = true

func (f *LibclangFrontend) Parse(ctx context.Context, sourcePath string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := clang.NewIndex(0, 0)
	defer idx.Dispose()

	tu := idx.ParseTranslationUnit(sourcePath, f.Args, nil, 0)
	if tu == (clang.TranslationUnit{}) {
		return nil, fmt.Errorf("libclang: failed to parse translation unit %s", sourcePath)
	}
	defer tu.Dispose()

	root := &Node{Kind: KindTranslationUnit}
	tu.TranslationUnitCursor().Visit(func(cursor, parent clang.Cursor) clang.ChildVisitResult {
		if cursor.Location().IsInSystemHeader() {
			return clang.ChildVisit_Continue
		}
		if n := convertCursor(cursor); n != nil {
			root.Inner = append(root.Inner, n)
		}
		return clang.ChildVisit_Continue
	})
	return root, nil
}

func isAnonymousSpelling(spelling string) bool {
	return spelling == "" || strings.Contains(spelling, "unnamed") || strings.Contains(spelling, " at ")
}

func commentNode(cursor clang.Cursor) *Node {
	text := cursor.RawCommentText()
	if text == "" {
		return nil
	}
	return &Node{Kind: KindFullComment, Text: text}
}

func convertCursor(cursor clang.Cursor) *Node {
	spelling := cursor.Spelling()

	switch cursor.Kind() {
	case clang.Cursor_StructDecl, clang.Cursor_UnionDecl:
		n := &Node{Kind: KindRecord, TagUsed: "struct"}
		if cursor.Kind() == clang.Cursor_UnionDecl {
			n.TagUsed = "union"
		}
		if !isAnonymousSpelling(spelling) {
			n.Name = spelling
		}
		if c := commentNode(cursor); c != nil {
			n.Inner = append(n.Inner, c)
		}
		cursor.Visit(func(child, _ clang.Cursor) clang.ChildVisitResult {
			switch child.Kind() {
			case clang.Cursor_FieldDecl:
				n.Inner = append(n.Inner, &Node{
					Kind: KindField,
					Name: child.Spelling(),
					Type: &QualType{QualType: child.Type().Spelling()},
				})
			default:
				n.Inner = append(n.Inner, &Node{Kind: child.Kind().String(), Name: child.Spelling()})
			}
			return clang.ChildVisit_Continue
		})
		return n

	case clang.Cursor_TypedefDecl:
		return &Node{
			Kind: KindTypedef,
			Name: spelling,
			Type: &QualType{QualType: cursor.TypedefDeclUnderlyingType().Spelling()},
		}

	case clang.Cursor_EnumDecl:
		n := &Node{Kind: KindEnum}
		if !isAnonymousSpelling(spelling) {
			n.Name = spelling
		}
		if c := commentNode(cursor); c != nil {
			n.Inner = append(n.Inner, c)
		}
		cursor.Visit(func(child, _ clang.Cursor) clang.ChildVisitResult {
			if child.Kind() != clang.Cursor_EnumConstantDecl {
				return clang.ChildVisit_Continue
			}
			item := &Node{Kind: KindEnumConstant, Name: child.Spelling()}
			explicit := false
			child.Visit(func(clang.Cursor, clang.Cursor) clang.ChildVisitResult {
				explicit = true
				return clang.ChildVisit_Break
			})
			if explicit {
				// libclang folds the initializer; expose it as the single
				// literal a JSON dump would carry.
				item.Inner = []*Node{{
					Kind:          KindConstantExpr,
					ValueCategory: "prvalue",
					Inner: []*Node{{
						Kind:  KindIntegerLiteral,
						Value: strconv.FormatInt(child.EnumConstantDeclValue(), 10),
					}},
				}}
			}
			n.Inner = append(n.Inner, item)
			return clang.ChildVisit_Continue
		})
		return n

	case clang.Cursor_FunctionDecl:
		n := &Node{
			Kind: KindFunction,
			Name: spelling,
			Type: &QualType{QualType: cursor.Type().Spelling()},
		}
		if c := commentNode(cursor); c != nil {
			n.Inner = append(n.Inner, c)
		}
		for i := int32(0); i < cursor.NumArguments(); i++ {
			arg := cursor.Argument(uint32(i))
			n.Inner = append(n.Inner, &Node{
				Kind: KindParam,
				Name: arg.Spelling(),
				Type: &QualType{QualType: arg.Type().Spelling()},
			})
		}
		return n
	}

	return nil
}
