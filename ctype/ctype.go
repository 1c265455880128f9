// Package ctype classifies C type spellings into the closed set of shapes
// the binding emitters know how to map.
package ctype

import (
	"strings"

	"headerbind/ir"
)

// Category is the shape of a C type as far as bindings are concerned.
type Category int

const (
	Unrecognized Category = iota
	Void
	Primitive
	Struct
	Enum
	VoidPtr
	ConstVoidPtr
	StringPtr
	ConstStructPtr
	StructPtr
	StructPtrPtr
	EnumPtr
	ConstPrimPtr
	PrimPtr
	FuncPtr
	Array1D
	Array2D
)

var categoryNames = [...]string{
	Unrecognized:   "unrecognized",
	Void:           "void",
	Primitive:      "primitive",
	Struct:         "struct",
	Enum:           "enum",
	VoidPtr:        "void pointer",
	ConstVoidPtr:   "const void pointer",
	StringPtr:      "string pointer",
	ConstStructPtr: "const struct pointer",
	StructPtr:      "struct pointer",
	StructPtrPtr:   "struct double pointer",
	EnumPtr:        "enum pointer",
	ConstPrimPtr:   "const primitive pointer",
	PrimPtr:        "primitive pointer",
	FuncPtr:        "function pointer",
	Array1D:        "1d array",
	Array2D:        "2d array",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// IsPointer reports whether values of the category are passed as addresses.
func (c Category) IsPointer() bool {
	switch c {
	case VoidPtr, ConstVoidPtr, StringPtr, ConstStructPtr, StructPtr, StructPtrPtr,
		EnumPtr, ConstPrimPtr, PrimPtr, FuncPtr:
		return true
	}
	return false
}

// Shape is the classification result of one type spelling.
type Shape struct {
	Category Category
	// Raw is the spelling that was classified.
	Raw string
	// Base names the pointee or value type for struct, enum and primitive
	// shapes and their pointers; for primitives it is the canonical
	// primitive after alias resolution.
	Base string
	// Elem and Dims describe fixed arrays.
	Elem *Shape
	Dims []int
	// Func is the signature of a function pointer.
	Func *FuncSig
}

// FuncSig is a function pointer signature.
type FuncSig struct {
	Result Shape
	Params []Shape
}

// primitives maps every spelling accepted as a primitive to itself; the
// table is extended per run with configured aliases.
var primitives = map[string]bool{
	"bool":               true,
	"char":               true,
	"signed char":        true,
	"unsigned char":      true,
	"short":              true,
	"unsigned short":     true,
	"int":                true,
	"unsigned int":       true,
	"long":               true,
	"unsigned long":      true,
	"long long":          true,
	"unsigned long long": true,
	"int8_t":             true,
	"uint8_t":            true,
	"int16_t":            true,
	"uint16_t":           true,
	"int32_t":            true,
	"uint32_t":           true,
	"int64_t":            true,
	"uint64_t":           true,
	"float":              true,
	"double":             true,
	"uintptr_t":          true,
	"intptr_t":           true,
	"size_t":             true,
}

// TypeSet is the set of names known while classifying one module.  Struct
// and enum names accumulate through Register in declaration order; aliases
// and opaque spellings come from configuration.
type TypeSet struct {
	structs map[string]bool
	enums   map[string]bool
	aliases map[string]string
	opaque  map[string]bool
}

// NewTypeSet creates an empty TypeSet.  aliases maps extra typedef names to
// a builtin primitive (cgltf_size -> size_t); opaque lists spellings that
// are passed around as untyped pointers (FONScontext *).
func NewTypeSet(aliases map[string]string, opaque []string) *TypeSet {
	ts := &TypeSet{
		structs: make(map[string]bool),
		enums:   make(map[string]bool),
		aliases: make(map[string]string, len(aliases)),
		opaque:  make(map[string]bool, len(opaque)),
	}
	for k, v := range aliases {
		ts.aliases[k] = v
	}
	for _, o := range opaque {
		ts.opaque[o] = true
	}
	return ts
}

// Register adds a declaration's name to the struct or enum sets.
func (ts *TypeSet) Register(d ir.Decl) {
	switch d := d.(type) {
	case *ir.Struct:
		ts.structs[d.Name] = true
	case *ir.Enum:
		ts.enums[d.Name] = true
	}
}

// RegisterModule registers every struct and enum of m, dependencies
// included, in one left-to-right pass.
func (ts *TypeSet) RegisterModule(m *ir.Module) {
	for _, d := range m.Decls {
		ts.Register(d)
	}
}

func (ts *TypeSet) IsStruct(name string) bool { return ts.structs[name] }
func (ts *TypeSet) IsEnum(name string) bool   { return ts.enums[name] }

// IsPrimitive reports whether name is a builtin primitive or an alias of one.
func (ts *TypeSet) IsPrimitive(name string) bool {
	if primitives[name] {
		return true
	}
	_, ok := ts.aliases[name]
	return ok
}

// Primitive resolves an alias to its builtin primitive.
func (ts *TypeSet) Primitive(name string) string {
	if base, ok := ts.aliases[name]; ok {
		return base
	}
	return name
}

// Classify places s in exactly one category.  Rules are tried in a fixed
// priority order and the first match wins.
func (ts *TypeSet) Classify(s string) Shape {
	s = normalize(s)
	sh := Shape{Raw: s}

	switch {
	case s == "void":
		sh.Category = Void
	case ts.IsPrimitive(s):
		sh.Category, sh.Base = Primitive, ts.Primitive(s)
	case ts.IsStruct(s):
		sh.Category, sh.Base = Struct, s
	case ts.IsEnum(s):
		sh.Category, sh.Base = Enum, s
	case s == "void *" || ts.opaque[s]:
		sh.Category = VoidPtr
	case s == "const void *":
		sh.Category = ConstVoidPtr
	case s == "const char *":
		sh.Category = StringPtr
	default:
		return ts.classifyCompound(sh)
	}
	return sh
}

func (ts *TypeSet) classifyCompound(sh Shape) Shape {
	s := sh.Raw

	if base, ok := pointee(s, "const ", " *"); ok && ts.IsStruct(base) {
		sh.Category, sh.Base = ConstStructPtr, base
		return sh
	}
	if base, ok := pointee(s, "", " *"); ok && ts.IsStruct(base) {
		sh.Category, sh.Base = StructPtr, base
		return sh
	}
	if base, ok := pointee(s, "", " **"); ok && ts.IsStruct(base) {
		sh.Category, sh.Base = StructPtrPtr, base
		return sh
	}
	if base, ok := pointee(s, "", " *"); ok && ts.IsEnum(base) {
		sh.Category, sh.Base = EnumPtr, base
		return sh
	}
	if base, ok := pointee(s, "const ", " *"); ok && ts.IsPrimitive(base) {
		sh.Category, sh.Base = ConstPrimPtr, ts.Primitive(base)
		return sh
	}
	if base, ok := pointee(s, "", " *"); ok && ts.IsPrimitive(base) {
		sh.Category, sh.Base = PrimPtr, ts.Primitive(base)
		return sh
	}
	if strings.Contains(s, funcPtrMarker) {
		return ts.classifyFuncPtr(sh)
	}
	if strings.Contains(s, "[") {
		return ts.classifyArray(sh)
	}
	return sh
}

// pointee strips prefix and suffix from s and returns what is left when
// both are present and the remainder is a plain name.
func pointee(s, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return "", false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(s, prefix), suffix)
	if base == "" || strings.ContainsAny(base, "*[(") || strings.HasPrefix(base, "const ") {
		return "", false
	}
	return base, true
}

// normalize removes elaborated type keywords and surrounding whitespace so
// "const struct sg_desc *" and "const sg_desc *" classify alike.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	for _, kw := range []string{"struct ", "enum ", "union "} {
		s = strings.ReplaceAll(s, "const "+kw, "const ")
		s = strings.TrimPrefix(s, kw)
	}
	return s
}
