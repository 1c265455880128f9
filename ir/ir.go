// Package ir holds the language-neutral declaration list of one header
// module and the passes that build it from a normalized clang AST.
package ir

import (
	"encoding/json"
)

// Kind names a declaration kind.
type Kind string

const (
	KindStruct Kind = "struct"
	KindEnum   Kind = "enum"
	KindConsts Kind = "consts"
	KindFunc   Kind = "func"
)

// Origin records whether a declaration belongs to the module being
// processed or is a read-only projection of one of its dependencies.
type Origin struct {
	IsDep     bool   `json:"is_dep"`
	DepPrefix string `json:"dep_prefix,omitempty"`
}

// Decl is one of *Struct, *Enum, *Consts or *Func.
type Decl interface {
	Kind() Kind
	// DeclName is the C symbol name; Consts groups have none.
	DeclName() string
	Origin() Origin
	decl()
}

// Field is a struct member in declaration order.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Struct is a C aggregate.  Opaque marks aggregates declared without members.
type Struct struct {
	Name    string  `json:"name"`
	Fields  []Field `json:"fields"`
	Comment string  `json:"comment,omitempty"`
	Opaque  bool    `json:"opaque,omitempty"`
	Own     Origin  `json:"-"`
}

// EnumItem is a named enum constant; Value is nil when the header leaves it
// implicit.
type EnumItem struct {
	Name  string `json:"name"`
	Value *int64 `json:"value,omitempty"`
}

type Enum struct {
	Name    string     `json:"name"`
	Items   []EnumItem `json:"items"`
	Comment string     `json:"comment,omitempty"`
	Own     Origin     `json:"-"`
}

// Const is an item of an anonymous enum.  The value is always present.
type Const struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Consts is an anonymous enum used as a group of named integer constants.
type Consts struct {
	Items   []Const `json:"items"`
	Comment string  `json:"comment,omitempty"`
	Own     Origin  `json:"-"`
}

// Param is a function parameter in declaration order.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Func is a function prototype.  Type is the full clang function type,
// e.g. "int (int, int)", and Result the return type split off it.
type Func struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Result  string  `json:"result"`
	Params  []Param `json:"params"`
	Comment string  `json:"comment,omitempty"`
	Own     Origin  `json:"-"`
}

func (*Struct) Kind() Kind { return KindStruct }
func (*Enum) Kind() Kind   { return KindEnum }
func (*Consts) Kind() Kind { return KindConsts }
func (*Func) Kind() Kind   { return KindFunc }

func (d *Struct) DeclName() string { return d.Name }
func (d *Enum) DeclName() string   { return d.Name }
func (d *Consts) DeclName() string { return "" }
func (d *Func) DeclName() string   { return d.Name }

func (d *Struct) Origin() Origin { return d.Own }
func (d *Enum) Origin() Origin   { return d.Own }
func (d *Consts) Origin() Origin { return d.Own }
func (d *Func) Origin() Origin   { return d.Own }

func (*Struct) decl() {}
func (*Enum) decl()   {}
func (*Consts) decl() {}
func (*Func) decl()   {}

// Module is the IR of one header.
type Module struct {
	Name        string   `json:"module"`
	Prefix      string   `json:"prefix"`
	DepPrefixes []string `json:"dep_prefixes"`
	Comment     string   `json:"comment,omitempty"`
	Decls       []Decl   `json:"decls"`
}

// LocalFuncs returns the module's own function declarations in order.
func (m *Module) LocalFuncs() []*Func {
	var out []*Func
	for _, d := range m.Decls {
		if f, ok := d.(*Func); ok && !f.Own.IsDep {
			out = append(out, f)
		}
	}
	return out
}

// Func looks up a function declaration by name.
func (m *Module) Func(name string) (*Func, bool) {
	for _, d := range m.Decls {
		if f, ok := d.(*Func); ok && f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// The kind tag is carried in the JSON dump so it reads like the declaration
// list it was built from.

func (d *Struct) MarshalJSON() ([]byte, error) {
	type plain Struct
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*plain
		Origin
	}{KindStruct, (*plain)(d), d.Own})
}

func (d *Enum) MarshalJSON() ([]byte, error) {
	type plain Enum
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*plain
		Origin
	}{KindEnum, (*plain)(d), d.Own})
}

func (d *Consts) MarshalJSON() ([]byte, error) {
	type plain Consts
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*plain
		Origin
	}{KindConsts, (*plain)(d), d.Own})
}

func (d *Func) MarshalJSON() ([]byte, error) {
	type plain Func
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*plain
		Origin
	}{KindFunc, (*plain)(d), d.Own})
}
