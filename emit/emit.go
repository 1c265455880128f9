// Package emit holds what the language backends share: the per-module
// environment, override-aware type lookups and small text helpers.
package emit

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"headerbind/ctype"
	"headerbind/detect"
	"headerbind/ir"
	"headerbind/logging"
)

// UnhandledMarker is written into generated code wherever a C type could
// not be mapped.  Search the output for it to find gaps.
const UnhandledMarker = "FIXME(unhandled)"

// Unhandled formats the marker for a raw C type.
func Unhandled(raw string) string {
	return UnhandledMarker + ": " + raw
}

// UnhandledType is written in the type position of a member, parameter or
// result whose C type could not be mapped.  It names no type in any target
// language, so the generated code refuses to compile until an override
// fills the gap.
const UnhandledType = "FIXME_unhandled"

// UnhandledDecl spells UnhandledType followed by the raw C type.
func UnhandledDecl(raw string) string {
	return UnhandledType + " /* " + raw + " */"
}

// OutName returns base, prefixed with underscores until it collides with
// none of taken.  Backends use it for locals and out-parameters they add
// next to the C parameters.
func OutName(base string, taken []string) string {
	name := base
	for slices.Contains(taken, name) {
		name = "_" + name
	}
	return name
}

// File is one generated artifact, named relative to the language's output
// directory.
type File struct {
	Name string
	Data []byte
}

// Emitter renders the bindings of one module for one target language.
type Emitter interface {
	Language() string
	Emit(ctx context.Context, env *Env) ([]File, error)
}

// Env is everything an emitter may consult while rendering one module.
// All members are read-only.
type Env struct {
	Module    *ir.Module
	Types     *ctype.TypeSet
	Overrides *ctype.Overrides
	Registry  *detect.Registry
	// Library is the native library the module's symbols live in.
	Library string
	// Imports are the display names of the module's dependencies.
	Imports []string
	Log     *logging.Logger
}

func (e *Env) logger() *logging.Logger {
	if e.Log == nil {
		return logging.NoopLogger()
	}
	return e.Log
}

// Emittable reports whether d produces output: it must be local to the
// module and not on the ignore list.
func (e *Env) Emittable(d ir.Decl) bool {
	if d.Origin().IsDep {
		return false
	}
	if d.Kind() == ir.KindConsts {
		return true
	}
	return !e.Overrides.Ignored(d.DeclName())
}

// Superseded reports whether s is an opaque declaration of a struct that
// is also fully defined in the module.
func (e *Env) Superseded(s *ir.Struct) bool {
	if !s.Opaque {
		return false
	}
	for _, d := range e.Module.Decls {
		if o, ok := d.(*ir.Struct); ok && o != s && o.Name == s.Name && !o.Opaque {
			return true
		}
	}
	return false
}

// ConstItems returns the group's items that are not ignored.
func (e *Env) ConstItems(c *ir.Consts) []ir.Const {
	out := make([]ir.Const, 0, len(c.Items))
	for _, it := range c.Items {
		if !e.Overrides.Ignored(it.Name) {
			out = append(out, it)
		}
	}
	return out
}

// Name applies the name overrides.
func (e *Env) Name(name string) string {
	return e.Overrides.Name(name)
}

// Field classifies a struct member after type overrides.
func (e *Env) Field(ctx context.Context, s *ir.Struct, f ir.Field) ctype.Shape {
	return e.classify(ctx, s.Name, f.Name, e.Overrides.Type(s.Name, f.Name, f.Type))
}

// Param classifies a function parameter after type overrides.
func (e *Env) Param(ctx context.Context, fn *ir.Func, p ir.Param) ctype.Shape {
	return e.classify(ctx, fn.Name, p.Name, e.Overrides.Type(fn.Name, p.Name, p.Type))
}

// Result classifies a function's return type after type overrides.
func (e *Env) Result(ctx context.Context, fn *ir.Func) ctype.Shape {
	return e.classify(ctx, fn.Name, ctype.ResultKey, e.Overrides.Result(fn.Name, fn.Result))
}

func (e *Env) classify(ctx context.Context, owner, name, raw string) ctype.Shape {
	sh := e.Types.Classify(raw)
	if sh.Category == ctype.Unrecognized {
		e.logger().LogUnhandledType(ctx, owner, name, raw)
	}
	return sh
}

// StructReturn reports whether fn is routed through an out-pointer shim.
func (e *Env) StructReturn(fn *ir.Func) bool {
	return e.Registry.Has(fn.Name)
}

// HandleReturn reports whether fn keeps the id-returning convention.
func (e *Env) HandleReturn(fn *ir.Func) bool {
	return e.Overrides.IsHandleReturn(fn.Name)
}

// EnumValue is an enum item with its effective value.
type EnumValue struct {
	Name     string
	Value    int64
	Explicit bool
}

// EnumValues assigns C values to the items of e: an implicit item is one
// more than its predecessor, the first defaults to zero.  Storage-width
// sentinels are dropped.
func EnumValues(e *ir.Enum) []EnumValue {
	out := make([]EnumValue, 0, len(e.Items))
	next := int64(0)
	for _, it := range e.Items {
		v := EnumValue{Name: it.Name, Value: next}
		if it.Value != nil {
			v.Value, v.Explicit = *it.Value, true
		}
		next = v.Value + 1
		if IsForceU32(it.Name) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// IsForceU32 reports whether an enum item only exists to widen the enum's
// storage (_SG_ACTION_FORCE_U32, ForceU32).
func IsForceU32(name string) bool {
	flat := strings.ToUpper(strings.ReplaceAll(name, "_", ""))
	return strings.HasSuffix(flat, "FORCEU32")
}

// ParamNames returns the override-adjusted parameter names of fn.
func (e *Env) ParamNames(fn *ir.Func) []string {
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = e.Name(p.Name)
	}
	return names
}

// Writer accumulates generated lines.
type Writer struct {
	strings.Builder
}

// L writes one line.
func (w *Writer) L(s string) {
	w.WriteString(s)
	w.WriteByte('\n')
}

// Lf writes one formatted line.
func (w *Writer) Lf(format string, args ...any) {
	fmt.Fprintf(&w.Builder, format, args...)
	w.WriteByte('\n')
}
