// Package detect finds functions that return structs by value across every
// module of a run.  Detection is split in two phases: a Builder collects
// entries while modules are parsed, and Finish freezes them into a Registry
// that emitters and the shim generator only read.
package detect

import (
	"context"
	"errors"

	"headerbind/ctype"
	"headerbind/ir"
	"headerbind/logging"
	orderedmap "headerbind/ordered_map"
)

// ErrFinished is returned when a module is added after Finish.
var ErrFinished = errors.New("struct-return registry already finished")

// Entry is one function returning a struct by value.
type Entry struct {
	Function   string
	StructType string
	Module     string
	Prefix     string
	// Decl is the declaration the entry was found in.  Shims derive their
	// parameter lists from it.
	Decl *ir.Func
}

// Input is one parsed module together with the types known while it was
// classified.
type Input struct {
	Module *ir.Module
	Types  *ctype.TypeSet
}

// Builder accumulates registry entries.  It is not safe for concurrent use.
type Builder struct {
	overrides *ctype.Overrides
	log       *logging.Logger
	entries   *orderedmap.OrderedMap[string, Entry]
	modules   []*ir.Module
	finished  bool
}

// NewBuilder returns an empty builder.  Every run must start from a new one.
func NewBuilder(overrides *ctype.Overrides, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.NoopLogger()
	}
	return &Builder{
		overrides: overrides,
		log:       log,
		entries:   orderedmap.NewOrderedMap[string, Entry](),
	}
}

// Add scans the module's own functions.  Dependency declarations, handle
// returning functions and ignored names are skipped.  It returns the number
// of functions flagged.
func (b *Builder) Add(ctx context.Context, m *ir.Module, ts *ctype.TypeSet) (int, error) {
	if b.finished {
		return 0, ErrFinished
	}
	b.modules = append(b.modules, m)

	n := 0
	for _, f := range m.LocalFuncs() {
		if b.overrides.IsHandleReturn(f.Name) || b.overrides.Ignored(f.Name) {
			continue
		}
		result := ts.Classify(b.overrides.Result(f.Name, f.Result))
		if result.Category != ctype.Struct {
			continue
		}

		b.entries.Set(f.Name, Entry{
			Function:   f.Name,
			StructType: result.Base,
			Module:     m.Name,
			Prefix:     m.Prefix,
			Decl:       f,
		})
		b.log.LogAutoDetected(ctx, f.Name, result.Base)
		n++
	}
	return n, nil
}

// Finish freezes the builder.  Further calls to Add fail.
func (b *Builder) Finish(ctx context.Context) *Registry {
	b.finished = true
	b.log.LogDetectSummary(ctx, b.entries.Keys())
	return &Registry{entries: b.entries.Clone(), modules: append([]*ir.Module(nil), b.modules...)}
}

// Detect runs a complete detection pass over inputs in order.
func Detect(ctx context.Context, inputs []Input, overrides *ctype.Overrides, log *logging.Logger) (*Registry, error) {
	b := NewBuilder(overrides, log)
	for _, in := range inputs {
		if _, err := b.Add(ctx, in.Module, in.Types); err != nil {
			return nil, err
		}
	}
	return b.Finish(ctx), nil
}
