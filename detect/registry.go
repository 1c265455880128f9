package detect

import (
	"headerbind/ir"
	orderedmap "headerbind/ordered_map"
)

// Registry is the finished, read-only struct-return table of a run.
type Registry struct {
	entries *orderedmap.OrderedMap[string, Entry]
	modules []*ir.Module
}

// ModuleGroup is the registry view of one module.
type ModuleGroup struct {
	Module  string
	Prefix  string
	Entries []Entry
}

// Empty returns a registry without entries.
func Empty() *Registry {
	return &Registry{entries: orderedmap.NewOrderedMap[string, Entry]()}
}

// Lookup returns the entry of fn.
func (r *Registry) Lookup(fn string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	return r.entries.Get(fn)
}

// Has reports whether fn returns a struct by value.
func (r *Registry) Has(fn string) bool {
	return r != nil && r.entries.Has(fn)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.entries.Len()
}

// Entries returns all entries in detection order.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	return r.entries.Values()
}

// ByModule groups entries by owning module, in the order modules were
// added.  Modules without entries are included with an empty list.
func (r *Registry) ByModule() []ModuleGroup {
	if r == nil {
		return nil
	}
	groups := make([]ModuleGroup, len(r.modules))
	for i, m := range r.modules {
		groups[i] = ModuleGroup{Module: m.Name, Prefix: m.Prefix}
	}
	for _, e := range r.Entries() {
		for i, m := range r.modules {
			if declares(m, e.Decl) {
				groups[i].Entries = append(groups[i].Entries, e)
				break
			}
		}
	}
	return groups
}

func declares(m *ir.Module, fn *ir.Func) bool {
	for _, d := range m.Decls {
		if f, ok := d.(*ir.Func); ok && f == fn {
			return true
		}
	}
	return false
}
